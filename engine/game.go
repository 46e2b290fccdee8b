package engine

import (
	"github.com/spaghettifunk/snow/engine/renderer"
	"github.com/spaghettifunk/snow/engine/renderer/shader"
)

// Game is the application driven by the engine. Shaders is set by the
// engine before FnInitialize runs.
type Game struct {
	ApplicationConfig *ApplicationConfig
	Shaders           *shader.Library
	State             interface{}

	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error

// Render records the game's commands inside the frame's render pass. The
// pass is already cleared to the configured color.
type Render func(rec *renderer.Recorder, targets *renderer.RenderTargetSet, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
