package testbed

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/snow/engine"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer"
)

var defaultShaders = []string{"default.vert", "default.frag"}

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	elapsed    float64
	lastReport float64
	frames     uint64
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				width:  config.Window.Width,
				height: config.Window.Height,
			},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

// Initialize loads the default vertex and fragment shaders.
func (g *TestGame) Initialize() error {
	if g.Shaders == nil {
		return fmt.Errorf("the engine did not provide a shader library")
	}

	paths := make([]string, len(defaultShaders))
	for i, name := range defaultShaders {
		paths[i] = filepath.Join(g.ApplicationConfig.Shaders.Dir, name)
	}
	if err := g.Shaders.Load(context.Background(), paths...); err != nil {
		return err
	}

	for _, name := range g.Shaders.Names() {
		m, _ := g.Shaders.Get(name)
		for _, in := range m.Inputs {
			core.LogDebug("%s input %d '%s' %s", name, in.Location, in.Name, in.Format)
		}
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime
	state.frames++

	if state.elapsed-state.lastReport >= 5 {
		core.LogDebug("testbed: %d frames in %.1fs", state.frames, state.elapsed)
		state.lastReport = state.elapsed
	}
	return nil
}

// Render does nothing beyond the clear the engine records for every frame.
func (g *TestGame) Render(rec *renderer.Recorder, targets *renderer.RenderTargetSet, deltaTime float64) error {
	return rec.Err()
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed shut down after %d frames", g.State.(*gameState).frames)
	return nil
}
