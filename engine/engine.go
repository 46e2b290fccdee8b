package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spaghettifunk/snow/engine/assets"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/platform"
	"github.com/spaghettifunk/snow/engine/renderer"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
	"github.com/spaghettifunk/snow/engine/renderer/shader"
	"github.com/spaghettifunk/snow/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it created
	EngineStageShutdown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageBootComplete:
		return "boot complete"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	case EngineStageShutdown:
		return "shut down"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// ErrTooManyFailures stops the run loop once the configured number of
// frames in a row failed.
var ErrTooManyFailures = errors.New("too many consecutive frame failures")

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *ApplicationConfig
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	assetManager *assets.AssetManager
	setup        *core.SetupChain
	clock        *core.Clock
	lastTime     float64
	width        uint32
	height       uint32

	instance *vulkan.VulkanInstance
	surface  driver.Surface
	device   *renderer.DeviceContext
	shaders  *shader.Library
	renderer *renderer.Renderer

	// ctx is the context of the running loop, used by event handlers.
	ctx context.Context
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		return nil, err
	}

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.ApplicationConfig,
		platform:     p,
		assetManager: assets.NewAssetManager(),
		setup:        core.NewSetupChain(),
		clock:        core.NewClock(),
		isRunning:    true,
		width:        g.ApplicationConfig.Window.Width,
		height:       g.ApplicationConfig.Window.Height,
		ctx:          context.Background(),
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Initialize creates the window, the instance, the surface, the device, the
// shader library and the renderer, in that order, then initializes the
// game. A failing step releases everything created before it.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine already %s", e.currentStage)
	}
	e.currentStage = EngineStageBooting

	if err := core.SetLogLevel(e.config.Log.Level); err != nil {
		core.LogWarn("invalid log level %q, keeping the default: %s", e.config.Log.Level, err)
	}

	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_SHADER_CHANGED, e, e.onShaderChanged)

	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			core.LogError("Game boot failed: %s", err)
			return err
		}
	}
	e.currentStage = EngineStageBootComplete
	e.currentStage = EngineStageInitializing

	cfg := e.config
	presentMode, err := driver.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return err
	}
	shaderDir, err := filepath.Abs(cfg.Shaders.Dir)
	if err != nil {
		return err
	}

	e.setup.
		Add("platform", func() error {
			return e.platform.Startup(cfg.Window.Name, cfg.Window.X, cfg.Window.Y, cfg.Window.Width, cfg.Window.Height)
		}, e.platform.Shutdown).
		Add("instance", func() error {
			inst, err := vulkan.NewInstance(vulkan.InstanceConfig{
				AppName:    cfg.Window.Name,
				Extensions: e.platform.RequiredInstanceExtensions(),
				Validation: cfg.Renderer.Validation,
			})
			e.instance = inst
			return err
		}, func() error {
			e.instance.Destroy()
			return nil
		}).
		Add("surface", func() error {
			s, err := e.instance.CreateSurface(e.platform.CreateWindowSurface)
			e.surface = s
			return err
		}, func() error {
			e.surface.Destroy()
			return nil
		}).
		Add("device", func() error {
			dc, err := renderer.NewDeviceContext(e.instance, e.surface, nil)
			e.device = dc
			return err
		}, func() error {
			return e.device.Destroy()
		}).
		Add("shaders", func() error {
			compiler := shader.NewCompiler(cfg.Shaders.Compiler, shaderDir)
			e.shaders = shader.NewLibrary(shader.NewBuilder(compiler), e.device)
			e.gameInstance.Shaders = e.shaders
			return e.assetManager.Initialize(shaderDir, cfg.Shaders.Watch)
		}, func() error {
			err := e.assetManager.Shutdown()
			e.shaders.Destroy()
			return err
		}).
		Add("renderer", func() error {
			r, err := renderer.NewRenderer(e.device, e.surface, e.platform, renderer.Options{
				ImageCount:  cfg.Renderer.ImageCount,
				PresentMode: presentMode,
			})
			e.renderer = r
			return err
		}, func() error {
			return e.renderer.Shutdown()
		}).
		Add("game", func() error {
			if e.gameInstance.FnInitialize == nil {
				return nil
			}
			return e.gameInstance.FnInitialize()
		}, func() error {
			if e.gameInstance.FnShutdown == nil {
				return nil
			}
			return e.gameInstance.FnShutdown()
		})

	if err := e.setup.Run(); err != nil {
		core.EventShutdown()
		e.currentStage = EngineStageShutdown
		return err
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized.")
	return nil
}

// Run drives the frame loop until the window closes, ctx is cancelled or
// too many frames in a row fail.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is %s, not initialized", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.ctx = ctx

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if ctx.Err() != nil {
			core.LogInfo("Run loop cancelled: %s", ctx.Err())
			break
		}

		e.platform.PumpMessages()
		e.drainShaderChanges()

		if e.isSuspended {
			e.platform.WaitEvents()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := core.Now()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down: %s", err)
				return err
			}
		}

		if err := e.frame(ctx, delta); err != nil {
			core.LogError("Shutting down: %s", err)
			return err
		}

		e.renderer.Metrics.Update(core.Now() - frameStartTime)
		e.lastTime = currentTime
	}
	return nil
}

// frame draws one frame and applies the failure policy. Only errors that
// must stop the loop are returned.
func (e *Engine) frame(ctx context.Context, delta float64) error {
	err := e.renderer.DrawFrame(ctx, e.config.Renderer.ClearColor, func(rec *renderer.Recorder, targets *renderer.RenderTargetSet) error {
		if e.gameInstance.FnRender == nil {
			return nil
		}
		return e.gameInstance.FnRender(rec, targets, delta)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrWindowMinimized):
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return nil
	case core.IsTransient(err):
		// The swapchain is rebuilt at the start of the next frame.
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.isRunning = false
		return nil
	case core.IsFrameFatal(err):
		if n := e.renderer.Metrics.ConsecutiveFailures; n >= e.config.Renderer.MaxConsecutiveFailures {
			return fmt.Errorf("%w (%d): %w", ErrTooManyFailures, n, err)
		}
		return nil
	default:
		return err
	}
}

// drainShaderChanges forwards the paths reported by the watcher since the
// last frame. GPU objects are only touched from the loop goroutine.
func (e *Engine) drainShaderChanges() {
	changed := e.assetManager.Changed()
	for {
		select {
		case path := <-changed:
			core.EventFire(core.EVENT_CODE_SHADER_CHANGED, e, core.EventContext{Path: path})
		default:
			return
		}
	}
}

// Shutdown waits for the GPU and releases everything in reverse creation
// order. It is safe to call more than once.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	var errs []error
	if e.renderer != nil {
		if err := e.renderer.WaitIdle(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.setup.Teardown(); err != nil {
		errs = append(errs, err)
	}
	if err := core.EventShutdown(); err != nil {
		errs = append(errs, err)
	}

	e.currentStage = EngineStageShutdown
	core.LogInfo("Engine shut down.")
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Width, data.Height
	if width == e.width && height == e.height && !e.isSuspended {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}

	if e.renderer != nil {
		e.renderer.Resized(width, height)
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("Game resize handler failed: %s", err)
		}
	}
	// Other listeners may want to know about this.
	return false
}

func (e *Engine) onShaderChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if e.shaders == nil {
		return false
	}
	// A failed reload keeps the previous module and is already logged.
	_ = e.shaders.Reload(e.ctx, data.Path)
	return true
}
