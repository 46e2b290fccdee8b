package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
	"github.com/spaghettifunk/snow/engine/renderer/driver/drivertest"
)

func newTestEngine(t *testing.T, g *Game) (*Engine, *drivertest.Surface, *drivertest.Device) {
	t.Helper()
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}

	pd := drivertest.NewPhysicalDevice("fake", driver.DeviceTypeDiscreteGPU)
	surface := drivertest.NewSurface(1240, 720)
	dc, err := renderer.NewDeviceContext(drivertest.NewInstance(pd), surface, nil)
	if err != nil {
		t.Fatalf("create device context: %s", err)
	}
	r, err := renderer.NewRenderer(dc, surface, surface, renderer.Options{})
	if err != nil {
		t.Fatalf("create renderer: %s", err)
	}

	e := &Engine{
		currentStage: EngineStageRunning,
		gameInstance: g,
		config:       g.ApplicationConfig,
		isRunning:    true,
		setup:        core.NewSetupChain(),
		width:        1240,
		height:       720,
		device:       dc,
		renderer:     r,
		ctx:          context.Background(),
	}
	t.Cleanup(func() {
		_ = r.Shutdown()
		_ = dc.Destroy()
	})
	return e, surface, pd.Created
}

func TestFrameRecordsGameCommands(t *testing.T) {
	var calls int
	g := &Game{
		FnRender: func(rec *renderer.Recorder, targets *renderer.RenderTargetSet, deltaTime float64) error {
			calls++
			rec.Draw(3, 1, 0, 0)
			return nil
		},
	}
	e, _, device := newTestEngine(t, g)

	if err := e.frame(context.Background(), 0.016); err != nil {
		t.Fatalf("frame: %s", err)
	}
	if calls != 1 {
		t.Errorf("render called %d times", calls)
	}
	if n := len(device.FakeQueue().Presentations); n != 1 {
		t.Errorf("presentations = %d, want 1", n)
	}
	if e.renderer.Metrics.FramesRendered != 1 {
		t.Errorf("frames rendered = %d", e.renderer.Metrics.FramesRendered)
	}
}

func TestFrameStopsAfterConsecutiveFailures(t *testing.T) {
	g := &Game{ApplicationConfig: DefaultApplicationConfig()}
	g.ApplicationConfig.Renderer.MaxConsecutiveFailures = 2
	e, _, device := newTestEngine(t, g)
	ctx := context.Background()

	device.FailSubmit = errors.New("queue exploded")
	if err := e.frame(ctx, 0); err != nil {
		t.Fatalf("first failure must not stop the loop: %s", err)
	}
	if e.renderer.Metrics.ConsecutiveFailures != 1 {
		t.Fatalf("consecutive failures = %d", e.renderer.Metrics.ConsecutiveFailures)
	}

	device.FailSubmit = errors.New("queue exploded again")
	err := e.frame(ctx, 0)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("expected ErrTooManyFailures, got %v", err)
	}
	var submitErr *core.SubmitError
	if !errors.As(err, &submitErr) {
		t.Errorf("the frame error should be kept, got %v", err)
	}
}

func TestFrameSuccessResetsFailureStreak(t *testing.T) {
	e, _, device := newTestEngine(t, &Game{})
	ctx := context.Background()

	device.FailSubmit = errors.New("boom")
	if err := e.frame(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.frame(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if e.renderer.Metrics.ConsecutiveFailures != 0 {
		t.Errorf("streak not reset: %d", e.renderer.Metrics.ConsecutiveFailures)
	}
	if e.renderer.Metrics.TotalFailures != 1 {
		t.Errorf("total failures = %d", e.renderer.Metrics.TotalFailures)
	}
}

func TestFrameSuspendsWhenMinimized(t *testing.T) {
	e, surface, _ := newTestEngine(t, &Game{})

	surface.Resize(0, 0)
	e.renderer.Resized(0, 0)
	if err := e.frame(context.Background(), 0); err != nil {
		t.Fatalf("minimized frame: %s", err)
	}
	if !e.isSuspended {
		t.Error("engine should be suspended")
	}
}

func TestOnResizedSuspendAndResume(t *testing.T) {
	var resized []uint32
	g := &Game{
		FnOnResize: func(width, height uint32) error {
			resized = append(resized, width, height)
			return nil
		},
	}
	e, surface, _ := newTestEngine(t, g)

	e.onResized(core.EVENT_CODE_RESIZED, nil, e, core.EventContext{Width: 0, Height: 0})
	if !e.isSuspended {
		t.Fatal("zero sized framebuffer should suspend")
	}

	surface.Resize(800, 600)
	e.onResized(core.EVENT_CODE_RESIZED, nil, e, core.EventContext{Width: 800, Height: 600})
	if e.isSuspended {
		t.Fatal("restored window should resume")
	}
	if w, h := e.GetFramebufferSize(); w != 800 || h != 600 {
		t.Errorf("framebuffer size %dx%d", w, h)
	}
	if len(resized) != 2 || resized[0] != 800 || resized[1] != 600 {
		t.Errorf("game resize calls %v", resized)
	}
	if !e.renderer.NeedsRecreate() {
		t.Error("renderer should rebuild the swapchain after a resize")
	}

	if err := e.frame(context.Background(), 0); err != nil {
		t.Fatalf("frame after resize: %s", err)
	}
	if got := e.renderer.Swapchain().Extent; got != (driver.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("swapchain extent %v, want 800x600", got)
	}
}

func TestQuitEventStopsLoop(t *testing.T) {
	e, _, _ := newTestEngine(t, &Game{})
	if !e.onEvent(core.EVENT_CODE_APPLICATION_QUIT, nil, e, core.EventContext{}) {
		t.Error("quit should be handled")
	}
	if e.isRunning {
		t.Error("engine still running after quit")
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(&Game{})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if e.Stage() != EngineStageUninitialized {
		t.Errorf("stage = %s", e.Stage())
	}
	if err := e.Run(context.Background()); err == nil {
		t.Error("Run before Initialize should fail")
	}
	if err := e.Shutdown(); err != nil {
		t.Errorf("Shutdown of an idle engine: %s", err)
	}
	if e.Stage() != EngineStageShutdown {
		t.Errorf("stage after shutdown = %s", e.Stage())
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultApplicationConfig()
	cfg.Renderer.PresentMode = "vsync"
	if _, err := New(&Game{ApplicationConfig: cfg}); err == nil {
		t.Error("expected an error for an unknown present mode")
	}
}
