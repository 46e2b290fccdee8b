package renderer

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

type Options struct {
	ImageCount  uint32
	PresentMode driver.PresentMode
}

// RecordFunc records the draw commands of a frame inside the main render
// pass.
type RecordFunc func(rec *Recorder, targets *RenderTargetSet) error

// Renderer owns the presentation side of the device: the swapchain, the
// render targets built from it and the frame orchestrator. Swapchain and
// render targets are always replaced together.
type Renderer struct {
	Metrics *core.FrameMetrics

	dc        *DeviceContext
	surfaces  *SurfaceManager
	swapchain *SwapchainState
	targets   *RenderTargetSet
	frames    *Orchestrator
	setup     *core.SetupChain

	// Framebuffer size generation, incremented on resize.
	framebufferSizeGeneration uint64
	// The generation the swapchain was last built for.
	framebufferSizeLastGeneration uint64
}

// NewRenderer creates the swapchain, the render targets and the frame
// orchestrator, in that order. Nothing is left allocated on failure.
func NewRenderer(dc *DeviceContext, surface driver.Surface, window Window, opts Options) (*Renderer, error) {
	r := &Renderer{
		Metrics:  core.NewFrameMetrics(),
		dc:       dc,
		surfaces: NewSurfaceManager(dc, surface, window, SwapchainOptions(opts)),
		setup:    core.NewSetupChain(),
	}

	r.setup.
		Add("swapchain", func() error {
			sc, err := r.surfaces.Create()
			r.swapchain = sc
			return err
		}, func() error {
			r.surfaces.Destroy()
			r.swapchain = nil
			return nil
		}).
		Add("render targets", func() error {
			rts, err := BuildRenderTargets(r.swapchain, r.dc)
			r.targets = rts
			return err
		}, func() error {
			if r.targets != nil {
				r.targets.Destroy()
				r.targets = nil
			}
			return nil
		}).
		Add("frame orchestrator", func() error {
			frames, err := NewOrchestrator(r.dc, r.surfaces)
			r.frames = frames
			return err
		}, func() error {
			return r.frames.Destroy()
		})

	if err := r.setup.Run(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) Device() *DeviceContext          { return r.dc }
func (r *Renderer) Swapchain() *SwapchainState      { return r.swapchain }
func (r *Renderer) RenderTargets() *RenderTargetSet { return r.targets }
func (r *Renderer) Frames() *Orchestrator           { return r.frames }

// Resized records a framebuffer size change. The swapchain is rebuilt at
// the start of the next frame.
func (r *Renderer) Resized(width, height uint32) {
	core.LogDebug("Framebuffer resized to %dx%d.", width, height)
	r.framebufferSizeGeneration++
}

// NeedsRecreate reports whether the next frame will rebuild the swapchain.
func (r *Renderer) NeedsRecreate() bool {
	return r.targets == nil ||
		r.framebufferSizeGeneration != r.framebufferSizeLastGeneration ||
		r.frames.NeedsRecreate()
}

// RecreateSwapchain rebuilds the swapchain for the current window size and
// the render targets with it. When it fails no render targets are left and
// the next frame tries again.
func (r *Renderer) RecreateSwapchain() error {
	extent := r.surfaces.WindowExtent()
	if extent.Width == 0 || extent.Height == 0 {
		return core.ErrWindowMinimized
	}

	if err := r.frames.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle before recreation: %w", err)
	}
	if r.targets != nil {
		r.targets.Destroy()
		r.targets = nil
	}

	sc, err := r.surfaces.Recreate(r.swapchain, extent)
	if err != nil {
		r.frames.RequestRecreate()
		return fmt.Errorf("recreate swapchain: %w", err)
	}
	r.swapchain = sc

	rts, err := BuildRenderTargets(sc, r.dc)
	if err != nil {
		r.frames.RequestRecreate()
		return fmt.Errorf("rebuild render targets: %w", err)
	}
	r.targets = rts

	r.frames.SwapchainRecreated()
	r.framebufferSizeLastGeneration = r.framebufferSizeGeneration
	r.Metrics.SwapchainRecreated()
	return nil
}

// DrawFrame runs one full frame cycle: recreate if needed, acquire, clear
// the acquired image to clear, record, submit and present. Frame-fatal
// failures are counted in Metrics.
func (r *Renderer) DrawFrame(ctx context.Context, clear [4]float32, record RecordFunc) error {
	err := r.drawFrame(ctx, clear, record)
	switch {
	case err == nil:
		r.Metrics.FrameSucceeded()
	case core.IsFrameFatal(err):
		streak := r.Metrics.FrameFailed()
		core.LogError("Frame dropped (%d in a row): %s", streak, err)
	}
	return err
}

func (r *Renderer) drawFrame(ctx context.Context, clear [4]float32, record RecordFunc) error {
	if r.NeedsRecreate() {
		if err := r.RecreateSwapchain(); err != nil {
			return err
		}
	}

	session, err := r.frames.Acquire(ctx)
	if err != nil {
		return err
	}

	rec, err := r.frames.Recorder(session)
	if err != nil {
		r.frames.Abandon(session)
		return err
	}
	if err := rec.BeginRenderPass(r.targets, clear); err != nil {
		r.frames.Abandon(session)
		return err
	}
	if record != nil {
		if err := record(rec, r.targets); err != nil {
			r.frames.Abandon(session)
			return err
		}
	}
	rec.EndRenderPass()

	return r.frames.Submit(session)
}

// WaitIdle blocks until all submitted frames have completed.
func (r *Renderer) WaitIdle() error {
	return r.frames.WaitIdle()
}

// Shutdown releases the orchestrator, the render targets and the swapchain,
// in that order.
func (r *Renderer) Shutdown() error {
	if err := r.setup.Teardown(); err != nil {
		return err
	}
	core.LogInfo("Renderer shut down.")
	return nil
}
