package renderer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

var (
	errRenderPassNotBegun = errors.New("command recorded outside a render pass")
	errRenderPassOpen     = errors.New("render pass was not ended")
	errRenderPassNested   = errors.New("render pass already begun")
)

type FrameState int

const (
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameRecording
	FrameSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameAcquiring:
		return "acquiring"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	}
	return "unknown"
}

// FrameSession is the work of one frame, from acquisition to submission.
// It is consumed by exactly one call to Submit or Abandon.
type FrameSession struct {
	ID         uuid.UUID
	ImageIndex uint32
	// Generation of the swapchain the image was acquired from.
	Generation uint64

	swapchain *SwapchainState
	acquired  driver.Semaphore
	signal    *Signal
	recorder  *Recorder
	done      bool
}

// Recorder records the commands of one frame into a one time submit
// command buffer. The first recording error sticks and fails the submit.
type Recorder struct {
	session *FrameSession
	cb      driver.CommandBuffer
	inPass  bool
	err     error
}

// BeginRenderPass starts the render pass of targets on the framebuffer of
// the acquired image, clearing it to clear. Viewport and scissor are set to
// the full target extent.
func (r *Recorder) BeginRenderPass(targets *RenderTargetSet, clear [4]float32) error {
	if r.inPass {
		r.setErr(errRenderPassNested)
		return errRenderPassNested
	}
	fb, err := targets.Framebuffer(r.session.ImageIndex, r.session.Generation)
	if err != nil {
		r.setErr(err)
		return err
	}
	clearValues := []driver.ClearValue{{Color: clear}}
	r.cb.BeginRenderPass(targets.Pass, fb, targets.Scissor, clearValues)
	r.cb.SetViewport(targets.Viewport)
	r.cb.SetScissor(targets.Scissor)
	r.inPass = true
	return nil
}

func (r *Recorder) SetViewport(viewport driver.Viewport) {
	if !r.inPass {
		r.setErr(errRenderPassNotBegun)
		return
	}
	r.cb.SetViewport(viewport)
}

func (r *Recorder) SetScissor(scissor driver.Rect2D) {
	if !r.inPass {
		r.setErr(errRenderPassNotBegun)
		return
	}
	r.cb.SetScissor(scissor)
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !r.inPass {
		r.setErr(errRenderPassNotBegun)
		return
	}
	r.cb.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *Recorder) EndRenderPass() {
	if !r.inPass {
		r.setErr(errRenderPassNotBegun)
		return
	}
	r.cb.EndRenderPass()
	r.inPass = false
}

// Err returns the first recording error.
func (r *Recorder) Err() error {
	return r.err
}

func (r *Recorder) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Orchestrator drives the frame cycle Idle → Acquiring → Recording →
// Submitted → Idle. It holds the completion signal of everything submitted
// so far and recycles command buffers, semaphores and fences once the GPU is
// done with them.
type Orchestrator struct {
	dc       *DeviceContext
	surfaces *SurfaceManager
	pool     driver.CommandPool

	state    FrameState
	session  *FrameSession
	previous *Signal

	freeCommandBuffers []driver.CommandBuffer
	freeSemaphores     []driver.Semaphore
	freeFences         []driver.Fence

	// One render-finished semaphore per image index of swapchain generation
	// renderDoneGen. A present may wait on it until the index is acquired
	// again, so it never goes back to freeSemaphores.
	renderDone    []driver.Semaphore
	renderDoneGen uint64

	needsRecreate bool
}

func NewOrchestrator(dc *DeviceContext, surfaces *SurfaceManager) (*Orchestrator, error) {
	pool, err := dc.Device.CreateCommandPool(dc.QueueFamily)
	if err != nil {
		return nil, fmt.Errorf("create command pool: %w", err)
	}
	return &Orchestrator{
		dc:       dc,
		surfaces: surfaces,
		pool:     pool,
		state:    FrameIdle,
		previous: Completed(),
	}, nil
}

func (o *Orchestrator) State() FrameState {
	return o.state
}

// InFlight returns the completion signal of all submitted frames.
func (o *Orchestrator) InFlight() *Signal {
	return o.previous
}

// NeedsRecreate reports whether the swapchain was found out of date or
// suboptimal. Acquire refuses to run until SwapchainRecreated is called.
func (o *Orchestrator) NeedsRecreate() bool {
	return o.needsRecreate
}

func (o *Orchestrator) RequestRecreate() {
	o.needsRecreate = true
}

func (o *Orchestrator) SwapchainRecreated() {
	o.needsRecreate = false
}

// Acquire blocks until the next swapchain image is available and opens a
// frame session for it. Only one session may be open at a time.
func (o *Orchestrator) Acquire(ctx context.Context) (*FrameSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.state != FrameIdle {
		return nil, core.ErrAcquisitionPending
	}

	// Release whatever earlier frames finished with. Never blocks.
	if _, err := o.previous.Poll(); err != nil {
		return nil, &core.AcquireError{Err: err}
	}

	sc := o.surfaces.Current()
	if o.needsRecreate || sc == nil || sc.Handle == nil {
		return nil, core.ErrSurfaceOutOfDate
	}

	acquired, err := o.takeSemaphore()
	if err != nil {
		return nil, &core.AcquireError{Err: err}
	}

	o.state = FrameAcquiring
	index, suboptimal, err := sc.Handle.AcquireNextImage(driver.NoTimeout, acquired)
	if err != nil {
		// Nothing was queued on the semaphore.
		o.freeSemaphores = append(o.freeSemaphores, acquired)
		o.state = FrameIdle
		if errors.Is(err, driver.ErrOutOfDate) {
			o.needsRecreate = true
			return nil, core.ErrSurfaceOutOfDate
		}
		return nil, &core.AcquireError{Err: err}
	}
	if suboptimal {
		core.LogDebug("Swapchain is suboptimal, it will be recreated after present.")
		o.needsRecreate = true
	}

	o.session = &FrameSession{
		ID:         uuid.New(),
		ImageIndex: index,
		Generation: sc.Generation,
		swapchain:  sc,
		acquired:   acquired,
		signal:     NewSignal(),
	}
	return o.session, nil
}

// Recorder starts recording for session, or returns the recorder already
// started for it.
func (o *Orchestrator) Recorder(session *FrameSession) (*Recorder, error) {
	if !o.isCurrent(session) {
		return nil, core.ErrNoPendingAcquisition
	}
	if session.recorder != nil {
		return session.recorder, nil
	}
	cb, err := o.takeCommandBuffer()
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true); err != nil {
		o.freeCommandBuffers = append(o.freeCommandBuffers, cb)
		return nil, fmt.Errorf("begin command buffer: %w", err)
	}
	session.recorder = &Recorder{session: session, cb: cb}
	o.state = FrameRecording
	return session.recorder, nil
}

// Submit ends recording, submits the frame after the acquisition signal and
// queues the image for presentation. The in-flight signal becomes the join
// of the previous frames and this one. On failure the frame is dropped and
// the in-flight signal falls back to Completed().
func (o *Orchestrator) Submit(session *FrameSession) error {
	if !o.isCurrent(session) {
		return core.ErrNoPendingAcquisition
	}
	rec, err := o.Recorder(session)
	if err != nil {
		o.Abandon(session)
		return &core.SubmitError{Err: err}
	}
	if rec.inPass {
		rec.setErr(errRenderPassOpen)
	}
	if rec.err != nil {
		o.Abandon(session)
		return &core.SubmitError{Err: rec.err}
	}
	if err := rec.cb.End(); err != nil {
		o.Abandon(session)
		return &core.SubmitError{Err: fmt.Errorf("end command buffer: %w", err)}
	}

	fence, err := o.takeFence()
	if err != nil {
		o.Abandon(session)
		return &core.SubmitError{Err: err}
	}
	renderDone, err := o.renderDoneFor(session)
	if err != nil {
		o.freeFences = append(o.freeFences, fence)
		o.Abandon(session)
		return &core.SubmitError{Err: err}
	}

	o.state = FrameSubmitted
	err = o.dc.Queue.Submit(driver.SubmitInfo{
		WaitSemaphores:   []driver.Semaphore{session.acquired},
		WaitStages:       []driver.PipelineStage{driver.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []driver.CommandBuffer{rec.cb},
		SignalSemaphores: []driver.Semaphore{renderDone},
		Fence:            fence,
	})
	if err != nil {
		o.freeFences = append(o.freeFences, fence)
		o.recycleCommandBuffer(rec.cb)
		o.discardAcquired(session)
		o.dropInFlight()
		o.finish(session)
		return &core.SubmitError{Err: err}
	}

	cb, acquired := rec.cb, session.acquired
	leaf := session.signal.submitted(fence, func() {
		o.recycleCommandBuffer(cb)
		o.freeSemaphores = append(o.freeSemaphores, acquired)
		o.freeFences = append(o.freeFences, fence)
	})
	o.previous = Join(o.previous, leaf)

	suboptimal, err := o.dc.Queue.Present(driver.PresentInfo{
		WaitSemaphores: []driver.Semaphore{renderDone},
		Swapchain:      session.swapchain.Handle,
		ImageIndex:     session.ImageIndex,
	})
	o.finish(session)
	switch {
	case errors.Is(err, driver.ErrOutOfDate):
		core.LogDebug("Swapchain out of date on present, recreating.")
		o.needsRecreate = true
	case err != nil:
		o.dropInFlight()
		return &core.SubmitError{Err: fmt.Errorf("present: %w", err)}
	case suboptimal:
		o.needsRecreate = true
	}
	return nil
}

// Abandon drops session without presenting. The acquisition signal is
// consumed by an empty submission so the semaphore can be reused, and the
// swapchain is flagged for recreation since the image is never returned.
func (o *Orchestrator) Abandon(session *FrameSession) error {
	if !o.isCurrent(session) {
		return core.ErrNoPendingAcquisition
	}
	var cb driver.CommandBuffer
	if session.recorder != nil {
		cb = session.recorder.cb
	}
	o.needsRecreate = true

	fence, err := o.takeFence()
	if err == nil {
		err = o.dc.Queue.Submit(driver.SubmitInfo{
			WaitSemaphores: []driver.Semaphore{session.acquired},
			WaitStages:     []driver.PipelineStage{driver.PipelineStageColorAttachmentOutput},
			Fence:          fence,
		})
		if err != nil {
			o.freeFences = append(o.freeFences, fence)
		}
	}
	if err != nil {
		core.LogWarn("Could not drain acquisition of abandoned frame: %s", err)
		if cb != nil {
			o.recycleCommandBuffer(cb)
		}
		o.discardAcquired(session)
		o.finish(session)
		return nil
	}

	acquired := session.acquired
	leaf := session.signal.submitted(fence, func() {
		if cb != nil {
			o.recycleCommandBuffer(cb)
		}
		o.freeSemaphores = append(o.freeSemaphores, acquired)
		o.freeFences = append(o.freeFences, fence)
	})
	o.previous = Join(o.previous, leaf)
	o.finish(session)
	return nil
}

// WaitIdle blocks until the device has finished all submitted work and
// releases every frame resource.
func (o *Orchestrator) WaitIdle() error {
	if err := o.dc.Device.WaitIdle(); err != nil {
		return err
	}
	if err := o.previous.Wait(driver.NoTimeout); err != nil {
		return err
	}
	o.previous = Completed()
	return nil
}

// Destroy abandons an open session, waits for the device and frees every
// pooled object.
func (o *Orchestrator) Destroy() error {
	if o.session != nil {
		o.Abandon(o.session)
	}
	err := o.WaitIdle()
	for _, cb := range o.freeCommandBuffers {
		o.pool.Free(cb)
	}
	o.freeCommandBuffers = nil
	for _, s := range o.freeSemaphores {
		s.Destroy()
	}
	o.freeSemaphores = nil
	for _, f := range o.freeFences {
		f.Destroy()
	}
	o.freeFences = nil
	o.releaseRenderDone()
	if o.pool != nil {
		o.pool.Destroy()
		o.pool = nil
	}
	return err
}

func (o *Orchestrator) isCurrent(session *FrameSession) bool {
	return session != nil && !session.done && o.session == session
}

func (o *Orchestrator) finish(session *FrameSession) {
	session.done = true
	session.recorder = nil
	o.session = nil
	o.state = FrameIdle
}

// dropInFlight replaces the in-flight signal with Completed(). Earlier
// frames are waited on first so their resources are not lost.
func (o *Orchestrator) dropInFlight() {
	if err := o.previous.Wait(driver.NoTimeout); err != nil {
		core.LogError("Waiting for in-flight frames: %s", err)
	}
	o.previous = Completed()
}

// discardAcquired destroys an acquisition semaphore that may still have a
// signal operation queued. Such a semaphore cannot go back to the pool.
func (o *Orchestrator) discardAcquired(session *FrameSession) {
	if err := o.dc.Device.WaitIdle(); err != nil {
		core.LogError("Waiting for idle device: %s", err)
	}
	session.acquired.Destroy()
	session.acquired = nil
	o.needsRecreate = true
}

func (o *Orchestrator) takeCommandBuffer() (driver.CommandBuffer, error) {
	if n := len(o.freeCommandBuffers); n > 0 {
		cb := o.freeCommandBuffers[n-1]
		o.freeCommandBuffers = o.freeCommandBuffers[:n-1]
		return cb, nil
	}
	cb, err := o.pool.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocate command buffer: %w", err)
	}
	return cb, nil
}

func (o *Orchestrator) recycleCommandBuffer(cb driver.CommandBuffer) {
	if err := cb.Reset(); err != nil {
		core.LogWarn("Reset command buffer failed, freeing it: %s", err)
		o.pool.Free(cb)
		return
	}
	o.freeCommandBuffers = append(o.freeCommandBuffers, cb)
}

func (o *Orchestrator) takeSemaphore() (driver.Semaphore, error) {
	if n := len(o.freeSemaphores); n > 0 {
		s := o.freeSemaphores[n-1]
		o.freeSemaphores = o.freeSemaphores[:n-1]
		return s, nil
	}
	s, err := o.dc.Device.CreateSemaphore()
	if err != nil {
		return nil, fmt.Errorf("create semaphore: %w", err)
	}
	return s, nil
}

// renderDoneFor returns the render-finished semaphore of the session's image
// index. Acquiring an index again means its previous present has consumed
// the semaphore. A new swapchain generation waits for the device and drops
// the semaphores of the old one.
func (o *Orchestrator) renderDoneFor(session *FrameSession) (driver.Semaphore, error) {
	if session.Generation != o.renderDoneGen {
		if len(o.renderDone) > 0 {
			if err := o.dc.Device.WaitIdle(); err != nil {
				return nil, fmt.Errorf("wait idle before dropping render semaphores: %w", err)
			}
			o.releaseRenderDone()
		}
		o.renderDoneGen = session.Generation
	}

	idx := int(session.ImageIndex)
	if idx >= len(o.renderDone) {
		o.renderDone = append(o.renderDone, make([]driver.Semaphore, idx+1-len(o.renderDone))...)
	}
	if s := o.renderDone[idx]; s != nil {
		return s, nil
	}
	s, err := o.dc.Device.CreateSemaphore()
	if err != nil {
		return nil, fmt.Errorf("create semaphore: %w", err)
	}
	o.renderDone[idx] = s
	return s, nil
}

// releaseRenderDone destroys the render-finished semaphores. The device
// must be idle.
func (o *Orchestrator) releaseRenderDone() {
	for _, s := range o.renderDone {
		if s != nil {
			s.Destroy()
		}
	}
	o.renderDone = nil
}

func (o *Orchestrator) takeFence() (driver.Fence, error) {
	if n := len(o.freeFences); n > 0 {
		f := o.freeFences[n-1]
		o.freeFences = o.freeFences[:n-1]
		if err := f.Reset(); err != nil {
			f.Destroy()
			return nil, fmt.Errorf("reset fence: %w", err)
		}
		return f, nil
	}
	f, err := o.dc.Device.CreateFence(false)
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	return f, nil
}
