// Package platform owns the GLFW window the renderer presents to.
package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/snow/engine/containers"
	"github.com/spaghettifunk/snow/engine/core"
)

const eventQueueSize = 64

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type EventKind int

const (
	EventClose EventKind = iota
	EventResize
)

type Event struct {
	Kind          EventKind
	Width, Height uint32
}

type Platform struct {
	Window *glfw.Window
	events *containers.RingQueue[Event]
}

func New() (*Platform, error) {
	return &Platform{
		Window: nil,
		events: containers.NewRingQueue[Event](eventQueueSize),
	}, nil
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw: vulkan loader not found")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "failed to create window")
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	core.LogInfo("Window '%s' created (%dx%d).", applicationName, width, height)
	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the window system and forwards queued window events
// to the event system.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
	for _, e := range p.Drain() {
		switch e.Kind {
		case EventClose:
			core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
		case EventResize:
			core.EventFire(core.EVENT_CODE_RESIZED, p, core.EventContext{Width: e.Width, Height: e.Height})
		}
	}
}

// Drain returns the queued events in arrival order.
func (p *Platform) Drain() []Event {
	var out []Event
	for !p.events.IsEmpty() {
		e, err := p.events.Dequeue()
		if err != nil {
			break
		}
		out = append(out, e)
	}
	return out
}

func (p *Platform) push(e Event) {
	if p.events.IsFull() {
		// Drop the oldest event.
		_, _ = p.events.Dequeue()
	}
	if err := p.events.Enqueue(e); err != nil {
		core.LogWarn("platform event dropped: %s", err)
	}
}

// FramebufferSize returns the client area in pixels. A minimized window
// reports 0x0.
func (p *Platform) FramebufferSize() (int, int) {
	if p.Window == nil {
		return 0, 0
	}
	return p.Window.GetFramebufferSize()
}

func (p *Platform) ShouldClose() bool {
	return p.Window == nil || p.Window.ShouldClose()
}

// RequiredInstanceExtensions lists the instance extensions the window system
// needs for presentation.
func (p *Platform) RequiredInstanceExtensions() []string {
	if p.Window == nil {
		return nil
	}
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateWindowSurface creates a presentation surface for instance, which
// must be a native Vulkan instance handle.
func (p *Platform) CreateWindowSurface(instance interface{}) (uintptr, error) {
	if p.Window == nil {
		return 0, errors.New("window not created")
	}
	return p.Window.CreateWindowSurface(instance, nil)
}

// WaitEvents blocks until the window system has events. Used while the
// window is minimized.
func (p *Platform) WaitEvents() {
	glfw.WaitEventsTimeout(0.1)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.push(Event{Kind: EventResize, Width: uint32(width), Height: uint32(height)})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.push(Event{Kind: EventClose})
}
