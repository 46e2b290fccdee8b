package renderer

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/math"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

// Window is the part of the windowing layer the renderer needs.
type Window interface {
	// FramebufferSize returns the client area size in pixels.
	FramebufferSize() (width, height int)
}

type SwapchainOptions struct {
	// ImageCount is the requested number of images. Values below the
	// surface minimum are raised to it.
	ImageCount uint32
	// PresentMode is used when the surface supports it; FIFO otherwise.
	PresentMode driver.PresentMode
}

// SwapchainState is one incarnation of the swapchain. It is replaced as a
// whole on recreation and never patched.
type SwapchainState struct {
	Handle         driver.Swapchain
	Images         []driver.Image
	Format         driver.Format
	ColorSpace     driver.ColorSpace
	Extent         driver.Extent2D
	MinImageCount  uint32
	PresentMode    driver.PresentMode
	CompositeAlpha driver.CompositeAlpha
	// Generation increases by one on every creation.
	Generation uint64
}

// NegotiateSwapchain fills the creation parameters from the surface
// capabilities. The first reported format and the first supported composite
// alpha mode are taken as is.
func NegotiateSwapchain(
	caps driver.SurfaceCapabilities,
	formats []driver.SurfaceFormat,
	modes []driver.PresentMode,
	opts SwapchainOptions,
	extent driver.Extent2D,
) (driver.SwapchainInfo, error) {
	if len(formats) == 0 || caps.SupportedCompositeAlpha == 0 {
		return driver.SwapchainInfo{}, core.ErrSurfaceUnsupported
	}
	if extent.Width == 0 || extent.Height == 0 {
		return driver.SwapchainInfo{}, core.ErrWindowMinimized
	}

	imageCount := math.ClampMin(opts.ImageCount, caps.MinImageCount, caps.MaxImageCount)

	presentMode := driver.PresentModeFIFO
	if slices.Contains(modes, opts.PresentMode) {
		presentMode = opts.PresentMode
	}

	// Clamp to the value allowed by the GPU.
	extent.Width = math.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = math.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	return driver.SwapchainInfo{
		MinImageCount:  imageCount,
		Format:         formats[0],
		Extent:         extent,
		CompositeAlpha: caps.SupportedCompositeAlpha.First(),
		PresentMode:    presentMode,
		PreTransform:   caps.CurrentTransform,
	}, nil
}

// SurfaceManager is the only owner of the swapchain.
type SurfaceManager struct {
	dc         *DeviceContext
	surface    driver.Surface
	window     Window
	opts       SwapchainOptions
	generation uint64
	current    *SwapchainState
}

func NewSurfaceManager(dc *DeviceContext, surface driver.Surface, window Window, opts SwapchainOptions) *SurfaceManager {
	return &SurfaceManager{
		dc:      dc,
		surface: surface,
		window:  window,
		opts:    opts,
	}
}

// Current returns the live swapchain, or nil before Create.
func (sm *SurfaceManager) Current() *SwapchainState {
	return sm.current
}

// WindowExtent returns the current framebuffer size of the window.
func (sm *SurfaceManager) WindowExtent() driver.Extent2D {
	w, h := sm.window.FramebufferSize()
	return driver.Extent2D{Width: uint32(max(w, 0)), Height: uint32(max(h, 0))}
}

// Create builds the first swapchain for the window's current size.
func (sm *SurfaceManager) Create() (*SwapchainState, error) {
	state, err := sm.build(nil, sm.WindowExtent())
	if err != nil {
		return nil, err
	}
	sm.current = state
	core.LogInfo("Swapchain created successfully.")
	return state, nil
}

// Recreate replaces existing with a swapchain of the given extent. The old
// handle is handed to the driver as a retirement hint and destroyed only
// after the device is idle. On failure existing is left untouched.
func (sm *SurfaceManager) Recreate(existing *SwapchainState, extent driver.Extent2D) (*SwapchainState, error) {
	state, err := sm.build(existing, extent)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := sm.dc.Device.WaitIdle(); err != nil {
			state.Handle.Destroy()
			return nil, fmt.Errorf("wait idle before swapchain retirement: %w", err)
		}
		existing.Handle.Destroy()
		existing.Handle = nil
		existing.Images = nil
	}
	sm.current = state
	core.LogInfo("Swapchain recreated: %dx%d, %d images, generation %d.",
		state.Extent.Width, state.Extent.Height, len(state.Images), state.Generation)
	return state, nil
}

func (sm *SurfaceManager) build(existing *SwapchainState, extent driver.Extent2D) (*SwapchainState, error) {
	pd := sm.dc.Physical
	caps, err := pd.SurfaceCapabilities(sm.surface)
	if err != nil {
		return nil, fmt.Errorf("query surface capabilities: %w", err)
	}
	formats, err := pd.SurfaceFormats(sm.surface)
	if err != nil {
		return nil, fmt.Errorf("query surface formats: %w", err)
	}
	modes, err := pd.PresentModes(sm.surface)
	if err != nil {
		return nil, fmt.Errorf("query present modes: %w", err)
	}

	info, err := NegotiateSwapchain(caps, formats, modes, sm.opts, extent)
	if err != nil {
		return nil, err
	}
	info.Surface = sm.surface
	if existing != nil {
		info.Old = existing.Handle
	}

	handle, err := sm.dc.Device.CreateSwapchain(info)
	if err != nil {
		return nil, fmt.Errorf("create swapchain: %w", err)
	}
	images := handle.Images()
	if uint32(len(images)) < caps.MinImageCount {
		handle.Destroy()
		return nil, fmt.Errorf("swapchain returned %d images, surface minimum is %d", len(images), caps.MinImageCount)
	}

	sm.generation++
	return &SwapchainState{
		Handle:         handle,
		Images:         images,
		Format:         info.Format.Format,
		ColorSpace:     info.Format.ColorSpace,
		Extent:         info.Extent,
		MinImageCount:  info.MinImageCount,
		PresentMode:    info.PresentMode,
		CompositeAlpha: info.CompositeAlpha,
		Generation:     sm.generation,
	}, nil
}

// Destroy releases the current swapchain.
func (sm *SurfaceManager) Destroy() {
	if sm.current == nil || sm.current.Handle == nil {
		return
	}
	core.LogDebug("Destroying swapchain...")
	sm.current.Handle.Destroy()
	sm.current.Handle = nil
	sm.current.Images = nil
	sm.current = nil
}
