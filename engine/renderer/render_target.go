package renderer

import (
	"fmt"

	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

// RenderTargetSet is the render pass plus one framebuffer per swapchain
// image. Framebuffers[i] wraps Views[i], which wraps swapchain image i.
type RenderTargetSet struct {
	Pass         driver.RenderPass
	Viewport     driver.Viewport
	Scissor      driver.Rect2D
	Views        []driver.ImageView
	Framebuffers []driver.Framebuffer
	// Generation is the swapchain generation the set was built from.
	Generation uint64

	device driver.Device
}

// BuildRenderTargets creates the render pass and the framebuffers for every
// image of swapchain. On failure everything created so far is released.
func BuildRenderTargets(swapchain *SwapchainState, dc *DeviceContext) (*RenderTargetSet, error) {
	if swapchain == nil || swapchain.Handle == nil {
		return nil, fmt.Errorf("build render targets: %w", core.ErrStaleRenderTargets)
	}

	pass, err := dc.Device.CreateRenderPass(driver.RenderPassInfo{
		Color: driver.AttachmentInfo{
			Format:  swapchain.Format,
			LoadOp:  driver.LoadOpClear,
			StoreOp: driver.StoreOpStore,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pass: %w", err)
	}

	rts := &RenderTargetSet{
		Pass: pass,
		Viewport: driver.Viewport{
			Width:    float32(swapchain.Extent.Width),
			Height:   float32(swapchain.Extent.Height),
			MinDepth: 0.0,
			MaxDepth: 1.0,
		},
		Scissor:      driver.Rect2D{Extent: swapchain.Extent},
		Views:        make([]driver.ImageView, 0, len(swapchain.Images)),
		Framebuffers: make([]driver.Framebuffer, 0, len(swapchain.Images)),
		Generation:   swapchain.Generation,
		device:       dc.Device,
	}

	for i, image := range swapchain.Images {
		view, err := dc.Device.CreateImageView(image, swapchain.Format)
		if err != nil {
			rts.Destroy()
			return nil, fmt.Errorf("create image view %d: %w", i, err)
		}
		rts.Views = append(rts.Views, view)

		fb, err := dc.Device.CreateFramebuffer(pass, []driver.ImageView{view}, swapchain.Extent)
		if err != nil {
			rts.Destroy()
			return nil, fmt.Errorf("create framebuffer %d: %w", i, err)
		}
		rts.Framebuffers = append(rts.Framebuffers, fb)
	}

	core.LogDebug("Render targets built: %d framebuffers at %dx%d.",
		len(rts.Framebuffers), swapchain.Extent.Width, swapchain.Extent.Height)
	return rts, nil
}

// Framebuffer returns the framebuffer for image index. generation must be
// the generation of the swapchain the index was acquired from.
func (rts *RenderTargetSet) Framebuffer(index uint32, generation uint64) (driver.Framebuffer, error) {
	if generation != rts.Generation {
		return nil, core.ErrStaleRenderTargets
	}
	if int(index) >= len(rts.Framebuffers) {
		return nil, core.ErrInvalidFramebufferIndex
	}
	return rts.Framebuffers[index], nil
}

// Len returns the number of framebuffers.
func (rts *RenderTargetSet) Len() int {
	return len(rts.Framebuffers)
}

// Destroy releases framebuffers, views and the render pass, in that order.
func (rts *RenderTargetSet) Destroy() {
	for _, fb := range rts.Framebuffers {
		fb.Destroy()
	}
	rts.Framebuffers = nil
	for _, view := range rts.Views {
		view.Destroy()
	}
	rts.Views = nil
	if rts.Pass != nil {
		rts.Pass.Destroy()
		rts.Pass = nil
	}
}
