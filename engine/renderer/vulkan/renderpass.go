package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

type VulkanRenderpass struct {
	device vk.Device
	Handle vk.RenderPass
}

func (d *VulkanDevice) CreateRenderPass(info driver.RenderPassInfo) (driver.RenderPass, error) {
	colorAttachment := vk.AttachmentDescription{
		Format:         vk.Format(info.Color.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         loadOp(info.Color.LoadOp),
		StoreOp:        storeOp(info.Color.StoreOp),
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Contents are cleared, the previous layout is irrelevant.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}

	colorAttachmentReference := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachmentReference,
	}

	// The image is acquired asynchronously; writes wait for the color output
	// stage of whatever used it before.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	rp := &VulkanRenderpass{device: d.Handle}
	if res := vk.CreateRenderPass(d.Handle, &renderpassCreateInfo, nil, &rp.Handle); res != vk.Success {
		return nil, resultError(res, "create render pass")
	}
	return rp, nil
}

func (rp *VulkanRenderpass) Destroy() {
	if rp.Handle == vk.NullRenderPass {
		return
	}
	vk.DestroyRenderPass(rp.device, rp.Handle, nil)
	rp.Handle = vk.NullRenderPass
}

func loadOp(op driver.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case driver.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case driver.LoadOpClear:
		return vk.AttachmentLoadOpClear
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func storeOp(op driver.StoreOp) vk.AttachmentStoreOp {
	if op == driver.StoreOpStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

type VulkanFramebuffer struct {
	device      vk.Device
	Handle      vk.Framebuffer
	attachments []driver.ImageView
	extent      driver.Extent2D
}

func (d *VulkanDevice) CreateFramebuffer(pass driver.RenderPass, attachments []driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	rp, ok := pass.(*VulkanRenderpass)
	if !ok {
		return nil, errors.Errorf("render pass %T is not a vulkan render pass", pass)
	}

	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		v, ok := a.(*VulkanImageView)
		if !ok {
			return nil, errors.Errorf("attachment %T is not a vulkan image view", a)
		}
		views[i] = v.Handle
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.Handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	fb := &VulkanFramebuffer{
		device:      d.Handle,
		attachments: append([]driver.ImageView(nil), attachments...),
		extent:      extent,
	}
	if res := vk.CreateFramebuffer(d.Handle, &framebufferCreateInfo, nil, &fb.Handle); res != vk.Success {
		return nil, resultError(res, "create framebuffer")
	}
	return fb, nil
}

func (fb *VulkanFramebuffer) Attachments() []driver.ImageView {
	return fb.attachments
}

func (fb *VulkanFramebuffer) Extent() driver.Extent2D {
	return fb.extent
}

func (fb *VulkanFramebuffer) Destroy() {
	if fb.Handle == vk.NullFramebuffer {
		return
	}
	vk.DestroyFramebuffer(fb.device, fb.Handle, nil)
	fb.Handle = vk.NullFramebuffer
	fb.attachments = nil
}
