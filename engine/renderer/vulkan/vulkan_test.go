package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

var (
	_ driver.Instance       = (*VulkanInstance)(nil)
	_ driver.Surface        = (*VulkanSurface)(nil)
	_ driver.PhysicalDevice = (*VulkanPhysicalDevice)(nil)
	_ driver.Device         = (*VulkanDevice)(nil)
	_ driver.Queue          = (*VulkanQueue)(nil)
	_ driver.Swapchain      = (*VulkanSwapchain)(nil)
	_ driver.Image          = (*VulkanImage)(nil)
	_ driver.ImageView      = (*VulkanImageView)(nil)
	_ driver.RenderPass     = (*VulkanRenderpass)(nil)
	_ driver.Framebuffer    = (*VulkanFramebuffer)(nil)
	_ driver.ShaderModule   = (*VulkanShaderModule)(nil)
	_ driver.CommandPool    = (*VulkanCommandPool)(nil)
	_ driver.CommandBuffer  = (*VulkanCommandBuffer)(nil)
	_ driver.Semaphore      = (*VulkanSemaphore)(nil)
	_ driver.Fence          = (*VulkanFence)(nil)
)

func TestEnumValuesMatchVulkan(t *testing.T) {
	modes := map[driver.PresentMode]vk.PresentMode{
		driver.PresentModeImmediate:   vk.PresentModeImmediate,
		driver.PresentModeMailbox:     vk.PresentModeMailbox,
		driver.PresentModeFIFO:        vk.PresentModeFifo,
		driver.PresentModeFIFORelaxed: vk.PresentModeFifoRelaxed,
	}
	for d, v := range modes {
		if int32(d) != int32(v) {
			t.Errorf("present mode %d does not match %d", d, v)
		}
	}

	types := map[driver.DeviceType]vk.PhysicalDeviceType{
		driver.DeviceTypeOther:         vk.PhysicalDeviceTypeOther,
		driver.DeviceTypeIntegratedGPU: vk.PhysicalDeviceTypeIntegratedGpu,
		driver.DeviceTypeDiscreteGPU:   vk.PhysicalDeviceTypeDiscreteGpu,
		driver.DeviceTypeVirtualGPU:    vk.PhysicalDeviceTypeVirtualGpu,
		driver.DeviceTypeCPU:           vk.PhysicalDeviceTypeCpu,
	}
	for d, v := range types {
		if int32(d) != int32(v) {
			t.Errorf("device type %s does not match %d", d, v)
		}
	}

	if int32(driver.FormatB8G8R8A8Srgb) != int32(vk.FormatB8g8r8a8Srgb) {
		t.Error("B8G8R8A8 sRGB format mismatch")
	}
	if uint32(driver.PipelineStageColorAttachmentOutput) != uint32(vk.PipelineStageColorAttachmentOutputBit) {
		t.Error("color attachment output stage mismatch")
	}
	if uint32(driver.CompositeAlphaOpaque) != uint32(vk.CompositeAlphaOpaqueBit) {
		t.Error("opaque composite alpha mismatch")
	}
}

func TestLoadStoreOps(t *testing.T) {
	if loadOp(driver.LoadOpClear) != vk.AttachmentLoadOpClear {
		t.Error("clear load op")
	}
	if loadOp(driver.LoadOpDontCare) != vk.AttachmentLoadOpDontCare {
		t.Error("dont care load op")
	}
	if storeOp(driver.StoreOpStore) != vk.AttachmentStoreOpStore {
		t.Error("store op")
	}
}

func TestDestroyIsIdempotentOnNullHandles(t *testing.T) {
	(&VulkanFence{}).Destroy()
	(&VulkanSemaphore{}).Destroy()
	(&VulkanImageView{}).Destroy()
	(&VulkanFramebuffer{}).Destroy()
	(&VulkanRenderpass{}).Destroy()
	(&VulkanShaderModule{}).Destroy()
	(&VulkanCommandPool{}).Destroy()
}
