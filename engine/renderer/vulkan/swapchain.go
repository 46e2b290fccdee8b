package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

type VulkanSwapchain struct {
	device *VulkanDevice
	Handle vk.Swapchain
	format driver.Format
	extent driver.Extent2D
	images []driver.Image
}

// VulkanImage is a presentable image. It is owned by its swapchain and is
// never destroyed on its own.
type VulkanImage struct {
	Handle vk.Image
	format driver.Format
	extent driver.Extent2D
}

func (i *VulkanImage) Format() driver.Format   { return i.format }
func (i *VulkanImage) Extent() driver.Extent2D { return i.extent }

func (d *VulkanDevice) CreateSwapchain(info driver.SwapchainInfo) (driver.Swapchain, error) {
	surface, err := nativeSurface(info.Surface)
	if err != nil {
		return nil, err
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      vk.Format(info.Format.Format),
		ImageColorSpace:  vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      toExtent(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		// Graphics and present share one family.
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if info.Old != nil {
		old, ok := info.Old.(*VulkanSwapchain)
		if !ok {
			return nil, errors.Errorf("swapchain %T is not a vulkan swapchain", info.Old)
		}
		swapchainCreateInfo.OldSwapchain = old.Handle
	}

	sc := &VulkanSwapchain{
		device: d,
		format: info.Format.Format,
		extent: info.Extent,
	}
	if res := vk.CreateSwapchain(d.Handle, &swapchainCreateInfo, nil, &sc.Handle); res != vk.Success {
		return nil, resultError(res, "create swapchain")
	}

	var count uint32
	if res := vk.GetSwapchainImages(d.Handle, sc.Handle, &count, nil); res != vk.Success {
		sc.Destroy()
		return nil, resultError(res, "get swapchain images")
	}
	handles := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.Handle, sc.Handle, &count, handles); res != vk.Success {
		sc.Destroy()
		return nil, resultError(res, "get swapchain images")
	}
	for _, h := range handles[:count] {
		sc.images = append(sc.images, &VulkanImage{Handle: h, format: sc.format, extent: sc.extent})
	}

	core.LogDebug("Swapchain created with %d images (%dx%d).", count, info.Extent.Width, info.Extent.Height)
	return sc, nil
}

func (sc *VulkanSwapchain) Images() []driver.Image {
	return sc.images
}

func (sc *VulkanSwapchain) AcquireNextImage(timeout uint64, signal driver.Semaphore) (uint32, bool, error) {
	sem := vk.NullSemaphore
	if signal != nil {
		s, ok := signal.(*VulkanSemaphore)
		if !ok {
			return 0, false, errors.Errorf("semaphore %T is not a vulkan semaphore", signal)
		}
		sem = s.Handle
	}

	var index uint32
	res := vk.AcquireNextImage(sc.device.Handle, sc.Handle, timeout, sem, vk.NullFence, &index)
	switch res {
	case vk.Success:
		return index, false, nil
	case vk.Suboptimal:
		return index, true, nil
	default:
		return 0, false, resultError(res, "acquire next image")
	}
}

// Destroy releases the swapchain. Its images go with it.
func (sc *VulkanSwapchain) Destroy() {
	if sc.Handle == vk.NullSwapchain {
		return
	}
	vk.DestroySwapchain(sc.device.Handle, sc.Handle, nil)
	sc.Handle = vk.NullSwapchain
	sc.images = nil
}

type VulkanImageView struct {
	device vk.Device
	Handle vk.ImageView
	image  driver.Image
}

func (d *VulkanDevice) CreateImageView(image driver.Image, format driver.Format) (driver.ImageView, error) {
	img, ok := image.(*VulkanImage)
	if !ok {
		return nil, errors.Errorf("image %T is not a vulkan image", image)
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	view := &VulkanImageView{device: d.Handle, image: image}
	if res := vk.CreateImageView(d.Handle, &viewInfo, nil, &view.Handle); res != vk.Success {
		return nil, resultError(res, "create image view")
	}
	return view, nil
}

func (v *VulkanImageView) Image() driver.Image {
	return v.image
}

func (v *VulkanImageView) Destroy() {
	if v.Handle == vk.NullImageView {
		return
	}
	vk.DestroyImageView(v.device, v.Handle, nil)
	v.Handle = vk.NullImageView
}
