package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

type VulkanPhysicalDevice struct {
	Handle      vk.PhysicalDevice
	properties  driver.DeviceProperties
	families    []driver.QueueFamily
	portability bool
}

func newPhysicalDevice(handle vk.PhysicalDevice, portability bool) *VulkanPhysicalDevice {
	pd := &VulkanPhysicalDevice{Handle: handle, portability: portability}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(handle, &props)
	props.Deref()
	pd.properties = driver.DeviceProperties{
		Name:          cString(props.DeviceName[:]),
		Type:          driver.DeviceType(props.DeviceType),
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		APIVersion:    props.ApiVersion,
		DriverVersion: props.DriverVersion,
	}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &count, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(handle, &count, queueFamilies)
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		pd.families = append(pd.families, driver.QueueFamily{
			Graphics:   flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0,
			Compute:    flags&vk.QueueFlags(vk.QueueComputeBit) != 0,
			Transfer:   flags&vk.QueueFlags(vk.QueueTransferBit) != 0,
			QueueCount: queueFamilies[i].QueueCount,
		})
	}
	return pd
}

func (pd *VulkanPhysicalDevice) Properties() driver.DeviceProperties {
	return pd.properties
}

func (pd *VulkanPhysicalDevice) QueueFamilies() []driver.QueueFamily {
	return pd.families
}

func (pd *VulkanPhysicalDevice) Extensions() ([]string, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd.Handle, "", &count, nil); res != vk.Success {
		return nil, resultError(res, "enumerate device extensions")
	}
	props := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(pd.Handle, "", &count, props); res != vk.Success {
		return nil, resultError(res, "enumerate device extensions")
	}

	names := make([]string, 0, count)
	for i := range props[:count] {
		props[i].Deref()
		names = append(names, cString(props[i].ExtensionName[:]))
	}
	return names, nil
}

func (pd *VulkanPhysicalDevice) SurfaceSupport(family uint32, surface driver.Surface) (bool, error) {
	s, err := nativeSurface(surface)
	if err != nil {
		return false, err
	}
	var supported vk.Bool32
	if res := vk.GetPhysicalDeviceSurfaceSupport(pd.Handle, family, s, &supported); res != vk.Success {
		return false, resultError(res, "query surface support")
	}
	return supported == vk.True, nil
}

func (pd *VulkanPhysicalDevice) SurfaceCapabilities(surface driver.Surface) (driver.SurfaceCapabilities, error) {
	s, err := nativeSurface(surface)
	if err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(pd.Handle, s, &caps); res != vk.Success {
		return driver.SurfaceCapabilities{}, resultError(res, "query surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return driver.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           fromExtent(caps.CurrentExtent),
		MinImageExtent:          fromExtent(caps.MinImageExtent),
		MaxImageExtent:          fromExtent(caps.MaxImageExtent),
		SupportedCompositeAlpha: driver.CompositeAlpha(caps.SupportedCompositeAlpha),
		CurrentTransform:        uint32(caps.CurrentTransform),
	}, nil
}

func (pd *VulkanPhysicalDevice) SurfaceFormats(surface driver.Surface) ([]driver.SurfaceFormat, error) {
	s, err := nativeSurface(surface)
	if err != nil {
		return nil, err
	}
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(pd.Handle, s, &count, nil); res != vk.Success {
		return nil, resultError(res, "query surface formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	if res := vk.GetPhysicalDeviceSurfaceFormats(pd.Handle, s, &count, formats); res != vk.Success {
		return nil, resultError(res, "query surface formats")
	}

	out := make([]driver.SurfaceFormat, 0, count)
	for i := range formats[:count] {
		formats[i].Deref()
		out = append(out, driver.SurfaceFormat{
			Format:     driver.Format(formats[i].Format),
			ColorSpace: driver.ColorSpace(formats[i].ColorSpace),
		})
	}
	return out, nil
}

func (pd *VulkanPhysicalDevice) PresentModes(surface driver.Surface) ([]driver.PresentMode, error) {
	s, err := nativeSurface(surface)
	if err != nil {
		return nil, err
	}
	var count uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(pd.Handle, s, &count, nil); res != vk.Success {
		return nil, resultError(res, "query present modes")
	}
	modes := make([]vk.PresentMode, count)
	if res := vk.GetPhysicalDeviceSurfacePresentModes(pd.Handle, s, &count, modes); res != vk.Success {
		return nil, resultError(res, "query present modes")
	}

	out := make([]driver.PresentMode, 0, count)
	for _, m := range modes[:count] {
		out = append(out, driver.PresentMode(m))
	}
	return out, nil
}

func (pd *VulkanPhysicalDevice) CreateDevice(family uint32, extensions []string) (driver.Device, error) {
	// The caller decides the extension list, portability subset included.
	extensions = uniqueStrings(extensions)

	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: family,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}

	var handle vk.Device
	if res := vk.CreateDevice(pd.Handle, &deviceCreateInfo, nil, &handle); res != vk.Success {
		return nil, resultError(res, "create logical device")
	}

	var queue vk.Queue
	vk.GetDeviceQueue(handle, family, 0, &queue)

	d := &VulkanDevice{
		Handle:   handle,
		Physical: pd,
		family:   family,
	}
	d.queue = &VulkanQueue{device: d, Handle: queue}
	core.LogInfo("Logical device created on '%s'.", pd.properties.Name)
	return d, nil
}

// VulkanDevice is a logical device with a single graphics and present queue.
type VulkanDevice struct {
	Handle   vk.Device
	Physical *VulkanPhysicalDevice
	family   uint32
	queue    *VulkanQueue
}

func (d *VulkanDevice) Queue() driver.Queue {
	return d.queue
}

func (d *VulkanDevice) WaitIdle() error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	return resultError(vk.DeviceWaitIdle(d.Handle), "device wait idle")
}

func (d *VulkanDevice) Destroy() {
	if d.Handle == nil {
		return
	}
	vk.DestroyDevice(d.Handle, nil)
	d.Handle = nil
	core.LogDebug("Logical device destroyed.")
}

func (d *VulkanDevice) CreateShaderModule(code []uint32) (driver.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(d.Handle, &createInfo, nil, &handle); res != vk.Success {
		return nil, resultError(res, "create shader module")
	}
	return &VulkanShaderModule{device: d.Handle, Handle: handle}, nil
}

type VulkanShaderModule struct {
	device vk.Device
	Handle vk.ShaderModule
}

func (m *VulkanShaderModule) Destroy() {
	if m.Handle == vk.NullShaderModule {
		return
	}
	vk.DestroyShaderModule(m.device, m.Handle, nil)
	m.Handle = vk.NullShaderModule
}

// VulkanQueue serializes submissions. Vulkan requires external
// synchronization on a queue.
type VulkanQueue struct {
	device *VulkanDevice
	Handle vk.Queue
	mu     sync.Mutex
}

func (q *VulkanQueue) Submit(info driver.SubmitInfo) error {
	waits, err := semaphores(info.WaitSemaphores)
	if err != nil {
		return err
	}
	signals, err := semaphores(info.SignalSemaphores)
	if err != nil {
		return err
	}
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = vk.PipelineStageFlags(s)
	}
	buffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		vcb, ok := cb.(*VulkanCommandBuffer)
		if !ok {
			return errors.Errorf("command buffer %T is not a vulkan command buffer", cb)
		}
		buffers[i] = vcb.Handle
	}

	fence := vk.NullFence
	if info.Fence != nil {
		f, ok := info.Fence.(*VulkanFence)
		if !ok {
			return errors.Errorf("fence %T is not a vulkan fence", info.Fence)
		}
		fence = f.Handle
	}

	submitInfo := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}}

	q.mu.Lock()
	defer q.mu.Unlock()
	return resultError(vk.QueueSubmit(q.Handle, 1, submitInfo, fence), "queue submit")
}

func (q *VulkanQueue) Present(info driver.PresentInfo) (bool, error) {
	waits, err := semaphores(info.WaitSemaphores)
	if err != nil {
		return false, err
	}
	sc, ok := info.Swapchain.(*VulkanSwapchain)
	if !ok {
		return false, errors.Errorf("swapchain %T is not a vulkan swapchain", info.Swapchain)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}

	q.mu.Lock()
	res := vk.QueuePresent(q.Handle, &presentInfo)
	q.mu.Unlock()

	if res == vk.Suboptimal {
		return true, nil
	}
	return false, resultError(res, "queue present")
}

func nativeSurface(surface driver.Surface) (vk.Surface, error) {
	s, ok := surface.(*VulkanSurface)
	if !ok {
		return vk.NullSurface, errors.Errorf("surface %T is not a vulkan surface", surface)
	}
	return s.Handle, nil
}

func fromExtent(e vk.Extent2D) driver.Extent2D {
	return driver.Extent2D{Width: e.Width, Height: e.Height}
}

func toExtent(e driver.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}
