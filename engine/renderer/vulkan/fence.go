package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

type VulkanFence struct {
	device vk.Device
	Handle vk.Fence
	// IsSignaled caches an observed signal until the next Reset.
	IsSignaled bool
}

func (d *VulkanDevice) CreateFence(signaled bool) (driver.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	fence := &VulkanFence{device: d.Handle, IsSignaled: signaled}
	if res := vk.CreateFence(d.Handle, &fenceCreateInfo, nil, &fence.Handle); res != vk.Success {
		return nil, resultError(res, "create fence")
	}
	return fence, nil
}

func (vf *VulkanFence) Status() (bool, error) {
	if vf.IsSignaled {
		return true, nil
	}
	switch res := vk.GetFenceStatus(vf.device, vf.Handle); res {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, resultError(res, "fence status")
	}
}

func (vf *VulkanFence) Wait(timeout uint64) error {
	if vf.IsSignaled {
		return nil
	}
	res := vk.WaitForFences(vf.device, 1, []vk.Fence{vf.Handle}, vk.True, timeout)
	switch res {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
	}
	return resultError(res, "fence wait")
}

func (vf *VulkanFence) Reset() error {
	if res := vk.ResetFences(vf.device, 1, []vk.Fence{vf.Handle}); res != vk.Success {
		return resultError(res, "reset fence")
	}
	vf.IsSignaled = false
	return nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle == vk.NullFence {
		return
	}
	vk.DestroyFence(vf.device, vf.Handle, nil)
	vf.Handle = vk.NullFence
	vf.IsSignaled = false
}

type VulkanSemaphore struct {
	device vk.Device
	Handle vk.Semaphore
}

func (d *VulkanDevice) CreateSemaphore() (driver.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	sem := &VulkanSemaphore{device: d.Handle}
	if res := vk.CreateSemaphore(d.Handle, &semaphoreCreateInfo, nil, &sem.Handle); res != vk.Success {
		return nil, resultError(res, "create semaphore")
	}
	return sem, nil
}

func (s *VulkanSemaphore) Destroy() {
	if s.Handle == vk.NullSemaphore {
		return
	}
	vk.DestroySemaphore(s.device, s.Handle, nil)
	s.Handle = vk.NullSemaphore
}

func semaphores(list []driver.Semaphore) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, len(list))
	for i, s := range list {
		vs, ok := s.(*VulkanSemaphore)
		if !ok {
			return nil, errors.Errorf("semaphore %T is not a vulkan semaphore", s)
		}
		out[i] = vs.Handle
	}
	return out, nil
}
