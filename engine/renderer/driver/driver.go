// Package driver defines the narrow native graphics API surface used by the
// renderer. The production implementation lives in package vulkan; tests
// use the in-memory implementation from package drivertest.
package driver

import "errors"

var (
	// ErrOutOfDate means the surface changed and the swapchain can no
	// longer present to it.
	ErrOutOfDate = errors.New("driver: swapchain out of date")
	// ErrDeviceLost means the logical device is unusable.
	ErrDeviceLost = errors.New("driver: device lost")
	// ErrSurfaceLost means the window surface is gone.
	ErrSurfaceLost = errors.New("driver: surface lost")
	// ErrTimeout is returned by fence waits that did not complete in time.
	ErrTimeout = errors.New("driver: timeout")
)

// NoTimeout makes acquire and wait operations block until completion.
const NoTimeout = ^uint64(0)

// SwapchainExtension is the device extension required for presentation.
const SwapchainExtension = "VK_KHR_swapchain"

// Destroyer is implemented by every object that owns native resources.
type Destroyer interface {
	Destroy()
}

// Instance is the root API object.
type Instance interface {
	Destroyer

	// PhysicalDevices enumerates the GPUs visible to the instance, in
	// driver order.
	PhysicalDevices() ([]PhysicalDevice, error)
}

// Surface is the presentable target bound to a window.
type Surface interface {
	Destroyer
}

type PhysicalDevice interface {
	Properties() DeviceProperties
	Extensions() ([]string, error)
	QueueFamilies() []QueueFamily
	SurfaceSupport(family uint32, surface Surface) (bool, error)
	SurfaceCapabilities(surface Surface) (SurfaceCapabilities, error)
	SurfaceFormats(surface Surface) ([]SurfaceFormat, error)
	PresentModes(surface Surface) ([]PresentMode, error)

	// CreateDevice creates a logical device with a single queue from
	// family and the given extensions enabled.
	CreateDevice(family uint32, extensions []string) (Device, error)
}

type Device interface {
	Destroyer

	Queue() Queue
	CreateSwapchain(info SwapchainInfo) (Swapchain, error)
	CreateImageView(image Image, format Format) (ImageView, error)
	CreateRenderPass(info RenderPassInfo) (RenderPass, error)
	CreateFramebuffer(pass RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)
	CreateShaderModule(code []uint32) (ShaderModule, error)
	CreateCommandPool(family uint32) (CommandPool, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	WaitIdle() error
}

type Queue interface {
	Submit(info SubmitInfo) error
	// Present queues an image for presentation. suboptimal is true when
	// the image was presented but the swapchain no longer matches the
	// surface exactly. ErrOutOfDate is returned when it did not present.
	Present(info PresentInfo) (suboptimal bool, err error)
}

type Swapchain interface {
	Destroyer

	// Images returns the presentable images. The slice index is the
	// presentation index.
	Images() []Image
	// AcquireNextImage blocks up to timeout nanoseconds for an image and
	// arranges for signal to be signaled when it is ready for use.
	AcquireNextImage(timeout uint64, signal Semaphore) (index uint32, suboptimal bool, err error)
}

// Image is a swapchain image. Images are owned by their swapchain.
type Image interface {
	Format() Format
	Extent() Extent2D
}

type ImageView interface {
	Destroyer
	Image() Image
}

type RenderPass interface {
	Destroyer
}

type Framebuffer interface {
	Destroyer
	Attachments() []ImageView
	Extent() Extent2D
}

type ShaderModule interface {
	Destroyer
}

type CommandPool interface {
	Destroyer
	Allocate() (CommandBuffer, error)
	Free(cb CommandBuffer)
}

type CommandBuffer interface {
	Begin(oneTimeSubmit bool) error
	BeginRenderPass(pass RenderPass, framebuffer Framebuffer, area Rect2D, clear []ClearValue)
	SetViewport(viewport Viewport)
	SetScissor(scissor Rect2D)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	EndRenderPass()
	End() error
	Reset() error
}

type Semaphore interface {
	Destroyer
}

type Fence interface {
	Destroyer
	// Status reports whether the fence is signaled without blocking.
	Status() (bool, error)
	Wait(timeout uint64) error
	Reset() error
}
