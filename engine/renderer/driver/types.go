package driver

import "fmt"

// DeviceType values mirror VkPhysicalDeviceType.
type DeviceType int32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "Integrated"
	case DeviceTypeDiscreteGPU:
		return "Discrete"
	case DeviceTypeVirtualGPU:
		return "Virtual"
	case DeviceTypeCPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

type DeviceProperties struct {
	Name          string
	Type          DeviceType
	VendorID      uint32
	DeviceID      uint32
	APIVersion    uint32
	DriverVersion uint32
}

type QueueFamily struct {
	Graphics   bool
	Compute    bool
	Transfer   bool
	QueueCount uint32
}

// Format values mirror VkFormat for the formats the renderer names.
type Format int32

const (
	FormatUndefined          Format = 0
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR32Sfloat          Format = 100
	FormatR32G32Sfloat       Format = 103
	FormatR32G32B32Sfloat    Format = 106
	FormatR32G32B32A32Sfloat Format = 109
)

// ColorSpace mirrors VkColorSpaceKHR.
type ColorSpace int32

const ColorSpaceSRGBNonlinear ColorSpace = 0

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode mirrors VkPresentModeKHR.
type PresentMode int32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFIFO
	PresentModeFIFORelaxed
)

// ParsePresentMode maps a configuration name to a present mode.
func ParsePresentMode(name string) (PresentMode, error) {
	switch name {
	case "", "fifo":
		return PresentModeFIFO, nil
	case "fifo_relaxed":
		return PresentModeFIFORelaxed, nil
	case "mailbox":
		return PresentModeMailbox, nil
	case "immediate":
		return PresentModeImmediate, nil
	}
	return PresentModeFIFO, fmt.Errorf("unknown present mode %q", name)
}

// CompositeAlpha is a bit set mirroring VkCompositeAlphaFlagsKHR.
type CompositeAlpha uint32

const (
	CompositeAlphaOpaque CompositeAlpha = 1 << iota
	CompositeAlphaPreMultiplied
	CompositeAlphaPostMultiplied
	CompositeAlphaInherit
)

// First returns the lowest supported mode, or 0 when the set is empty.
func (c CompositeAlpha) First() CompositeAlpha {
	return c & -c
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type ClearValue struct {
	Color [4]float32
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount is 0 when there is no limit.
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	SupportedCompositeAlpha CompositeAlpha
	CurrentTransform        uint32
}

type SwapchainInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         SurfaceFormat
	Extent         Extent2D
	CompositeAlpha CompositeAlpha
	PresentMode    PresentMode
	PreTransform   uint32
	// Old is the swapchain being replaced, if any.
	Old Swapchain
}

type LoadOp int32

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp int32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type AttachmentInfo struct {
	Format  Format
	LoadOp  LoadOp
	StoreOp StoreOp
}

// RenderPassInfo describes a single subpass render pass.
type RenderPassInfo struct {
	Color AttachmentInfo
}

type PipelineStage uint32

const PipelineStageColorAttachmentOutput PipelineStage = 0x00000400

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
	// Fence is signaled when the submitted work completes. May be nil.
	Fence Fence
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}
