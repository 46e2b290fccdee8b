// Package drivertest provides an in-memory implementation of the driver
// interfaces. Work submitted to a fake queue never runs; fences complete
// when a test calls Device.CompleteAll or waits on them.
package drivertest

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

// Instance is a fake driver.Instance over a fixed device list.
type Instance struct {
	Devices   []*PhysicalDevice
	Destroyed bool
}

func NewInstance(devices ...*PhysicalDevice) *Instance {
	return &Instance{Devices: devices}
}

func (i *Instance) PhysicalDevices() ([]driver.PhysicalDevice, error) {
	out := make([]driver.PhysicalDevice, len(i.Devices))
	for n, d := range i.Devices {
		out[n] = d
	}
	return out, nil
}

func (i *Instance) Destroy() { i.Destroyed = true }

// Surface is both the fake window and its surface. Resize changes the
// framebuffer size reported to the renderer and invalidates swapchains
// built for the previous size.
type Surface struct {
	mu            sync.Mutex
	width, height int
	Destroyed     bool
}

func NewSurface(width, height int) *Surface {
	return &Surface{width: width, height: height}
}

func (s *Surface) FramebufferSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

func (s *Surface) extent() driver.Extent2D {
	w, h := s.FramebufferSize()
	return driver.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (s *Surface) Destroy() { s.Destroyed = true }

// PhysicalDevice is a scripted GPU.
type PhysicalDevice struct {
	Props         driver.DeviceProperties
	Exts          []string
	Families      []driver.QueueFamily
	PresentFamily map[uint32]bool
	Caps          driver.SurfaceCapabilities
	Formats       []driver.SurfaceFormat
	Modes         []driver.PresentMode

	// Created is the last device returned by CreateDevice.
	Created *Device
}

// NewPhysicalDevice returns a device with one graphics family that can
// present, the swapchain extension, a BGRA8 sRGB format and FIFO.
func NewPhysicalDevice(name string, typ driver.DeviceType) *PhysicalDevice {
	return &PhysicalDevice{
		Props:         driver.DeviceProperties{Name: name, Type: typ},
		Exts:          []string{driver.SwapchainExtension},
		Families:      []driver.QueueFamily{{Graphics: true, Transfer: true, QueueCount: 1}},
		PresentFamily: map[uint32]bool{0: true},
		Caps: driver.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           driver.Extent2D{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF},
			MinImageExtent:          driver.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          driver.Extent2D{Width: 16384, Height: 16384},
			SupportedCompositeAlpha: driver.CompositeAlphaOpaque | driver.CompositeAlphaInherit,
		},
		Formats: []driver.SurfaceFormat{
			{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceSRGBNonlinear},
			{Format: driver.FormatR8G8B8A8Unorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
		},
		Modes: []driver.PresentMode{driver.PresentModeFIFO},
	}
}

func (p *PhysicalDevice) Properties() driver.DeviceProperties { return p.Props }

func (p *PhysicalDevice) Extensions() ([]string, error) { return p.Exts, nil }

func (p *PhysicalDevice) QueueFamilies() []driver.QueueFamily { return p.Families }

func (p *PhysicalDevice) SurfaceSupport(family uint32, surface driver.Surface) (bool, error) {
	return p.PresentFamily[family], nil
}

func (p *PhysicalDevice) SurfaceCapabilities(surface driver.Surface) (driver.SurfaceCapabilities, error) {
	return p.Caps, nil
}

func (p *PhysicalDevice) SurfaceFormats(surface driver.Surface) ([]driver.SurfaceFormat, error) {
	return p.Formats, nil
}

func (p *PhysicalDevice) PresentModes(surface driver.Surface) ([]driver.PresentMode, error) {
	return p.Modes, nil
}

func (p *PhysicalDevice) CreateDevice(family uint32, extensions []string) (driver.Device, error) {
	if int(family) >= len(p.Families) {
		return nil, fmt.Errorf("queue family %d out of range", family)
	}
	d := &Device{
		Physical:   p,
		Family:     family,
		Extensions: append([]string(nil), extensions...),
	}
	d.queue = &Queue{device: d}
	p.Created = d
	return d, nil
}

// Device is a fake logical device. It counts live objects so tests can
// check that everything created was released.
type Device struct {
	Physical   *PhysicalDevice
	Family     uint32
	Extensions []string
	Destroyed  bool
	WaitIdles  int

	// Failure injection. Each field is consumed by the next call.
	FailAcquire error
	FailSubmit  error
	FailPresent error
	// SuboptimalAcquire makes acquisitions report a suboptimal swapchain.
	SuboptimalAcquire bool

	queue      *Queue
	Swapchains []*Swapchain
	Live       map[string]int
	pending    []*Fence
}

func (d *Device) track(kind string, delta int) {
	if d.Live == nil {
		d.Live = make(map[string]int)
	}
	d.Live[kind] += delta
}

// LiveObjects returns the number of live objects of kind.
func (d *Device) LiveObjects(kind string) int { return d.Live[kind] }

// CompleteAll signals every fence attached to a submission.
func (d *Device) CompleteAll() {
	for _, f := range d.pending {
		f.signaled = true
	}
	d.pending = nil
}

func (d *Device) Queue() driver.Queue { return d.queue }

// FakeQueue returns the queue with its recorded history.
func (d *Device) FakeQueue() *Queue { return d.queue }

func (d *Device) CreateSwapchain(info driver.SwapchainInfo) (driver.Swapchain, error) {
	surface, ok := info.Surface.(*Surface)
	if !ok {
		return nil, fmt.Errorf("foreign surface %T", info.Surface)
	}
	sc := &Swapchain{device: d, surface: surface, Info: info}
	if info.Old != nil {
		old := info.Old.(*Swapchain)
		if old.Destroyed {
			return nil, fmt.Errorf("old swapchain already destroyed")
		}
		old.Retired = true
	}
	for i := uint32(0); i < info.MinImageCount; i++ {
		sc.images = append(sc.images, &Image{format: info.Format.Format, extent: info.Extent, Index: i, swapchain: sc})
	}
	d.Swapchains = append(d.Swapchains, sc)
	d.track("swapchain", 1)
	return sc, nil
}

func (d *Device) CreateImageView(image driver.Image, format driver.Format) (driver.ImageView, error) {
	img := image.(*Image)
	if img.swapchain.Destroyed {
		return nil, fmt.Errorf("image of a destroyed swapchain")
	}
	d.track("image_view", 1)
	return &ImageView{device: d, image: img, Format: format}, nil
}

func (d *Device) CreateRenderPass(info driver.RenderPassInfo) (driver.RenderPass, error) {
	d.track("render_pass", 1)
	return &RenderPass{device: d, Info: info}, nil
}

func (d *Device) CreateFramebuffer(pass driver.RenderPass, attachments []driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	d.track("framebuffer", 1)
	return &Framebuffer{
		device:      d,
		Pass:        pass.(*RenderPass),
		attachments: append([]driver.ImageView(nil), attachments...),
		extent:      extent,
	}, nil
}

func (d *Device) CreateShaderModule(code []uint32) (driver.ShaderModule, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty shader code")
	}
	d.track("shader_module", 1)
	return &ShaderModule{device: d, Code: append([]uint32(nil), code...)}, nil
}

func (d *Device) CreateCommandPool(family uint32) (driver.CommandPool, error) {
	if family != d.Family {
		return nil, fmt.Errorf("queue family %d was not requested", family)
	}
	d.track("command_pool", 1)
	return &CommandPool{device: d}, nil
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	d.track("semaphore", 1)
	return &Semaphore{device: d}, nil
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	d.track("fence", 1)
	return &Fence{device: d, signaled: signaled}, nil
}

func (d *Device) WaitIdle() error {
	d.WaitIdles++
	d.CompleteAll()
	return nil
}

func (d *Device) Destroy() { d.Destroyed = true }

// Submission is one recorded queue submission.
type Submission struct {
	Info driver.SubmitInfo
}

// Presentation is one recorded present call.
type Presentation struct {
	Info driver.PresentInfo
}

type Queue struct {
	device        *Device
	Submissions   []Submission
	Presentations []Presentation
}

func (q *Queue) Submit(info driver.SubmitInfo) error {
	if err := q.device.FailSubmit; err != nil {
		q.device.FailSubmit = nil
		return err
	}
	for _, cb := range info.CommandBuffers {
		c := cb.(*CommandBuffer)
		if c.recording {
			return fmt.Errorf("command buffer still recording")
		}
		c.Submitted++
	}
	if info.Fence != nil {
		f := info.Fence.(*Fence)
		if f.signaled {
			return fmt.Errorf("submit with a signaled fence")
		}
		q.device.pending = append(q.device.pending, f)
	}
	q.Submissions = append(q.Submissions, Submission{Info: info})
	return nil
}

func (q *Queue) Present(info driver.PresentInfo) (bool, error) {
	if err := q.device.FailPresent; err != nil {
		q.device.FailPresent = nil
		return false, err
	}
	sc := info.Swapchain.(*Swapchain)
	if int(info.ImageIndex) >= len(sc.images) {
		return false, fmt.Errorf("present index %d out of range", info.ImageIndex)
	}
	if !sc.acquired[info.ImageIndex] {
		return false, fmt.Errorf("present of image %d that was not acquired", info.ImageIndex)
	}
	sc.acquired[info.ImageIndex] = false
	q.Presentations = append(q.Presentations, Presentation{Info: info})
	if sc.surface.extent() != sc.Info.Extent {
		return false, driver.ErrOutOfDate
	}
	return false, nil
}

type Swapchain struct {
	device    *Device
	surface   *Surface
	images    []*Image
	acquired  map[uint32]bool
	next      uint32
	Info      driver.SwapchainInfo
	Retired   bool
	Destroyed bool
}

func (s *Swapchain) Images() []driver.Image {
	out := make([]driver.Image, len(s.images))
	for i, img := range s.images {
		out[i] = img
	}
	return out
}

func (s *Swapchain) AcquireNextImage(timeout uint64, signal driver.Semaphore) (uint32, bool, error) {
	if s.Destroyed || s.Retired {
		return 0, false, driver.ErrOutOfDate
	}
	if err := s.device.FailAcquire; err != nil {
		s.device.FailAcquire = nil
		return 0, false, err
	}
	if s.surface.extent() != s.Info.Extent {
		return 0, false, driver.ErrOutOfDate
	}
	if s.acquired == nil {
		s.acquired = make(map[uint32]bool)
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	s.acquired[idx] = true
	if sem, ok := signal.(*Semaphore); ok {
		sem.Signals++
	}
	suboptimal := s.device.SuboptimalAcquire
	return idx, suboptimal, nil
}

func (s *Swapchain) Destroy() {
	s.Destroyed = true
	s.device.track("swapchain", -1)
}

type Image struct {
	format    driver.Format
	extent    driver.Extent2D
	swapchain *Swapchain
	Index     uint32
}

func (i *Image) Format() driver.Format   { return i.format }
func (i *Image) Extent() driver.Extent2D { return i.extent }

type ImageView struct {
	device    *Device
	image     *Image
	Format    driver.Format
	Destroyed bool
}

func (v *ImageView) Image() driver.Image { return v.image }

func (v *ImageView) Destroy() {
	v.Destroyed = true
	v.device.track("image_view", -1)
}

type RenderPass struct {
	device    *Device
	Info      driver.RenderPassInfo
	Destroyed bool
}

func (r *RenderPass) Destroy() {
	r.Destroyed = true
	r.device.track("render_pass", -1)
}

type Framebuffer struct {
	device      *Device
	attachments []driver.ImageView
	extent      driver.Extent2D
	Pass        *RenderPass
	Destroyed   bool
}

func (f *Framebuffer) Attachments() []driver.ImageView { return f.attachments }
func (f *Framebuffer) Extent() driver.Extent2D         { return f.extent }

func (f *Framebuffer) Destroy() {
	f.Destroyed = true
	f.device.track("framebuffer", -1)
}

type ShaderModule struct {
	device    *Device
	Code      []uint32
	Destroyed bool
}

func (m *ShaderModule) Destroy() {
	m.Destroyed = true
	m.device.track("shader_module", -1)
}

type CommandPool struct {
	device    *Device
	Allocated int
	Destroyed bool
}

func (p *CommandPool) Allocate() (driver.CommandBuffer, error) {
	p.Allocated++
	p.device.track("command_buffer", 1)
	return &CommandBuffer{}, nil
}

func (p *CommandPool) Free(cb driver.CommandBuffer) {
	p.Allocated--
	p.device.track("command_buffer", -1)
}

func (p *CommandPool) Destroy() {
	p.Destroyed = true
	p.device.track("command_pool", -1)
}

// Command is one recorded command.
type Command struct {
	Name        string
	Framebuffer *Framebuffer
	Clear       []driver.ClearValue
	Viewport    driver.Viewport
	Scissor     driver.Rect2D
	Draw        [4]uint32
}

type CommandBuffer struct {
	recording     bool
	OneTimeSubmit bool
	Commands      []Command
	Submitted     int
}

func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	if c.recording {
		return fmt.Errorf("command buffer already recording")
	}
	c.recording = true
	c.OneTimeSubmit = oneTimeSubmit
	c.Commands = nil
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass driver.RenderPass, framebuffer driver.Framebuffer, area driver.Rect2D, clear []driver.ClearValue) {
	c.Commands = append(c.Commands, Command{
		Name:        "BeginRenderPass",
		Framebuffer: framebuffer.(*Framebuffer),
		Clear:       append([]driver.ClearValue(nil), clear...),
		Scissor:     area,
	})
}

func (c *CommandBuffer) SetViewport(viewport driver.Viewport) {
	c.Commands = append(c.Commands, Command{Name: "SetViewport", Viewport: viewport})
}

func (c *CommandBuffer) SetScissor(scissor driver.Rect2D) {
	c.Commands = append(c.Commands, Command{Name: "SetScissor", Scissor: scissor})
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.Commands = append(c.Commands, Command{Name: "Draw", Draw: [4]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

func (c *CommandBuffer) EndRenderPass() {
	c.Commands = append(c.Commands, Command{Name: "EndRenderPass"})
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return fmt.Errorf("command buffer not recording")
	}
	c.recording = false
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.recording = false
	c.Commands = nil
	return nil
}

// Names returns the recorded command names in order.
func (c *CommandBuffer) Names() []string {
	names := make([]string, len(c.Commands))
	for i, cmd := range c.Commands {
		names[i] = cmd.Name
	}
	return names
}

type Semaphore struct {
	device    *Device
	Signals   int
	Destroyed bool
}

func (s *Semaphore) Destroy() {
	s.Destroyed = true
	s.device.track("semaphore", -1)
}

type Fence struct {
	device    *Device
	signaled  bool
	Destroyed bool
}

func (f *Fence) Status() (bool, error) { return f.signaled, nil }

// Wait completes the fence immediately; the fake GPU finishes work as soon
// as someone blocks on it.
func (f *Fence) Wait(timeout uint64) error {
	f.signaled = true
	return nil
}

func (f *Fence) Reset() error {
	f.signaled = false
	return nil
}

func (f *Fence) Destroy() {
	f.Destroyed = true
	f.device.track("fence", -1)
}
