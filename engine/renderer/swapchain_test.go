package renderer_test

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
	"github.com/spaghettifunk/snow/engine/renderer/driver/drivertest"
)

func TestNegotiateSwapchain(t *testing.T) {
	caps := drivertest.NewPhysicalDevice("caps", driver.DeviceTypeDiscreteGPU).Caps
	formats := []driver.SurfaceFormat{
		{Format: driver.FormatR8G8B8A8Unorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
		{Format: driver.FormatB8G8R8A8Srgb, ColorSpace: driver.ColorSpaceSRGBNonlinear},
	}
	fifo := []driver.PresentMode{driver.PresentModeFIFO}
	extent := driver.Extent2D{Width: 1240, Height: 720}

	tests := []struct {
		name       string
		caps       func(c driver.SurfaceCapabilities) driver.SurfaceCapabilities
		opts       renderer.SwapchainOptions
		modes      []driver.PresentMode
		extent     driver.Extent2D
		wantImages uint32
		wantMode   driver.PresentMode
		wantExtent driver.Extent2D
		wantAlpha  driver.CompositeAlpha
	}{
		{
			name:       "capability minimum",
			wantImages: 2,
			wantMode:   driver.PresentModeFIFO,
			wantExtent: extent,
			wantAlpha:  driver.CompositeAlphaOpaque,
		},
		{
			name:       "requested count above minimum",
			opts:       renderer.SwapchainOptions{ImageCount: 3},
			wantImages: 3,
			wantMode:   driver.PresentModeFIFO,
			wantExtent: extent,
			wantAlpha:  driver.CompositeAlphaOpaque,
		},
		{
			name:       "requested count clamped to maximum",
			opts:       renderer.SwapchainOptions{ImageCount: 16},
			wantImages: 8,
			wantMode:   driver.PresentModeFIFO,
			wantExtent: extent,
			wantAlpha:  driver.CompositeAlphaOpaque,
		},
		{
			name: "no maximum",
			caps: func(c driver.SurfaceCapabilities) driver.SurfaceCapabilities {
				c.MaxImageCount = 0
				return c
			},
			opts:       renderer.SwapchainOptions{ImageCount: 16},
			wantImages: 16,
			wantMode:   driver.PresentModeFIFO,
			wantExtent: extent,
			wantAlpha:  driver.CompositeAlphaOpaque,
		},
		{
			name:       "supported present mode",
			opts:       renderer.SwapchainOptions{PresentMode: driver.PresentModeMailbox},
			modes:      []driver.PresentMode{driver.PresentModeFIFO, driver.PresentModeMailbox},
			wantImages: 2,
			wantMode:   driver.PresentModeMailbox,
			wantExtent: extent,
			wantAlpha:  driver.CompositeAlphaOpaque,
		},
		{
			name:       "unsupported present mode falls back to fifo",
			opts:       renderer.SwapchainOptions{PresentMode: driver.PresentModeImmediate},
			wantImages: 2,
			wantMode:   driver.PresentModeFIFO,
			wantExtent: extent,
			wantAlpha:  driver.CompositeAlphaOpaque,
		},
		{
			name: "extent clamped",
			caps: func(c driver.SurfaceCapabilities) driver.SurfaceCapabilities {
				c.MaxImageExtent = driver.Extent2D{Width: 1024, Height: 1024}
				c.MinImageExtent = driver.Extent2D{Width: 800, Height: 800}
				return c
			},
			wantImages: 2,
			wantMode:   driver.PresentModeFIFO,
			wantExtent: driver.Extent2D{Width: 1024, Height: 800},
			wantAlpha:  driver.CompositeAlphaOpaque,
		},
		{
			name: "first composite alpha",
			caps: func(c driver.SurfaceCapabilities) driver.SurfaceCapabilities {
				c.SupportedCompositeAlpha = driver.CompositeAlphaInherit | driver.CompositeAlphaPreMultiplied
				return c
			},
			wantImages: 2,
			wantMode:   driver.PresentModeFIFO,
			wantExtent: extent,
			wantAlpha:  driver.CompositeAlphaPreMultiplied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := caps
			if tt.caps != nil {
				c = tt.caps(c)
			}
			modes := tt.modes
			if modes == nil {
				modes = fifo
			}
			info, err := renderer.NegotiateSwapchain(c, formats, modes, tt.opts, extent)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if info.MinImageCount != tt.wantImages {
				t.Errorf("image count = %d, want %d", info.MinImageCount, tt.wantImages)
			}
			if info.Format != formats[0] {
				t.Errorf("format = %v, want the first reported %v", info.Format, formats[0])
			}
			if info.PresentMode != tt.wantMode {
				t.Errorf("present mode = %d, want %d", info.PresentMode, tt.wantMode)
			}
			if info.Extent != tt.wantExtent {
				t.Errorf("extent = %v, want %v", info.Extent, tt.wantExtent)
			}
			if info.CompositeAlpha != tt.wantAlpha {
				t.Errorf("composite alpha = %b, want %b", info.CompositeAlpha, tt.wantAlpha)
			}
		})
	}
}

func TestNegotiateSwapchainErrors(t *testing.T) {
	caps := drivertest.NewPhysicalDevice("caps", driver.DeviceTypeDiscreteGPU).Caps
	formats := []driver.SurfaceFormat{{Format: driver.FormatB8G8R8A8Srgb}}
	modes := []driver.PresentMode{driver.PresentModeFIFO}
	extent := driver.Extent2D{Width: 640, Height: 480}

	noAlpha := caps
	noAlpha.SupportedCompositeAlpha = 0

	tests := []struct {
		name    string
		caps    driver.SurfaceCapabilities
		formats []driver.SurfaceFormat
		extent  driver.Extent2D
		want    error
	}{
		{"no formats", caps, nil, extent, core.ErrSurfaceUnsupported},
		{"no composite alpha", noAlpha, formats, extent, core.ErrSurfaceUnsupported},
		{"minimized", caps, formats, driver.Extent2D{Width: 640}, core.ErrWindowMinimized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := renderer.NegotiateSwapchain(tt.caps, tt.formats, modes, renderer.SwapchainOptions{}, tt.extent)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSurfaceManagerCreate(t *testing.T) {
	surface, dc, device := newDevice(t, 1240, 720)
	sm := renderer.NewSurfaceManager(dc, surface, surface, renderer.SwapchainOptions{})

	sc, err := sm.Create()
	if err != nil {
		t.Fatalf("create swapchain: %s", err)
	}
	if len(sc.Images) != 2 {
		t.Errorf("images = %d, want the capability minimum 2", len(sc.Images))
	}
	if sc.Extent != (driver.Extent2D{Width: 1240, Height: 720}) {
		t.Errorf("extent = %v, want 1240x720", sc.Extent)
	}
	if sc.Format != driver.FormatB8G8R8A8Srgb || sc.ColorSpace != driver.ColorSpaceSRGBNonlinear {
		t.Errorf("format = %d/%d, want the first reported pair", sc.Format, sc.ColorSpace)
	}
	if sc.Generation != 1 {
		t.Errorf("generation = %d, want 1", sc.Generation)
	}
	if sm.Current() != sc {
		t.Error("current swapchain not recorded")
	}

	sm.Destroy()
	if n := device.LiveObjects("swapchain"); n != 0 {
		t.Errorf("live swapchains after destroy = %d", n)
	}
}

func TestSurfaceManagerCreateUnsupported(t *testing.T) {
	surface, dc, device := newDevice(t, 1240, 720)
	device.Physical.Formats = nil
	sm := renderer.NewSurfaceManager(dc, surface, surface, renderer.SwapchainOptions{})

	if _, err := sm.Create(); !errors.Is(err, core.ErrSurfaceUnsupported) {
		t.Fatalf("expected ErrSurfaceUnsupported, got %v", err)
	}
	if n := device.LiveObjects("swapchain"); n != 0 {
		t.Errorf("live swapchains = %d, want 0", n)
	}
}

func TestSurfaceManagerRecreateIsIdempotent(t *testing.T) {
	surface, dc, device := newDevice(t, 1240, 720)
	sm := renderer.NewSurfaceManager(dc, surface, surface, renderer.SwapchainOptions{})
	original, err := sm.Create()
	if err != nil {
		t.Fatalf("create swapchain: %s", err)
	}
	oldHandle := original.Handle.(*drivertest.Swapchain)

	extent := driver.Extent2D{Width: 1024, Height: 768}
	first, err := sm.Recreate(original, extent)
	if err != nil {
		t.Fatalf("first recreate: %s", err)
	}
	// Recreate retires first, so keep what it looked like.
	firstImages, firstFormat, firstExtent := len(first.Images), first.Format, first.Extent

	second, err := sm.Recreate(first, extent)
	if err != nil {
		t.Fatalf("second recreate: %s", err)
	}

	if len(second.Images) != firstImages || second.Format != firstFormat || second.Extent != firstExtent {
		t.Errorf("second recreation %d images %d %v, first %d images %d %v",
			len(second.Images), second.Format, second.Extent,
			firstImages, firstFormat, firstExtent)
	}
	if first.Handle != nil || len(first.Images) != 0 {
		t.Error("a recreated swapchain state must be retired")
	}
	if second.Extent != extent {
		t.Errorf("extent = %v, want %v", second.Extent, extent)
	}
	if first.Generation != 2 || second.Generation != 3 {
		t.Errorf("generations = %d, %d, want 2, 3", first.Generation, second.Generation)
	}
	if !oldHandle.Retired || !oldHandle.Destroyed {
		t.Error("old swapchain must be retired and destroyed")
	}
	if device.Swapchains[1].Info.Old != oldHandle {
		t.Error("old swapchain was not passed as the retirement hint")
	}
	if device.WaitIdles < 2 {
		t.Errorf("wait idle calls = %d, want one per recreation", device.WaitIdles)
	}
	if n := device.LiveObjects("swapchain"); n != 1 {
		t.Errorf("live swapchains = %d, want 1", n)
	}
}

func TestSurfaceManagerRecreateFailureKeepsExisting(t *testing.T) {
	surface, dc, _ := newDevice(t, 1240, 720)
	sm := renderer.NewSurfaceManager(dc, surface, surface, renderer.SwapchainOptions{})
	existing, err := sm.Create()
	if err != nil {
		t.Fatalf("create swapchain: %s", err)
	}

	_, err = sm.Recreate(existing, driver.Extent2D{})
	if !errors.Is(err, core.ErrWindowMinimized) {
		t.Fatalf("expected ErrWindowMinimized, got %v", err)
	}
	if existing.Handle == nil || sm.Current() != existing {
		t.Error("failed recreation must leave the existing swapchain in place")
	}
}
