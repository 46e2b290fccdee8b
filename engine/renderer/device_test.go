package renderer_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
	"github.com/spaghettifunk/snow/engine/renderer/driver/drivertest"
)

// newDevice creates a device context on a single fake discrete GPU.
func newDevice(t *testing.T, width, height int) (*drivertest.Surface, *renderer.DeviceContext, *drivertest.Device) {
	t.Helper()
	pd := drivertest.NewPhysicalDevice("fake", driver.DeviceTypeDiscreteGPU)
	surface := drivertest.NewSurface(width, height)
	dc, err := renderer.NewDeviceContext(drivertest.NewInstance(pd), surface, nil)
	if err != nil {
		t.Fatalf("create device context: %s", err)
	}
	return surface, dc, pd.Created
}

func physicalDevices(devices ...*drivertest.PhysicalDevice) []driver.PhysicalDevice {
	out := make([]driver.PhysicalDevice, len(devices))
	for i, d := range devices {
		out[i] = d
	}
	return out
}

func TestSelectPhysicalDevicePrefersDiscrete(t *testing.T) {
	surface := drivertest.NewSurface(640, 480)
	devices := physicalDevices(
		drivertest.NewPhysicalDevice("cpu", driver.DeviceTypeCPU),
		drivertest.NewPhysicalDevice("integrated", driver.DeviceTypeIntegratedGPU),
		drivertest.NewPhysicalDevice("discrete", driver.DeviceTypeDiscreteGPU),
		drivertest.NewPhysicalDevice("virtual", driver.DeviceTypeVirtualGPU),
	)

	sel, err := renderer.SelectPhysicalDevice(devices, surface, renderer.DeviceRequirements{
		Extensions: []string{driver.SwapchainExtension},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if sel.Properties.Name != "discrete" {
		t.Errorf("selected %q, want discrete", sel.Properties.Name)
	}
}

func TestSelectPhysicalDeviceIsDeterministic(t *testing.T) {
	surface := drivertest.NewSurface(640, 480)

	first := drivertest.NewPhysicalDevice("first", driver.DeviceTypeIntegratedGPU)
	first.Families = []driver.QueueFamily{
		{Compute: true, QueueCount: 1},
		{Graphics: true, QueueCount: 1},
		{Graphics: true, QueueCount: 2},
		{Graphics: true, QueueCount: 1},
	}
	// Family 1 renders but cannot present; 2 and 3 can do both.
	first.PresentFamily = map[uint32]bool{0: true, 2: true, 3: true}
	second := drivertest.NewPhysicalDevice("second", driver.DeviceTypeIntegratedGPU)
	devices := physicalDevices(first, second)

	req := renderer.DeviceRequirements{Extensions: []string{driver.SwapchainExtension}}
	want, err := renderer.SelectPhysicalDevice(devices, surface, req)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if want.Properties.Name != "first" || want.QueueFamily != 2 {
		t.Fatalf("selected %q family %d, want first family 2", want.Properties.Name, want.QueueFamily)
	}

	for i := 0; i < 10; i++ {
		got, err := renderer.SelectPhysicalDevice(devices, surface, req)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %s", i, err)
		}
		if got.Physical != want.Physical || got.QueueFamily != want.QueueFamily {
			t.Fatalf("run %d selected %q family %d", i, got.Properties.Name, got.QueueFamily)
		}
	}
}

func TestSelectPhysicalDeviceRejectsUnsuitable(t *testing.T) {
	surface := drivertest.NewSurface(640, 480)

	noSwapchain := drivertest.NewPhysicalDevice("no-swapchain", driver.DeviceTypeDiscreteGPU)
	noSwapchain.Exts = nil
	noPresent := drivertest.NewPhysicalDevice("no-present", driver.DeviceTypeDiscreteGPU)
	noPresent.PresentFamily = map[uint32]bool{}
	computeOnly := drivertest.NewPhysicalDevice("compute-only", driver.DeviceTypeDiscreteGPU)
	computeOnly.Families = []driver.QueueFamily{{Compute: true, QueueCount: 1}}

	_, err := renderer.SelectPhysicalDevice(physicalDevices(noSwapchain, noPresent, computeOnly), surface, renderer.DeviceRequirements{
		Extensions: []string{driver.SwapchainExtension},
	})
	if !errors.Is(err, core.ErrNoSuitableDevice) {
		t.Fatalf("expected ErrNoSuitableDevice, got %v", err)
	}
	if !core.IsSetup(err) {
		t.Error("no suitable device must be a setup error")
	}
}

func TestSelectPhysicalDeviceCustomRank(t *testing.T) {
	surface := drivertest.NewSurface(640, 480)
	devices := physicalDevices(
		drivertest.NewPhysicalDevice("discrete", driver.DeviceTypeDiscreteGPU),
		drivertest.NewPhysicalDevice("integrated", driver.DeviceTypeIntegratedGPU),
	)
	lowPower := func(t driver.DeviceType) int {
		if t == driver.DeviceTypeIntegratedGPU {
			return 10
		}
		return renderer.DefaultRanking(t)
	}

	sel, err := renderer.SelectPhysicalDevice(devices, surface, renderer.DeviceRequirements{Rank: lowPower})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if sel.Properties.Name != "integrated" {
		t.Errorf("selected %q, want integrated", sel.Properties.Name)
	}
}

func TestSelectPhysicalDeviceEnablesPortabilitySubset(t *testing.T) {
	surface := drivertest.NewSurface(640, 480)
	pd := drivertest.NewPhysicalDevice("moltenvk", driver.DeviceTypeIntegratedGPU)
	pd.Exts = append(pd.Exts, "VK_KHR_portability_subset")

	sel, err := renderer.SelectPhysicalDevice(physicalDevices(pd), surface, renderer.DeviceRequirements{
		Extensions: []string{driver.SwapchainExtension},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !slices.Contains(sel.Extensions, "VK_KHR_portability_subset") {
		t.Errorf("extensions %v must include the portability subset", sel.Extensions)
	}
}

func TestNewDeviceContextEnablesPortabilitySubsetOnce(t *testing.T) {
	surface := drivertest.NewSurface(640, 480)
	pd := drivertest.NewPhysicalDevice("moltenvk", driver.DeviceTypeIntegratedGPU)
	pd.Exts = append(pd.Exts, "VK_KHR_portability_subset")

	dc, err := renderer.NewDeviceContext(drivertest.NewInstance(pd), surface, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer dc.Destroy()

	n := 0
	for _, ext := range pd.Created.Extensions {
		if ext == "VK_KHR_portability_subset" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("device extensions %v enable the portability subset %d times, want once", pd.Created.Extensions, n)
	}
}

func TestNewDeviceContext(t *testing.T) {
	_, dc, device := newDevice(t, 640, 480)

	if dc.Queue == nil {
		t.Fatal("device context has no queue")
	}
	if dc.QueueFamily != 0 {
		t.Errorf("queue family = %d, want 0", dc.QueueFamily)
	}
	if !slices.Equal(device.Extensions, []string{driver.SwapchainExtension}) {
		t.Errorf("enabled extensions = %v, want only the swapchain extension", device.Extensions)
	}

	if err := dc.Destroy(); err != nil {
		t.Fatalf("destroy: %s", err)
	}
	if !device.Destroyed {
		t.Error("logical device was not destroyed")
	}
	if device.WaitIdles != 1 {
		t.Errorf("wait idle calls = %d, want 1", device.WaitIdles)
	}
}

func TestNewDeviceContextWithoutDevices(t *testing.T) {
	_, err := renderer.NewDeviceContext(drivertest.NewInstance(), drivertest.NewSurface(640, 480), nil)
	if !errors.Is(err, core.ErrNoSuitableDevice) {
		t.Fatalf("expected ErrNoSuitableDevice, got %v", err)
	}
}
