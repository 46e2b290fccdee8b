package renderer

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

// portabilitySubset must be enabled whenever a device advertises it.
const portabilitySubset = "VK_KHR_portability_subset"

// RankFunc maps a device class to a priority. Higher wins.
type RankFunc func(driver.DeviceType) int

// DefaultRanking prefers discrete over integrated over virtual over CPU
// implementations.
func DefaultRanking(t driver.DeviceType) int {
	switch t {
	case driver.DeviceTypeDiscreteGPU:
		return 4
	case driver.DeviceTypeIntegratedGPU:
		return 3
	case driver.DeviceTypeVirtualGPU:
		return 2
	case driver.DeviceTypeCPU:
		return 1
	default:
		return 0
	}
}

// DeviceRequirements lists what a physical device must offer to be picked.
type DeviceRequirements struct {
	Extensions []string
	Rank       RankFunc
}

// Selection is the outcome of physical device selection.
type Selection struct {
	Physical    driver.PhysicalDevice
	Properties  driver.DeviceProperties
	QueueFamily uint32
	Extensions  []string
}

// SelectPhysicalDevice picks the highest ranked device that has every
// required extension and a queue family able to both render and present to
// surface. Ties keep the first enumerated device; the first suitable family
// of a device is used.
func SelectPhysicalDevice(devices []driver.PhysicalDevice, surface driver.Surface, req DeviceRequirements) (Selection, error) {
	rank := req.Rank
	if rank == nil {
		rank = DefaultRanking
	}

	var best Selection
	bestRank := -1
	for _, pd := range devices {
		props := pd.Properties()

		available, err := pd.Extensions()
		if err != nil {
			core.LogWarn("Skipping '%s': cannot enumerate extensions: %s", props.Name, err)
			continue
		}
		missing := ""
		for _, ext := range req.Extensions {
			if !slices.Contains(available, ext) {
				missing = ext
				break
			}
		}
		if missing != "" {
			core.LogInfo("Required extension not found: '%s', skipping device '%s'.", missing, props.Name)
			continue
		}

		family, ok := graphicsPresentFamily(pd, surface)
		if !ok {
			core.LogInfo("Device '%s' has no queue family for graphics and present, skipping.", props.Name)
			continue
		}

		if r := rank(props.Type); r > bestRank {
			extensions := append([]string(nil), req.Extensions...)
			if slices.Contains(available, portabilitySubset) && !slices.Contains(extensions, portabilitySubset) {
				extensions = append(extensions, portabilitySubset)
			}
			best = Selection{
				Physical:    pd,
				Properties:  props,
				QueueFamily: family,
				Extensions:  extensions,
			}
			bestRank = r
		}
	}

	if best.Physical == nil {
		return Selection{}, core.ErrNoSuitableDevice
	}
	return best, nil
}

func graphicsPresentFamily(pd driver.PhysicalDevice, surface driver.Surface) (uint32, bool) {
	for i, family := range pd.QueueFamilies() {
		if !family.Graphics || family.QueueCount == 0 {
			continue
		}
		supported, err := pd.SurfaceSupport(uint32(i), surface)
		if err != nil {
			core.LogWarn("Surface support query failed for queue family %d: %s", i, err)
			continue
		}
		if supported {
			return uint32(i), true
		}
	}
	return 0, false
}

// DeviceContext owns the logical device and its single graphics and present
// queue. It is created once and outlives every object created from it.
type DeviceContext struct {
	ID          uuid.UUID
	Instance    driver.Instance
	Physical    driver.PhysicalDevice
	Properties  driver.DeviceProperties
	Device      driver.Device
	Queue       driver.Queue
	QueueFamily uint32
}

// NewDeviceContext selects a physical device for surface and creates the
// logical device with exactly one queue.
func NewDeviceContext(instance driver.Instance, surface driver.Surface, rank RankFunc) (*DeviceContext, error) {
	devices, err := instance.PhysicalDevices()
	if err != nil {
		return nil, fmt.Errorf("enumerate physical devices: %w", err)
	}
	if len(devices) == 0 {
		core.LogError("No devices which support Vulkan were found.")
		return nil, core.ErrNoSuitableDevice
	}

	sel, err := SelectPhysicalDevice(devices, surface, DeviceRequirements{
		Extensions: []string{driver.SwapchainExtension},
		Rank:       rank,
	})
	if err != nil {
		core.LogError("No physical devices were found which meet the requirements.")
		return nil, err
	}

	core.LogInfo("Selected device: '%s'.", sel.Properties.Name)
	core.LogInfo("GPU type is %s.", sel.Properties.Type)
	core.LogInfo("GPU Driver version: %s", formatVersion(sel.Properties.DriverVersion))
	core.LogInfo("Vulkan API version: %s", formatVersion(sel.Properties.APIVersion))

	core.LogInfo("Creating logical device...")
	device, err := sel.Physical.CreateDevice(sel.QueueFamily, sel.Extensions)
	if err != nil {
		return nil, fmt.Errorf("create logical device: %w", err)
	}
	core.LogInfo("Logical device created.")

	return &DeviceContext{
		ID:          uuid.New(),
		Instance:    instance,
		Physical:    sel.Physical,
		Properties:  sel.Properties,
		Device:      device,
		Queue:       device.Queue(),
		QueueFamily: sel.QueueFamily,
	}, nil
}

// Destroy waits for the device to go idle and releases it. Everything
// created from the device must already be destroyed.
func (dc *DeviceContext) Destroy() error {
	if dc.Device == nil {
		return nil
	}
	err := dc.Device.WaitIdle()
	core.LogInfo("Destroying logical device...")
	dc.Device.Destroy()
	dc.Device = nil
	dc.Queue = nil
	return err
}

func formatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}
