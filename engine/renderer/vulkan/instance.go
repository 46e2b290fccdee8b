// Package vulkan implements the driver interfaces on top of goki/vulkan.
package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
	"github.com/spaghettifunk/snow/engine/core"
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

type InstanceConfig struct {
	AppName string
	// Extensions are the instance extensions the windowing system needs.
	Extensions []string
	Validation bool
}

type VulkanInstance struct {
	Handle         vk.Instance
	debugMessenger vk.DebugReportCallback
	portability    bool
}

// NewInstance loads the Vulkan entry points through glfw and creates the
// instance. With Validation set the Khronos validation layer must exist and
// its reports are routed to the engine log.
func NewInstance(cfg InstanceConfig) (*VulkanInstance, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize vk")
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.AppName),
		PEngineName:        VulkanSafeString("Snow Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	for _, ext := range cfg.Extensions {
		if ext != "VK_KHR_surface" {
			extensions = append(extensions, ext)
		}
	}

	portability := runtime.GOOS == "darwin"
	if portability {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if cfg.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if err := checkLayers(validationLayer); err != nil {
			return nil, err
		}
		layers = append(layers, validationLayer)
		core.LogInfo("Validation layers enabled.")
	}

	core.LogDebug("Required extensions: %v", extensions)
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	inst := &VulkanInstance{portability: portability}
	if res := vk.CreateInstance(&createInfo, nil, &inst.Handle); res != vk.Success {
		return nil, resultError(res, "create instance")
	}
	if err := vk.InitInstance(inst.Handle); err != nil {
		vk.DestroyInstance(inst.Handle, nil)
		return nil, errors.Wrap(err, "init instance")
	}
	core.LogInfo("Vulkan Instance created.")

	if cfg.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(inst.Handle, &debugCreateInfo, nil, &dbg); res != vk.Success {
			vk.DestroyInstance(inst.Handle, nil)
			return nil, resultError(res, "create debug report callback")
		}
		inst.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return inst, nil
}

func checkLayers(required ...string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError(res, "enumerate instance layers")
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError(res, "enumerate instance layers")
	}

	names := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		names[cString(available[i].LayerName[:])] = true
	}
	for _, layer := range required {
		if !names[layer] {
			return fmt.Errorf("required validation layer is missing: %s", layer)
		}
	}
	return nil
}

func (i *VulkanInstance) PhysicalDevices() ([]driver.PhysicalDevice, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(i.Handle, &count, nil); res != vk.Success {
		return nil, resultError(res, "enumerate physical devices")
	}
	handles := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(i.Handle, &count, handles); res != vk.Success {
		return nil, resultError(res, "enumerate physical devices")
	}

	devices := make([]driver.PhysicalDevice, 0, count)
	for _, h := range handles[:count] {
		devices = append(devices, newPhysicalDevice(h, i.portability))
	}
	return devices, nil
}

// CreateSurface wraps the surface created by the windowing system. create
// receives the native instance and returns the VkSurfaceKHR handle.
func (i *VulkanInstance) CreateSurface(create func(instance interface{}) (uintptr, error)) (driver.Surface, error) {
	ptr, err := create(i.Handle)
	if err != nil {
		return nil, errors.Wrap(err, "create window surface")
	}
	if ptr == 0 {
		return nil, errors.New("window surface is null")
	}
	core.LogDebug("Vulkan surface created.")
	return &VulkanSurface{instance: i.Handle, Handle: vk.SurfaceFromPointer(ptr)}, nil
}

func (i *VulkanInstance) Destroy() {
	if i.Handle == nil {
		return
	}
	if i.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.Handle, i.debugMessenger, nil)
		i.debugMessenger = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(i.Handle, nil)
	i.Handle = nil
	core.LogDebug("Vulkan instance destroyed.")
}

type VulkanSurface struct {
	instance vk.Instance
	Handle   vk.Surface
}

func (s *VulkanSurface) Destroy() {
	if s.Handle == vk.NullSurface {
		return
	}
	vk.DestroySurface(s.instance, s.Handle, nil)
	s.Handle = vk.NullSurface
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
