// Package vulkan probes for Vulkan compute devices without CGO.
//
// The Vulkan loader is opened dynamically via purego, so binaries build and
// run on machines without a Vulkan SDK; every entry point degrades to "not
// available" when the library is missing. The package currently covers
// availability probing and physical-device enumeration, which backend
// selection and the CLI info command consume.
//
// Library locations:
//   - Linux: libvulkan.so.1 (Vulkan SDK or mesa)
//   - macOS: libvulkan.dylib / libMoltenVK.dylib
package vulkan

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

const (
	vkSuccess = 0

	vkStructureTypeApplicationInfo    = 0
	vkStructureTypeInstanceCreateInfo = 1

	vkAPIVersion11 = uint32(0x00401000) // 1.1.0

	vkMemoryHeapDeviceLocalBit = 0x00000001
)

// Physical device types reported by VkPhysicalDeviceProperties.
const (
	DeviceTypeOther         = 0
	DeviceTypeIntegratedGPU = 1
	DeviceTypeDiscreteGPU   = 2
	DeviceTypeVirtualGPU    = 3
	DeviceTypeCPU           = 4
)

type vkInstance uintptr
type vkPhysicalDevice uintptr
type vkResult int32

type vkApplicationInfo struct {
	SType              uint32
	PNext              uintptr
	PApplicationName   uintptr
	ApplicationVersion uint32
	PEngineName        uintptr
	EngineVersion      uint32
	ApiVersion         uint32
}

type vkInstanceCreateInfo struct {
	SType                   uint32
	PNext                   uintptr
	Flags                   uint32
	PApplicationInfo        *vkApplicationInfo
	EnabledLayerCount       uint32
	PpEnabledLayerNames     uintptr
	EnabledExtensionCount   uint32
	PpEnabledExtensionNames uintptr
}

type vkPhysicalDeviceProperties struct {
	ApiVersion        uint32
	DriverVersion     uint32
	VendorID          uint32
	DeviceID          uint32
	DeviceType        uint32
	DeviceName        [256]byte
	PipelineCacheUUID [16]byte
	Limits            [512]byte
	SparseProperties  [20]byte
}

type vkMemoryType struct {
	PropertyFlags uint32
	HeapIndex     uint32
}

type vkMemoryHeap struct {
	Size  uint64
	Flags uint32
}

type vkPhysicalDeviceMemoryProperties struct {
	MemoryTypeCount uint32
	MemoryTypes     [32]vkMemoryType
	MemoryHeapCount uint32
	MemoryHeaps     [16]vkMemoryHeap
}

var (
	loadOnce sync.Once
	loadErr  error

	vkCreateInstance                    func(pCreateInfo *vkInstanceCreateInfo, pAllocator uintptr, pInstance *vkInstance) vkResult
	vkDestroyInstance                   func(instance vkInstance, pAllocator uintptr)
	vkEnumeratePhysicalDevices          func(instance vkInstance, pCount *uint32, pDevices *vkPhysicalDevice) vkResult
	vkGetPhysicalDeviceProperties       func(device vkPhysicalDevice, pProperties *vkPhysicalDeviceProperties)
	vkGetPhysicalDeviceMemoryProperties func(device vkPhysicalDevice, pProperties *vkPhysicalDeviceMemoryProperties)
)

// ErrNotAvailable is returned when the Vulkan loader cannot be opened or no
// physical device is present.
var ErrNotAvailable = errors.New("vulkan: not available (library or device not found)")

func initVulkan() error {
	loadOnce.Do(func() {
		loadErr = loadLibrary()
	})
	return loadErr
}

// DeviceInfo describes one Vulkan physical device.
type DeviceInfo struct {
	Index       int
	Name        string
	Type        uint32
	APIVersion  string
	MemoryBytes uint64
}

// TypeString returns a human-readable device type.
func (d DeviceInfo) TypeString() string {
	switch d.Type {
	case DeviceTypeIntegratedGPU:
		return "integrated GPU"
	case DeviceTypeDiscreteGPU:
		return "discrete GPU"
	case DeviceTypeVirtualGPU:
		return "virtual GPU"
	case DeviceTypeCPU:
		return "CPU"
	default:
		return "other"
	}
}

func newInstance() (vkInstance, error) {
	appName := []byte("pointloss\x00")
	engineName := []byte("pointloss compute\x00")

	appInfo := vkApplicationInfo{
		SType:              vkStructureTypeApplicationInfo,
		PApplicationName:   uintptr(unsafe.Pointer(&appName[0])),
		ApplicationVersion: 0x00010000,
		PEngineName:        uintptr(unsafe.Pointer(&engineName[0])),
		EngineVersion:      0x00010000,
		ApiVersion:         vkAPIVersion11,
	}
	createInfo := vkInstanceCreateInfo{
		SType:            vkStructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}

	var instance vkInstance
	if result := vkCreateInstance(&createInfo, 0, &instance); result != vkSuccess {
		return 0, fmt.Errorf("%w: vkCreateInstance returned %d", ErrNotAvailable, result)
	}
	return instance, nil
}

// IsAvailable reports whether the Vulkan loader can be opened and at least
// one physical device is present.
func IsAvailable() bool {
	if err := initVulkan(); err != nil {
		return false
	}
	instance, err := newInstance()
	if err != nil {
		return false
	}
	defer vkDestroyInstance(instance, 0)

	var count uint32
	vkEnumeratePhysicalDevices(instance, &count, nil)
	return count > 0
}

// DeviceCount returns the number of Vulkan physical devices, or 0 when
// Vulkan is unavailable.
func DeviceCount() int {
	devices, err := Devices()
	if err != nil {
		return 0
	}
	return len(devices)
}

// Devices enumerates all Vulkan physical devices.
func Devices() ([]DeviceInfo, error) {
	if err := initVulkan(); err != nil {
		return nil, err
	}
	instance, err := newInstance()
	if err != nil {
		return nil, err
	}
	defer vkDestroyInstance(instance, 0)

	var count uint32
	vkEnumeratePhysicalDevices(instance, &count, nil)
	if count == 0 {
		return nil, nil
	}

	physical := make([]vkPhysicalDevice, count)
	vkEnumeratePhysicalDevices(instance, &count, &physical[0])

	devices := make([]DeviceInfo, 0, count)
	for i, pd := range physical[:count] {
		var props vkPhysicalDeviceProperties
		vkGetPhysicalDeviceProperties(pd, &props)

		name := ""
		for j, b := range props.DeviceName {
			if b == 0 {
				name = string(props.DeviceName[:j])
				break
			}
		}

		var memProps vkPhysicalDeviceMemoryProperties
		vkGetPhysicalDeviceMemoryProperties(pd, &memProps)
		var memory uint64
		for j := uint32(0); j < memProps.MemoryHeapCount; j++ {
			if memProps.MemoryHeaps[j].Flags&vkMemoryHeapDeviceLocalBit != 0 {
				memory = memProps.MemoryHeaps[j].Size
				break
			}
		}

		devices = append(devices, DeviceInfo{
			Index: i,
			Name:  name,
			Type:  props.DeviceType,
			APIVersion: fmt.Sprintf("%d.%d.%d",
				props.ApiVersion>>22, (props.ApiVersion>>12)&0x3ff, props.ApiVersion&0xfff),
			MemoryBytes: memory,
		})
	}
	return devices, nil
}
