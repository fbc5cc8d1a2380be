//go:build linux || darwin

package vulkan

import (
	"fmt"
	"runtime"

	"github.com/ebitengine/purego"
)

func libraryNames() []string {
	if runtime.GOOS == "darwin" {
		return []string{"libvulkan.dylib", "libvulkan.1.dylib", "libMoltenVK.dylib"}
	}
	return []string{"libvulkan.so.1", "libvulkan.so"}
}

func loadLibrary() error {
	var lib uintptr
	var lastErr error
	for _, name := range libraryNames() {
		handle, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			lib = handle
			break
		}
		lastErr = err
	}
	if lib == 0 {
		return fmt.Errorf("%w: %v", ErrNotAvailable, lastErr)
	}

	purego.RegisterLibFunc(&vkCreateInstance, lib, "vkCreateInstance")
	purego.RegisterLibFunc(&vkDestroyInstance, lib, "vkDestroyInstance")
	purego.RegisterLibFunc(&vkEnumeratePhysicalDevices, lib, "vkEnumeratePhysicalDevices")
	purego.RegisterLibFunc(&vkGetPhysicalDeviceProperties, lib, "vkGetPhysicalDeviceProperties")
	purego.RegisterLibFunc(&vkGetPhysicalDeviceMemoryProperties, lib, "vkGetPhysicalDeviceMemoryProperties")
	return nil
}
