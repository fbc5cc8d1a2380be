//go:build !linux && !darwin

package vulkan

func loadLibrary() error {
	return ErrNotAvailable
}
