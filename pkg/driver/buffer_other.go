//go:build !linux

package driver

// DefaultAllocator returns the allocator used when none is configured
func DefaultAllocator() HeapAllocator {
	return HeapAllocator{}
}
