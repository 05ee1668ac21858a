//go:build linux

package driver

import "golang.org/x/sys/unix"

// MmapAllocator maps anonymous, page-aligned memory suitable for DMA.
// Requests of at least HugePageSize first try a hugetlb mapping so the
// controller sees a single physically contiguous region.
type MmapAllocator struct {
	DisableHugePages bool
}

// Allocate returns a zeroed, page-aligned buffer of size bytes
func (a MmapAllocator) Allocate(size int) (*Buffer, error) {
	if size < 0 {
		return nil, allocationError(size, unix.EINVAL)
	}
	if size == 0 {
		return &Buffer{}, nil
	}

	if !a.DisableHugePages && size >= HugePageSize {
		length := alignUp(size, HugePageSize)
		data, err := unix.Mmap(-1, 0, length,
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
		if err == nil {
			return &Buffer{data: data[:size], mapped: data, release: unix.Munmap}, nil
		}
		// fall back to regular pages when no huge pages are reserved
	}

	length := alignUp(size, PageSize)
	data, err := unix.Mmap(-1, 0, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, allocationError(size, err)
	}
	return &Buffer{data: data[:size], mapped: data, release: unix.Munmap}, nil
}

// DefaultAllocator returns the allocator used when none is configured
func DefaultAllocator() MmapAllocator {
	return MmapAllocator{}
}
