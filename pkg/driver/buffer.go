package driver

import "fmt"

// Buffer is a zero-initialised, contiguous transfer buffer owned by one
// operation. Free must be called once the command has completed.
type Buffer struct {
	data    []byte
	mapped  []byte // backing mapping, page rounded
	release func([]byte) error
}

// Bytes returns the requested region of the buffer
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the requested size
func (b *Buffer) Len() int {
	return len(b.data)
}

// Free releases the backing memory. It is safe to call more than once.
func (b *Buffer) Free() error {
	if b.release == nil || b.mapped == nil {
		b.data = nil
		return nil
	}
	err := b.release(b.mapped)
	b.data, b.mapped = nil, nil
	if err != nil {
		return NewErrorWithCause(StatusAllocationFailure, "releasing buffer", err)
	}
	return nil
}

// HeapAllocator hands out ordinary Go memory. It is used by tests and by
// transports that copy data themselves.
type HeapAllocator struct {
	// Limit rejects requests above this many bytes when non-zero
	Limit int
}

// Allocate returns a zeroed buffer of size bytes
func (a HeapAllocator) Allocate(size int) (*Buffer, error) {
	if size < 0 || (a.Limit > 0 && size > a.Limit) {
		return nil, NewErrorf(StatusAllocationFailure, "allocating %d bytes", size)
	}
	if size == 0 {
		return &Buffer{}, nil
	}
	return &Buffer{data: make([]byte, size)}, nil
}

// alignUp rounds size up to a multiple of align
func alignUp(size, align int) int {
	return ((size + align - 1) / align) * align
}

func allocationError(size int, err error) *Error {
	return NewErrorWithCause(StatusAllocationFailure, fmt.Sprintf("allocating %d bytes", size), err)
}
