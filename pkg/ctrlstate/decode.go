// Package ctrlstate decodes the controller state returned by Migration
// Receive. Decoding never fails: a short buffer yields a partial result
// with truncation flags and warnings instead of an error.
package ctrlstate

import (
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

// Warnings emitted while decoding
const (
	WarnHeaderTruncated           = "header truncated"
	WarnNVMeStateTruncated        = "NVMe controller state data structure truncated"
	WarnSubmissionQueuesTruncated = "I/O submission queues truncated"
	WarnCompletionQueuesTruncated = "I/O completion queues truncated"
)

// ControllerState is a fully or partially decoded controller state buffer
type ControllerState struct {
	// Header is nil when the buffer is shorter than the outer header
	Header          *layout.ControllerStateHeader
	HeaderTruncated bool

	// NVMe is nil when no bytes follow the header or when fewer than a
	// full NVMe controller state header remain
	NVMe          *NVMeState
	NVMeTruncated bool

	Warnings []string
}

// NVMeState is the NVMe controller state data structure. The header keeps
// the queue counts the device reported; the queue slices hold only the
// records actually present in the buffer.
type NVMeState struct {
	Header           layout.NVMeControllerStateHeader
	SubmissionQueues []layout.SubmissionQueueData
	CompletionQueues []layout.CompletionQueueData

	SubmissionQueuesTruncated bool
	CompletionQueuesTruncated bool
}

// Truncated reports whether any stage of the decode ran out of data
func (s *ControllerState) Truncated() bool {
	if s.HeaderTruncated || s.NVMeTruncated {
		return true
	}
	return s.NVMe != nil && (s.NVMe.SubmissionQueuesTruncated || s.NVMe.CompletionQueuesTruncated)
}

// cursor tracks the unread part of a buffer
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

// take consumes n bytes, or nothing when fewer remain
func (c *cursor) take(n int) ([]byte, bool) {
	if n > c.remaining() {
		return nil, false
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, true
}

// ClampCount limits a device-reported record count to what fits in the
// remaining bytes. The second result is true when the count was reduced.
func ClampCount(reported, remaining, recordSize int) (int, bool) {
	if recordSize <= 0 || remaining < 0 {
		return 0, reported > 0
	}
	if fits := remaining / recordSize; reported > fits {
		return fits, true
	}
	return reported, false
}

// Decode walks buf as outer header, NVMe header, submission queue records
// and completion queue records. Completion queue records are located after
// the submission queue records actually present, so a device that
// over-reports NIOSQ cannot push the completion queue reads past the buffer.
func Decode(buf []byte) *ControllerState {
	s := &ControllerState{}
	c := &cursor{buf: buf}

	b, ok := c.take(layout.SizeOfControllerStateHeader)
	if !ok {
		s.HeaderTruncated = true
		s.warn(WarnHeaderTruncated)
		return s
	}
	var hdr layout.ControllerStateHeader
	copy(hdr[:], b)
	s.Header = &hdr

	b, ok = c.take(layout.SizeOfNVMeControllerStateHeader)
	if !ok {
		s.NVMeTruncated = true
		s.warn(WarnNVMeStateTruncated)
		return s
	}
	nvme := &NVMeState{}
	copy(nvme.Header[:], b)
	s.NVMe = nvme

	niosq, clamped := ClampCount(int(nvme.Header.NIOSQ()), c.remaining(), layout.SizeOfSubmissionQueueData)
	if clamped {
		nvme.SubmissionQueuesTruncated = true
		s.warn(WarnSubmissionQueuesTruncated)
	}
	nvme.SubmissionQueues = make([]layout.SubmissionQueueData, niosq)
	for i := range nvme.SubmissionQueues {
		b, _ = c.take(layout.SizeOfSubmissionQueueData)
		copy(nvme.SubmissionQueues[i][:], b)
	}

	niocq, clamped := ClampCount(int(nvme.Header.NIOCQ()), c.remaining(), layout.SizeOfCompletionQueueData)
	if clamped {
		nvme.CompletionQueuesTruncated = true
		s.warn(WarnCompletionQueuesTruncated)
	}
	nvme.CompletionQueues = make([]layout.CompletionQueueData, niocq)
	for i := range nvme.CompletionQueues {
		b, _ = c.take(layout.SizeOfCompletionQueueData)
		copy(nvme.CompletionQueues[i][:], b)
	}

	return s
}

func (s *ControllerState) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}
