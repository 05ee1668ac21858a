package ctrlstate

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

// Write renders a Migration Receive buffer. Binary output passes the bytes
// through untouched; structured output decodes first and is refused for a
// non-zero offset since a partial transfer has no header to anchor it.
// The decoded state is returned for structured formats.
func Write(w io.Writer, buf []byte, offset uint64, format command.OutputFormat, verbose bool) (*ControllerState, error) {
	if format == command.FormatBinary {
		return nil, WriteRaw(w, buf)
	}
	if offset != 0 {
		return nil, driver.NewErrorf(driver.StatusInvalidArgument,
			"cannot parse controller state at non-zero offset 0x%x", offset)
	}

	s := Decode(buf)
	var err error
	switch format {
	case command.FormatJSON:
		err = WriteJSON(w, s, verbose)
	case command.FormatNormal:
		err = WriteText(w, s, verbose)
	default:
		err = driver.NewErrorf(driver.StatusInvalidArgument, "output format %d", format)
	}
	return s, err
}

// WriteRaw copies buf to w
func WriteRaw(w io.Writer, buf []byte) error {
	if _, err := w.Write(buf); err != nil {
		return driver.NewErrorWithCause(driver.StatusIOFailure, "write controller state", err)
	}
	return nil
}

type stateJSON struct {
	Version    uint16         `json:"version"`
	Attributes uint8          `json:"controller state attributes"`
	Suspended  *bool          `json:"controller suspended,omitempty"`
	NVMeSize   layout.Uint128 `json:"nvme controller state size"`
	VendorSize layout.Uint128 `json:"vendor specific size"`
	NVMe       *nvmeJSON      `json:"nvme controller state,omitempty"`
	Truncated  bool           `json:"truncated,omitempty"`
}

type nvmeJSON struct {
	Version uint16   `json:"version"`
	NIOSQ   uint16   `json:"number of io submission queues"`
	NIOCQ   uint16   `json:"number of io completion queues"`
	SQs     []sqJSON `json:"io submission queue list"`
	CQs     []cqJSON `json:"io completion queue list"`
}

type sqJSON struct {
	PRP1                 uint64 `json:"io submission prp entry 1"`
	QueueSize            uint16 `json:"io submission queue size"`
	QueueID              uint16 `json:"io submission queue identifier"`
	CompletionQueueID    uint16 `json:"io completion queue identifier"`
	Attributes           uint16 `json:"io submission queue attributes"`
	Priority             *uint8 `json:"io submission queue priority,omitempty"`
	PhysicallyContiguous *bool  `json:"io submission queue physically contiguous,omitempty"`
	HeadPointer          uint16 `json:"io submission queue head pointer"`
	TailPointer          uint16 `json:"io submission queue tail pointer"`
}

type cqJSON struct {
	PRP1                 uint64  `json:"io completion prp entry 1"`
	QueueSize            uint16  `json:"io completion queue size"`
	QueueID              uint16  `json:"io completion queue identifier"`
	HeadPointer          uint16  `json:"io completion queue head pointer"`
	TailPointer          uint16  `json:"io completion queue tail pointer"`
	Attributes           uint32  `json:"io completion queue attributes"`
	InterruptVector      *uint16 `json:"io completion queue interrupt vector,omitempty"`
	PhaseTag             *uint8  `json:"io completion queue phase tag,omitempty"`
	InterruptsEnabled    *bool   `json:"io completion queue interrupts enabled,omitempty"`
	PhysicallyContiguous *bool   `json:"io completion queue physically contiguous,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func (s *ControllerState) toJSON(verbose bool) any {
	if s.Header == nil {
		return struct {
			Truncated bool `json:"truncated"`
		}{true}
	}

	out := &stateJSON{
		Version:    s.Header.Version(),
		Attributes: s.Header.Attributes(),
		NVMeSize:   s.Header.NVMeControllerStateSize(),
		VendorSize: s.Header.VendorSpecificSize(),
		Truncated:  s.Truncated(),
	}
	if verbose {
		out.Suspended = ptr(s.Header.Suspended())
	}
	if s.NVMe == nil {
		return out
	}

	n := s.NVMe
	nj := &nvmeJSON{
		Version: n.Header.Version(),
		NIOSQ:   n.Header.NIOSQ(),
		NIOCQ:   n.Header.NIOCQ(),
		SQs:     make([]sqJSON, 0, len(n.SubmissionQueues)),
		CQs:     make([]cqJSON, 0, len(n.CompletionQueues)),
	}
	for i := range n.SubmissionQueues {
		f := n.SubmissionQueues[i].Fields()
		sq := sqJSON{
			PRP1:              f.PRP1,
			QueueSize:         f.QueueSize,
			QueueID:           f.QueueID,
			CompletionQueueID: f.CompletionQueueID,
			Attributes:        f.Attributes,
			HeadPointer:       f.HeadPointer,
			TailPointer:       f.TailPointer,
		}
		if verbose {
			a := DecodeSQAttributes(f.Attributes)
			sq.Priority = ptr(a.Priority)
			sq.PhysicallyContiguous = ptr(a.PhysicallyContiguous)
		}
		nj.SQs = append(nj.SQs, sq)
	}
	for i := range n.CompletionQueues {
		f := n.CompletionQueues[i].Fields()
		cq := cqJSON{
			PRP1:        f.PRP1,
			QueueSize:   f.QueueSize,
			QueueID:     f.QueueID,
			HeadPointer: f.HeadPointer,
			TailPointer: f.TailPointer,
			Attributes:  f.Attributes,
		}
		if verbose {
			a := DecodeCQAttributes(f.Attributes)
			cq.InterruptVector = ptr(a.InterruptVector)
			cq.PhaseTag = ptr(a.PhaseTag)
			cq.InterruptsEnabled = ptr(a.InterruptsEnabled)
			cq.PhysicallyContiguous = ptr(a.PhysicallyContiguous)
		}
		nj.CQs = append(nj.CQs, cq)
	}
	out.NVMe = nj
	return out
}

// WriteJSON renders the decoded tree as indented JSON
func WriteJSON(w io.Writer, s *ControllerState, verbose bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.toJSON(verbose)); err != nil {
		return driver.NewErrorWithCause(driver.StatusIOFailure, "write controller state json", err)
	}
	return nil
}

// report accumulates the first write error so rendering code can stay linear
type report struct {
	w   io.Writer
	err error
}

func (r *report) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *report) field(name string, format string, args ...any) {
	r.printf("%-45s: "+format+"\n", append([]any{name}, args...)...)
}

// WriteText renders the column report. Verbose adds one line per
// decoded attribute bit.
func WriteText(w io.Writer, s *ControllerState, verbose bool) error {
	r := &report{w: w}

	if s.Header != nil {
		h := s.Header
		r.printf("Header:\n")
		r.field("Version (VER)", "0x%x", h.Version())
		r.field("Controller State Attributes (CSATTR)", "0x%x", h.Attributes())
		if verbose {
			r.printf("  [0:0] : 0x%x Controller %sSuspended\n", bit(h.Suspended()), notUnless(h.Suspended()))
		}
		r.field("NVMe Controller State Size (NVMECSS)", "%s", h.NVMeControllerStateSize())
		r.field("Vendor Specific Size (VSS)", "%s", h.VendorSpecificSize())
	}

	if n := s.NVMe; n != nil {
		r.printf("\nNVMe Controller State Data Structure:\n")
		r.field("Version (VER)", "0x%x", n.Header.Version())
		r.field("Number of I/O Submission Queues (NIOSQ)", "%d", n.Header.NIOSQ())
		r.field("Number of I/O Completion Queues (NIOCQ)", "%d", n.Header.NIOCQ())

		for i := range n.SubmissionQueues {
			writeSubmissionQueue(r, i, n.SubmissionQueues[i].Fields(), verbose)
		}
		for i := range n.CompletionQueues {
			writeCompletionQueue(r, i, n.CompletionQueues[i].Fields(), verbose)
		}
	}

	if r.err != nil {
		return driver.NewErrorWithCause(driver.StatusIOFailure, "write controller state", r.err)
	}
	return nil
}

func writeSubmissionQueue(r *report, i int, f layout.SubmissionQueueFields, verbose bool) {
	r.printf("\nNVMe I/O Submission Queue Data [%d]:\n", i)
	r.field("PRP Entry 1 (IOSQPRP1)", "0x%x", f.PRP1)
	r.field("Queue Size (IOSQQSIZE)", "0x%x", f.QueueSize)
	r.field("Identifier (IOSQQID)", "0x%x", f.QueueID)
	r.field("Completion Queue Identifier (IOSQCQID)", "0x%x", f.CompletionQueueID)
	r.field("Attributes (IOSQA)", "0x%x", f.Attributes)
	if verbose {
		a := DecodeSQAttributes(f.Attributes)
		r.printf("  [2:1] : 0x%x Queue Priority (IOSQQPRIO)\n", a.Priority)
		r.printf("  [0:0] : 0x%x Queue %sPhysically Contiguous (IOSQPC)\n",
			bit(a.PhysicallyContiguous), notUnless(a.PhysicallyContiguous))
	}
	r.field("I/O Submission Queue Head Pointer (IOSQHP)", "0x%x", f.HeadPointer)
	r.field("I/O Submission Queue Tail Pointer (IOSQTP)", "0x%x", f.TailPointer)
}

func writeCompletionQueue(r *report, i int, f layout.CompletionQueueFields, verbose bool) {
	r.printf("\nNVMe I/O Completion Queue Data [%d]:\n", i)
	r.field("I/O Completion PRP Entry 1 (IOCQPRP1)", "0x%x", f.PRP1)
	r.field("I/O Completion Queue Size (IOCQQSIZE)", "0x%x", f.QueueSize)
	r.field("I/O Completion Queue Identifier (IOCQQID)", "0x%x", f.QueueID)
	r.field("I/O Completion Queue Head Pointer (IOCQHP)", "0x%x", f.HeadPointer)
	r.field("I/O Completion Queue Tail Pointer (IOCQTP)", "0x%x", f.TailPointer)
	r.field("I/O Completion Queue Attributes (IOCQA)", "0x%x", f.Attributes)
	if verbose {
		a := DecodeCQAttributes(f.Attributes)
		r.printf("  [31:16] : 0x%x I/O Completion Queue Interrupt Vector (IOCQIV)\n", a.InterruptVector)
		r.printf("  [2:2] : 0x%x Slot 0 Phase Tag\n", a.PhaseTag)
		r.printf("  [1:1] : 0x%x Interrupts %sEnabled (IOCQIEN)\n",
			bit(a.InterruptsEnabled), notUnless(a.InterruptsEnabled))
		r.printf("  [0:0] : 0x%x Queue %sPhysically Contiguous (IOCQPC)\n",
			bit(a.PhysicallyContiguous), notUnless(a.PhysicallyContiguous))
	}
}
