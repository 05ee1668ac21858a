//go:build unit

package ctrlstate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
	"github.com/emergingrobotics/go-nvme-lm/testutil"
)

var (
	testSQ = layout.SubmissionQueueFields{
		PRP1:              0x1000_0000,
		QueueSize:         0x3f,
		QueueID:           1,
		CompletionQueueID: 1,
		Attributes:        0x5,
		HeadPointer:       2,
		TailPointer:       9,
	}
	testCQ = layout.CompletionQueueFields{
		PRP1:        0x2000_0000,
		QueueSize:   0x3f,
		QueueID:     1,
		HeadPointer: 3,
		TailPointer: 4,
		Attributes:  0x0003_0007,
	}
)

func TestClampCount(t *testing.T) {
	tests := []struct {
		name      string
		reported  int
		remaining int
		want      int
		clamped   bool
	}{
		{"fits exactly", 2, 48, 2, false},
		{"room to spare", 1, 100, 1, false},
		{"one short", 2, 47, 1, true},
		{"nothing left", 3, 0, 0, true},
		{"zero reported", 0, 0, 0, false},
		{"negative remaining", 1, -4, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := ClampCount(tt.reported, tt.remaining, 24)
			if got != tt.want || clamped != tt.clamped {
				t.Errorf("ClampCount(%d, %d, 24) = (%d, %v), expected (%d, %v)",
					tt.reported, tt.remaining, got, clamped, tt.want, tt.clamped)
			}
		})
	}
}

func TestDecodeComplete(t *testing.T) {
	b := &testutil.StateBuilder{
		Version:          1,
		Attributes:       layout.ControllerSuspended,
		NVMeSize:         layout.Uint128{Lo: 56 + 48},
		NVMeVersion:      2,
		SubmissionQueues: []layout.SubmissionQueueFields{testSQ},
		CompletionQueues: []layout.CompletionQueueFields{testCQ},
	}
	got := Decode(b.Bytes())

	hdr := layout.NewControllerStateHeader(1, layout.ControllerSuspended, layout.Uint128{Lo: 104}, layout.Uint128{})
	want := &ControllerState{
		Header: &hdr,
		NVMe: &NVMeState{
			Header:           layout.NewNVMeControllerStateHeader(2, 1, 1),
			SubmissionQueues: []layout.SubmissionQueueData{layout.NewSubmissionQueueData(testSQ)},
			CompletionQueues: []layout.CompletionQueueData{layout.NewCompletionQueueData(testCQ)},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
	if got.Truncated() {
		t.Error("complete buffer reported as truncated")
	}
}

// 48+8+24 bytes declaring two submission queues holds exactly one
func TestDecodeClampsSubmissionQueues(t *testing.T) {
	b := &testutil.StateBuilder{
		NIOSQ:            testutil.Uint16(2),
		NIOCQ:            testutil.Uint16(0),
		SubmissionQueues: []layout.SubmissionQueueFields{testSQ},
	}
	buf := b.Bytes()
	if len(buf) != 48+8+24 {
		t.Fatalf("builder produced %d bytes", len(buf))
	}

	s := Decode(buf)
	if s.NVMe == nil {
		t.Fatal("expected NVMe controller state")
	}
	if len(s.NVMe.SubmissionQueues) != 1 {
		t.Errorf("got %d submission queues, expected 1", len(s.NVMe.SubmissionQueues))
	}
	if !s.NVMe.SubmissionQueuesTruncated || !s.Truncated() {
		t.Error("expected submission queue truncation")
	}
	if s.NVMe.Header.NIOSQ() != 2 {
		t.Errorf("reported NIOSQ = %d, expected 2", s.NVMe.Header.NIOSQ())
	}
	if diff := cmp.Diff([]string{WarnSubmissionQueuesTruncated}, s.Warnings); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
}

// Completion queues are read after the clamped submission queue count
func TestDecodeCompletionQueuesFollowClampedSubmissionQueues(t *testing.T) {
	b := &testutil.StateBuilder{
		NIOSQ:            testutil.Uint16(5),
		NIOCQ:            testutil.Uint16(1),
		SubmissionQueues: []layout.SubmissionQueueFields{testSQ, testSQ},
	}
	s := Decode(b.Bytes())

	if len(s.NVMe.SubmissionQueues) != 2 || len(s.NVMe.CompletionQueues) != 0 {
		t.Errorf("got %d/%d queues, expected 2/0", len(s.NVMe.SubmissionQueues), len(s.NVMe.CompletionQueues))
	}
	want := []string{WarnSubmissionQueuesTruncated, WarnCompletionQueuesTruncated}
	if diff := cmp.Diff(want, s.Warnings); diff != "" {
		t.Errorf("warnings (-want +got):\n%s", diff)
	}
}

func TestDecodeClampsCompletionQueues(t *testing.T) {
	b := &testutil.StateBuilder{
		NIOCQ:            testutil.Uint16(3),
		SubmissionQueues: []layout.SubmissionQueueFields{testSQ},
		CompletionQueues: []layout.CompletionQueueFields{testCQ},
	}
	s := Decode(append(b.Bytes(), make([]byte, 10)...))

	if len(s.NVMe.CompletionQueues) != 1 {
		t.Errorf("got %d completion queues, expected 1", len(s.NVMe.CompletionQueues))
	}
	if s.NVMe.SubmissionQueuesTruncated || !s.NVMe.CompletionQueuesTruncated {
		t.Errorf("truncation flags = %v/%v", s.NVMe.SubmissionQueuesTruncated, s.NVMe.CompletionQueuesTruncated)
	}
}

func TestDecodeShortBuffers(t *testing.T) {
	full := (&testutil.StateBuilder{SubmissionQueues: []layout.SubmissionQueueFields{testSQ}}).Bytes()

	tests := []struct {
		name     string
		buf      []byte
		header   bool
		nvme     bool
		warnings []string
	}{
		{"empty", nil, false, false, []string{WarnHeaderTruncated}},
		{"partial header", full[:47], false, false, []string{WarnHeaderTruncated}},
		{"header only", full[:48], true, false, []string{WarnNVMeStateTruncated}},
		{"partial nvme header", full[:52], true, false, []string{WarnNVMeStateTruncated}},
		{"nvme header without queues", full[:56], true, true, []string{WarnSubmissionQueuesTruncated}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Decode(tt.buf)
			if (s.Header != nil) != tt.header {
				t.Errorf("header present = %v, expected %v", s.Header != nil, tt.header)
			}
			if (s.NVMe != nil) != tt.nvme {
				t.Errorf("nvme present = %v, expected %v", s.NVMe != nil, tt.nvme)
			}
			if diff := cmp.Diff(tt.warnings, s.Warnings, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("warnings (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeAttributes(t *testing.T) {
	sq := DecodeSQAttributes(0x5)
	if sq.Priority != 2 || !sq.PhysicallyContiguous {
		t.Errorf("DecodeSQAttributes(0x5) = %+v", sq)
	}

	cq := DecodeCQAttributes(0x0003_0006)
	want := CQAttributes{InterruptVector: 3, PhaseTag: 1, InterruptsEnabled: true}
	if cq != want {
		t.Errorf("DecodeCQAttributes = %+v, expected %+v", cq, want)
	}
}
