package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

// SkipIfNoDevice skips test if no NVMe controller character device is present
func SkipIfNoDevice(t *testing.T) string {
	t.Helper()

	devices := []string{"/dev/nvme0", "/dev/nvme1", "/dev/nvme2"}
	for _, path := range devices {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Skip("No NVMe device available")
	return ""
}

// TempFile creates a temporary file with given content
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, content, 0644)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

// MakePatternBytes creates deterministic test data
func MakePatternBytes(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte((i*17 + 11) % 256)
	}
	return data
}

// AssertNoError fails if error is not nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", msg, err)
	}
}

// AssertBytesEqual compares byte slices
func AssertBytesEqual(t *testing.T, got, want []byte, msg string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: length mismatch: got %d, want %d", msg, len(got), len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s: mismatch at index %d: got %d, want %d", msg, i, got[i], want[i])
			return
		}
	}
}

// StateBuilder assembles a controller state buffer. The NIOSQ and NIOCQ
// written to the NVMe header default to the number of records added and
// can be overridden to model a device that over-reports.
type StateBuilder struct {
	Version    uint16
	Attributes uint8
	NVMeSize   layout.Uint128
	VendorSize layout.Uint128

	NVMeVersion uint16
	NIOSQ       *uint16
	NIOCQ       *uint16

	SubmissionQueues []layout.SubmissionQueueFields
	CompletionQueues []layout.CompletionQueueFields

	// HeaderOnly stops after the outer header
	HeaderOnly bool
}

// Bytes encodes the state
func (b *StateBuilder) Bytes() []byte {
	hdr := layout.NewControllerStateHeader(b.Version, b.Attributes, b.NVMeSize, b.VendorSize)
	out := append([]byte(nil), hdr[:]...)
	if b.HeaderOnly {
		return out
	}

	niosq := uint16(len(b.SubmissionQueues))
	if b.NIOSQ != nil {
		niosq = *b.NIOSQ
	}
	niocq := uint16(len(b.CompletionQueues))
	if b.NIOCQ != nil {
		niocq = *b.NIOCQ
	}
	nvme := layout.NewNVMeControllerStateHeader(b.NVMeVersion, niosq, niocq)
	out = append(out, nvme[:]...)

	for _, f := range b.SubmissionQueues {
		sq := layout.NewSubmissionQueueData(f)
		out = append(out, sq[:]...)
	}
	for _, f := range b.CompletionQueues {
		cq := layout.NewCompletionQueueData(f)
		out = append(out, cq[:]...)
	}
	return out
}

// Uint16 returns a pointer to v
func Uint16(v uint16) *uint16 {
	return &v
}
