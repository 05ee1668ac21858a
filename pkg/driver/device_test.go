//go:build integration

package driver

import (
	"errors"
	"os"
	"testing"
)

func skipIfNoDevice(t *testing.T) string {
	t.Helper()
	devices := []string{"/dev/nvme0", "/dev/nvme1"}
	for _, path := range devices {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	t.Skip("No NVMe controller available")
	return ""
}

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := OpenDevice("/dev/nvme_nonexistent_device_12345")
	if err == nil {
		t.Fatal("expected error when opening non-existent device")
	}

	if !errors.Is(err, ErrTransportFailure) {
		t.Errorf("expected transport failure, got %v", err)
	}
}

func TestOpenAndCloseDevice(t *testing.T) {
	path := skipIfNoDevice(t)

	dev, err := OpenDevice(path)
	if err != nil {
		t.Fatalf("failed to open device: %v", err)
	}

	if dev.Fd() < 0 {
		t.Error("expected valid file descriptor")
	}
	if dev.Path() != path {
		t.Errorf("expected path %s, got %s", path, dev.Path())
	}

	if err := dev.Close(); err != nil {
		t.Errorf("failed to close device: %v", err)
	}
	if dev.Fd() != -1 {
		t.Error("expected fd to be -1 after close")
	}
}

func TestScanDevices(t *testing.T) {
	path := skipIfNoDevice(t)

	devices, err := ScanDevices()
	if err != nil {
		t.Fatalf("ScanDevices failed: %v", err)
	}
	for _, d := range devices {
		if d == path {
			return
		}
	}
	t.Errorf("ScanDevices() = %v, expected it to contain %s", devices, path)
}
