//go:build unit

package driver

import (
	"context"
	"errors"
	"testing"
	"unsafe"
)

func TestIoctlNVMeAdminCmdCode(t *testing.T) {
	cmd := ioctlNVMeAdminCmd

	// Direction: read|write, Type: 'N' (0x4e), Nr: 0x41, Size: 72
	if cmd != 0xC0484E41 {
		t.Errorf("NVME_IOCTL_ADMIN_CMD = 0x%08x, expected 0xC0484E41", cmd)
	}

	dir := (cmd >> IocDirShift) & 0x3
	if dir != (IocRead | IocWrite) {
		t.Errorf("direction = %d, expected %d (read|write)", dir, IocRead|IocWrite)
	}

	typ := (cmd >> IocTypeShift) & 0xff
	if typ != uint32(NVMeIoctlMagic) {
		t.Errorf("type = 0x%02x, expected 0x%02x", typ, NVMeIoctlMagic)
	}

	size := (cmd >> IocSizeShift) & 0x3fff
	if size != uint32(SizeOfPassthruCmd) {
		t.Errorf("size = %d, expected %d", size, SizeOfPassthruCmd)
	}
}

func TestIoctlNVMeIDCode(t *testing.T) {
	if ioctlNVMeID != 0x4E40 {
		t.Errorf("NVME_IOCTL_ID = 0x%08x, expected 0x4E40", ioctlNVMeID)
	}
}

func TestPassthruCmdLayout(t *testing.T) {
	var p PassthruCmd
	tests := []struct {
		name     string
		got      uintptr
		expected uintptr
	}{
		{"opcode", unsafe.Offsetof(p.Opcode), 0},
		{"nsid", unsafe.Offsetof(p.Nsid), 4},
		{"metadata", unsafe.Offsetof(p.Metadata), 16},
		{"addr", unsafe.Offsetof(p.Addr), 24},
		{"data_len", unsafe.Offsetof(p.DataLen), 36},
		{"cdw10", unsafe.Offsetof(p.Cdw10), 40},
		{"cdw15", unsafe.Offsetof(p.Cdw15), 60},
		{"timeout_ms", unsafe.Offsetof(p.TimeoutMs), 64},
		{"result", unsafe.Offsetof(p.Result), 68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("offset = %d, expected %d", tt.got, tt.expected)
			}
		})
	}

	if SizeOfPassthruCmd != 72 {
		t.Errorf("SizeOfPassthruCmd = %d, expected 72", SizeOfPassthruCmd)
	}
}

func TestNewPassthruCmd(t *testing.T) {
	data := make([]byte, 64)
	cmd := &AdminCommand{
		Opcode:    0x42,
		Cdw10:     0x00020000,
		Cdw11:     0x00010005,
		Cdw12:     0xdeadbeef,
		Cdw13:     0x1,
		Cdw15:     15,
		Data:      data,
		TimeoutMs: 3000,
	}

	p := newPassthruCmd(cmd)
	if p.Opcode != 0x42 || p.Cdw10 != 0x00020000 || p.Cdw11 != 0x00010005 {
		t.Errorf("command words not copied: %+v", p)
	}
	if p.Cdw12 != 0xdeadbeef || p.Cdw13 != 0x1 || p.Cdw15 != 15 {
		t.Errorf("offset/numd words not copied: %+v", p)
	}
	if p.DataLen != 64 {
		t.Errorf("DataLen = %d, expected 64", p.DataLen)
	}
	if p.Addr != uint64(uintptr(unsafe.Pointer(&data[0]))) {
		t.Error("Addr does not point at the data buffer")
	}
	if p.TimeoutMs != 3000 {
		t.Errorf("TimeoutMs = %d, expected 3000", p.TimeoutMs)
	}
}

func TestNewPassthruCmdWithoutData(t *testing.T) {
	p := newPassthruCmd(&AdminCommand{Opcode: 0x45, Cdw10: 1, Cdw11: 3})
	if p.Addr != 0 || p.DataLen != 0 {
		t.Errorf("expected no buffer, got addr=0x%x len=%d", p.Addr, p.DataLen)
	}
}

func TestSubmitOnClosedDevice(t *testing.T) {
	dev := &DeviceFile{fd: -1, path: "/dev/nvme-test"}

	_, err := dev.Submit(context.Background(), &AdminCommand{Opcode: 0x45})
	if !errors.Is(err, ErrTransportFailure) {
		t.Errorf("expected transport failure, got %v", err)
	}
}

func TestSubmitWithCanceledContext(t *testing.T) {
	dev := &DeviceFile{fd: -1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := dev.Submit(ctx, &AdminCommand{Opcode: 0x45})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestAdminCommandString(t *testing.T) {
	cmd := &AdminCommand{Opcode: 0x45, Cdw10: 1, Cdw11: 7}
	want := "opcode=0x45 nsid=0x0 cdw10=0x00000001 cdw11=0x00000007 cdw12=0x00000000 cdw13=0x00000000 cdw14=0x00000000 cdw15=0x00000000 data_len=0"
	if got := cmd.String(); got != want {
		t.Errorf("String() = %q\nexpected %q", got, want)
	}
}
