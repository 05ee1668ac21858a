package driver

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DeviceFile represents an open NVMe controller character device
type DeviceFile struct {
	mu   sync.Mutex
	fd   int
	path string
}

// OpenDevice opens an NVMe controller by path (e.g. /dev/nvme0)
func OpenDevice(path string) (*DeviceFile, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		errno, ok := err.(unix.Errno)
		if ok {
			return nil, StatusFromErrno(errno, "opening device "+path)
		}
		return nil, NewErrorWithCause(StatusTransportFailure, "opening device "+path, err)
	}
	return &DeviceFile{fd: fd, path: path}, nil
}

// Close closes the device file
func (d *DeviceFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd >= 0 {
		err := unix.Close(d.fd)
		d.fd = -1
		if err != nil {
			return NewErrorWithCause(StatusTransportFailure, "closing device", err)
		}
	}
	return nil
}

// Fd returns the file descriptor
func (d *DeviceFile) Fd() int {
	return d.fd
}

// Path returns the device path
func (d *DeviceFile) Path() string {
	return d.path
}

// ioctl performs an ioctl syscall and returns the raw return value
func (d *DeviceFile) ioctl(cmd uint32, arg unsafe.Pointer) (int32, unix.Errno) {
	r1, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), uintptr(cmd), uintptr(arg))
	return int32(r1), errno
}

// IOCTL command codes (calculated from type and size)
var (
	ioctlNVMeID       = Io(int(NVMeIoctlMagic), IoctlNVMeID)
	ioctlNVMeAdminCmd = IoWR(int(NVMeIoctlMagic), IoctlNVMeAdminCmd, SizeOfPassthruCmd)
)

// GetIoctlNVMeAdminCmd returns the admin passthru ioctl number
func GetIoctlNVMeAdminCmd() uint32 {
	return ioctlNVMeAdminCmd
}

// GetIoctlNVMeID returns the namespace id ioctl number
func GetIoctlNVMeID() uint32 {
	return ioctlNVMeID
}

// Submit issues cmd on the admin queue and waits for its completion.
// A local failure is a StatusTransportFailure, a non-zero controller status
// is a StatusDeviceStatus carrying the status word; on success the
// completion's dword 0 is returned. Commands are serialized per device.
func (d *DeviceFile) Submit(ctx context.Context, cmd *AdminCommand) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, NewErrorWithCause(StatusTransportFailure, "submit", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return 0, NewError(StatusTransportFailure, "submit: device closed")
	}

	p := newPassthruCmd(cmd)
	ret, errno := d.ioctl(ioctlNVMeAdminCmd, unsafe.Pointer(&p))
	runtime.KeepAlive(cmd.Data)

	if err := classifySubmit(ret, errno, cmd.Opcode); err != nil {
		return 0, err
	}
	return p.Result, nil
}

// classifySubmit maps the ioctl outcome onto the error taxonomy:
// negative is local, zero is success, positive is the controller status.
func classifySubmit(ret int32, errno unix.Errno, opcode uint8) error {
	where := fmt.Sprintf("admin opcode 0x%02x", opcode)
	switch {
	case errno != 0:
		return NewErrorWithCause(StatusTransportFailure, where, errno)
	case ret < 0:
		return NewErrorWithCause(StatusTransportFailure, where, unix.Errno(-ret))
	case ret > 0:
		return NewDeviceStatusError(uint16(ret), where)
	}
	return nil
}

// ScanDevices scans for NVMe controller character devices
func ScanDevices() ([]string, error) {
	var devices []string
	for i := 0; i < MaxScanDevices; i++ {
		path := fmt.Sprintf("/dev/nvme%d", i)
		if _, err := os.Stat(path); err == nil {
			devices = append(devices, path)
		}
	}
	return devices, nil
}
