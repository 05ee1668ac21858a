package driver

// IOCTL magic for the Linux NVMe character and block devices (linux/nvme_ioctl.h)
const NVMeIoctlMagic = 'N' // 0x4e

// IOCTL command numbers - NVMe
const (
	IoctlNVMeID       = 0x40
	IoctlNVMeAdminCmd = 0x41
)

// Transfer constants
const (
	DwordSize        = 4
	DefaultTimeoutMs = 0 // 0 lets the kernel apply admin_timeout
	MaxScanDevices   = 16
	HugePageSize     = 2 << 20
	PageSize         = 4096
)

// IOCTL direction flags for _IOC macro
const (
	IocNone  = 0
	IocWrite = 1
	IocRead  = 2
)

// IOCTL size/direction encoding constants
const (
	IocNrBits   = 8
	IocTypeBits = 8
	IocSizeBits = 14
	IocDirBits  = 2

	IocNrShift   = 0
	IocTypeShift = IocNrShift + IocNrBits
	IocSizeShift = IocTypeShift + IocTypeBits
	IocDirShift  = IocSizeShift + IocSizeBits
)

// Ioc creates an IOCTL command number
func Ioc(dir, iocType, nr, size int) uint32 {
	return uint32((dir << IocDirShift) |
		(iocType << IocTypeShift) |
		(nr << IocNrShift) |
		(size << IocSizeShift))
}

// IoWR creates a read-write IOCTL
func IoWR(iocType, nr, size int) uint32 {
	return Ioc(IocRead|IocWrite, iocType, nr, size)
}

// Io creates an IOCTL with no data transfer
func Io(iocType, nr int) uint32 {
	return Ioc(IocNone, iocType, nr, 0)
}
