package driver

import (
	"fmt"
	"unsafe"
)

// AdminCommand is a fully encoded NVMe admin command ready for submission.
// Data is the transfer buffer; its length is the command's data length and
// the transport derives the buffer address from it.
type AdminCommand struct {
	Opcode    uint8
	Flags     uint8
	Nsid      uint32
	Cdw10     uint32
	Cdw11     uint32
	Cdw12     uint32
	Cdw13     uint32
	Cdw14     uint32
	Cdw15     uint32
	Data      []byte
	TimeoutMs uint32
}

// DataLen returns the transfer length in bytes
func (c *AdminCommand) DataLen() uint32 {
	return uint32(len(c.Data))
}

// String renders the command words for logs and debug output
func (c *AdminCommand) String() string {
	return fmt.Sprintf("opcode=0x%02x nsid=0x%x cdw10=0x%08x cdw11=0x%08x cdw12=0x%08x cdw13=0x%08x cdw14=0x%08x cdw15=0x%08x data_len=%d",
		c.Opcode, c.Nsid, c.Cdw10, c.Cdw11, c.Cdw12, c.Cdw13, c.Cdw14, c.Cdw15, len(c.Data))
}

// PassthruCmd matches struct nvme_passthru_cmd (linux/nvme_ioctl.h)
type PassthruCmd struct {
	Opcode      uint8
	Flags       uint8
	Rsvd1       uint16
	Nsid        uint32
	Cdw2        uint32
	Cdw3        uint32
	Metadata    uint64
	Addr        uint64
	MetadataLen uint32
	DataLen     uint32
	Cdw10       uint32
	Cdw11       uint32
	Cdw12       uint32
	Cdw13       uint32
	Cdw14       uint32
	Cdw15       uint32
	TimeoutMs   uint32
	Result      uint32 // output
}

// Size constants for struct validation
const (
	SizeOfPassthruCmd = int(unsafe.Sizeof(PassthruCmd{}))
)

// nvme_passthru_cmd is 72 bytes on every Linux ABI
var (
	_ [SizeOfPassthruCmd - 72]struct{}
	_ [72 - SizeOfPassthruCmd]struct{}
)

// newPassthruCmd builds the ioctl argument for cmd. The caller must keep
// cmd.Data alive until the ioctl returns.
func newPassthruCmd(cmd *AdminCommand) PassthruCmd {
	p := PassthruCmd{
		Opcode:    cmd.Opcode,
		Flags:     cmd.Flags,
		Nsid:      cmd.Nsid,
		DataLen:   cmd.DataLen(),
		Cdw10:     cmd.Cdw10,
		Cdw11:     cmd.Cdw11,
		Cdw12:     cmd.Cdw12,
		Cdw13:     cmd.Cdw13,
		Cdw14:     cmd.Cdw14,
		Cdw15:     cmd.Cdw15,
		TimeoutMs: cmd.TimeoutMs,
	}
	if len(cmd.Data) > 0 {
		p.Addr = uint64(uintptr(unsafe.Pointer(&cmd.Data[0])))
	}
	return p
}
