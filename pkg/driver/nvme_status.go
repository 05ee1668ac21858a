package driver

import "fmt"

// NVMe status word layout as returned by the admin passthru ioctl
const (
	NVMeStatusCodeMask    = 0xff
	NVMeStatusTypeShift   = 8
	NVMeStatusTypeMask    = 0x7
	NVMeStatusCRDShift    = 11
	NVMeStatusCRDMask     = 0x3
	NVMeStatusMore        = 1 << 13
	NVMeStatusDoNotRetry  = 1 << 14
	NVMeStatusTypeGeneric = 0x0
	NVMeStatusTypeCmdSpec = 0x1
	NVMeStatusTypeMedia   = 0x2
	NVMeStatusTypePath    = 0x3
	NVMeStatusTypeVendor  = 0x7
)

var genericStatusNames = map[uint8]string{
	0x00: "Successful Completion",
	0x01: "Invalid Command Opcode",
	0x02: "Invalid Field in Command",
	0x03: "Command ID Conflict",
	0x04: "Data Transfer Error",
	0x05: "Commands Aborted due to Power Loss Notification",
	0x06: "Internal Error",
	0x07: "Command Abort Requested",
	0x08: "Command Aborted due to SQ Deletion",
	0x0b: "Invalid Namespace or Format",
	0x0c: "Command Sequence Error",
	0x0f: "Invalid PRP Offset",
	0x14: "Operation Denied",
	0x1d: "Command Not Supported for Queue in CMB",
}

var commandSpecificStatusNames = map[uint8]string{
	0x00: "Completion Queue Invalid",
	0x01: "Invalid Queue Identifier",
	0x02: "Invalid Queue Size",
	0x06: "Invalid Firmware Slot",
	0x0d: "Feature Identifier Not Saveable",
	0x0e: "Feature Not Changeable",
	0x0f: "Feature Not Namespace Specific",
	0x1e: "Invalid Controller Identifier",
}

// NVMeStatusCode returns the status code field
func NVMeStatusCode(status uint16) uint8 {
	return uint8(status & NVMeStatusCodeMask)
}

// NVMeStatusType returns the status code type field
func NVMeStatusType(status uint16) uint8 {
	return uint8((status >> NVMeStatusTypeShift) & NVMeStatusTypeMask)
}

// NVMeStatusRetryable reports whether the controller left DNR clear
func NVMeStatusRetryable(status uint16) bool {
	return status&NVMeStatusDoNotRetry == 0
}

// NVMeStatusString names a controller status word
func NVMeStatusString(status uint16) string {
	sc := NVMeStatusCode(status)
	var name string
	var ok bool
	switch NVMeStatusType(status) {
	case NVMeStatusTypeGeneric:
		name, ok = genericStatusNames[sc]
	case NVMeStatusTypeCmdSpec:
		name, ok = commandSpecificStatusNames[sc]
	case NVMeStatusTypeVendor:
		name, ok = fmt.Sprintf("Vendor Specific (0x%02x)", sc), true
	}
	if !ok {
		name = fmt.Sprintf("Unknown (sct 0x%x sc 0x%02x)", NVMeStatusType(status), sc)
	}
	if status&NVMeStatusDoNotRetry != 0 {
		name += ", DNR"
	}
	return name
}
