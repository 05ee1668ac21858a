// Package command builds NVMe admin commands for controller live migration.
//
// Each admin operation is a distinct Go type implementing Operation. An
// operation is validated before encoding; Encode never produces a command
// from an operation that failed validation. Decode reverses Encode so a
// submitted command can be inspected or replayed against a fake device.
package command

import (
	"fmt"

	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

// Operation is one live migration admin operation
type Operation interface {
	// Name is a short human label used in logs and errors
	Name() string
	// Opcode is the admin opcode the operation encodes to
	Opcode() uint8
	// Validate checks the operation's fields against the command rules
	Validate() error
	// DataLen is the size of the data buffer the command transfers
	DataLen() int

	encode(cmd *driver.AdminCommand)
}

// CreateCDQ creates a Controller Data Queue for a migratable controller
type CreateCDQ struct {
	QueueType    uint8
	ControllerID uint16
	// SizeDwords is the queue size in dwords; a multiple of the
	// migration queue entry size
	SizeDwords uint32
}

func (CreateCDQ) Name() string  { return "create cdq" }
func (CreateCDQ) Opcode() uint8 { return OpcodeControllerDataQueue }

func (o CreateCDQ) DataLen() int { return int(o.SizeDwords) * driver.DwordSize }

// Entries returns how many migration queue entries the queue holds
func (o CreateCDQ) Entries() int {
	return int(o.SizeDwords) / layout.MigrationQueueEntryDwords
}

func (o CreateCDQ) encode(cmd *driver.AdminCommand) {
	cmd.Cdw10 = uint32(o.QueueType)<<16 | CDQSelectCreate
	cmd.Cdw11 = uint32(o.ControllerID)<<16 | CDQCreatePhysicallyContiguous
	cmd.Cdw12 = o.SizeDwords
}

// DeleteCDQ deletes a Controller Data Queue
type DeleteCDQ struct {
	CDQID uint16
}

func (DeleteCDQ) Name() string    { return "delete cdq" }
func (DeleteCDQ) Opcode() uint8   { return OpcodeControllerDataQueue }
func (DeleteCDQ) Validate() error { return nil }
func (DeleteCDQ) DataLen() int    { return 0 }

func (o DeleteCDQ) encode(cmd *driver.AdminCommand) {
	cmd.Cdw10 = CDQSelectDelete
	cmd.Cdw11 = uint32(o.CDQID)
}

// TrackSend starts or stops change tracking on a CDQ. Start and Stop
// override ManagementOperation when set.
type TrackSend struct {
	Select              *TrackSendSelect
	ManagementOperation uint16
	CDQID               uint16
	Start               bool
	Stop                bool
}

func (TrackSend) Name() string  { return "track send" }
func (TrackSend) Opcode() uint8 { return OpcodeTrackSend }
func (TrackSend) DataLen() int  { return 0 }

// EffectiveManagementOperation returns the MOS value after applying the
// start and stop shortcuts
func (o TrackSend) EffectiveManagementOperation() uint16 {
	switch {
	case o.Start:
		return TrackSendStartLogging
	case o.Stop:
		return TrackSendStopLogging
	default:
		return o.ManagementOperation
	}
}

func (o TrackSend) encode(cmd *driver.AdminCommand) {
	cmd.Cdw10 = uint32(*o.Select) | uint32(o.EffectiveManagementOperation())<<16
	cmd.Cdw11 = uint32(o.CDQID)
}

// MigrationSend suspends, resumes or loads state into a controller
type MigrationSend struct {
	Select            *MigrationSendSelect
	ControllerID      uint16
	SuspendType       SuspendType
	DeleteQueues      bool
	SequenceIndicator SequenceIndicator
	UUIDIndex         uint8
	VersionIndex      uint8
	Offset            uint64
	NumDwords         uint32
	// Payload is the controller state sent with SetControllerState
	Payload []byte
}

func (MigrationSend) Name() string  { return "migration send" }
func (MigrationSend) Opcode() uint8 { return OpcodeMigrationSend }

func (o MigrationSend) DataLen() int { return len(o.Payload) }

func (o MigrationSend) encode(cmd *driver.AdminCommand) {
	cmd.Cdw10 = uint32(o.SequenceIndicator)<<16 | uint32(*o.Select)
	if *o.Select == MigrationSendSetControllerState {
		cmd.Cdw11 = uint32(o.UUIDIndex)<<24 | uint32(o.VersionIndex)<<16 | uint32(o.ControllerID)
	} else {
		cmd.Cdw11 = uint32(o.SuspendType)<<16 | uint32(o.ControllerID)
		if o.DeleteQueues {
			cmd.Cdw11 |= deleteQueueBit
		}
	}
	cmd.Cdw12 = uint32(o.Offset)
	cmd.Cdw13 = uint32(o.Offset >> 32)
	cmd.Cdw15 = o.NumDwords
}

// MigrationReceive reads controller state. Format and Verbose only
// control rendering and never reach the device.
type MigrationReceive struct {
	ControllerID uint16
	UUIDIndex    uint8
	VersionIndex uint8
	Offset       uint64
	NumDwords    uint32
	Format       OutputFormat
	Verbose      bool
}

func (MigrationReceive) Name() string  { return "migration receive" }
func (MigrationReceive) Opcode() uint8 { return OpcodeMigrationReceive }

// DataLen is one dword larger than NumDwords
func (o MigrationReceive) DataLen() int {
	return (int(o.NumDwords) + 1) * driver.DwordSize
}

// OutputLen is the number of bytes written to an output file
func (o MigrationReceive) OutputLen() int {
	return int(o.NumDwords) * driver.DwordSize
}

func (o MigrationReceive) encode(cmd *driver.AdminCommand) {
	cmd.Cdw10 = uint32(o.VersionIndex)<<16 | MigrationReceiveGetControllerState
	cmd.Cdw11 = uint32(o.UUIDIndex)<<16 | uint32(o.ControllerID)
	cmd.Cdw12 = uint32(o.Offset)
	cmd.Cdw13 = uint32(o.Offset >> 32)
	cmd.Cdw15 = o.NumDwords
}

// FeatureSet writes the CDQ head pointer and optionally arms a tail
// pointer trigger
type FeatureSet struct {
	CDQID       uint16
	HeadPointer uint32
	Trigger     *uint32
}

func (FeatureSet) Name() string    { return "set cdq feature" }
func (FeatureSet) Opcode() uint8   { return OpcodeSetFeatures }
func (FeatureSet) Validate() error { return nil }
func (FeatureSet) DataLen() int    { return 0 }

// Cdw13 is zero when no trigger is armed
func (o FeatureSet) encode(cmd *driver.AdminCommand) {
	cmd.Cdw10 = FeatureIDControllerDataQueue
	cmd.Cdw11 = uint32(o.CDQID)
	cmd.Cdw12 = o.HeadPointer
	if o.Trigger != nil {
		cmd.Cdw11 |= hasTriggerBit
		cmd.Cdw13 = *o.Trigger
	}
}

// FeatureGet reads the CDQ feature data
type FeatureGet struct {
	CDQID  uint16
	Select FeatureSelect
}

func (FeatureGet) Name() string  { return "get cdq feature" }
func (FeatureGet) Opcode() uint8 { return OpcodeGetFeatures }
func (FeatureGet) DataLen() int  { return layout.SizeOfCDQFeatureData }

func (o FeatureGet) encode(cmd *driver.AdminCommand) {
	cmd.Cdw10 = uint32(o.Select)<<featureSelectShift | FeatureIDControllerDataQueue
	cmd.Cdw11 = uint32(o.CDQID)
}

// TriggerFromSlot converts a signed trigger slot into an optional
// trigger. Negative slots mean no trigger.
func TriggerFromSlot(slot int32) *uint32 {
	if slot < 0 {
		return nil
	}
	v := uint32(slot)
	return &v
}

// Label formats an operation for logging
func Label(op Operation) string {
	return fmt.Sprintf("%s (opcode 0x%02x)", op.Name(), op.Opcode())
}
