package command

import "github.com/emergingrobotics/go-nvme-lm/pkg/driver"

// Decode recovers the operation an admin command was encoded from. Fields
// that never reach the device (TrackSend Start/Stop, MigrationReceive
// Format/Verbose) come back as their zero values.
func Decode(cmd *driver.AdminCommand) (Operation, error) {
	switch cmd.Opcode {
	case OpcodeControllerDataQueue:
		return decodeCDQ(cmd)
	case OpcodeTrackSend:
		sel := TrackSendSelect(cmd.Cdw10 & selectMask)
		return TrackSend{
			Select:              &sel,
			ManagementOperation: uint16(cmd.Cdw10 >> 16),
			CDQID:               uint16(cmd.Cdw11 & cdw11IDMask),
		}, nil
	case OpcodeMigrationSend:
		return decodeMigrationSend(cmd), nil
	case OpcodeMigrationReceive:
		return MigrationReceive{
			ControllerID: uint16(cmd.Cdw11 & cdw11IDMask),
			UUIDIndex:    uint8(cmd.Cdw11 >> 16),
			VersionIndex: uint8(cmd.Cdw10 >> 16),
			Offset:       uint64(cmd.Cdw13)<<32 | uint64(cmd.Cdw12),
			NumDwords:    cmd.Cdw15,
		}, nil
	case OpcodeSetFeatures:
		return DecodeFeatureSet(cmd)
	case OpcodeGetFeatures:
		if err := checkFeatureID(cmd); err != nil {
			return nil, err
		}
		return FeatureGet{
			CDQID:  uint16(cmd.Cdw11 & cdw11IDMask),
			Select: FeatureSelect(cmd.Cdw10 >> featureSelectShift & featureSelectMask),
		}, nil
	default:
		return nil, unsupportedf("admin opcode 0x%02x", cmd.Opcode)
	}
}

func decodeCDQ(cmd *driver.AdminCommand) (Operation, error) {
	switch cmd.Cdw10 & 0xffff {
	case CDQSelectCreate:
		return CreateCDQ{
			QueueType:    uint8(cmd.Cdw10 >> 16),
			ControllerID: uint16(cmd.Cdw11 >> 16),
			SizeDwords:   cmd.Cdw12,
		}, nil
	case CDQSelectDelete:
		return DeleteCDQ{CDQID: uint16(cmd.Cdw11 & cdw11IDMask)}, nil
	default:
		return nil, unsupportedf("cdq select %d", cmd.Cdw10&0xffff)
	}
}

func decodeMigrationSend(cmd *driver.AdminCommand) MigrationSend {
	sel := MigrationSendSelect(cmd.Cdw10 & selectMask)
	op := MigrationSend{
		Select:            &sel,
		ControllerID:      uint16(cmd.Cdw11 & cdw11IDMask),
		SequenceIndicator: SequenceIndicator(cmd.Cdw10 >> 16 & sequenceIndMask),
		Offset:            uint64(cmd.Cdw13)<<32 | uint64(cmd.Cdw12),
		NumDwords:         cmd.Cdw15,
		Payload:           cmd.Data,
	}
	if sel == MigrationSendSetControllerState {
		op.UUIDIndex = uint8(cmd.Cdw11 >> 24)
		op.VersionIndex = uint8(cmd.Cdw11 >> 16)
	} else {
		op.SuspendType = SuspendType(cmd.Cdw11 >> 16)
		op.DeleteQueues = cmd.Cdw11&deleteQueueBit != 0
	}
	return op
}

func checkFeatureID(cmd *driver.AdminCommand) error {
	if fid := cmd.Cdw10 & featureIDMask; fid != FeatureIDControllerDataQueue {
		return unsupportedf("feature id 0x%02x", fid)
	}
	return nil
}

// DecodeFeatureSet recovers a CDQ Set Features operation. A trigger is
// present only when CDW11 bit 31 is set.
func DecodeFeatureSet(cmd *driver.AdminCommand) (FeatureSet, error) {
	if cmd.Opcode != OpcodeSetFeatures {
		return FeatureSet{}, invalidf("opcode 0x%02x is not set features", cmd.Opcode)
	}
	if err := checkFeatureID(cmd); err != nil {
		return FeatureSet{}, err
	}

	op := FeatureSet{
		CDQID:       uint16(cmd.Cdw11 & cdw11IDMask),
		HeadPointer: cmd.Cdw12,
	}
	if cmd.Cdw11&hasTriggerBit != 0 {
		trigger := cmd.Cdw13
		op.Trigger = &trigger
	}
	return op, nil
}
