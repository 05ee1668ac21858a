package command

import (
	"fmt"

	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

func invalidf(format string, args ...interface{}) error {
	return driver.NewErrorf(driver.StatusInvalidArgument, "invalid "+format, args...)
}

func unsupportedf(format string, args ...interface{}) error {
	return driver.NewErrorf(driver.StatusUnsupported, format, args...)
}

// Validate rejects zero-sized queues and sizes that do not hold a whole
// number of migration queue entries
func (o CreateCDQ) Validate() error {
	if o.SizeDwords == 0 {
		return invalidf("%s: queue size must be non-zero", o.Name())
	}
	if o.SizeDwords%uint32(layout.MigrationQueueEntryDwords) != 0 {
		return invalidf("%s: queue size %d dwords is not a multiple of %d",
			o.Name(), o.SizeDwords, layout.MigrationQueueEntryDwords)
	}
	return nil
}

func (o TrackSend) Validate() error {
	if o.Select == nil {
		return invalidf("%s: select is required", o.Name())
	}
	if *o.Select != TrackSendLogUserDataChanges {
		return unsupportedf("%s: select %d (%s)", o.Name(), *o.Select, *o.Select)
	}
	if o.Start && o.Stop {
		return invalidf("%s: start and stop are mutually exclusive", o.Name())
	}
	return nil
}

func (o MigrationSend) Validate() error {
	if o.Select == nil {
		return invalidf("%s: select is required", o.Name())
	}
	if o.SequenceIndicator > maxSequenceInd {
		return invalidf("%s: sequence indicator %d out of range", o.Name(), o.SequenceIndicator)
	}

	switch *o.Select {
	case MigrationSendSuspend, MigrationSendResume:
		if o.UUIDIndex != 0 || o.VersionIndex != 0 {
			return invalidf("%s: uuid and version index only apply to %s",
				o.Name(), MigrationSendSetControllerState)
		}
		if o.Offset != 0 || o.NumDwords != 0 || len(o.Payload) != 0 {
			return invalidf("%s: %s carries no controller state", o.Name(), *o.Select)
		}
	case MigrationSendSetControllerState:
		if o.DeleteQueues || o.SuspendType != SuspendNotification {
			return invalidf("%s: suspend type and delete only apply to %s or %s",
				o.Name(), MigrationSendSuspend, MigrationSendResume)
		}
		if o.NumDwords == 0 {
			return invalidf("%s: controller state length must be non-zero", o.Name())
		}
		if want := int(o.NumDwords) * driver.DwordSize; len(o.Payload) != want {
			return invalidf("%s: payload is %d bytes, numd %d requires %d",
				o.Name(), len(o.Payload), o.NumDwords, want)
		}
	default:
		return unsupportedf("%s: select %d", o.Name(), *o.Select)
	}
	return nil
}

// Validate only allows a non-zero offset for raw output, since a partial
// transfer cannot be decoded as a controller state structure
func (o MigrationReceive) Validate() error {
	if o.Format < FormatNormal || o.Format > FormatBinary {
		return invalidf("%s: output format %d", o.Name(), o.Format)
	}
	if o.Offset != 0 && o.Format != FormatBinary {
		return invalidf("%s: offset 0x%x requires %s output", o.Name(), o.Offset, FormatBinary)
	}
	return nil
}

func (o FeatureGet) Validate() error {
	if o.Select > FeatureSelectCapabilities {
		return invalidf("%s: feature select %d", o.Name(), o.Select)
	}
	return nil
}

// Encode validates op and builds its admin command. data must be exactly
// DataLen bytes and is attached to the command as its transfer buffer.
func Encode(op Operation, data []byte) (*driver.AdminCommand, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if len(data) != op.DataLen() {
		return nil, invalidf("%s: buffer is %d bytes, expected %d", op.Name(), len(data), op.DataLen())
	}

	cmd := &driver.AdminCommand{Opcode: op.Opcode()}
	if len(data) > 0 {
		cmd.Data = data
	}
	op.encode(cmd)
	return cmd, nil
}

// MustEncode is Encode for operations known to be valid
func MustEncode(op Operation, data []byte) *driver.AdminCommand {
	cmd, err := Encode(op, data)
	if err != nil {
		panic(fmt.Sprintf("command: %v", err))
	}
	return cmd
}
