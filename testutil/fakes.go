package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

// Status codes the fake returns for commands it cannot satisfy
const (
	StatusInvalidField   uint16 = 0x0002
	StatusInvalidQueueID uint16 = 0x0101 | 1<<14
)

// FakeDevice implements a mock migratable NVMe controller for testing.
// It decodes each submitted admin command and keeps just enough state
// (queues, suspension, controller state, CDQ feature values) to answer
// the next one.
type FakeDevice struct {
	mu        sync.Mutex
	closed    bool
	nextCDQID uint16
	queues    map[uint16]*fakeQueue
	suspended bool
	state     []byte
	commands  []driver.AdminCommand
	failNext  map[uint8]error
}

type fakeQueue struct {
	controllerID uint16
	dwords       uint32
	tracking     bool
	headPointer  uint32
	trigger      uint32
}

// NewFakeDevice creates a new fake device
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		nextCDQID: 1,
		queues:    make(map[uint16]*fakeQueue),
		failNext:  make(map[uint8]error),
	}
}

// Submit decodes and executes cmd against the fake controller
func (d *FakeDevice) Submit(ctx context.Context, cmd *driver.AdminCommand) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, driver.NewErrorWithCause(driver.StatusTransportFailure, "submit", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, driver.NewError(driver.StatusTransportFailure, "device closed")
	}

	rec := *cmd
	rec.Data = append([]byte(nil), cmd.Data...)
	d.commands = append(d.commands, rec)

	if err, ok := d.failNext[cmd.Opcode]; ok {
		delete(d.failNext, cmd.Opcode)
		return 0, err
	}

	op, err := command.Decode(cmd)
	if err != nil {
		return 0, driver.NewDeviceStatusError(StatusInvalidField, "fake decode")
	}

	switch op := op.(type) {
	case command.CreateCDQ:
		id := d.nextCDQID
		d.nextCDQID++
		d.queues[id] = &fakeQueue{controllerID: op.ControllerID, dwords: op.SizeDwords}
		return uint32(id), nil

	case command.DeleteCDQ:
		if _, ok := d.queues[op.CDQID]; !ok {
			return 0, d.status(StatusInvalidQueueID, op)
		}
		delete(d.queues, op.CDQID)

	case command.TrackSend:
		q, ok := d.queues[op.CDQID]
		if !ok {
			return 0, d.status(StatusInvalidQueueID, op)
		}
		q.tracking = op.ManagementOperation == command.TrackSendStartLogging

	case command.MigrationSend:
		switch *op.Select {
		case command.MigrationSendSuspend:
			if op.SuspendType == command.Suspend {
				d.suspended = true
			}
		case command.MigrationSendResume:
			d.suspended = false
		case command.MigrationSendSetControllerState:
			if !d.suspended {
				return 0, d.status(StatusInvalidField, op)
			}
			end := int(op.Offset) + len(op.Payload)
			if end > len(d.state) {
				d.state = append(d.state, make([]byte, end-len(d.state))...)
			}
			copy(d.state[op.Offset:], op.Payload)
		}

	case command.MigrationReceive:
		if int(op.Offset) < len(d.state) {
			copy(cmd.Data, d.state[op.Offset:])
		}
		if d.suspended {
			return 1, nil
		}

	case command.FeatureSet:
		q, ok := d.queues[op.CDQID]
		if !ok {
			return 0, d.status(StatusInvalidQueueID, op)
		}
		q.headPointer = op.HeadPointer
		if op.Trigger != nil {
			q.trigger = *op.Trigger
		}

	case command.FeatureGet:
		q, ok := d.queues[op.CDQID]
		if !ok {
			return 0, d.status(StatusInvalidQueueID, op)
		}
		data := layout.NewCDQFeatureData(q.headPointer, q.trigger)
		copy(cmd.Data, data[:])
	}

	return 0, nil
}

func (d *FakeDevice) status(code uint16, op command.Operation) error {
	return driver.NewDeviceStatusError(code, command.Label(op))
}

// Close marks the device closed; later submissions fail
func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("fake device already closed")
	}
	d.closed = true
	return nil
}

// SetControllerState replaces the state returned by Migration Receive
func (d *FakeDevice) SetControllerState(state []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = append([]byte(nil), state...)
}

// ControllerState returns the state last written by Set Controller State
func (d *FakeDevice) ControllerState() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.state...)
}

// SetSuspended forces the suspended flag
func (d *FakeDevice) SetSuspended(suspended bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspended = suspended
}

// Suspended reports whether the controller is suspended
func (d *FakeDevice) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

// QueueCount returns the number of live controller data queues
func (d *FakeDevice) QueueCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Tracking reports whether change logging is active on a queue
func (d *FakeDevice) Tracking(cdqid uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[cdqid]
	return ok && q.tracking
}

// FailNext makes the next command with opcode return err
func (d *FakeDevice) FailNext(opcode uint8, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext[opcode] = err
}

// Commands returns a copy of every submitted command
func (d *FakeDevice) Commands() []driver.AdminCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.AdminCommand(nil), d.commands...)
}

// CommandCount returns the number of submitted commands
func (d *FakeDevice) CommandCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.commands)
}

// LastCommand returns the most recent command, or nil
func (d *FakeDevice) LastCommand() *driver.AdminCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.commands) == 0 {
		return nil
	}
	c := d.commands[len(d.commands)-1]
	return &c
}
