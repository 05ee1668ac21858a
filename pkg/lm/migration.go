package lm

import (
	"context"

	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/ctrlstate"
)

// controllerSuspendedBit is the Migration Receive completion dword 0 flag
const controllerSuspendedBit = 0x1

// TrackSend starts or stops change tracking on a controller data queue
func (c *Client) TrackSend(ctx context.Context, op command.TrackSend) error {
	if _, _, err := c.run(ctx, op, nil); err != nil {
		return err
	}
	c.log.Info().
		Str("select", op.Select.String()).
		Uint16("cdqid", op.CDQID).
		Uint16("mos", op.EffectiveManagementOperation()).
		Msg("track send completed")
	return nil
}

// MigrationSend suspends or resumes a controller, or loads controller
// state carried in op.Payload
func (c *Client) MigrationSend(ctx context.Context, op command.MigrationSend) error {
	if _, _, err := c.run(ctx, op, op.Payload); err != nil {
		return err
	}
	c.log.Info().
		Str("select", op.Select.String()).
		Uint16("cntlid", op.ControllerID).
		Stringer("sequence", op.SequenceIndicator).
		Msg("migration send completed")
	return nil
}

// ReceiveResult is the outcome of a Migration Receive
type ReceiveResult struct {
	// CDW0 is completion dword 0
	CDW0 uint32
	// Suspended is CDW0 bit 0
	Suspended bool
	// Data is the whole transfer buffer, one dword longer than requested
	Data []byte
	// Output is the part of Data written to an output file
	Output []byte
	// State is the decoded controller state; nil for a non-zero offset
	State *ctrlstate.ControllerState
}

// MigrationReceive reads controller state. Decoding a short or
// inconsistent buffer is not an error; truncation is logged and flagged
// on the returned state.
func (c *Client) MigrationReceive(ctx context.Context, op command.MigrationReceive) (*ReceiveResult, error) {
	result, data, err := c.run(ctx, op, nil)
	if err != nil {
		return nil, err
	}

	res := &ReceiveResult{
		CDW0:      result,
		Suspended: result&controllerSuspendedBit != 0,
		Data:      data,
		Output:    data[:op.OutputLen()],
	}
	if op.Offset == 0 {
		res.State = ctrlstate.Decode(data)
		for _, w := range res.State.Warnings {
			c.log.Warn().Uint16("cntlid", op.ControllerID).Msg(w)
		}
	}

	c.log.Info().
		Uint16("cntlid", op.ControllerID).
		Uint32("cdw0", result).
		Bool("suspended", res.Suspended).
		Int("bytes", len(data)).
		Msg("migration receive completed")
	return res, nil
}
