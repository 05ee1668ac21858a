package lm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

// SetCDQFeature writes the CDQ head pointer and optional tail trigger
func (c *Client) SetCDQFeature(ctx context.Context, op command.FeatureSet) error {
	if _, _, err := c.run(ctx, op, nil); err != nil {
		return err
	}
	ev := c.log.Info().Uint16("cdqid", op.CDQID).Uint32("head_pointer", op.HeadPointer)
	if op.Trigger != nil {
		ev = ev.Uint32("trigger", *op.Trigger)
	}
	ev.Msg("set cdq feature completed")
	return nil
}

// GetCDQFeature reads the CDQ feature data
func (c *Client) GetCDQFeature(ctx context.Context, op command.FeatureGet) (*layout.CDQFeatureData, error) {
	_, data, err := c.run(ctx, op, nil)
	if err != nil {
		return nil, err
	}
	var fd layout.CDQFeatureData
	copy(fd[:], data)
	return &fd, nil
}

type featureJSON struct {
	HeadPointer        uint32 `json:"head_pointer"`
	TailPointerTrigger uint32 `json:"tail_pointer_trigger"`
}

// WriteFeature renders CDQ feature data
func WriteFeature(w io.Writer, fd *layout.CDQFeatureData, format command.OutputFormat) error {
	var err error
	switch format {
	case command.FormatBinary:
		_, err = w.Write(fd[:])
	case command.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(featureJSON{HeadPointer: fd.HeadPointer(), TailPointerTrigger: fd.TailPointerTrigger()})
	case command.FormatNormal:
		_, err = fmt.Fprintf(w, "Head Pointer: 0x%x\nTail Pointer Trigger: 0x%x\n", fd.HeadPointer(), fd.TailPointerTrigger())
	default:
		return driver.NewErrorf(driver.StatusInvalidArgument, "output format %d", format)
	}
	if err != nil {
		return driver.NewErrorWithCause(driver.StatusIOFailure, "write cdq feature", err)
	}
	return nil
}
