package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/emergingrobotics/go-nvme-lm/internal/config"
	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/ctrlstate"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/lm"
)

// session runs steps against one open device and tracks the CDQs it
// created, since their buffers must stay mapped until the queue is deleted
type session struct {
	client *lm.Client
	out    io.Writer
	queues map[uint16]*lm.CDQ
}

type target struct {
	device   string
	timeout  time.Duration
	logLevel string
}

// withSession opens the device, runs fn and closes the device. Queues left
// open are deleted unless keepQueues is set.
func (a *app) withSession(cmd *cobra.Command, t target, keepQueues bool, fn func(ctx context.Context, s *session) error) error {
	log, err := a.logger(cmd, t.logLevel)
	if err != nil {
		return err
	}

	dev, err := a.open(t.device)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("device", t.device).Msg("close device")
		}
	}()

	s := &session{
		client: lm.NewClient(dev, lm.WithLogger(log.With().Str("device", t.device).Logger()), lm.WithTimeout(t.timeout)),
		out:    cmd.OutOrStdout(),
		queues: make(map[uint16]*lm.CDQ),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	err = fn(ctx, s)

	for id, q := range s.queues {
		if keepQueues {
			log.Warn().Uint16("cdqid", id).Msg("controller data queue left on the controller, its buffer is released on exit")
			continue
		}
		if cerr := q.Close(ctx); cerr != nil {
			log.Error().Err(cerr).Uint16("cdqid", id).Msg("delete controller data queue")
			if err == nil {
				err = cerr
			}
		}
	}
	return err
}

// single validates step, then runs it in its own session
func (a *app) single(cmd *cobra.Command, step config.Step) error {
	if err := config.ValidateStep(step); err != nil {
		return err
	}
	t := target{device: a.devicePath, timeout: a.timeout}
	return a.withSession(cmd, t, step.Kind == config.KindCreateCDQ, func(ctx context.Context, s *session) error {
		return s.run(ctx, step)
	})
}

func (s *session) run(ctx context.Context, step config.Step) error {
	switch op := step.Op.(type) {
	case command.CreateCDQ:
		q, err := s.client.CreateCDQ(ctx, op)
		if err != nil {
			return err
		}
		s.queues[q.ID] = q
		fmt.Fprintf(s.out, "Create CDQ Successful: CDQID=0x%04x\n", q.ID)

	case command.DeleteCDQ:
		if q, ok := s.queues[op.CDQID]; ok {
			if err := q.Close(ctx); err != nil {
				return err
			}
			delete(s.queues, op.CDQID)
		} else if err := s.client.DeleteCDQ(ctx, op); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Delete CDQ Successful: CDQID=0x%04x\n", op.CDQID)

	case command.TrackSend:
		if err := s.client.TrackSend(ctx, op); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Track Send (%s) Successful\n", op.Select)

	case command.MigrationSend:
		if step.InputFile != "" {
			payload, err := lm.ReadStatePayload(step.InputFile, op.NumDwords)
			if err != nil {
				return err
			}
			op.Payload = payload
		}
		if err := s.client.MigrationSend(ctx, op); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Migration Send (%s) Successful\n", op.Select)

	case command.MigrationReceive:
		return s.receive(ctx, op, step.OutputFile)

	case command.FeatureSet:
		if err := s.client.SetCDQFeature(ctx, op); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Success. Head Pointer: %d\n", op.HeadPointer)

	case command.FeatureGet:
		fd, err := s.client.GetCDQFeature(ctx, op)
		if err != nil {
			return err
		}
		return lm.WriteFeature(s.out, fd, step.Format)

	default:
		return driver.NewErrorf(driver.StatusUnsupported, "step %s", step.Kind)
	}
	return nil
}

func (s *session) receive(ctx context.Context, op command.MigrationReceive, outputFile string) error {
	res, err := s.client.MigrationReceive(ctx, op)
	if err != nil {
		return err
	}

	if op.Format == command.FormatNormal {
		not := "NOT "
		if res.Suspended {
			not = ""
		}
		fmt.Fprintf(s.out, "CDW0: 0x%x: Controller %sSuspended\n", res.CDW0, not)
	}

	if outputFile != "" {
		return lm.WriteStateOutput(outputFile, res.Output)
	}
	_, err = ctrlstate.Write(s.out, res.Data, op.Offset, op.Format, op.Verbose)
	return err
}
