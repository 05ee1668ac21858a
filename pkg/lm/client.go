// Package lm drives NVMe controller live migration through admin commands.
//
// A Client runs each operation synchronously as validate, allocate,
// encode, submit and decode. It issues one command at a time and never
// retries; transport and controller status errors are returned as-is.
package lm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
)

// Submitter delivers an encoded admin command and returns completion dword 0
type Submitter interface {
	Submit(ctx context.Context, cmd *driver.AdminCommand) (uint32, error)
}

// Allocator supplies zeroed transfer buffers
type Allocator interface {
	Allocate(size int) (*driver.Buffer, error)
}

// Client issues live migration admin commands to one controller
type Client struct {
	sub     Submitter
	alloc   Allocator
	log     zerolog.Logger
	timeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithAllocator replaces the default mmap allocator
func WithAllocator(a Allocator) Option {
	return func(c *Client) { c.alloc = a }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithTimeout sets the per-command timeout passed to the driver. Zero
// uses the driver default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client submitting through sub
func NewClient(sub Submitter, opts ...Option) *Client {
	c := &Client{
		sub:   sub,
		alloc: driver.DefaultAllocator(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logger returns the client's logger
func (c *Client) Logger() zerolog.Logger {
	return c.log
}

// allocate returns a buffer sized for op, or nil when op moves no data
func (c *Client) allocate(op command.Operation) (*driver.Buffer, error) {
	n := op.DataLen()
	if n == 0 {
		return nil, nil
	}
	return c.alloc.Allocate(n)
}

func (c *Client) free(buf *driver.Buffer) {
	if buf == nil {
		return
	}
	if err := buf.Free(); err != nil {
		c.log.Warn().Err(err).Msg("failed to release transfer buffer")
	}
}

// exec encodes op with buf as the transfer buffer and submits it
func (c *Client) exec(ctx context.Context, op command.Operation, buf *driver.Buffer) (uint32, error) {
	var data []byte
	if buf != nil {
		data = buf.Bytes()
	}

	cmd, err := command.Encode(op, data)
	if err != nil {
		return 0, err
	}
	cmd.TimeoutMs = uint32(c.timeout / time.Millisecond)

	c.log.Debug().Str("op", op.Name()).Stringer("cmd", cmd).Msg("submitting admin command")

	result, err := c.sub.Submit(ctx, cmd)
	if err != nil {
		ev := c.log.Error().Err(err).Str("op", op.Name())
		if code, ok := driver.DeviceStatusCode(err); ok {
			ev = ev.Str("status", driver.NVMeStatusString(code)).Uint16("status_word", code)
		}
		ev.Msg("admin command failed")
		return 0, err
	}

	c.log.Debug().Str("op", op.Name()).Uint32("result", result).Msg("admin command completed")
	return result, nil
}

// run handles operations whose buffer lives only for the command. fill,
// when set, loads outgoing data into the buffer before submission.
func (c *Client) run(ctx context.Context, op command.Operation, fill []byte) (uint32, []byte, error) {
	if err := op.Validate(); err != nil {
		return 0, nil, err
	}
	buf, err := c.allocate(op)
	if err != nil {
		return 0, nil, err
	}
	defer c.free(buf)
	if buf != nil {
		copy(buf.Bytes(), fill)
	}

	result, err := c.exec(ctx, op, buf)
	if err != nil {
		return 0, nil, err
	}
	if buf == nil {
		return result, nil, nil
	}
	return result, append([]byte(nil), buf.Bytes()...), nil
}
