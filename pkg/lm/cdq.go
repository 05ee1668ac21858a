package lm

import (
	"context"
	"sync"

	"github.com/emergingrobotics/go-nvme-lm/pkg/command"
	"github.com/emergingrobotics/go-nvme-lm/pkg/driver"
	"github.com/emergingrobotics/go-nvme-lm/pkg/layout"
)

// cdqIDMask selects the CDQ identifier from Create CDQ completion dword 0
const cdqIDMask = 0xffff

// CDQ is a live Controller Data Queue. The controller writes migration
// queue entries into its buffer until the queue is deleted, so the buffer
// stays allocated until Close.
type CDQ struct {
	ID           uint16
	ControllerID uint16

	client *Client
	mu     sync.Mutex
	buf    *driver.Buffer
}

// CreateCDQ creates a controller data queue and returns its handle
func (c *Client) CreateCDQ(ctx context.Context, op command.CreateCDQ) (*CDQ, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	buf, err := c.allocate(op)
	if err != nil {
		return nil, err
	}

	result, err := c.exec(ctx, op, buf)
	if err != nil {
		c.free(buf)
		return nil, err
	}

	q := &CDQ{
		ID:           uint16(result & cdqIDMask),
		ControllerID: op.ControllerID,
		client:       c,
		buf:          buf,
	}
	c.log.Info().Uint16("cdqid", q.ID).Uint16("cntlid", op.ControllerID).Int("entries", op.Entries()).Msg("created controller data queue")
	return q, nil
}

// DeleteCDQ deletes a controller data queue by identifier. Use CDQ.Close
// for queues created through this client.
func (c *Client) DeleteCDQ(ctx context.Context, op command.DeleteCDQ) error {
	if _, _, err := c.run(ctx, op, nil); err != nil {
		return err
	}
	c.log.Info().Uint16("cdqid", op.CDQID).Msg("deleted controller data queue")
	return nil
}

// Len returns the queue size in entries
func (q *CDQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf == nil {
		return 0
	}
	return layout.EntryCount(q.buf.Len())
}

// Entries returns a snapshot of every slot in the queue
func (q *CDQ) Entries() ([]layout.MigrationQueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf == nil {
		return nil, driver.NewError(driver.StatusInvalidArgument, "controller data queue closed")
	}
	return layout.ParseMigrationQueue(q.buf.Bytes())
}

// Pending returns the entries the controller has posted starting at head.
// An entry is new while its phase tag equals phase; the phase flips each
// time the walk wraps past the end of the queue. The returned head and
// phase are where the next call should resume.
func (q *CDQ) Pending(head int, phase uint8) ([]layout.MigrationQueueEntry, int, uint8, error) {
	entries, err := q.Entries()
	if err != nil {
		return nil, head, phase, err
	}
	n := len(entries)
	if n == 0 || head < 0 || head >= n {
		return nil, head, phase, driver.NewErrorf(driver.StatusInvalidArgument,
			"head pointer %d outside queue of %d entries", head, n)
	}

	var out []layout.MigrationQueueEntry
	for len(out) < n {
		e := entries[head]
		if e.PhaseTag() != phase&1 {
			break
		}
		out = append(out, e)
		head++
		if head == n {
			head = 0
			phase ^= 1
		}
	}
	return out, head, phase, nil
}

// SetHead reports consumed entries to the controller by writing the head
// pointer, optionally arming a tail pointer trigger
func (q *CDQ) SetHead(ctx context.Context, head uint32, trigger *uint32) error {
	return q.client.SetCDQFeature(ctx, command.FeatureSet{CDQID: q.ID, HeadPointer: head, Trigger: trigger})
}

// Close deletes the queue on the controller and releases its buffer. The
// buffer is kept if the delete fails since the controller may still write it.
func (q *CDQ) Close(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf == nil {
		return nil
	}
	if err := q.client.DeleteCDQ(ctx, command.DeleteCDQ{CDQID: q.ID}); err != nil {
		return err
	}
	q.client.free(q.buf)
	q.buf = nil
	return nil
}
