package memory

import (
	"context"
	"sync"

	appoutbox "rentspot/internal/app/outbox"
)

// Outbox holds event records for deployments without a broker. Flush discards
// what was added; Flushed counts records discarded so far.
type Outbox struct {
	mu      sync.Mutex
	pending []appoutbox.EventRecord
	flushed int
}

func NewOutbox() *Outbox { return &Outbox{} }

func (o *Outbox) Add(_ context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	o.pending = append(o.pending, record)
	o.mu.Unlock()
	return nil
}

func (o *Outbox) Flush(context.Context) error {
	o.mu.Lock()
	o.flushed += len(o.pending)
	o.pending = o.pending[:0]
	o.mu.Unlock()
	return nil
}

// Pending returns a copy of the records added since the last flush.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.pending...)
}

func (o *Outbox) Flushed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.flushed
}

var _ appoutbox.Outbox = (*Outbox)(nil)
