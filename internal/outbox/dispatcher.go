// Package outbox moves atomically-parked events onto the bus. The session
// stores write outbox rows in the same unit as the session change; the
// dispatcher is the only publisher, so bus order follows row order. Rows
// are marked dispatched after the bus accepts them — a crash in between
// means redelivery, which every consumer tolerates.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"parkgate/internal/events"
	"parkgate/internal/repository"
)

// Publisher is the bus-facing side of the dispatcher.
type Publisher interface {
	Publish(evt events.Event)
}

// Options tune the dispatcher. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration
	BatchSize    int
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	return o
}

// Dispatcher drains pending outbox entries to the bus. Producers call Wake
// after committing; the poll ticker backstops missed wakes.
type Dispatcher struct {
	store  repository.OutboxStore
	bus    Publisher
	logger *zap.Logger
	opts   Options
	wake   chan struct{}
	done   chan struct{}
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(store repository.OutboxStore, bus Publisher, logger *zap.Logger, opts Options) *Dispatcher {
	return &Dispatcher{
		store:  store,
		bus:    bus,
		logger: logger,
		opts:   opts.withDefaults(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Wake nudges the dispatcher without blocking the caller.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run loops until the context is cancelled, then closes Done. The bus must
// stay open until Done is closed: a drain can be mid-publish when the
// context expires.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		d.Drain(ctx)
	}
}

// Done is closed once Run has exited and no further publishes can happen.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Drain publishes every pending entry, batch by batch, and marks the
// batches dispatched. Exposed so tests and the cron sweep can force a pass.
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		entries, err := d.store.ListPending(ctx, d.opts.BatchSize)
		if err != nil {
			d.logger.Error("failed to list pending outbox entries", zap.Error(err))
			return
		}
		if len(entries) == 0 {
			return
		}

		ids := make([]int64, 0, len(entries))
		for _, entry := range entries {
			evt, err := events.Decode(entry.EventType, entry.Payload)
			if err != nil {
				// Poison row: undecodable forever, retrying cannot help.
				d.logger.Error("dropping undecodable outbox entry",
					zap.Int64("entry_id", entry.ID),
					zap.String("event_type", entry.EventType),
					zap.Error(err),
				)
				ids = append(ids, entry.ID)
				continue
			}
			d.bus.Publish(evt)
			ids = append(ids, entry.ID)
		}

		if err := d.store.MarkDispatched(ctx, ids); err != nil {
			d.logger.Error("failed to mark outbox entries dispatched", zap.Error(err))
			return
		}
		if len(entries) < d.opts.BatchSize {
			return
		}
	}
}
