// Package bus implements the in-process event bus: an explicit consumer
// registry with at-least-once delivery per (event, consumer) pair. Events
// for one vehicle are delivered in publish order to each consumer; distinct
// vehicles ride independent worker queues and proceed in parallel. One
// consumer's failure never blocks the others.
package bus

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"parkgate/internal/events"
)

// Consumer is a named event handler registered at startup.
type Consumer struct {
	Name   string
	Handle func(ctx context.Context, evt events.Event) error
}

// Options tune the bus. Zero values fall back to defaults.
type Options struct {
	// Shards is the number of worker queues per consumer. Events are keyed
	// to a shard by vehicle number, which is what preserves per-vehicle order.
	Shards int
	// QueueSize is the buffer of each worker queue.
	QueueSize int
	// MaxAttempts bounds delivery retries per (event, consumer).
	MaxAttempts int
	// RetryDelay is the base backoff between attempts; it grows linearly.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Shards <= 0 {
		o.Shards = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 50 * time.Millisecond
	}
	return o
}

type registration struct {
	consumer Consumer
	queues   []chan events.Event
}

// Bus fans published events out to every registered consumer.
type Bus struct {
	logger   *zap.Logger
	opts     Options
	registry []*registration
	inflight sync.WaitGroup
	workers  sync.WaitGroup
	started  bool
}

// New builds a bus. Subscribe all consumers before Start.
func New(logger *zap.Logger, opts Options) *Bus {
	return &Bus{
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// Subscribe registers a consumer. Must be called before Start.
func (b *Bus) Subscribe(c Consumer) {
	if b.started {
		panic("bus: Subscribe after Start")
	}
	reg := &registration{consumer: c}
	b.registry = append(b.registry, reg)
}

// Start spawns the worker queues. The context is handed to every handler
// invocation and cancels in-flight retry backoffs.
func (b *Bus) Start(ctx context.Context) {
	b.started = true
	for _, reg := range b.registry {
		reg.queues = make([]chan events.Event, b.opts.Shards)
		for i := range reg.queues {
			q := make(chan events.Event, b.opts.QueueSize)
			reg.queues[i] = q
			b.workers.Add(1)
			go b.work(ctx, reg, q)
		}
	}
}

// Publish enqueues the event for every consumer. It blocks only when a
// worker queue is full, which keeps per-vehicle order instead of dropping.
func (b *Bus) Publish(evt events.Event) {
	shard := shardFor(evt.Vehicle(), b.opts.Shards)
	for _, reg := range b.registry {
		b.inflight.Add(1)
		reg.queues[shard] <- evt
	}
}

// Flush blocks until every published event has been handled (or dropped
// after exhausting retries). Intended for shutdown and tests.
func (b *Bus) Flush() {
	b.inflight.Wait()
}

// Close drains in-flight deliveries and stops the workers. Publish must not
// be called afterwards.
func (b *Bus) Close() {
	b.inflight.Wait()
	for _, reg := range b.registry {
		for _, q := range reg.queues {
			close(q)
		}
	}
	b.workers.Wait()
}

func (b *Bus) work(ctx context.Context, reg *registration, q chan events.Event) {
	defer b.workers.Done()
	for evt := range q {
		b.deliver(ctx, reg, evt)
		b.inflight.Done()
	}
}

func (b *Bus) deliver(ctx context.Context, reg *registration, evt events.Event) {
	for attempt := 1; ; attempt++ {
		err := reg.consumer.Handle(ctx, evt)
		if err == nil {
			return
		}

		b.logger.Warn("consumer failed to handle event",
			zap.String("consumer", reg.consumer.Name),
			zap.String("event_type", evt.Type()),
			zap.String("vehicle_number", evt.Vehicle()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt >= b.opts.MaxAttempts {
			b.logger.Error("event dropped after retries exhausted",
				zap.String("consumer", reg.consumer.Name),
				zap.String("event_type", evt.Type()),
				zap.String("vehicle_number", evt.Vehicle()),
				zap.Int("attempts", attempt),
			)
			return
		}

		select {
		case <-time.After(b.opts.RetryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return
		}
	}
}

func shardFor(vehicleNumber string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(vehicleNumber))
	return int(h.Sum32() % uint32(shards))
}
