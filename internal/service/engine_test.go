package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parkgate/internal/bus"
	"parkgate/internal/models"
	"parkgate/internal/outbox"
	"parkgate/internal/repository/memory"
	"parkgate/internal/service"
)

// engine wires the full in-process core: stores, outbox dispatcher, bus and
// all three consumers, the way the application does.
type engine struct {
	lifecycle  *service.LifecycleService
	allocation *service.AllocationService
	billing    *service.BillingService
	invoices   *memory.InvoiceStore
	dispatcher *outbox.Dispatcher
	eventBus   *bus.Bus
	clock      *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newEngine(t *testing.T, slotCodes ...string) *engine {
	t.Helper()
	logger := zap.NewNop()

	ob := memory.NewOutboxStore()
	sessions := memory.NewSessionStore(ob)
	slots := memory.NewSlotStore()
	invoices := memory.NewInvoiceStore()

	seeded, err := slots.SeedIfEmpty(context.Background(), slotCodes)
	require.NoError(t, err)
	require.True(t, seeded)

	allocation := service.NewAllocationService(slots, logger)
	billing := service.NewBillingService(invoices, service.Tariff{HourlyRate: 50, MinimumFare: 20}, logger)
	notify := service.NewNotificationService(logger, service.NewLogNotifier(logger))

	eventBus := bus.New(logger, bus.Options{RetryDelay: time.Millisecond})
	eventBus.Subscribe(bus.Consumer{Name: "allocation", Handle: allocation.Consume})
	eventBus.Subscribe(bus.Consumer{Name: "billing", Handle: billing.Consume})
	eventBus.Subscribe(bus.Consumer{Name: "notification", Handle: notify.Consume})
	eventBus.Start(context.Background())
	t.Cleanup(eventBus.Close)

	dispatcher := outbox.NewDispatcher(ob, eventBus, logger, outbox.Options{})

	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	lifecycle := service.NewLifecycleService(sessions, dispatcher, nil, logger, time.Second).WithClock(clock.Now)

	return &engine{
		lifecycle:  lifecycle,
		allocation: allocation,
		billing:    billing,
		invoices:   invoices,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		clock:      clock,
	}
}

// settle pushes parked events through the bus and waits for every consumer.
func (e *engine) settle(t *testing.T) {
	t.Helper()
	e.dispatcher.Drain(context.Background())
	e.eventBus.Flush()
}

func (e *engine) slotByCode(t *testing.T, code string) models.Slot {
	t.Helper()
	slots, err := e.allocation.Slots(context.Background())
	require.NoError(t, err)
	for _, s := range slots {
		if s.SlotCode == code {
			return s
		}
	}
	t.Fatalf("slot %s not found", code)
	return models.Slot{}
}

func TestAllocationScenario(t *testing.T) {
	e := newEngine(t, "A1", "A2", "A3")
	ctx := context.Background()

	for _, vehicle := range []string{"V1", "V2", "V3", "V4"} {
		_, err := e.lifecycle.RecordEntry(ctx, vehicle)
		require.NoError(t, err)
		e.settle(t)
	}

	require.Equal(t, "V1", e.slotByCode(t, "A1").Occupant)
	require.Equal(t, "V2", e.slotByCode(t, "A2").Occupant)
	require.Equal(t, "V3", e.slotByCode(t, "A3").Occupant)

	// V4 is parked on paper only: the session exists, no slot does.
	active, err := e.lifecycle.ActiveSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, active, 4)

	_, err = e.lifecycle.RecordExit(ctx, "V2")
	require.NoError(t, err)
	e.settle(t)

	freed := e.slotByCode(t, "A2")
	require.Equal(t, models.SlotStatusFree, freed.Status)
	require.Empty(t, freed.Occupant)

	_, err = e.lifecycle.RecordEntry(ctx, "V5")
	require.NoError(t, err)
	e.settle(t)

	require.Equal(t, "V5", e.slotByCode(t, "A2").Occupant)
}

func TestExitWithoutSlotIsHarmless(t *testing.T) {
	e := newEngine(t, "A1")
	ctx := context.Background()

	// Fill the facility, then let a slotless vehicle pass through.
	_, err := e.lifecycle.RecordEntry(ctx, "V1")
	require.NoError(t, err)
	_, err = e.lifecycle.RecordEntry(ctx, "V2")
	require.NoError(t, err)
	e.settle(t)

	require.Equal(t, "V1", e.slotByCode(t, "A1").Occupant)

	_, err = e.lifecycle.RecordExit(ctx, "V2")
	require.NoError(t, err)
	e.settle(t)

	// V1 keeps its slot; V2's exit freed nothing but still got billed.
	require.Equal(t, "V1", e.slotByCode(t, "A1").Occupant)

	invoices, err := e.invoices.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.Equal(t, "V2", invoices[0].VehicleNumber)
}

func TestRoundTripBilling(t *testing.T) {
	e := newEngine(t, "A1", "A2", "A3")
	ctx := context.Background()

	_, err := e.lifecycle.RecordEntry(ctx, "KA-01-HH-1234")
	require.NoError(t, err)
	e.settle(t)

	e.clock.Advance(90 * time.Minute)

	_, err = e.lifecycle.RecordExit(ctx, "KA-01-HH-1234")
	require.NoError(t, err)
	e.settle(t)

	total, err := e.billing.TotalBilled(ctx)
	require.NoError(t, err)
	require.InDelta(t, 75, total, 1e-9)
}

func TestShortVisitPaysMinimumFare(t *testing.T) {
	e := newEngine(t, "A1")
	ctx := context.Background()

	_, err := e.lifecycle.RecordEntry(ctx, "KA-01")
	require.NoError(t, err)
	e.settle(t)

	e.clock.Advance(10 * time.Minute)

	_, err = e.lifecycle.RecordExit(ctx, "KA-01")
	require.NoError(t, err)
	e.settle(t)

	total, err := e.billing.TotalBilled(ctx)
	require.NoError(t, err)
	require.InDelta(t, 20, total, 1e-9)
}

func TestExitWithoutEntryCreatesNoInvoice(t *testing.T) {
	e := newEngine(t, "A1")
	ctx := context.Background()

	_, err := e.lifecycle.RecordExit(ctx, "ghost")
	require.Error(t, err)
	e.settle(t)

	total, err := e.billing.TotalBilled(ctx)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestConcurrentEntriesAllocateEachSlotOnce(t *testing.T) {
	const slotCount = 3
	const vehicles = 10

	e := newEngine(t, "A1", "A2", "A3")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < vehicles; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.lifecycle.RecordEntry(ctx, fmt.Sprintf("V%02d", i))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()
	e.settle(t)

	slots, err := e.allocation.Slots(ctx)
	require.NoError(t, err)
	require.Len(t, slots, slotCount)

	occupants := make(map[string]struct{})
	for _, s := range slots {
		require.Equal(t, models.SlotStatusOccupied, s.Status)
		_, dup := occupants[s.Occupant]
		require.False(t, dup, "vehicle %s holds two slots", s.Occupant)
		occupants[s.Occupant] = struct{}{}
	}
	require.Len(t, occupants, slotCount)

	// Every vehicle is recorded even though most got no slot.
	active, err := e.lifecycle.ActiveSessions(ctx, 100)
	require.NoError(t, err)
	require.Len(t, active, vehicles)
}
