package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parkgate/internal/parkerr"
	"parkgate/internal/repository/memory"
	"parkgate/internal/service"
)

type countingWaker struct {
	mu    sync.Mutex
	wakes int
}

func (w *countingWaker) Wake() {
	w.mu.Lock()
	w.wakes++
	w.mu.Unlock()
}

func (w *countingWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wakes
}

func newLifecycle(t *testing.T) (*service.LifecycleService, *memory.OutboxStore, *countingWaker) {
	t.Helper()
	ob := memory.NewOutboxStore()
	sessions := memory.NewSessionStore(ob)
	waker := &countingWaker{}
	svc := service.NewLifecycleService(sessions, waker, nil, zap.NewNop(), time.Second)
	return svc, ob, waker
}

func TestRecordEntryParksEventAndWakes(t *testing.T) {
	svc, ob, waker := newLifecycle(t)
	ctx := context.Background()

	entryTime, err := svc.RecordEntry(ctx, "KA-01")
	require.NoError(t, err)
	require.False(t, entryTime.IsZero())

	pending, err := ob.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 1, waker.count())

	active, err := svc.ActiveSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "KA-01", active[0].VehicleNumber)
}

func TestRecordEntryRejectsSecondActiveSession(t *testing.T) {
	svc, ob, _ := newLifecycle(t)
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, "KA-01")
	require.NoError(t, err)

	_, err = svc.RecordEntry(ctx, "KA-01")
	require.ErrorIs(t, err, parkerr.ErrDuplicateActiveSession)

	// Failed calls emit nothing.
	pending, err := ob.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestRecordExitWithoutEntry(t *testing.T) {
	svc, ob, _ := newLifecycle(t)
	ctx := context.Background()

	_, err := svc.RecordExit(ctx, "KA-01")
	require.ErrorIs(t, err, parkerr.ErrNoActiveSession)

	pending, err := ob.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestRecordEntryThenExitRoundTrip(t *testing.T) {
	svc, ob, waker := newLifecycle(t)
	ctx := context.Background()

	_, err := svc.RecordEntry(ctx, "KA-01")
	require.NoError(t, err)

	exitTime, err := svc.RecordExit(ctx, "KA-01")
	require.NoError(t, err)
	require.False(t, exitTime.IsZero())

	pending, err := ob.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, 2, waker.count())

	active, err := svc.ActiveSessions(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, active)

	// The facility is free for the vehicle again.
	_, err = svc.RecordEntry(ctx, "KA-01")
	require.NoError(t, err)
}

func TestActiveVisitFallsBackToStore(t *testing.T) {
	svc, _, _ := newLifecycle(t)
	ctx := context.Background()

	_, err := svc.ActiveVisit(ctx, "KA-01")
	require.ErrorIs(t, err, parkerr.ErrNoActiveSession)

	entryTime, err := svc.RecordEntry(ctx, "KA-01")
	require.NoError(t, err)

	visit, err := svc.ActiveVisit(ctx, "KA-01")
	require.NoError(t, err)
	require.Equal(t, "KA-01", visit.VehicleNumber)
	require.Equal(t, entryTime, visit.EntryTime)

	_, err = svc.RecordExit(ctx, "KA-01")
	require.NoError(t, err)

	_, err = svc.ActiveVisit(ctx, "KA-01")
	require.ErrorIs(t, err, parkerr.ErrNoActiveSession)
}

func TestConcurrentEntriesForSameVehicle(t *testing.T) {
	svc, _, _ := newLifecycle(t)
	ctx := context.Background()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordEntry(ctx, "KA-01")
		}(i)
	}
	wg.Wait()

	var succeeded, duplicated int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, parkerr.ErrDuplicateActiveSession)
			duplicated++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, attempts-1, duplicated)

	active, err := svc.ActiveSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestRandomInterleavingKeepsOneActiveSessionPerVehicle(t *testing.T) {
	svc, _, _ := newLifecycle(t)
	ctx := context.Background()

	vehicles := []string{"KA-01", "KA-02", "KA-03", "KA-04"}
	var wg sync.WaitGroup
	for _, vehicle := range vehicles {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(vehicle string, i int) {
				defer wg.Done()
				if i%2 == 0 {
					_, _ = svc.RecordEntry(ctx, vehicle)
				} else {
					_, _ = svc.RecordExit(ctx, vehicle)
				}
			}(vehicle, i)
		}
	}
	wg.Wait()

	active, err := svc.ActiveSessions(ctx, 100)
	require.NoError(t, err)

	perVehicle := make(map[string]int)
	for _, s := range active {
		perVehicle[s.VehicleNumber]++
	}
	for vehicle, count := range perVehicle {
		require.LessOrEqual(t, count, 1, "vehicle %s has %d active sessions", vehicle, count)
	}
}
