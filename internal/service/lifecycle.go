package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"parkgate/internal/cache"
	"parkgate/internal/events"
	"parkgate/internal/keymutex"
	"parkgate/internal/models"
	"parkgate/internal/parkerr"
	"parkgate/internal/repository"
)

// Waker is the outbox dispatcher as the lifecycle manager sees it.
type Waker interface {
	Wake()
}

// LifecycleService owns session state. Entry and exit serialize per vehicle
// through a keyed mutex; distinct vehicles proceed independently. Every
// successful call writes the session and its event in one atomic store
// operation, then nudges the dispatcher.
type LifecycleService struct {
	sessions   repository.SessionStore
	locks      *keymutex.KeyedMutex
	dispatcher Waker
	cache      *cache.ActiveSessions
	logger     *zap.Logger
	lockWait   time.Duration
	now        func() time.Time
}

// NewLifecycleService builds the service. cache may be nil.
func NewLifecycleService(
	sessions repository.SessionStore,
	dispatcher Waker,
	activeCache *cache.ActiveSessions,
	logger *zap.Logger,
	lockWait time.Duration,
) *LifecycleService {
	if lockWait <= 0 {
		lockWait = 2 * time.Second
	}
	return &LifecycleService{
		sessions:   sessions,
		locks:      keymutex.New(),
		dispatcher: dispatcher,
		cache:      activeCache,
		logger:     logger,
		lockWait:   lockWait,
		now:        time.Now,
	}
}

// WithClock replaces the wall clock. Intended for tests.
func (s *LifecycleService) WithClock(now func() time.Time) *LifecycleService {
	s.now = now
	return s
}

// RecordEntry opens a session for the vehicle and publishes VehicleEntered.
func (s *LifecycleService) RecordEntry(ctx context.Context, vehicleNumber string) (time.Time, error) {
	unlock, err := s.lockVehicle(ctx, vehicleNumber)
	if err != nil {
		return time.Time{}, err
	}
	defer unlock()

	entryTime := s.now().UTC()
	evt := events.VehicleEntered{VehicleNumber: vehicleNumber, EntryTime: entryTime}
	payload, err := events.Encode(evt)
	if err != nil {
		return time.Time{}, err
	}

	session := &models.Session{VehicleNumber: vehicleNumber, EntryTime: entryTime}
	entry := &models.OutboxEntry{
		EventType:     evt.Type(),
		VehicleNumber: vehicleNumber,
		Payload:       payload,
	}
	if err := s.sessions.CreateActive(ctx, session, entry); err != nil {
		return time.Time{}, err
	}
	s.dispatcher.Wake()

	if s.cache != nil {
		cacheErr := s.cache.Save(ctx, cache.ActiveVisit{
			SessionID:     session.ID,
			VehicleNumber: vehicleNumber,
			EntryTime:     entryTime,
		})
		if cacheErr != nil && cacheErr != redis.Nil {
			s.logger.Warn("failed to cache active visit", zap.Error(cacheErr))
		}
	}

	s.logger.Info("vehicle entered",
		zap.String("vehicle_number", vehicleNumber),
		zap.Time("entry_time", entryTime),
		zap.Int64("session_id", session.ID),
	)
	return entryTime, nil
}

// RecordExit closes the vehicle's active session and publishes VehicleExited.
func (s *LifecycleService) RecordExit(ctx context.Context, vehicleNumber string) (time.Time, error) {
	unlock, err := s.lockVehicle(ctx, vehicleNumber)
	if err != nil {
		return time.Time{}, err
	}
	defer unlock()

	// Safe two-step: the per-vehicle lock keeps the session from changing
	// between the read and the close.
	active, err := s.sessions.ActiveByVehicle(ctx, vehicleNumber)
	if err != nil {
		return time.Time{}, err
	}

	exitTime := s.now().UTC()
	evt := events.VehicleExited{
		VehicleNumber: vehicleNumber,
		EntryTime:     active.EntryTime,
		ExitTime:      exitTime,
	}
	payload, err := events.Encode(evt)
	if err != nil {
		return time.Time{}, err
	}

	entry := &models.OutboxEntry{
		EventType:     evt.Type(),
		VehicleNumber: vehicleNumber,
		Payload:       payload,
	}
	if _, err := s.sessions.Close(ctx, vehicleNumber, exitTime, entry); err != nil {
		return time.Time{}, err
	}
	s.dispatcher.Wake()

	if s.cache != nil {
		if err := s.cache.Delete(ctx, vehicleNumber); err != nil && err != redis.Nil {
			s.logger.Warn("failed to drop active visit cache", zap.Error(err))
		}
	}

	s.logger.Info("vehicle exited",
		zap.String("vehicle_number", vehicleNumber),
		zap.Time("exit_time", exitTime),
	)
	return exitTime, nil
}

// ActiveSessions returns currently open visits.
func (s *LifecycleService) ActiveSessions(ctx context.Context, limit int) ([]models.Session, error) {
	return s.sessions.ListActive(ctx, limit)
}

// ActiveVisit returns the vehicle's open visit. With a cache configured the
// lookup is served from it; a miss or a cache failure falls back to the
// session store, which stays the source of truth.
func (s *LifecycleService) ActiveVisit(ctx context.Context, vehicleNumber string) (*models.Session, error) {
	if s.cache != nil {
		visit, err := s.cache.Get(ctx, vehicleNumber)
		if err == nil {
			return &models.Session{
				ID:            visit.SessionID,
				VehicleNumber: visit.VehicleNumber,
				Status:        models.SessionStatusActive,
				EntryTime:     visit.EntryTime,
			}, nil
		}
		if err != redis.Nil {
			s.logger.Warn("active visit cache read failed",
				zap.String("vehicle_number", vehicleNumber),
				zap.Error(err),
			)
		}
	}
	return s.sessions.ActiveByVehicle(ctx, vehicleNumber)
}

func (s *LifecycleService) lockVehicle(ctx context.Context, vehicleNumber string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	unlock, err := s.locks.Lock(lockCtx, vehicleNumber)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, parkerr.ErrContentionTimeout
		}
		return nil, err
	}
	return unlock, nil
}
