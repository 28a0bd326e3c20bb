// Package memory provides mutex-guarded in-memory stores. It is the default
// backend and the one the deterministic engine tests run against; the
// postgres package mirrors the same contracts for durable deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"parkgate/internal/models"
	"parkgate/internal/parkerr"
)

// SessionStore keeps the append-only visit history in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions []*models.Session
	active   map[string]*models.Session
	outbox   *OutboxStore
	nextID   int64
}

// NewSessionStore returns a store that parks events in the given outbox.
func NewSessionStore(outbox *OutboxStore) *SessionStore {
	return &SessionStore{
		active: make(map[string]*models.Session),
		outbox: outbox,
		nextID: 1,
	}
}

// CreateActive records a new active session and its entered event.
func (s *SessionStore) CreateActive(ctx context.Context, session *models.Session, entry *models.OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[session.VehicleNumber]; ok {
		return parkerr.ErrDuplicateActiveSession
	}

	now := time.Now().UTC()
	session.ID = s.nextID
	s.nextID++
	session.Status = models.SessionStatusActive
	session.CreatedAt = now
	session.UpdatedAt = now

	s.sessions = append(s.sessions, session)
	s.active[session.VehicleNumber] = session

	// The entry becomes visible to the dispatcher only now, after the
	// session itself is recorded.
	s.outbox.append(entry)
	return nil
}

// ActiveByVehicle returns a copy of the vehicle's active session.
func (s *SessionStore) ActiveByVehicle(ctx context.Context, vehicleNumber string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.active[vehicleNumber]
	if !ok {
		return nil, parkerr.ErrNoActiveSession
	}
	copied := *session
	return &copied, nil
}

// Close transitions the active session to closed and parks the exited event.
func (s *SessionStore) Close(ctx context.Context, vehicleNumber string, exitTime time.Time, entry *models.OutboxEntry) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.active[vehicleNumber]
	if !ok {
		return nil, parkerr.ErrNoActiveSession
	}

	session.Status = models.SessionStatusClosed
	session.ExitTime = exitTime
	session.UpdatedAt = time.Now().UTC()
	delete(s.active, vehicleNumber)

	s.outbox.append(entry)

	copied := *session
	return &copied, nil
}

// ListActive returns active sessions, newest entry first.
func (s *SessionStore) ListActive(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Session
	for i := len(s.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.sessions[i].Status == models.SessionStatusActive {
			out = append(out, *s.sessions[i])
		}
	}
	return out, nil
}
