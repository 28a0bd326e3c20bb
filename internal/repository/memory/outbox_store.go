package memory

import (
	"context"
	"sync"
	"time"

	"parkgate/internal/models"
)

// OutboxStore keeps pending event publications in memory, in append order.
type OutboxStore struct {
	mu      sync.Mutex
	entries []*models.OutboxEntry
	nextID  int64
}

// NewOutboxStore returns an empty outbox.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{nextID: 1}
}

// append is called by the session store while it holds its own write path;
// entries become visible to the dispatcher only after the session write.
func (s *OutboxStore) append(entry *models.OutboxEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	entry.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, entry)
}

// ListPending returns undispatched entries in append order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []models.OutboxEntry
	for _, e := range s.entries {
		if e.Dispatched {
			continue
		}
		pending = append(pending, *e)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// MarkDispatched flags entries as delivered.
func (s *OutboxStore) MarkDispatched(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if _, ok := set[e.ID]; ok {
			e.Dispatched = true
		}
	}
	return nil
}

// PendingCount reports the backlog size.
func (s *OutboxStore) PendingCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.entries {
		if !e.Dispatched {
			count++
		}
	}
	return count, nil
}
