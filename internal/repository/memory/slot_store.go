package memory

import (
	"context"
	"sort"
	"sync"

	"parkgate/internal/models"
	"parkgate/internal/parkerr"
)

// SlotStore holds the slot inventory behind a single allocation lock.
// Check-free-then-mark-occupied runs under one critical section, so two
// concurrent allocations can never claim the same slot.
type SlotStore struct {
	mu    sync.Mutex
	slots []*models.Slot
}

// NewSlotStore returns an empty inventory.
func NewSlotStore() *SlotStore {
	return &SlotStore{}
}

// SeedIfEmpty creates the slot set exactly once.
func (s *SlotStore) SeedIfEmpty(ctx context.Context, codes []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.slots) > 0 {
		return false, nil
	}

	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	for i, code := range sorted {
		s.slots = append(s.slots, &models.Slot{
			ID:       int64(i + 1),
			SlotCode: code,
			Status:   models.SlotStatusFree,
		})
	}
	return true, nil
}

// Allocate claims the smallest free slot for the vehicle. A vehicle that
// already occupies a slot gets that slot back unchanged.
func (s *SlotStore) Allocate(ctx context.Context, vehicleNumber string) (*models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range s.slots {
		if slot.Occupant == vehicleNumber && slot.Status == models.SlotStatusOccupied {
			copied := *slot
			return &copied, nil
		}
	}

	// Slots are kept sorted by code since seeding, so the first free one is
	// the lexicographically smallest.
	for _, slot := range s.slots {
		if slot.Status == models.SlotStatusFree {
			slot.Status = models.SlotStatusOccupied
			slot.Occupant = vehicleNumber
			copied := *slot
			return &copied, nil
		}
	}
	return nil, parkerr.ErrNoFreeSlot
}

// Release frees the vehicle's slot, if any.
func (s *SlotStore) Release(ctx context.Context, vehicleNumber string) (*models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range s.slots {
		if slot.Occupant == vehicleNumber {
			slot.Status = models.SlotStatusFree
			slot.Occupant = ""
			copied := *slot
			return &copied, nil
		}
	}
	return nil, nil
}

// List returns the inventory ordered by slot code.
func (s *SlotStore) List(ctx context.Context) ([]models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, *slot)
	}
	return out, nil
}
