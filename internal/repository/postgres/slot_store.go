package postgres

import (
	"context"
	"database/sql"
	"errors"

	"parkgate/internal/models"
	"parkgate/internal/parkerr"
)

// SlotStore owns parking_slots. The claim runs as a single UPDATE over a
// FOR UPDATE SKIP LOCKED subselect, so concurrent entries never take the
// same slot.
type SlotStore struct {
	db *sql.DB
}

// NewSlotStore returns the store.
func NewSlotStore(db *sql.DB) *SlotStore {
	return &SlotStore{db: db}
}

// SeedIfEmpty creates the slot set exactly once.
func (s *SlotStore) SeedIfEmpty(ctx context.Context, codes []string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_slots`).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	const insert = `INSERT INTO parking_slots (slot_code, status) VALUES ($1, $2)`
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, insert, code, models.SlotStatusFree); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// Allocate claims the smallest free slot for the vehicle, or returns the
// slot it already occupies.
func (s *SlotStore) Allocate(ctx context.Context, vehicleNumber string) (*models.Slot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const existing = `
		SELECT id, slot_code, status, occupant
		FROM parking_slots
		WHERE occupant = $1
	`
	slot := &models.Slot{}
	var occupant sql.NullString
	err = tx.QueryRowContext(ctx, existing, vehicleNumber).Scan(&slot.ID, &slot.SlotCode, &slot.Status, &occupant)
	if err == nil {
		slot.Occupant = occupant.String
		return slot, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	const claim = `
		UPDATE parking_slots
		SET status = $2, occupant = $1
		WHERE id = (
			SELECT id FROM parking_slots
			WHERE status = $3
			ORDER BY slot_code
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, slot_code
	`
	err = tx.QueryRowContext(ctx, claim, vehicleNumber, models.SlotStatusOccupied, models.SlotStatusFree).
		Scan(&slot.ID, &slot.SlotCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, parkerr.ErrNoFreeSlot
	}
	if err != nil {
		return nil, err
	}
	slot.Status = models.SlotStatusOccupied
	slot.Occupant = vehicleNumber
	return slot, tx.Commit()
}

// Release frees the vehicle's slot, if any.
func (s *SlotStore) Release(ctx context.Context, vehicleNumber string) (*models.Slot, error) {
	const query = `
		UPDATE parking_slots
		SET status = $2, occupant = NULL
		WHERE occupant = $1
		RETURNING id, slot_code
	`
	slot := &models.Slot{Status: models.SlotStatusFree}
	err := s.db.QueryRowContext(ctx, query, vehicleNumber, models.SlotStatusFree).
		Scan(&slot.ID, &slot.SlotCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// List returns the inventory ordered by slot code.
func (s *SlotStore) List(ctx context.Context) ([]models.Slot, error) {
	const query = `
		SELECT id, slot_code, status, COALESCE(occupant, '')
		FROM parking_slots
		ORDER BY slot_code
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(&slot.ID, &slot.SlotCode, &slot.Status, &slot.Occupant); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}
