// Package repository declares the store contracts of the parking core.
// Session mutation belongs to the lifecycle manager, slot mutation to the
// allocation engine and invoice creation to billing; no component touches
// another's store.
package repository

import (
	"context"
	"time"

	"parkgate/internal/models"
)

// SessionStore persists visits together with their outbox entries. The
// session write and the outbox append are one atomic unit so that no event
// can be observed for a session that was not durably recorded.
type SessionStore interface {
	// CreateActive records a new active session and parks the entered event.
	// Returns parkerr.ErrDuplicateActiveSession when the vehicle already has
	// an active session.
	CreateActive(ctx context.Context, session *models.Session, entry *models.OutboxEntry) error

	// ActiveByVehicle returns the active session for the vehicle or
	// parkerr.ErrNoActiveSession.
	ActiveByVehicle(ctx context.Context, vehicleNumber string) (*models.Session, error)

	// Close transitions the vehicle's active session to closed, stamps the
	// exit time and parks the exited event atomically. Returns
	// parkerr.ErrNoActiveSession when there is nothing to close.
	Close(ctx context.Context, vehicleNumber string, exitTime time.Time, entry *models.OutboxEntry) (*models.Session, error)

	// ListActive returns currently active sessions, newest first.
	ListActive(ctx context.Context, limit int) ([]models.Session, error)
}

// SlotStore owns the physical slot inventory. Allocate and Release are
// atomic with respect to each other across all vehicles.
type SlotStore interface {
	// SeedIfEmpty creates the slot set exactly once. Reports whether seeding
	// happened.
	SeedIfEmpty(ctx context.Context, codes []string) (bool, error)

	// Allocate claims the lexicographically smallest free slot for the
	// vehicle. When the vehicle already occupies a slot the existing slot is
	// returned unchanged, which makes redelivery harmless. Returns
	// parkerr.ErrNoFreeSlot when the facility is full.
	Allocate(ctx context.Context, vehicleNumber string) (*models.Slot, error)

	// Release frees the slot occupied by the vehicle. Returns (nil, nil)
	// when the vehicle holds no slot; freeing is idempotent.
	Release(ctx context.Context, vehicleNumber string) (*models.Slot, error)

	// List returns the full inventory ordered by slot code.
	List(ctx context.Context) ([]models.Slot, error)
}

// InvoiceStore persists billing records exactly once per closed session.
type InvoiceStore interface {
	// Create inserts the invoice unless one already exists for the same
	// (vehicle number, issued-at) pair. Reports whether a row was created.
	Create(ctx context.Context, invoice *models.Invoice) (bool, error)

	// TotalAmount sums all persisted invoices.
	TotalAmount(ctx context.Context) (float64, error)

	// List returns invoices, newest first.
	List(ctx context.Context, limit int) ([]models.Invoice, error)
}

// OutboxStore exposes the pending side of the outbox to the dispatcher.
type OutboxStore interface {
	// ListPending returns undispatched entries in append order.
	ListPending(ctx context.Context, limit int) ([]models.OutboxEntry, error)

	// MarkDispatched flags entries as delivered to the bus.
	MarkDispatched(ctx context.Context, ids []int64) error

	// PendingCount reports the backlog size.
	PendingCount(ctx context.Context) (int, error)
}
