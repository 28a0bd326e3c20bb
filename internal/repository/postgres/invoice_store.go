package postgres

import (
	"context"
	"database/sql"
	"errors"

	"parkgate/internal/models"
)

// InvoiceStore persists billing records. A unique index on
// (vehicle_number, issued_at) plus ON CONFLICT DO NOTHING makes Create
// idempotent under concurrent redelivery.
type InvoiceStore struct {
	db *sql.DB
}

// NewInvoiceStore returns the store.
func NewInvoiceStore(db *sql.DB) *InvoiceStore {
	return &InvoiceStore{db: db}
}

// Create inserts the invoice unless the dedup pair exists already.
func (s *InvoiceStore) Create(ctx context.Context, invoice *models.Invoice) (bool, error) {
	const query = `
		INSERT INTO invoices (vehicle_number, amount, issued_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (vehicle_number, issued_at) DO NOTHING
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		invoice.VehicleNumber,
		invoice.Amount,
		invoice.IssuedAt,
	).Scan(&invoice.ID, &invoice.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TotalAmount sums all invoices.
func (s *InvoiceStore) TotalAmount(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM invoices`).Scan(&total)
	return total, err
}

// List returns invoices, newest first.
func (s *InvoiceStore) List(ctx context.Context, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, vehicle_number, amount, issued_at, created_at
		FROM invoices
		ORDER BY issued_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(&inv.ID, &inv.VehicleNumber, &inv.Amount, &inv.IssuedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}
