package postgres

import (
	"context"
	"database/sql"

	"parkgate/internal/models"
)

// OutboxStore reads the pending side of outbox_events for the dispatcher.
// Rows are written by SessionStore inside the session transactions.
type OutboxStore struct {
	db *sql.DB
}

// NewOutboxStore returns the store.
func NewOutboxStore(db *sql.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// ListPending returns undispatched entries in insert order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, event_type, vehicle_number, payload, dispatched, created_at
		FROM outbox_events
		WHERE dispatched = FALSE
		ORDER BY id
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.VehicleNumber, &e.Payload, &e.Dispatched, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// MarkDispatched flags entries as delivered to the bus.
func (s *OutboxStore) MarkDispatched(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	// The pgx stdlib driver maps []int64 to int8[].
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET dispatched = TRUE WHERE id = ANY($1)`,
		ids,
	)
	return err
}

// PendingCount reports the backlog size.
func (s *OutboxStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox_events WHERE dispatched = FALSE`).Scan(&count)
	return count, err
}
