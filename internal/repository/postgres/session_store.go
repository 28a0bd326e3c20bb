// Package postgres implements the store contracts over database/sql with
// the pgx stdlib driver. Schema lives in migrations/0001_init.sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"parkgate/internal/models"
	"parkgate/internal/parkerr"
)

const uniqueViolation = "23505"

// SessionStore persists visits in parking_sessions and parks events in
// outbox_events within the same transaction.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore returns the store.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// CreateActive inserts the session and its outbox entry in one transaction.
// A partial unique index on (vehicle_number) WHERE status='active' enforces
// the single-active-session invariant.
func (s *SessionStore) CreateActive(ctx context.Context, session *models.Session, entry *models.OutboxEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertSession = `
		INSERT INTO parking_sessions (vehicle_number, status, entry_time, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, insertSession,
		session.VehicleNumber,
		models.SessionStatusActive,
		session.EntryTime,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return parkerr.ErrDuplicateActiveSession
		}
		return err
	}
	session.Status = models.SessionStatusActive

	if err := insertOutbox(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// ActiveByVehicle returns the vehicle's active session.
func (s *SessionStore) ActiveByVehicle(ctx context.Context, vehicleNumber string) (*models.Session, error) {
	const query = `
		SELECT id, vehicle_number, status, entry_time, COALESCE(exit_time, 'epoch'::timestamptz), created_at, updated_at
		FROM parking_sessions
		WHERE vehicle_number = $1 AND status = $2
	`
	var session models.Session
	err := s.db.QueryRowContext(ctx, query, vehicleNumber, models.SessionStatusActive).Scan(
		&session.ID,
		&session.VehicleNumber,
		&session.Status,
		&session.EntryTime,
		&session.ExitTime,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, parkerr.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Close stamps the exit time, flips the status and parks the exited event,
// all in one transaction.
func (s *SessionStore) Close(ctx context.Context, vehicleNumber string, exitTime time.Time, entry *models.OutboxEntry) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const closeSession = `
		UPDATE parking_sessions
		SET status = $3, exit_time = $2, updated_at = NOW()
		WHERE vehicle_number = $1 AND status = $4
		RETURNING id, entry_time, created_at, updated_at
	`
	session := &models.Session{
		VehicleNumber: vehicleNumber,
		Status:        models.SessionStatusClosed,
		ExitTime:      exitTime,
	}
	err = tx.QueryRowContext(ctx, closeSession,
		vehicleNumber,
		exitTime,
		models.SessionStatusClosed,
		models.SessionStatusActive,
	).Scan(&session.ID, &session.EntryTime, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, parkerr.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}

	if err := insertOutbox(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return session, nil
}

// ListActive returns active sessions, newest first.
func (s *SessionStore) ListActive(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, vehicle_number, status, entry_time, created_at, updated_at
		FROM parking_sessions
		WHERE status = $1
		ORDER BY entry_time DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, models.SessionStatusActive, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.VehicleNumber,
			&session.Status,
			&session.EntryTime,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, entry *models.OutboxEntry) error {
	const query = `
		INSERT INTO outbox_events (event_type, vehicle_number, payload, dispatched, created_at)
		VALUES ($1, $2, $3, FALSE, NOW())
		RETURNING id, created_at
	`
	return tx.QueryRowContext(ctx, query,
		entry.EventType,
		entry.VehicleNumber,
		entry.Payload,
	).Scan(&entry.ID, &entry.CreatedAt)
}
