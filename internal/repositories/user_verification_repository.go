package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"recipebox/internal/models"
)

// Attempt events.
const (
	AttemptStarted  = "started"
	AttemptFailed   = "failed"
	AttemptVerified = "verified"
)

// AttemptRepository keeps the outcomes of code screens on this device, newest
// last. Codes and tokens are never recorded.
type AttemptRepository interface {
	Migrate(ctx context.Context) error
	Record(ctx context.Context, a *models.VerificationAttempt) error
	// Recent returns up to limit attempts for email, newest first.
	Recent(ctx context.Context, email string, limit int) ([]models.VerificationAttempt, error)
}

type attemptRepository struct {
	DB     *sql.DB
	driver string
}

func NewAttemptRepository(db *sql.DB, driver string) AttemptRepository {
	return &attemptRepository{DB: db, driver: driver}
}

func (r *attemptRepository) Migrate(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY"
	if r.driver == "postgres" {
		id = "BIGSERIAL PRIMARY KEY"
	}
	q := `
		CREATE TABLE IF NOT EXISTS verification_attempts (
			id      ` + id + `,
			flow_id TEXT NOT NULL,
			email   TEXT NOT NULL,
			purpose TEXT NOT NULL,
			event   TEXT NOT NULL,
			reason  TEXT NOT NULL DEFAULT '',
			at      BIGINT NOT NULL
		)
	`
	if _, err := r.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("verification_attempts migrate: %w", err)
	}
	return nil
}

func (r *attemptRepository) Record(ctx context.Context, a *models.VerificationAttempt) error {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	q := rebind(r.driver, `
		INSERT INTO verification_attempts (flow_id, email, purpose, event, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.DB.QueryRowContext(ctx, q, a.FlowID, a.Email, a.Purpose, a.Event, a.Reason, a.At.UnixMilli()).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("verification_attempts record: %w", err)
	}
	return nil
}

func (r *attemptRepository) Recent(ctx context.Context, email string, limit int) ([]models.VerificationAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	q := rebind(r.driver, `
		SELECT id, flow_id, email, purpose, event, reason, at
		FROM verification_attempts
		WHERE email = ?
		ORDER BY id DESC
		LIMIT ?
	`)
	rows, err := r.DB.QueryContext(ctx, q, email, limit)
	if err != nil {
		return nil, fmt.Errorf("verification_attempts recent: %w", err)
	}
	defer rows.Close()

	var out []models.VerificationAttempt
	for rows.Next() {
		var (
			a  models.VerificationAttempt
			at int64
		)
		if err := rows.Scan(&a.ID, &a.FlowID, &a.Email, &a.Purpose, &a.Event, &a.Reason, &at); err != nil {
			return nil, fmt.Errorf("verification_attempts scan: %w", err)
		}
		a.At = time.UnixMilli(at)
		out = append(out, a)
	}
	return out, rows.Err()
}
