package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recipebox/internal/models"
	"recipebox/internal/utils"
)

// SessionRepository persists the one signed-in account on this device.
type SessionRepository interface {
	Migrate(ctx context.Context) error
	Save(ctx context.Context, s *models.AuthSession) error
	// Load returns nil, nil when nobody is signed in.
	Load(ctx context.Context) (*models.AuthSession, error)
	Delete(ctx context.Context) error
}

type sessionRepository struct {
	DB     *sql.DB
	driver string
	sealer *utils.Sealer
}

func NewSessionRepository(db *sql.DB, driver string, sealer *utils.Sealer) SessionRepository {
	return &sessionRepository{DB: db, driver: driver, sealer: sealer}
}

func (r *sessionRepository) Migrate(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS auth_sessions (
			id                INTEGER PRIMARY KEY,
			user_id           TEXT NOT NULL,
			email             TEXT NOT NULL,
			access_token      TEXT NOT NULL,
			refresh_token     TEXT NOT NULL,
			access_expires_at BIGINT NOT NULL,
			created_at        BIGINT NOT NULL
		)
	`
	if _, err := r.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("auth_sessions migrate: %w", err)
	}
	return nil
}

func (r *sessionRepository) Save(ctx context.Context, s *models.AuthSession) error {
	access, err := r.sealer.Seal(s.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.sealer.Seal(s.RefreshToken)
	if err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	var expires int64
	if !s.AccessExpiresAt.IsZero() {
		expires = s.AccessExpiresAt.Unix()
	}

	q := rebind(r.driver, `
		INSERT INTO auth_sessions (id, user_id, email, access_token, refresh_token, access_expires_at, created_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			access_expires_at = excluded.access_expires_at,
			created_at = excluded.created_at
	`)
	if _, err := r.DB.ExecContext(ctx, q, s.UserID, s.Email, access, refresh, expires, s.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("auth_sessions save: %w", err)
	}
	return nil
}

func (r *sessionRepository) Load(ctx context.Context) (*models.AuthSession, error) {
	const q = `
		SELECT user_id, email, access_token, refresh_token, access_expires_at, created_at
		FROM auth_sessions
		WHERE id = 1
	`
	var (
		s                models.AuthSession
		access, refresh  string
		expires, created int64
	)
	err := r.DB.QueryRowContext(ctx, q).Scan(&s.UserID, &s.Email, &access, &refresh, &expires, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth_sessions load: %w", err)
	}

	if s.AccessToken, err = r.sealer.Open(access); err != nil {
		return nil, fmt.Errorf("auth_sessions access token: %w", err)
	}
	if s.RefreshToken, err = r.sealer.Open(refresh); err != nil {
		return nil, fmt.Errorf("auth_sessions refresh token: %w", err)
	}
	if expires > 0 {
		s.AccessExpiresAt = time.Unix(expires, 0)
	}
	s.CreatedAt = time.Unix(created, 0)
	return &s, nil
}

func (r *sessionRepository) Delete(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = 1`)
	return err
}
