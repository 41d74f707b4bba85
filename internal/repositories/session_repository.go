package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/clipvault/backend/internal/db"
	"github.com/clipvault/backend/internal/models"
)

// PostgresSessionStore persists the session registry to PostgreSQL. Each
// mutation touches exactly one row, so concurrent logins and logouts never
// need an application-level lock: the row-level atomicity of the store is
// the only synchronization primitive in play.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Insert appends a session entry to the registry.
func (s *PostgresSessionStore) Insert(ctx context.Context, session models.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (id, user_id, issued_at)
        VALUES ($1, $2, $3)
    `, session.ID, session.UserID, session.IssuedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Exists reports registry membership for the session id.
func (s *PostgresSessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)
    `, sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select session: %w", err)
	}

	return exists, nil
}

// Delete removes a session entry. Deleting an absent entry is not an error,
// which makes logout idempotent.
func (s *PostgresSessionStore) Delete(ctx context.Context, sessionID string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE id = $1
    `, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// DeleteOlderThan compacts the registry by removing entries issued before
// the cutoff. Not required for correctness, only for bounded growth.
func (s *PostgresSessionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE issued_at < $1
    `, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}
