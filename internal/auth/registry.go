package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clipvault/backend/internal/models"
)

// SessionStore is the backing collection for the session registry. Insert
// and Delete must be atomic element-level operations against the store;
// the registry never reads and rewrites the whole collection.
type SessionStore interface {
	Insert(ctx context.Context, session models.Session) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Registry tracks the set of live logins. A bearer token is honoured only
// while its session id is a member, so removing an entry revokes every
// token that references it regardless of the token's own expiry.
type Registry struct {
	store SessionStore
	now   func() time.Time
}

// NewRegistry constructs a Registry over the provided store.
func NewRegistry(store SessionStore) *Registry {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Registry{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Create records a fresh session for the user and returns it.
func (r *Registry) Create(ctx context.Context, userID string) (models.Session, error) {
	if userID == "" {
		return models.Session{}, errors.New("user id must be provided")
	}

	session := models.Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		IssuedAt: r.now(),
	}

	if err := r.store.Insert(ctx, session); err != nil {
		return models.Session{}, fmt.Errorf("record session: %w", err)
	}

	return session, nil
}

// IsActive reports whether the session id is still registered.
func (r *Registry) IsActive(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	return r.store.Exists(ctx, sessionID)
}

// Revoke removes the session from the registry. Revoking an already-absent
// session is a no-op.
func (r *Registry) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return r.store.Delete(ctx, sessionID)
}

// SweepExpired drops sessions older than maxAge and reports how many were
// removed.
func (r *Registry) SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, errors.New("max age must be positive")
	}
	return r.store.DeleteOlderThan(ctx, r.now().Add(-maxAge))
}
