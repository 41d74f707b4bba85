package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/repositories"
)

// ErrIdentityConflict indicates the provider identity is already linked to
// a user other than the currently authenticated one. Silently merging two
// pre-existing accounts is never allowed.
var ErrIdentityConflict = errors.New("provider identity linked to another user")

// ProviderProfile is the identity information returned by an OAuth
// provider after a successful code exchange. Identity is namespaced as
// "provider@externalId".
type ProviderProfile struct {
	Identity string
	Name     string
	Picture  string
}

// Linker maps provider identities onto durable user records. Linking is
// append-only; identities are never detached.
type Linker struct {
	users repositories.UserRepository
	now   func() time.Time
}

// NewLinker constructs a Linker over the user repository.
func NewLinker(users repositories.UserRepository) *Linker {
	if users == nil {
		panic("identity: user repository must not be nil")
	}
	return &Linker{users: users, now: func() time.Time { return time.Now().UTC() }}
}

// ResolveOrCreate resolves the provider profile to a user record. When
// currentUserID names an authenticated caller, an unlinked identity is
// attached to that user; an identity owned by someone else fails with
// ErrIdentityConflict. Without an authenticated caller the identity's
// owner is returned, or a fresh user is created on first login. Profile
// name and picture are refreshed on every resolution.
func (l *Linker) ResolveOrCreate(ctx context.Context, profile ProviderProfile, currentUserID string) (models.User, error) {
	if profile.Identity == "" {
		return models.User{}, errors.New("provider identity must be provided")
	}

	owner, err := l.users.FindByIdentity(ctx, profile.Identity)
	switch {
	case err == nil:
		if currentUserID != "" && owner.ID != currentUserID {
			return models.User{}, ErrIdentityConflict
		}
		return l.refresh(ctx, owner, profile)

	case errors.Is(err, repositories.ErrNotFound):
		if currentUserID != "" {
			return l.attach(ctx, currentUserID, profile)
		}
		return l.create(ctx, profile)

	default:
		return models.User{}, fmt.Errorf("look up provider identity: %w", err)
	}
}

func (l *Linker) attach(ctx context.Context, userID string, profile ProviderProfile) (models.User, error) {
	if err := l.users.AttachIdentity(ctx, userID, profile.Identity); err != nil {
		// A concurrent login can claim the identity between lookup and
		// attach; the storage-level conflict is authoritative.
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, ErrIdentityConflict
		}
		return models.User{}, fmt.Errorf("attach provider identity: %w", err)
	}

	user, err := l.users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("load linked user: %w", err)
	}
	return l.refresh(ctx, user, profile)
}

func (l *Linker) create(ctx context.Context, profile ProviderProfile) (models.User, error) {
	user := models.User{
		ID:         uuid.NewString(),
		Name:       profile.Name,
		Picture:    profile.Picture,
		Identities: []string{profile.Identity},
		CreatedAt:  l.now(),
	}

	if err := l.users.Create(ctx, user); err != nil {
		// Lost the race against another first login with the same identity.
		if errors.Is(err, repositories.ErrConflict) {
			existing, findErr := l.users.FindByIdentity(ctx, profile.Identity)
			if findErr == nil {
				return existing, nil
			}
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (l *Linker) refresh(ctx context.Context, user models.User, profile ProviderProfile) (models.User, error) {
	if user.Name == profile.Name && user.Picture == profile.Picture {
		return user, nil
	}
	if err := l.users.UpdateProfile(ctx, user.ID, profile.Name, profile.Picture); err != nil {
		return models.User{}, fmt.Errorf("refresh user profile: %w", err)
	}
	user.Name = profile.Name
	user.Picture = profile.Picture
	return user, nil
}
