package repositories

import (
	"context"

	"github.com/clipvault/backend/internal/models"
)

// UserRepository defines the data access contract for users and their
// linked provider identities.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIdentity(ctx context.Context, identity string) (models.User, error)
	// AttachIdentity links an additional provider identity to an existing
	// user. Returns ErrConflict when the identity already belongs to a user.
	AttachIdentity(ctx context.Context, userID, identity string) error
	UpdateProfile(ctx context.Context, userID, name, picture string) error
}
