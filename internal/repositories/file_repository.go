package repositories

import (
	"context"

	"github.com/clipvault/backend/internal/models"
)

// FileRepository defines the data access contract for nodes in a user's
// virtual file tree. Name uniqueness per (user, folder) is enforced by the
// storage layer; writes that would break it return ErrConflict.
type FileRepository interface {
	Insert(ctx context.Context, file models.UserFile) error
	FindByID(ctx context.Context, userID, fileID string) (models.UserFile, error)
	ListFolder(ctx context.Context, userID, folderID string) ([]models.UserFile, error)
	CountChildren(ctx context.Context, userID, folderID string) (int64, error)
	// Update applies a rename, a move, or both in one statement. Nil fields
	// keep their current value; the sibling-name constraint covers the
	// combined result, so a conflicting pair changes nothing.
	Update(ctx context.Context, userID, fileID string, name, folderID *string) (models.UserFile, error)
	// MoveMany relocates the given files into folderID, silently skipping
	// entries whose name collides with an existing entry in the destination
	// or with an earlier entry of the same batch. It reports how many rows
	// were actually moved.
	MoveMany(ctx context.Context, userID string, fileIDs []string, folderID string) (int64, error)
	Delete(ctx context.Context, userID, fileID string) (models.UserFile, error)
	// DeleteMany removes the given files in one statement. A folder is
	// removed only when every remaining child is part of the same batch;
	// folders keeping outside children stay, along with their ancestors in
	// the batch. It reports how many rows were actually removed.
	DeleteMany(ctx context.Context, userID string, fileIDs []string) (int64, error)
}
