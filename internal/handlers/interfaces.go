package handlers

import (
	"context"

	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/files"
	"github.com/clipvault/backend/internal/identity"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/videos"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// AccountLinker resolves provider identities to durable user records.
type AccountLinker interface {
	ResolveOrCreate(ctx context.Context, profile identity.ProviderProfile, currentUserID string) (models.User, error)
}

// SessionRegistry records and revokes live logins.
type SessionRegistry interface {
	Create(ctx context.Context, userID string) (models.Session, error)
	Revoke(ctx context.Context, sessionID string) error
}

// TokenIssuer mints and validates bearer tokens.
type TokenIssuer interface {
	Issue(userID, sessionID string) (string, error)
	Validate(ctx context.Context, token string) (auth.Identity, error)
}

// OAuthExchanger performs the provider-side authentication handshake.
type OAuthExchanger interface {
	LoginURL(state string) string
	Exchange(ctx context.Context, code string) (identity.ProviderProfile, error)
}

// FileService captures the virtual hierarchy operations used by the file handlers.
type FileService interface {
	List(ctx context.Context, userID, folderID string) ([]models.UserFile, error)
	Family(ctx context.Context, userID, folderID string) (files.FolderFamily, error)
	CreateFolder(ctx context.Context, userID, parentID, name string) (models.UserFile, error)
	CreateVideo(ctx context.Context, userID, parentID, remoteRef, nameOverride, thumbnailOverride string) (models.UserFile, error)
	RemoteMetadata(ctx context.Context, remoteRef string) (videos.Metadata, error)
	Update(ctx context.Context, userID, fileID string, name, destID *string) (models.UserFile, error)
	MoveMany(ctx context.Context, userID string, fileIDs []string, destID string) (int64, error)
	Delete(ctx context.Context, userID, fileID string) (models.UserFile, error)
	DeleteMany(ctx context.Context, userID string, fileIDs []string) (int64, error)
	OpenStream(ctx context.Context, userID, fileID, byteRange string) (videos.Stream, error)
}

// AuthMetrics records token-validation failures by kind.
type AuthMetrics interface {
	RecordAuthFailure(kind string)
}
