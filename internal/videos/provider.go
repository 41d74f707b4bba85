package videos

import (
	"context"
	"io"

	"github.com/clipvault/backend/internal/models"
)

// Stream is one ranged read of a remotely hosted video object.
type Stream struct {
	// Status is http.StatusPartialContent when the host honoured the
	// requested range, http.StatusOK when it returned the full content.
	Status        int
	ContentType   string
	ContentLength int64
	ContentRange  string
	Body          io.ReadCloser
}

// Metadata is the canonical description of a remote video: the playable
// info persisted on a tree node plus the host's default display name.
type Metadata struct {
	models.VideoInfo
	DefaultName string `json:"defaultName"`
}

// Provider resolves metadata and content for remotely hosted videos. The
// backend stores only references; bytes stay with the provider.
type Provider interface {
	// FetchMetadata returns canonical metadata for the remote object.
	FetchMetadata(ctx context.Context, remoteID string) (Metadata, error)
	// OpenStream opens a byte range of the remote object. byteRange is an
	// HTTP Range header value ("bytes=0-1023") or empty for full content.
	OpenStream(ctx context.Context, remoteID, byteRange string) (Stream, error)
}
