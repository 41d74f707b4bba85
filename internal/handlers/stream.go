package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/clipvault/backend/internal/files"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/videos"
)

// StreamHandler proxies video bytes from the remote host to the client.
type StreamHandler struct {
	Files   FileService
	Tokens  TokenIssuer
	Metrics AuthMetrics
}

// Stream handles GET /api/v1/files/{id}/stream requests. Media elements
// cannot set request headers, so the access token is also accepted as an
// access_token query parameter. Range headers forward to the remote host
// untouched so seeking works.
func (h StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Files == nil {
		logger.Error("file service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "file services unavailable"})
		return
	}

	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}

	ident, ok := authenticate(ctx, w, h.Tokens, h.Metrics, token)
	if !ok {
		return
	}

	fileID := r.PathValue("id")
	stream, err := h.Files.OpenStream(ctx, ident.UserID, fileID, r.Header.Get("Range"))
	if err != nil {
		switch {
		case errors.Is(err, files.ErrNotFound), errors.Is(err, videos.ErrRemoteNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
		case errors.Is(err, videos.ErrRemoteUnavailable):
			logger.Error("remote host unavailable", "fileId", fileID, "error", err)
			respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "remote video host unavailable"})
		default:
			logger.Error("failed to open stream", "fileId", fileID, "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to open stream"})
		}
		return
	}
	defer stream.Body.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	if stream.ContentType != "" {
		w.Header().Set("Content-Type", stream.ContentType)
	}
	if stream.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.ContentLength, 10))
	}
	if stream.ContentRange != "" {
		w.Header().Set("Content-Range", stream.ContentRange)
	}
	w.WriteHeader(stream.Status)

	if _, err := io.Copy(w, stream.Body); err != nil {
		// The client dropping the connection mid-stream is routine.
		logger.Debug("stream copy interrupted", "fileId", fileID, "error", err)
	}
}
