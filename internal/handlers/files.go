package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/files"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/videos"
)

// FileHandler implements the virtual file hierarchy endpoints.
type FileHandler struct {
	Files   FileService
	Tokens  TokenIssuer
	Metrics AuthMetrics
}

// List handles GET /api/v1/files requests. The folder query parameter
// defaults to the root folder when absent.
func (h FileHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	entries, err := h.Files.List(ctx, ident.UserID, r.URL.Query().Get("folder"))
	if err != nil {
		h.respondFileError(ctx, w, err, "list folder")
		return
	}

	respondJSON(ctx, w, http.StatusOK, fileListResponse{Files: entries})
}

// Family handles GET /api/v1/files/{id}/family requests. It returns the
// folder together with its ancestor chain and direct children, so a client
// can render a breadcrumb and the folder body with a single call.
func (h FileHandler) Family(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	family, err := h.Files.Family(ctx, ident.UserID, r.PathValue("id"))
	if err != nil {
		h.respondFileError(ctx, w, err, "load folder family")
		return
	}

	respondJSON(ctx, w, http.StatusOK, family)
}

// CreateFolder handles POST /api/v1/files/folder requests.
func (h FileHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid create folder payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := h.Files.CreateFolder(ctx, ident.UserID, req.Folder, req.Name)
	if err != nil {
		h.respondFileError(ctx, w, err, "create folder")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, created)
}

// CreateVideo handles POST /api/v1/files/video requests. The video body names
// a remote reference, either a bare identifier or a share link.
func (h FileHandler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid create video payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Video = strings.TrimSpace(req.Video)
	if req.Video == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "video reference is required"})
		return
	}

	created, err := h.Files.CreateVideo(ctx, ident.UserID, req.Folder, req.Video, req.Name, req.Thumbnail)
	if err != nil {
		h.respondFileError(ctx, w, err, "create video")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, created)
}

// Metadata handles GET /api/v1/files/video/metadata requests. It previews the
// remote video before anything is saved.
func (h FileHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	ref := strings.TrimSpace(r.URL.Query().Get("video"))
	if ref == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "video reference is required"})
		return
	}

	md, err := h.Files.RemoteMetadata(ctx, ref)
	if err != nil {
		h.respondFileError(ctx, w, err, "fetch video metadata")
		return
	}

	respondJSON(ctx, w, http.StatusOK, metadataResponse{Name: md.DefaultName, Video: md.VideoInfo})
}

// Update handles PATCH /api/v1/files/{id} requests. A request may rename the
// entry, move it, or both; both changes land in one write, so a rejected
// combination leaves the entry untouched.
func (h FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	fileID := r.PathValue("id")

	var req updateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid update payload", "error", err, "fileId", fileID)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Folder == nil && req.Name == nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "nothing to update"})
		return
	}

	updated, err := h.Files.Update(ctx, ident.UserID, fileID, req.Name, req.Folder)
	if err != nil {
		h.respondFileError(ctx, w, err, "update file")
		return
	}

	respondJSON(ctx, w, http.StatusOK, updated)
}

// MoveMany handles PUT /api/v1/files/move requests. Entries that would
// collide with a name in the destination stay put; the response reports how
// many actually moved.
func (h FileHandler) MoveMany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	var req moveManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid move payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	moved, err := h.Files.MoveMany(ctx, ident.UserID, req.Files, req.Folder)
	if err != nil {
		h.respondFileError(ctx, w, err, "move files")
		return
	}

	respondJSON(ctx, w, http.StatusOK, moveManyResponse{MovedCount: moved})
}

// Delete handles DELETE /api/v1/files/{id} requests. Folders must be empty
// before they can be removed.
func (h FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	deleted, err := h.Files.Delete(ctx, ident.UserID, r.PathValue("id"))
	if err != nil {
		h.respondFileError(ctx, w, err, "delete file")
		return
	}

	respondJSON(ctx, w, http.StatusOK, deleted)
}

// DeleteMany handles DELETE /api/v1/files requests. The ids arrive as
// repeated id query parameters. Folders keeping children outside the batch
// are skipped; the response reports how many entries were actually removed.
func (h FileHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, ok := h.requireIdentity(ctx, w, r)
	if !ok {
		return
	}

	ids := r.URL.Query()["id"]
	if len(ids) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "at least one id is required"})
		return
	}

	deleted, err := h.Files.DeleteMany(ctx, ident.UserID, ids)
	if err != nil {
		h.respondFileError(ctx, w, err, "delete files")
		return
	}

	respondJSON(ctx, w, http.StatusOK, deleteManyResponse{Deleted: deleted})
}

func (h FileHandler) requireIdentity(ctx context.Context, w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	if h.Files == nil {
		logging.FromContext(ctx).Error("file service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "file services unavailable"})
		return auth.Identity{}, false
	}
	return authenticate(ctx, w, h.Tokens, h.Metrics, bearerToken(r))
}

func (h FileHandler) respondFileError(ctx context.Context, w http.ResponseWriter, err error, action string) {
	logger := logging.FromContext(ctx)

	switch {
	case errors.Is(err, files.ErrNotFound), errors.Is(err, videos.ErrRemoteNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "file not found"})
	case errors.Is(err, files.ErrNameConflict):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "an entry with that name already exists"})
	case errors.Is(err, files.ErrFolderNotEmpty):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "folder is not empty"})
	case errors.Is(err, files.ErrCycle):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cannot move a folder into itself"})
	case errors.Is(err, files.ErrNotAFolder):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "destination is not a folder"})
	case errors.Is(err, files.ErrInvalidName):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "name must not be empty"})
	case errors.Is(err, videos.ErrRemoteUnavailable):
		logger.Error("remote host unavailable", "action", action, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "remote video host unavailable"})
	default:
		logger.Error("file operation failed", "action", action, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "file operation failed"})
	}
}

type fileListResponse struct {
	Files []models.UserFile `json:"files"`
}

type createFolderRequest struct {
	Folder string `json:"folder"`
	Name   string `json:"name"`
}

type createVideoRequest struct {
	Folder    string `json:"folder"`
	Video     string `json:"video"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
}

type updateFileRequest struct {
	Name   *string `json:"name"`
	Folder *string `json:"folder"`
}

type moveManyRequest struct {
	Files  []string `json:"files"`
	Folder string   `json:"folder"`
}

type moveManyResponse struct {
	MovedCount int64 `json:"movedCount"`
}

type deleteManyResponse struct {
	Deleted int64 `json:"deleted"`
}

type metadataResponse struct {
	Name  string           `json:"name"`
	Video models.VideoInfo `json:"video"`
}
