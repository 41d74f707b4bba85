package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/clipvault/backend/internal/models"
)

const (
	defaultDriveAPIURL      = "https://www.googleapis.com/drive/v3"
	defaultDriveDownloadURL = "https://drive.google.com/uc?export=download&confirm=yTib"
	defaultDriveThumbURL    = "https://drive.google.com/thumbnail"

	driveFileFields = "name,size,videoMediaMetadata,mimeType"
)

// DriveConfig configures the Google Drive video provider. The URL fields
// exist so tests can point the client at a local server.
type DriveConfig struct {
	APIKey string

	APIURL      string
	DownloadURL string
	ThumbURL    string
}

// DriveProvider serves video metadata and ranged content from Google Drive.
type DriveProvider struct {
	cfg    DriveConfig
	client *http.Client
}

// NewDriveProvider constructs a provider for the given configuration.
func NewDriveProvider(cfg DriveConfig, client *http.Client) *DriveProvider {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultDriveAPIURL
	}
	if cfg.DownloadURL == "" {
		cfg.DownloadURL = defaultDriveDownloadURL
	}
	if cfg.ThumbURL == "" {
		cfg.ThumbURL = defaultDriveThumbURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DriveProvider{cfg: cfg, client: client}
}

// ExtractRemoteID accepts either a bare Drive file id or a share link of
// the form ".../file/d/<id>/..." and returns the file id.
func ExtractRemoteID(raw string) (string, bool) {
	if !strings.Contains(raw, "/") {
		return raw, raw != ""
	}
	const marker = "file/d/"
	start := strings.Index(raw, marker)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(marker):]
	end := strings.IndexByte(rest, '/')
	if end < 0 {
		return "", false
	}
	return rest[:end], rest[:end] != ""
}

type driveVideoMediaMetadata struct {
	Width          int32  `json:"width"`
	Height         int32  `json:"height"`
	DurationMillis string `json:"durationMillis"`
}

type driveFile struct {
	Name               string                   `json:"name"`
	MimeType           string                   `json:"mimeType"`
	Size               string                   `json:"size"`
	VideoMediaMetadata *driveVideoMediaMetadata `json:"videoMediaMetadata"`
}

// FetchMetadata resolves canonical metadata for a Drive-hosted video.
// Non-video files and unknown ids fail with ErrRemoteNotFound.
func (p *DriveProvider) FetchMetadata(ctx context.Context, remoteID string) (Metadata, error) {
	// Remote ids come from user input, so they must never be able to smuggle
	// extra path segments or query parameters into the request.
	query := url.Values{}
	query.Set("fields", driveFileFields)
	query.Set("trashed", "false")
	query.Set("key", p.cfg.APIKey)
	target := fmt.Sprintf("%s/files/%s?%s", p.cfg.APIURL, url.PathEscape(remoteID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Metadata{}, ErrRemoteNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return Metadata{}, fmt.Errorf("%w: provider returned %d", ErrRemoteUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Metadata{}, ErrRemoteNotFound
	}

	var file driveFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return Metadata{}, fmt.Errorf("%w: decode metadata: %v", ErrRemoteUnavailable, err)
	}

	if file.VideoMediaMetadata == nil {
		return Metadata{}, ErrRemoteNotFound
	}

	duration, _ := strconv.ParseInt(file.VideoMediaMetadata.DurationMillis, 10, 64)
	size, _ := strconv.ParseInt(file.Size, 10, 64)

	return Metadata{
		VideoInfo: models.VideoInfo{
			PlayID:         remoteID,
			DurationMillis: duration,
			Width:          file.VideoMediaMetadata.Width,
			Height:         file.VideoMediaMetadata.Height,
			Thumbnail:      fmt.Sprintf("%s?id=%s", p.cfg.ThumbURL, url.QueryEscape(remoteID)),
			MimeType:       file.MimeType,
			SizeBytes:      size,
		},
		DefaultName: file.Name,
	}, nil
}

// OpenStream opens a ranged download of the remote object and hands back
// the response body for the caller to forward. The caller owns Body.
func (p *DriveProvider) OpenStream(ctx context.Context, remoteID, byteRange string) (Stream, error) {
	target := fmt.Sprintf("%s&id=%s", p.cfg.DownloadURL, url.QueryEscape(remoteID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Stream{}, fmt.Errorf("build stream request: %w", err)
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return Stream{}, ErrRemoteNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		resp.Body.Close()
		return Stream{}, fmt.Errorf("%w: provider returned %d", ErrRemoteUnavailable, resp.StatusCode)
	}

	return Stream{
		Status:        resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		ContentRange:  resp.Header.Get("Content-Range"),
		Body:          resp.Body,
	}, nil
}

var _ Provider = (*DriveProvider)(nil)
