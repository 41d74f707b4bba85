package videos

import "errors"

var (
	// ErrRemoteNotFound indicates the provider cannot resolve the remote id,
	// or the object it resolves to is not a video.
	ErrRemoteNotFound = errors.New("remote video not found")
	// ErrRemoteUnavailable indicates a transient provider failure.
	ErrRemoteUnavailable = errors.New("remote video provider unavailable")
	// ErrProviderUnavailable indicates the metadata provider is not configured.
	ErrProviderUnavailable = errors.New("video metadata provider unavailable")
)
