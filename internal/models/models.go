package models

import "time"

// RootFolderID is the sentinel parent id addressing the top of a user's
// tree. It never identifies a stored row.
const RootFolderID = "root"

// User represents an account within the ClipVault platform. Identities
// holds every linked provider identity in "provider@externalId" form; an
// identity belongs to at most one user.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Picture    string    `json:"picture"`
	Identities []string  `json:"identities"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Session is one live login recorded in the server-side registry. A bearer
// token stays valid only while its session id is present in the registry,
// independent of the token's own expiry.
type Session struct {
	ID       string
	UserID   string
	IssuedAt time.Time
}

// FileKind discriminates the two node flavours of a user's tree.
type FileKind string

const (
	FileKindFolder FileKind = "folder"
	FileKindVideo  FileKind = "video"
)

// VideoInfo is the cached metadata for a remotely hosted video object.
// PlayID identifies the object on the remote host; no bytes are stored
// locally.
type VideoInfo struct {
	PlayID         string `json:"playId"`
	DurationMillis int64  `json:"durationMillis"`
	Width          int32  `json:"width"`
	Height         int32  `json:"height"`
	Thumbnail      string `json:"thumbnail"`
	MimeType       string `json:"mimeType"`
	SizeBytes      int64  `json:"sizeBytes"`
}

// FileMetadata is a tagged union: Kind selects the variant and Video is
// populated exactly when Kind is FileKindVideo.
type FileMetadata struct {
	Kind  FileKind   `json:"type"`
	Video *VideoInfo `json:"video,omitempty"`
}

// FolderMetadata returns the folder variant.
func FolderMetadata() FileMetadata {
	return FileMetadata{Kind: FileKindFolder}
}

// VideoMetadata returns the video variant wrapping the provided info.
func VideoMetadata(info VideoInfo) FileMetadata {
	return FileMetadata{Kind: FileKindVideo, Video: &info}
}

// UserFile is a node in a user's virtual file tree. FolderID references a
// folder-typed UserFile owned by the same user, or RootFolderID. Within a
// folder, names are unique among live entries (case-sensitive).
type UserFile struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	FolderID  string       `json:"folderId"`
	Name      string       `json:"name"`
	Metadata  FileMetadata `json:"metadata"`
	CreatedAt time.Time    `json:"createdAt"`
}

// IsFolder reports whether the node is a folder.
func (f UserFile) IsFolder() bool {
	return f.Metadata.Kind == FileKindFolder
}
