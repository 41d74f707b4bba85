package files

import "errors"

var (
	// ErrNotFound indicates the file does not exist or is not owned by the caller.
	ErrNotFound = errors.New("file not found")
	// ErrNameConflict indicates a live sibling already carries the target name.
	ErrNameConflict = errors.New("file name already exists in folder")
	// ErrCycle indicates a move would place a folder inside itself or a descendant.
	ErrCycle = errors.New("folder cannot be moved into its own subtree")
	// ErrFolderNotEmpty indicates a folder with live children cannot be deleted.
	ErrFolderNotEmpty = errors.New("folder is not empty")
	// ErrNotAFolder indicates the referenced destination is not a folder.
	ErrNotAFolder = errors.New("destination is not a folder")
	// ErrInvalidName indicates an empty or otherwise unusable file name.
	ErrInvalidName = errors.New("file name must not be empty")
)
