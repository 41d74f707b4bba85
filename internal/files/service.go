package files

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/repositories"
	"github.com/clipvault/backend/internal/videos"
)

// maxTreeDepth bounds every ancestor walk. A well-formed tree never comes
// close; the bound only guards against walking a corrupted parent chain
// forever.
const maxTreeDepth = 99

// Service implements the virtual file hierarchy: one folder/video tree per
// user with name uniqueness among siblings and acyclic folder nesting.
type Service struct {
	repo     repositories.FileRepository
	provider videos.Provider
	now      func() time.Time
}

// NewService constructs the hierarchy service.
func NewService(repo repositories.FileRepository, provider videos.Provider) *Service {
	if repo == nil {
		panic("files: repository must not be nil")
	}
	return &Service{
		repo:     repo,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List returns the live children of the folder, ordered by name. The root
// of a user's tree is addressed by models.RootFolderID.
func (s *Service) List(ctx context.Context, userID, folderID string) ([]models.UserFile, error) {
	folderID, err := s.resolveFolder(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFolder(ctx, userID, folderID)
}

// FamilyMember is the slim form a folder's relatives take in a family
// lookup.
type FamilyMember struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
	Name     string `json:"name"`
}

// FolderFamily describes a folder together with its ancestor chain and its
// direct children.
type FolderFamily struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
	Name     string `json:"name"`
	// Ancestors runs from the root end of the chain down to the direct
	// parent. The root sentinel itself is not listed.
	Ancestors []FamilyMember `json:"ancestors"`
	Children  []FamilyMember `json:"children"`
}

// Family returns a folder with its ancestor chain and direct children in
// one lookup, so a client can render a breadcrumb and the folder body
// without chaining requests. Unknown ids fail with ErrNotFound and video
// ids with ErrNotAFolder.
func (s *Service) Family(ctx context.Context, userID, folderID string) (FolderFamily, error) {
	family := FolderFamily{
		ID:        models.RootFolderID,
		Name:      models.RootFolderID,
		Ancestors: []FamilyMember{},
	}

	if folderID != "" && folderID != models.RootFolderID {
		folder, err := s.repo.FindByID(ctx, userID, folderID)
		if err != nil {
			return FolderFamily{}, mapRepoError(err)
		}
		if !folder.IsFolder() {
			return FolderFamily{}, ErrNotAFolder
		}

		family.ID = folder.ID
		family.FolderID = folder.FolderID
		family.Name = folder.Name

		ancestors, err := s.ancestors(ctx, userID, folder.FolderID)
		if err != nil {
			return FolderFamily{}, err
		}
		family.Ancestors = ancestors
	}

	children, err := s.repo.ListFolder(ctx, userID, family.ID)
	if err != nil {
		return FolderFamily{}, err
	}

	family.Children = make([]FamilyMember, 0, len(children))
	for _, child := range children {
		family.Children = append(family.Children, FamilyMember{
			ID:       child.ID,
			FolderID: child.FolderID,
			Name:     child.Name,
		})
	}

	return family, nil
}

// ancestors walks parent links from startID up to the root and returns the
// chain ordered root-first. The walk is bounded by maxTreeDepth.
func (s *Service) ancestors(ctx context.Context, userID, startID string) ([]FamilyMember, error) {
	chain := []FamilyMember{}
	current := startID
	for depth := 0; depth < maxTreeDepth; depth++ {
		if current == models.RootFolderID || current == "" {
			for left, right := 0, len(chain)-1; left < right; left, right = left+1, right-1 {
				chain[left], chain[right] = chain[right], chain[left]
			}
			return chain, nil
		}

		node, err := s.repo.FindByID(ctx, userID, current)
		if err != nil {
			return nil, mapRepoError(err)
		}
		chain = append(chain, FamilyMember{ID: node.ID, FolderID: node.FolderID, Name: node.Name})
		current = node.FolderID
	}
	return nil, ErrCycle
}

// CreateFolder adds an empty folder under the parent.
func (s *Service) CreateFolder(ctx context.Context, userID, parentID, name string) (models.UserFile, error) {
	name, err := cleanName(name)
	if err != nil {
		return models.UserFile{}, err
	}

	parentID, err = s.resolveFolder(ctx, userID, parentID)
	if err != nil {
		return models.UserFile{}, err
	}

	file := models.UserFile{
		ID:        uuid.NewString(),
		UserID:    userID,
		FolderID:  parentID,
		Name:      name,
		Metadata:  models.FolderMetadata(),
		CreatedAt: s.now(),
	}

	if err := s.insert(ctx, file); err != nil {
		return models.UserFile{}, err
	}
	return file, nil
}

// CreateVideo resolves canonical metadata for the remote reference (a bare
// id or a share link) and persists a video node. Provider failures leave no
// partial record behind. Name and thumbnail overrides replace the remote
// defaults when non-empty.
func (s *Service) CreateVideo(ctx context.Context, userID, parentID, remoteRef, nameOverride, thumbnailOverride string) (models.UserFile, error) {
	md, err := s.RemoteMetadata(ctx, remoteRef)
	if err != nil {
		return models.UserFile{}, err
	}

	name := nameOverride
	if name == "" {
		name = md.DefaultName
	}
	name, err = cleanName(name)
	if err != nil {
		return models.UserFile{}, err
	}

	info := md.VideoInfo
	if thumbnailOverride != "" {
		info.Thumbnail = thumbnailOverride
	}

	parentID, err = s.resolveFolder(ctx, userID, parentID)
	if err != nil {
		return models.UserFile{}, err
	}

	file := models.UserFile{
		ID:        uuid.NewString(),
		UserID:    userID,
		FolderID:  parentID,
		Name:      name,
		Metadata:  models.VideoMetadata(info),
		CreatedAt: s.now(),
	}

	if err := s.insert(ctx, file); err != nil {
		return models.UserFile{}, err
	}
	return file, nil
}

// RemoteMetadata fetches provider metadata for a remote reference without
// persisting anything.
func (s *Service) RemoteMetadata(ctx context.Context, remoteRef string) (videos.Metadata, error) {
	if s.provider == nil {
		return videos.Metadata{}, videos.ErrProviderUnavailable
	}

	remoteID, ok := videos.ExtractRemoteID(remoteRef)
	if !ok {
		return videos.Metadata{}, fmt.Errorf("%w: unrecognized reference %q", videos.ErrRemoteNotFound, remoteRef)
	}

	return s.provider.FetchMetadata(ctx, remoteID)
}

// Update renames a file, relocates it, or both at once. Nil fields keep
// their current value. Both changes are applied in a single repository
// write, so a name collision in the destination leaves the entry exactly
// where it was. Moving a folder into its own subtree fails with ErrCycle.
func (s *Service) Update(ctx context.Context, userID, fileID string, name, destID *string) (models.UserFile, error) {
	if name != nil {
		cleaned, err := cleanName(*name)
		if err != nil {
			return models.UserFile{}, err
		}
		name = &cleaned
	}

	if destID != nil {
		resolved, err := s.resolveFolder(ctx, userID, *destID)
		if err != nil {
			return models.UserFile{}, err
		}
		if err := s.checkNoCycle(ctx, userID, resolved, map[string]struct{}{fileID: {}}); err != nil {
			return models.UserFile{}, err
		}
		destID = &resolved
	}

	if name == nil && destID == nil {
		file, err := s.repo.FindByID(ctx, userID, fileID)
		if err != nil {
			return models.UserFile{}, mapRepoError(err)
		}
		return file, nil
	}

	file, err := s.repo.Update(ctx, userID, fileID, name, destID)
	if err != nil {
		return models.UserFile{}, mapRepoError(err)
	}
	return file, nil
}

// MoveMany relocates a batch of files into the destination folder. Files
// whose name collides in the destination are skipped; the returned count
// covers only entries actually relocated, so callers can detect partial
// success without the whole batch failing. A destination inside any moved
// folder fails with ErrCycle and mutates nothing.
func (s *Service) MoveMany(ctx context.Context, userID string, fileIDs []string, destID string) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}

	destID, err := s.resolveFolder(ctx, userID, destID)
	if err != nil {
		return 0, err
	}

	moved := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		moved[id] = struct{}{}
	}

	if err := s.checkNoCycle(ctx, userID, destID, moved); err != nil {
		return 0, err
	}

	count, err := s.repo.MoveMany(ctx, userID, fileIDs, destID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	return count, nil
}

// OpenStream resolves a video node to its remote object and opens a byte
// range of its content. Folders and unknown ids fail with ErrNotFound.
func (s *Service) OpenStream(ctx context.Context, userID, fileID, byteRange string) (videos.Stream, error) {
	if s.provider == nil {
		return videos.Stream{}, videos.ErrProviderUnavailable
	}

	file, err := s.repo.FindByID(ctx, userID, fileID)
	if err != nil {
		return videos.Stream{}, mapRepoError(err)
	}
	if file.Metadata.Kind != models.FileKindVideo || file.Metadata.Video == nil {
		return videos.Stream{}, ErrNotFound
	}

	return s.provider.OpenStream(ctx, file.Metadata.Video.PlayID, byteRange)
}

// Delete removes a file. Folders must be empty; deleting a folder with
// live children fails with ErrFolderNotEmpty and removes nothing.
func (s *Service) Delete(ctx context.Context, userID, fileID string) (models.UserFile, error) {
	file, err := s.repo.FindByID(ctx, userID, fileID)
	if err != nil {
		return models.UserFile{}, mapRepoError(err)
	}

	if file.IsFolder() {
		count, err := s.repo.CountChildren(ctx, userID, file.ID)
		if err != nil {
			return models.UserFile{}, err
		}
		if count > 0 {
			return models.UserFile{}, ErrFolderNotEmpty
		}
	}

	deleted, err := s.repo.Delete(ctx, userID, fileID)
	if err != nil {
		return models.UserFile{}, mapRepoError(err)
	}
	return deleted, nil
}

// DeleteMany removes a batch of files in one atomic write and reports how
// many entries were actually removed. A folder in the batch is removed only
// when every remaining child is part of the same batch; folders keeping
// outside children survive together with their batch ancestors, so callers
// can detect partial success from the count.
func (s *Service) DeleteMany(ctx context.Context, userID string, fileIDs []string) (int64, error) {
	if len(fileIDs) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(fileIDs))
	unique := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	count, err := s.repo.DeleteMany(ctx, userID, unique)
	if err != nil {
		return 0, mapRepoError(err)
	}
	return count, nil
}

// resolveFolder validates that folderID names the root sentinel or an
// existing folder owned by the user.
func (s *Service) resolveFolder(ctx context.Context, userID, folderID string) (string, error) {
	if folderID == "" || folderID == models.RootFolderID {
		return models.RootFolderID, nil
	}

	folder, err := s.repo.FindByID(ctx, userID, folderID)
	if err != nil {
		return "", mapRepoError(err)
	}
	if !folder.IsFolder() {
		return "", ErrNotAFolder
	}
	return folder.ID, nil
}

// checkNoCycle walks ancestor links from the destination up to the root
// and fails when any moved id appears on the path, including the
// destination itself. The walk is bounded by maxTreeDepth.
func (s *Service) checkNoCycle(ctx context.Context, userID, destID string, moving map[string]struct{}) error {
	current := destID
	for depth := 0; depth < maxTreeDepth; depth++ {
		if current == models.RootFolderID {
			return nil
		}
		if _, ok := moving[current]; ok {
			return ErrCycle
		}

		node, err := s.repo.FindByID(ctx, userID, current)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		current = node.FolderID
	}
	return ErrCycle
}

func (s *Service) insert(ctx context.Context, file models.UserFile) error {
	if err := s.repo.Insert(ctx, file); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrConflict):
		return ErrNameConflict
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}
