package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/files"
	"github.com/clipvault/backend/internal/identity"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/oauth"
	"github.com/clipvault/backend/internal/repositories"
	"github.com/clipvault/backend/internal/videos"
)

type fakeUserStore struct {
	users map[string]models.User
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type fakeLinker struct {
	store    *fakeUserStore
	byIdent  map[string]string
	conflict bool
}

func (l *fakeLinker) ResolveOrCreate(_ context.Context, profile identity.ProviderProfile, currentUserID string) (models.User, error) {
	if l.conflict {
		return models.User{}, identity.ErrIdentityConflict
	}
	if userID, ok := l.byIdent[profile.Identity]; ok {
		return l.store.users[userID], nil
	}
	user := models.User{
		ID:         fmt.Sprintf("user-%d", len(l.store.users)+1),
		Name:       profile.Name,
		Picture:    profile.Picture,
		Identities: []string{profile.Identity},
		CreatedAt:  time.Now().UTC(),
	}
	if currentUserID != "" {
		existing, ok := l.store.users[currentUserID]
		if ok {
			existing.Identities = append(existing.Identities, profile.Identity)
			l.store.users[currentUserID] = existing
			l.byIdent[profile.Identity] = currentUserID
			return existing, nil
		}
	}
	l.store.users[user.ID] = user
	l.byIdent[profile.Identity] = user.ID
	return user, nil
}

type fakeOAuth struct {
	profiles map[string]identity.ProviderProfile
}

func (o *fakeOAuth) LoginURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (o *fakeOAuth) Exchange(_ context.Context, code string) (identity.ProviderProfile, error) {
	profile, ok := o.profiles[code]
	if !ok {
		return identity.ProviderProfile{}, fmt.Errorf("%w: unknown code", oauth.ErrExchangeFailed)
	}
	return profile, nil
}

type fakeFileRepo struct {
	files map[string]models.UserFile
}

func (r *fakeFileRepo) nameTaken(userID, folderID, name, excludeID string) bool {
	for _, f := range r.files {
		if f.UserID == userID && f.FolderID == folderID && f.Name == name && f.ID != excludeID {
			return true
		}
	}
	return false
}

func (r *fakeFileRepo) Insert(_ context.Context, file models.UserFile) error {
	if r.nameTaken(file.UserID, file.FolderID, file.Name, file.ID) {
		return repositories.ErrConflict
	}
	r.files[file.ID] = file
	return nil
}

func (r *fakeFileRepo) FindByID(_ context.Context, userID, fileID string) (models.UserFile, error) {
	file, ok := r.files[fileID]
	if !ok || file.UserID != userID {
		return models.UserFile{}, repositories.ErrNotFound
	}
	return file, nil
}

func (r *fakeFileRepo) ListFolder(_ context.Context, userID, folderID string) ([]models.UserFile, error) {
	var out []models.UserFile
	for _, f := range r.files {
		if f.UserID == userID && f.FolderID == folderID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeFileRepo) CountChildren(_ context.Context, userID, folderID string) (int64, error) {
	var count int64
	for _, f := range r.files {
		if f.UserID == userID && f.FolderID == folderID {
			count++
		}
	}
	return count, nil
}

func (r *fakeFileRepo) Update(_ context.Context, userID, fileID string, name, folderID *string) (models.UserFile, error) {
	file, ok := r.files[fileID]
	if !ok || file.UserID != userID {
		return models.UserFile{}, repositories.ErrNotFound
	}
	newName, newFolder := file.Name, file.FolderID
	if name != nil {
		newName = *name
	}
	if folderID != nil {
		newFolder = *folderID
	}
	if r.nameTaken(userID, newFolder, newName, fileID) {
		return models.UserFile{}, repositories.ErrConflict
	}
	file.Name, file.FolderID = newName, newFolder
	r.files[fileID] = file
	return file, nil
}

func (r *fakeFileRepo) MoveMany(_ context.Context, userID string, fileIDs []string, folderID string) (int64, error) {
	ids := append([]string(nil), fileIDs...)
	sort.Strings(ids)

	var moved int64
	for _, id := range ids {
		file, ok := r.files[id]
		if !ok || file.UserID != userID || file.FolderID == folderID {
			continue
		}
		if r.nameTaken(userID, folderID, file.Name, id) {
			continue
		}
		file.FolderID = folderID
		r.files[id] = file
		moved++
	}
	return moved, nil
}

func (r *fakeFileRepo) Delete(_ context.Context, userID, fileID string) (models.UserFile, error) {
	file, ok := r.files[fileID]
	if !ok || file.UserID != userID {
		return models.UserFile{}, repositories.ErrNotFound
	}
	delete(r.files, fileID)
	return file, nil
}

func (r *fakeFileRepo) DeleteMany(_ context.Context, userID string, fileIDs []string) (int64, error) {
	batch := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		if f, ok := r.files[id]; ok && f.UserID == userID {
			batch[id] = struct{}{}
		}
	}

	blocked := make(map[string]struct{})
	for changed := true; changed; {
		changed = false
		for id := range batch {
			if _, done := blocked[id]; done {
				continue
			}
			for _, child := range r.files {
				if child.UserID != userID || child.FolderID != id {
					continue
				}
				_, inBatch := batch[child.ID]
				_, childBlocked := blocked[child.ID]
				if !inBatch || childBlocked {
					blocked[id] = struct{}{}
					changed = true
					break
				}
			}
		}
	}

	var deleted int64
	for id := range batch {
		if _, ok := blocked[id]; ok {
			continue
		}
		delete(r.files, id)
		deleted++
	}
	return deleted, nil
}

type fakeProvider struct {
	metadata map[string]videos.Metadata
	streams  map[string]string
}

func (p *fakeProvider) FetchMetadata(_ context.Context, remoteID string) (videos.Metadata, error) {
	md, ok := p.metadata[remoteID]
	if !ok {
		return videos.Metadata{}, videos.ErrRemoteNotFound
	}
	return md, nil
}

func (p *fakeProvider) OpenStream(_ context.Context, remoteID, byteRange string) (videos.Stream, error) {
	content, ok := p.streams[remoteID]
	if !ok {
		return videos.Stream{}, videos.ErrRemoteNotFound
	}
	status := http.StatusOK
	contentRange := ""
	if byteRange != "" {
		status = http.StatusPartialContent
		contentRange = fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content))
	}
	return videos.Stream{
		Status:        status,
		ContentType:   "video/mp4",
		ContentLength: int64(len(content)),
		ContentRange:  contentRange,
		Body:          io.NopCloser(strings.NewReader(content)),
	}, nil
}

// flakySessionStore delegates to an in-memory store until existsErr is set,
// simulating a registry backend outage on lookups.
type flakySessionStore struct {
	inner     *auth.InMemorySessionStore
	existsErr error
}

func (s *flakySessionStore) Insert(ctx context.Context, session models.Session) error {
	return s.inner.Insert(ctx, session)
}

func (s *flakySessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	return s.inner.Exists(ctx, sessionID)
}

func (s *flakySessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.inner.Delete(ctx, sessionID)
}

func (s *flakySessionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.inner.DeleteOlderThan(ctx, cutoff)
}

// testEnv mounts the full route table over in-memory stores.
type testEnv struct {
	mux      *http.ServeMux
	users    *fakeUserStore
	linker   *fakeLinker
	oauth    *fakeOAuth
	sessions *flakySessionStore
	registry *auth.Registry
	issuer   *auth.Issuer
	repo     *fakeFileRepo
	provider *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := &fakeUserStore{users: make(map[string]models.User)}
	linker := &fakeLinker{store: users, byIdent: make(map[string]string)}
	provider := &fakeProvider{
		metadata: map[string]videos.Metadata{
			"vid123": {
				VideoInfo: models.VideoInfo{
					PlayID:         "vid123",
					DurationMillis: 60000,
					Width:          1920,
					Height:         1080,
					Thumbnail:      "https://drive.google.com/thumbnail?id=vid123",
					MimeType:       "video/mp4",
					SizeBytes:      1024,
				},
				DefaultName: "holiday.mp4",
			},
		},
		streams: map[string]string{"vid123": "fake video bytes"},
	}
	repo := &fakeFileRepo{files: make(map[string]models.UserFile)}

	sessions := &flakySessionStore{inner: auth.NewInMemorySessionStore()}
	registry := auth.NewRegistry(sessions)
	issuer := auth.NewIssuer("test-secret", time.Hour, registry)

	env := &testEnv{
		mux:      http.NewServeMux(),
		users:    users,
		linker:   linker,
		oauth:    &fakeOAuth{profiles: map[string]identity.ProviderProfile{"code-alice": {Identity: "google@1", Name: "Alice"}}},
		sessions: sessions,
		registry: registry,
		issuer:   issuer,
		repo:     repo,
		provider: provider,
	}

	RegisterRoutes(env.mux, Dependencies{
		Users:    users,
		Linker:   linker,
		Registry: registry,
		Tokens:   issuer,
		OAuth:    env.oauth,
		Files:    files.NewService(repo, provider),
	})

	return env
}

func profileFor(ident, name string) identity.ProviderProfile {
	return identity.ProviderProfile{Identity: ident, Name: name}
}

// do routes one request through the mux and returns the recorder.
func (e *testEnv) do(t *testing.T, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func jsonBody(t *testing.T, payload any) io.Reader {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(raw)
}

// signIn runs the callback flow for the given code and returns the token.
func (e *testEnv) signIn(t *testing.T, code string) string {
	t.Helper()

	rec := e.do(t, http.MethodGet, "/api/v1/auth/google/callback?code="+code, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" {
		t.Fatal("expected an access token")
	}
	return resp.AccessToken
}
