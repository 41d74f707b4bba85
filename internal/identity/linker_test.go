package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/repositories"
)

type fakeUserRepo struct {
	users      map[string]models.User
	identities map[string]string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:      make(map[string]models.User),
		identities: make(map[string]string),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user models.User) error {
	for _, ident := range user.Identities {
		if _, taken := r.identities[ident]; taken {
			return repositories.ErrConflict
		}
	}
	r.users[user.ID] = user
	for _, ident := range user.Identities {
		r.identities[ident] = user.ID
	}
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) FindByIdentity(_ context.Context, identity string) (models.User, error) {
	userID, ok := r.identities[identity]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return r.users[userID], nil
}

func (r *fakeUserRepo) AttachIdentity(_ context.Context, userID, identity string) error {
	if _, taken := r.identities[identity]; taken {
		return repositories.ErrConflict
	}
	user, ok := r.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Identities = append(user.Identities, identity)
	r.users[userID] = user
	r.identities[identity] = userID
	return nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, userID, name, picture string) error {
	user, ok := r.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Name = name
	user.Picture = picture
	r.users[userID] = user
	return nil
}

func TestResolveOrCreateFirstLogin(t *testing.T) {
	repo := newFakeUserRepo()
	linker := NewLinker(repo)

	profile := ProviderProfile{Identity: "google@123", Name: "Alice", Picture: "https://example.com/a.jpg"}
	user, err := linker.ResolveOrCreate(context.Background(), profile, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected a fresh user id")
	}
	if len(user.Identities) != 1 || user.Identities[0] != "google@123" {
		t.Fatalf("unexpected identities: %v", user.Identities)
	}
	if user.Name != "Alice" {
		t.Fatalf("unexpected name %q", user.Name)
	}
}

func TestResolveOrCreateReturningUser(t *testing.T) {
	repo := newFakeUserRepo()
	linker := NewLinker(repo)
	ctx := context.Background()

	profile := ProviderProfile{Identity: "google@123", Name: "Alice"}
	first, err := linker.ResolveOrCreate(ctx, profile, "")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}

	second, err := linker.ResolveOrCreate(ctx, profile, "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same user, got %q and %q", first.ID, second.ID)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected one stored user, got %d", len(repo.users))
	}
}

func TestResolveOrCreateRefreshesProfile(t *testing.T) {
	repo := newFakeUserRepo()
	linker := NewLinker(repo)
	ctx := context.Background()

	first, err := linker.ResolveOrCreate(ctx, ProviderProfile{Identity: "google@123", Name: "Alice"}, "")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}

	updated, err := linker.ResolveOrCreate(ctx, ProviderProfile{Identity: "google@123", Name: "Alice Smith", Picture: "https://example.com/new.jpg"}, "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if updated.Name != "Alice Smith" || updated.Picture != "https://example.com/new.jpg" {
		t.Fatalf("expected refreshed profile, got %+v", updated)
	}
	stored, _ := repo.FindByID(ctx, first.ID)
	if stored.Name != "Alice Smith" {
		t.Fatalf("expected stored profile refresh, got %q", stored.Name)
	}
}

func TestResolveOrCreateAttachesToCurrentUser(t *testing.T) {
	repo := newFakeUserRepo()
	linker := NewLinker(repo)
	ctx := context.Background()

	existing, err := linker.ResolveOrCreate(ctx, ProviderProfile{Identity: "google@123", Name: "Alice"}, "")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}

	linked, err := linker.ResolveOrCreate(ctx, ProviderProfile{Identity: "google@456", Name: "Alice"}, existing.ID)
	if err != nil {
		t.Fatalf("link second identity: %v", err)
	}
	if linked.ID != existing.ID {
		t.Fatalf("expected identity attached to current user, got %q", linked.ID)
	}
	if len(linked.Identities) != 2 {
		t.Fatalf("expected two identities, got %v", linked.Identities)
	}
}

func TestResolveOrCreateConflict(t *testing.T) {
	repo := newFakeUserRepo()
	linker := NewLinker(repo)
	ctx := context.Background()

	if _, err := linker.ResolveOrCreate(ctx, ProviderProfile{Identity: "google@123", Name: "Alice"}, ""); err != nil {
		t.Fatalf("first login: %v", err)
	}
	other, err := linker.ResolveOrCreate(ctx, ProviderProfile{Identity: "google@456", Name: "Bob"}, "")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	// Bob cannot claim Alice's identity.
	if _, err := linker.ResolveOrCreate(ctx, ProviderProfile{Identity: "google@123"}, other.ID); !errors.Is(err, ErrIdentityConflict) {
		t.Fatalf("expected ErrIdentityConflict got %v", err)
	}
}

func TestResolveOrCreateRequiresIdentity(t *testing.T) {
	linker := NewLinker(newFakeUserRepo())
	if _, err := linker.ResolveOrCreate(context.Background(), ProviderProfile{}, ""); err == nil {
		t.Fatal("expected error for empty identity")
	}
}
