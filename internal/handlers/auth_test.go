package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/clipvault/backend/internal/models"
)

func TestRegistryOutageIsServerError(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "code-alice")

	env.sessions.existsErr = errors.New("database unavailable")

	// A backend outage must not read as a dead token.
	rec := env.do(t, http.MethodGet, "/api/v1/files", token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 during registry outage got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for logout during registry outage got %d", rec.Code)
	}

	// The same token works again once the backend recovers.
	env.sessions.existsErr = nil
	rec = env.do(t, http.MethodGet, "/api/v1/files", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after recovery got %d", rec.Code)
	}
}

func TestGoogleLoginRedirects(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/login", "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Location"), "https://accounts.example.com/auth") {
		t.Fatalf("unexpected location %q", rec.Header().Get("Location"))
	}
}

func TestGoogleCallbackIssuesToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=code-alice", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	decodeBody(t, rec, &resp)

	if resp.User.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}

	ident, err := env.issuer.Validate(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token should validate: %v", err)
	}
	if ident.UserID != resp.User.ID {
		t.Fatalf("token subject %q does not match user %q", ident.UserID, resp.User.ID)
	}
}

func TestGoogleCallbackRedirectsToFrontend(t *testing.T) {
	env := newTestEnv(t)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:         env.users,
		Linker:        env.linker,
		Registry:      env.registry,
		Tokens:        env.issuer,
		OAuth:         env.oauth,
		LoginRedirect: "https://app.example.com/welcome",
	})
	env.mux = mux

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=code-alice", "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect got %d", rec.Code)
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Host != "app.example.com" {
		t.Fatalf("unexpected host %q", location.Host)
	}
	token := location.Query().Get("access_token")
	if token == "" {
		t.Fatal("expected access_token in redirect")
	}
	if _, err := env.issuer.Validate(context.Background(), token); err != nil {
		t.Fatalf("redirect token should validate: %v", err)
	}
}

func TestGoogleCallbackMissingCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/callback", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestGoogleCallbackRejectedCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=nope", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestGoogleCallbackIdentityConflict(t *testing.T) {
	env := newTestEnv(t)
	env.linker.conflict = true

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=code-alice", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:        env.users,
		Linker:       env.linker,
		Registry:     env.registry,
		Tokens:       env.issuer,
		OAuth:        env.oauth,
		LoginLimiter: denyAll{},
	})
	env.mux = mux

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/login", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=code-alice", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "code-alice")

	rec := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 before logout got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}

	// The token signature and expiry are still fine; only registry
	// membership is gone.
	rec = env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout got %d", rec.Code)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "code-alice")

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("logout %d: expected 204 got %d", i+1, rec.Code)
		}
	}
}

func TestLogoutWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "code-alice")

	rec := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var user models.User
	decodeBody(t, rec, &user)
	if user.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/me", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token got %d", rec.Code)
	}
}

func TestSecondLoginSurvivesFirstLogout(t *testing.T) {
	env := newTestEnv(t)

	first := env.signIn(t, "code-alice")
	second := env.signIn(t, "code-alice")

	rec := env.do(t, http.MethodPost, "/api/v1/auth/logout", first, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/me", second, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected second session to stay live, got %d", rec.Code)
	}
}
