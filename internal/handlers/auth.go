package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/identity"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/oauth"
)

// AuthHandler implements the OAuth login flow and session lifecycle endpoints.
type AuthHandler struct {
	Users    UserStore
	Linker   AccountLinker
	Registry SessionRegistry
	Tokens   TokenIssuer
	OAuth    OAuthExchanger
	Metrics  AuthMetrics
	Limiter  RateLimiter

	// LoginRedirect is the frontend URL that receives the access token after
	// a successful callback. When empty the token is returned as JSON.
	LoginRedirect string
}

// GoogleLogin handles GET /api/v1/auth/google/login requests by redirecting
// the browser to the provider's consent screen.
func (h AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "ip", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
		return
	}

	if h.OAuth == nil {
		logger.Error("oauth client unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	http.Redirect(w, r, h.OAuth.LoginURL(uuid.NewString()), http.StatusFound)
}

// GoogleCallback handles GET /api/v1/auth/google/callback requests. It
// exchanges the provider code for a profile, resolves the user record,
// registers a session and hands the signed token back to the frontend.
func (h AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "ip", clientIP(r))
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts"})
		return
	}

	if h.OAuth == nil || h.Linker == nil || h.Registry == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable",
			"hasOAuth", h.OAuth != nil, "hasLinker", h.Linker != nil,
			"hasRegistry", h.Registry != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Warn("callback missing authorization code")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "authorization code is required"})
		return
	}

	profile, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		if errors.Is(err, oauth.ErrExchangeFailed) {
			logger.Warn("code exchange rejected", "error", err)
			respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authorization code was not accepted"})
			return
		}
		logger.Error("code exchange failed", "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "authentication provider unavailable"})
		return
	}

	// A caller that is already signed in may present its token to link the
	// new provider identity to the existing account instead of creating a
	// fresh one.
	currentUserID := h.currentUserID(ctx, bearerToken(r))

	user, err := h.Linker.ResolveOrCreate(ctx, profile, currentUserID)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityConflict) {
			logger.Warn("identity already linked to another account", "identity", profile.Identity)
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "identity is linked to a different account"})
			return
		}
		logger.Error("failed to resolve user", "error", err, "identity", profile.Identity)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to sign in"})
		return
	}

	session, err := h.Registry.Create(ctx, user.ID)
	if err != nil {
		logger.Error("failed to register session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	token, err := h.Tokens.Issue(user.ID, session.ID)
	if err != nil {
		logger.Error("failed to sign token", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	logger.Info("user signed in", "userId", user.ID, "sessionId", session.ID)

	if h.LoginRedirect != "" {
		redirect, err := url.Parse(h.LoginRedirect)
		if err != nil {
			logger.Error("invalid login redirect", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to complete sign in"})
			return
		}
		query := redirect.Query()
		query.Set("access_token", token)
		redirect.RawQuery = query.Encode()
		http.Redirect(w, r, redirect.String(), http.StatusFound)
		return
	}

	respondJSON(ctx, w, http.StatusOK, loginResponse{AccessToken: token, User: user})
}

// Logout handles POST /api/v1/auth/logout requests. Revoking an already
// revoked session succeeds so clients can retry safely.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Registry == nil || h.Tokens == nil {
		logger.Error("session dependencies unavailable", "hasRegistry", h.Registry != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "session services unavailable"})
		return
	}

	token := bearerToken(r)
	if token == "" {
		recordAuthFailure(h.Metrics, "missing")
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "missing access token"})
		return
	}

	ident, err := h.Tokens.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrSessionRevoked) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !isAuthFailure(err) {
			recordAuthFailure(h.Metrics, "internal")
			logger.Error("logout token validation unavailable", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify access token"})
			return
		}
		kind := failureKind(err)
		recordAuthFailure(h.Metrics, kind)
		logger.Warn("logout token rejected", "kind", kind, "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid access token"})
		return
	}

	if err := h.Registry.Revoke(ctx, ident.SessionID); err != nil {
		logger.Error("failed to revoke session", "error", err, "sessionId", ident.SessionID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to end session"})
		return
	}

	logger.Info("user signed out", "userId", ident.UserID, "sessionId", ident.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me requests.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	ident, ok := authenticate(ctx, w, h.Tokens, h.Metrics, bearerToken(r))
	if !ok {
		return
	}

	if h.Users == nil {
		logger.Error("user store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "user services unavailable"})
		return
	}

	user, err := h.Users.FindByID(ctx, ident.UserID)
	if err != nil {
		logger.Error("failed to load user", "error", err, "userId", ident.UserID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, user)
}

func (h AuthHandler) currentUserID(ctx context.Context, token string) string {
	if token == "" || h.Tokens == nil {
		return ""
	}
	ident, err := h.Tokens.Validate(ctx, token)
	if err != nil {
		return ""
	}
	return ident.UserID
}

type loginResponse struct {
	AccessToken string      `json:"accessToken"`
	User        models.User `json:"user"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
