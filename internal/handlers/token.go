package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/logging"
)

// bearerToken extracts the access token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// authenticate validates the request's bearer token, writing a 401 when the
// credential is rejected and a 500 when the registry backend cannot answer.
// The second return value reports whether the caller may proceed.
func authenticate(ctx context.Context, w http.ResponseWriter, tokens TokenIssuer, metrics AuthMetrics, token string) (auth.Identity, bool) {
	logger := logging.FromContext(ctx)

	if tokens == nil {
		logger.Error("token issuer unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authentication services unavailable"})
		return auth.Identity{}, false
	}

	if token == "" {
		recordAuthFailure(metrics, "missing")
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "missing access token"})
		return auth.Identity{}, false
	}

	ident, err := tokens.Validate(ctx, token)
	if err != nil {
		// A registry backend failure is not a credential problem; it must
		// not look like a dead token to the client or the metrics.
		if !isAuthFailure(err) {
			recordAuthFailure(metrics, "internal")
			logger.Error("token validation unavailable", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify access token"})
			return auth.Identity{}, false
		}
		kind := failureKind(err)
		recordAuthFailure(metrics, kind)
		logger.Warn("token validation failed", "kind", kind, "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid access token"})
		return auth.Identity{}, false
	}

	return ident, true
}

func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrTokenMalformed) ||
		errors.Is(err, auth.ErrTokenExpired) ||
		errors.Is(err, auth.ErrSessionRevoked)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrSessionRevoked):
		return "revoked"
	default:
		return "malformed"
	}
}

func recordAuthFailure(metrics AuthMetrics, kind string) {
	if metrics != nil {
		metrics.RecordAuthFailure(kind)
	}
}
