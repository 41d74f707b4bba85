package app

import (
	"net/http"
	"time"

	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/db"
	"github.com/clipvault/backend/internal/files"
	"github.com/clipvault/backend/internal/handlers"
	"github.com/clipvault/backend/internal/identity"
	"github.com/clipvault/backend/internal/metrics"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/oauth"
	"github.com/clipvault/backend/internal/repositories"
	"github.com/clipvault/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The session registry is returned separately so the caller can run
// the background sweeper against it.
func buildDependencies(pool db.Pool, cfg config.Config, collector *metrics.Collector) (handlers.Dependencies, *auth.Registry) {
	users := repositories.NewPostgresUserRepository(pool)
	sessions := auth.NewRegistry(repositories.NewPostgresSessionStore(pool))

	drive := videos.NewDriveProvider(videos.DriveConfig{APIKey: cfg.GoogleAPIKey}, http.DefaultClient)
	provider := videos.NewCachingProvider(drive, cfg.MetadataCacheTTL)

	google := oauth.NewGoogleClient(oauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	}, http.DefaultClient)

	loginLimiter := middleware.NewIPRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, cfg.LoginRateLimit, 10*time.Minute)

	deps := handlers.Dependencies{
		Users:         users,
		Linker:        identity.NewLinker(users),
		Registry:      sessions,
		Tokens:        auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL, sessions),
		OAuth:         google,
		Files:         files.NewService(repositories.NewPostgresFileRepository(pool), provider),
		Metrics:       collector,
		LoginLimiter:  loginLimiter,
		LoginRedirect: cfg.LoginRedirect,
	}

	return deps, sessions
}
