package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{
		Users:         deps.Users,
		Linker:        deps.Linker,
		Registry:      deps.Registry,
		Tokens:        deps.Tokens,
		OAuth:         deps.OAuth,
		Metrics:       deps.Metrics,
		Limiter:       deps.LoginLimiter,
		LoginRedirect: deps.LoginRedirect,
	}
	files := FileHandler{Files: deps.Files, Tokens: deps.Tokens, Metrics: deps.Metrics}
	stream := StreamHandler{Files: deps.Files, Tokens: deps.Tokens, Metrics: deps.Metrics}

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.HandleFunc("GET /api/v1/auth/google/login", auth.GoogleLogin)
	mux.HandleFunc("GET /api/v1/auth/google/callback", auth.GoogleCallback)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("GET /api/v1/me", auth.Me)
	mux.HandleFunc("GET /api/v1/files", files.List)
	mux.HandleFunc("DELETE /api/v1/files", files.DeleteMany)
	mux.HandleFunc("POST /api/v1/files/folder", files.CreateFolder)
	mux.HandleFunc("POST /api/v1/files/video", files.CreateVideo)
	mux.HandleFunc("GET /api/v1/files/video/metadata", files.Metadata)
	mux.HandleFunc("PUT /api/v1/files/move", files.MoveMany)
	mux.HandleFunc("PATCH /api/v1/files/{id}", files.Update)
	mux.HandleFunc("DELETE /api/v1/files/{id}", files.Delete)
	mux.HandleFunc("GET /api/v1/files/{id}/family", files.Family)
	mux.HandleFunc("GET /api/v1/files/{id}/stream", stream.Stream)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Linker        AccountLinker
	Registry      SessionRegistry
	Tokens        TokenIssuer
	OAuth         OAuthExchanger
	Files         FileService
	Metrics       AuthMetrics
	LoginLimiter  RateLimiter
	LoginRedirect string
}
