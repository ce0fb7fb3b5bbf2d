package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/fuomag9/cheez-dashboard/internal/config"
	"github.com/fuomag9/cheez-dashboard/internal/discord"
	"github.com/fuomag9/cheez-dashboard/internal/session"
)

// HealthResponse is the body of /api/health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Domain    string `json:"domain,omitempty"`
}

// NewRouter creates a new HTTP router. Requests that match no API route are
// handed to assets, which serves the single-page application.
func NewRouter(cfg *config.Config, client *discord.Client, sessions *session.Manager, assets http.Handler, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware)
	r.Use(SecurityHeadersMiddleware(cfg))

	authLimiter := NewRateLimiter(rate.Limit(cfg.RateLimit.Rate), cfg.RateLimit.Burst)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HandleHealth(cfg))

		// Session routes
		r.Get("/auth/user", HandleGetCurrentUser(sessions, logger))
		r.Get("/auth/logout", HandleLogout(sessions))

		// Routes that talk to Discord
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(authLimiter))

			r.Get("/auth/discord", HandleDiscordAuthorize(cfg, client, logger))
			r.Get("/auth/discord/callback", HandleDiscordCallback(cfg, client, sessions, logger))
			r.Get("/discord/invite", HandleBotInvite(client, logger))
		})

		r.NotFound(assets.ServeHTTP)
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		})
	})

	// Single-page application
	r.NotFound(assets.ServeHTTP)
	r.MethodNotAllowed(assets.ServeHTTP)

	return r
}

// HandleHealth reports liveness
func HandleHealth(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Domain:    cfg.Discord.PublicDomain,
		})
	}
}
