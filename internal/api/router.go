package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/mystari/mystari-api/internal/api/apierr"
	"github.com/mystari/mystari-api/internal/api/handler"
	"github.com/mystari/mystari-api/internal/api/middleware"
	"github.com/mystari/mystari-api/internal/dependencies/random"
	"github.com/mystari/mystari-api/internal/metrics"
	sharedmw "github.com/mystari/mystari-api/internal/middleware"
	"github.com/mystari/mystari-api/internal/services/auth"
	"github.com/mystari/mystari-api/internal/services/oauth"
	"github.com/mystari/mystari-api/internal/services/players"
)

// GoogleCallbackPath is where Google redirects back to after consent
const GoogleCallbackPath = "/api/auth/google/callback"

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	Tokens         middleware.TokenVerifier
	PlayerService  *players.Service
	Store          handler.Pinger
	Metrics        *metrics.Metrics
	Random         random.Random
	RequestTimeout time.Duration
	CORSOrigins    []string
	Cookies        handler.CookieConfig

	// GoogleProvider is nil when Google sign-in is not configured
	GoogleProvider  oauth.Provider
	SuccessRedirect string
	FailureRedirect string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	// mux bypasses Use middleware for these, so they are instrumented directly
	r.NotFoundHandler = cfg.Metrics.Middleware(http.HandlerFunc(notFoundHandler))
	r.MethodNotAllowedHandler = cfg.Metrics.Middleware(http.HandlerFunc(methodNotAllowedHandler))

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Metrics, cfg.Cookies, cfg.Logger)
	playerHandler := handler.NewPlayerHandler(cfg.PlayerService, cfg.Logger)
	healthHandler := handler.NewHealthHandler(cfg.Store, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Tokens, cfg.Metrics)

	r.Use(cfg.Metrics.Middleware)

	api := r.PathPrefix("/api").Subrouter()

	// Auth routes (no auth required for registering/logging in)
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	// Protected auth routes
	account := api.PathPrefix("/auth/password").Subrouter()
	account.Use(authMiddleware)
	account.HandleFunc("", authHandler.ChangePassword).Methods(http.MethodPut)

	// Google sign-in, only when configured
	if cfg.GoogleProvider != nil {
		oauthHandler := handler.NewOAuthHandler(cfg.GoogleProvider, cfg.AuthService, cfg.Random, cfg.Metrics, handler.OAuthConfig{
			CallbackPath:    GoogleCallbackPath,
			SuccessRedirect: cfg.SuccessRedirect,
			FailureRedirect: cfg.FailureRedirect,
			Cookies:         cfg.Cookies,
		}, cfg.Logger)
		api.HandleFunc("/auth/google", oauthHandler.Start).Methods(http.MethodGet)
		api.HandleFunc("/auth/google/callback", oauthHandler.Callback).Methods(http.MethodGet)
	}

	// Player routes (all require auth)
	playerRoutes := api.PathPrefix("/players").Subrouter()
	playerRoutes.Use(authMiddleware)
	playerRoutes.HandleFunc("", playerHandler.List).Methods(http.MethodGet)
	playerRoutes.HandleFunc("/{id}", playerHandler.Update).Methods(http.MethodPut)

	// Health check and metrics (no auth)
	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	// Wrapped inside out, recovery ends up outermost
	var h http.Handler = r
	h = sharedmw.Timeout(cfg.RequestTimeout)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)
	h = sharedmw.Logging(cfg.Logger)(h)
	h = middleware.Recovery(cfg.Logger, cfg.Metrics)(h)
	return h
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// Credentials are only allowed for an explicit origin list
	allowAll := slices.Contains(origins, "*")

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", sharedmw.RequestIDHeader},
		ExposedHeaders:   []string{sharedmw.RequestIDHeader},
		AllowCredentials: !allowAll,
		MaxAge:           300,
	})
}

func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteError(w, apierr.NewNotFoundError())
}

func methodNotAllowedHandler(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteError(w, apierr.NewMethodNotAllowedError())
}
