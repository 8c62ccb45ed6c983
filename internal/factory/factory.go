package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mystari/mystari-api/internal/api"
	"github.com/mystari/mystari-api/internal/api/handler"
	"github.com/mystari/mystari-api/internal/config"
	"github.com/mystari/mystari-api/internal/dependencies/clock"
	"github.com/mystari/mystari-api/internal/dependencies/random"
	"github.com/mystari/mystari-api/internal/metrics"
	"github.com/mystari/mystari-api/internal/services/auth"
	"github.com/mystari/mystari-api/internal/services/oauth"
	"github.com/mystari/mystari-api/internal/services/players"
	"github.com/mystari/mystari-api/internal/storage"
	"github.com/mystari/mystari-api/internal/storage/memory"
	mongostorage "github.com/mystari/mystari-api/internal/storage/mongo"
	redisstorage "github.com/mystari/mystari-api/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeMongo  = config.StorageMongo
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Tokens         *auth.TokenManager
	AuthService    *auth.Service
	PlayerService  *players.Service
	GoogleProvider oauth.Provider
	Metrics        *metrics.Metrics

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// JWTSecret signs session tokens (required)
	JWTSecret string
	// TokenTTL is the token validity window
	// If zero, defaults to auth.DefaultTokenTTL
	TokenTTL time.Duration
	// HashCost is the bcrypt cost
	// If zero, defaults to auth.DefaultHashCost
	HashCost int
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "mongo")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// MongoConfig holds MongoDB connection settings (required if StorageType is "mongo")
	MongoConfig *mongostorage.Config
	// Google enables Google sign-in when non-nil
	Google *oauth.Config
}

// HTTPConfig holds settings for the HTTP surface
type HTTPConfig struct {
	RequestTimeout  time.Duration
	CORSOrigins     []string
	CookieSecure    bool
	SuccessRedirect string
	FailureRedirect string
}

// FromConfig converts loaded server configuration into factory and HTTP settings
func FromConfig(cfg *config.Config, logger *slog.Logger) (Config, HTTPConfig) {
	fc := Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenTTL:    cfg.Auth.TokenTTL,
		Logger:      logger,
		StorageType: cfg.Storage.Type,
	}

	switch cfg.Storage.Type {
	case StorageTypeRedis:
		rc := redisstorage.DefaultConfig()
		rc.URL = cfg.Storage.RedisURL
		fc.RedisConfig = &rc
	case StorageTypeMongo:
		mc := mongostorage.DefaultConfig()
		mc.URI = cfg.Storage.MongoURI
		mc.Database = cfg.Storage.MongoDatabase
		fc.MongoConfig = &mc
	}

	if cfg.Google.Enabled() {
		fc.Google = &oauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.CallbackURL,
		}
	}

	return fc, HTTPConfig{
		RequestTimeout:  cfg.RequestTimeout,
		CORSOrigins:     cfg.CORSOrigins,
		CookieSecure:    cfg.CookieSecure,
		SuccessRedirect: cfg.Google.SuccessRedirect,
		FailureRedirect: cfg.Google.FailureRedirect,
	}
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Fail before touching storage
	if cfg.JWTSecret == "" {
		return nil, auth.ErrMissingSecret
	}

	// Create storage based on type
	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	app, err := newWithDependencies(store, clk, rnd, auth.NewBcryptHasher(cfg.HashCost), cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func newStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeMongo:
		if cfg.MongoConfig == nil {
			return nil, errors.New("MongoConfig required when StorageType is mongo")
		}
		return mongostorage.New(ctx, *cfg.MongoConfig)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'mongo'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, hasher auth.PasswordHasher, cfg Config, logger *slog.Logger) (*App, error) {
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, clk)
	if err != nil {
		return nil, err
	}

	// Create services
	authService := auth.New(store, tokens, hasher, clk, rnd, logger)
	playerService := players.New(store, clk, logger)

	var google oauth.Provider
	if cfg.Google != nil {
		google = oauth.NewGoogleProvider(*cfg.Google, nil, logger)
	}

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Tokens:         tokens,
		AuthService:    authService,
		PlayerService:  playerService,
		GoogleProvider: google,
		Metrics:        metrics.New(),
		logger:         logger,
	}, nil
}

// Router builds the HTTP handler for the app
func (a *App) Router(cfg HTTPConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = config.DefaultRequestTimeout
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = config.DefaultOAuthSuccessRedirect
	}
	if cfg.FailureRedirect == "" {
		cfg.FailureRedirect = config.DefaultOAuthFailureRedirect
	}

	return api.NewRouter(api.RouterConfig{
		Logger:          a.logger,
		AuthService:     a.AuthService,
		Tokens:          a.Tokens,
		PlayerService:   a.PlayerService,
		Store:           a.Storage,
		Metrics:         a.Metrics,
		Random:          a.Random,
		RequestTimeout:  cfg.RequestTimeout,
		CORSOrigins:     cfg.CORSOrigins,
		Cookies:         handler.CookieConfig{Secure: cfg.CookieSecure},
		GoogleProvider:  a.GoogleProvider,
		SuccessRedirect: cfg.SuccessRedirect,
		FailureRedirect: cfg.FailureRedirect,
	})
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
