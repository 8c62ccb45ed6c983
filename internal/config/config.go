// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret is returned when JWT_SECRET is unset or empty
var ErrMissingSecret = errors.New("missing required environment variable: JWT_SECRET")

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
)

// Defaults
const (
	DefaultPort                 = 5000
	DefaultTokenTTL             = time.Hour
	DefaultRequestTimeout       = 10 * time.Second
	DefaultMongoDatabase        = "mystari"
	DefaultRedisURL             = "redis://localhost:6379/0"
	DefaultOAuthSuccessRedirect = "/"
	DefaultOAuthFailureRedirect = "/login"
)

// Config is the complete server configuration
type Config struct {
	Port           int
	RequestTimeout time.Duration
	CORSOrigins    []string
	CookieSecure   bool

	Auth    AuthConfig
	Storage StorageConfig
	Google  GoogleConfig
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Type          string
	MongoURI      string
	MongoDatabase string
	RedisURL      string
}

// GoogleConfig holds OAuth client settings. Sign-in is enabled only when
// both client id and secret are present.
type GoogleConfig struct {
	ClientID        string
	ClientSecret    string
	CallbackURL     string
	SuccessRedirect string
	FailureRedirect string
}

// Enabled reports whether Google sign-in is configured
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads the environment, after loading envFile if given or .env if
// present. Variables already set in the process take precedence.
// Every problem found is reported in the returned error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:           getInt("PORT", DefaultPort, &errs),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", DefaultRequestTimeout, &errs),
		CORSOrigins:    getList("CORS_ORIGINS", []string{"*"}),
		CookieSecure:   getBool("COOKIE_SECURE", false, &errs),
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  getDuration("TOKEN_TTL", DefaultTokenTTL, &errs),
		},
		Storage: StorageConfig{
			Type:          strings.ToLower(os.Getenv("STORAGE_TYPE")),
			MongoURI:      os.Getenv("MONGO_URI"),
			MongoDatabase: getString("MONGO_DATABASE", DefaultMongoDatabase),
			RedisURL:      getString("REDIS_URL", DefaultRedisURL),
		},
		Google: GoogleConfig{
			ClientID:        os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
			CallbackURL:     os.Getenv("GOOGLE_CALLBACK_URL"),
			SuccessRedirect: getString("OAUTH_SUCCESS_REDIRECT", DefaultOAuthSuccessRedirect),
			FailureRedirect: getString("OAUTH_FAILURE_REDIRECT", DefaultOAuthFailureRedirect),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		errs = append(errs, ErrMissingSecret)
	}
	if cfg.Auth.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.Auth.TokenTTL))
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout))
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", cfg.Port))
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StorageMemory
		if cfg.Storage.MongoURI != "" {
			cfg.Storage.Type = StorageMongo
		}
	}
	switch cfg.Storage.Type {
	case StorageMemory, StorageRedis:
	case StorageMongo:
		if cfg.Storage.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORAGE_TYPE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE_TYPE %q: expected memory, redis or mongo", cfg.Storage.Type))
	}

	if cfg.Google.Enabled() && cfg.Google.CallbackURL == "" {
		errs = append(errs, errors.New("GOOGLE_CALLBACK_URL is required when Google sign-in is enabled"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func getString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs *[]error) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid value for %s: expected integer, got %q", key, value))
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid value for %s: expected duration, got %q", key, value))
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid value for %s: expected boolean, got %q", key, value))
		return defaultValue
	}
	return b
}

func getList(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
