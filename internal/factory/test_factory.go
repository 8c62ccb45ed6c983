package factory

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mystari/mystari-api/internal/dependencies/mocks"
	"github.com/mystari/mystari-api/internal/services/auth"
	"github.com/mystari/mystari-api/internal/services/oauth"
	"github.com/mystari/mystari-api/internal/storage/memory"
	"github.com/mystari/mystari-api/internal/testutil"
)

// TestSecret signs tokens in test apps
const TestSecret = "test-secret"

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MemoryStorage *memory.Storage
	MockClock     *mocks.MockClock
	MockRandom    *mocks.MockRandom
}

// TestOption customises a TestApp
type TestOption func(*Config)

// WithGoogle enables Google sign-in against the given endpoints
func WithGoogle(cfg oauth.Config) TestOption {
	return func(c *Config) { c.Google = &cfg }
}

// WithLogger replaces the no-op logger
func WithLogger(logger *slog.Logger) TestOption {
	return func(c *Config) { c.Logger = logger }
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Hashing uses the minimum bcrypt cost to keep tests fast.
func NewTestApp(opts ...TestOption) *TestApp {
	cfg := Config{
		JWTSecret: TestSecret,
		TokenTTL:  auth.DefaultTokenTTL,
		Logger:    testutil.NopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app, err := newWithDependencies(store, mockClock, mockRandom, auth.NewBcryptHasher(bcrypt.MinCost), cfg, cfg.Logger)
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:           app,
		MemoryStorage: store,
		MockClock:     mockClock,
		MockRandom:    mockRandom,
	}
}
