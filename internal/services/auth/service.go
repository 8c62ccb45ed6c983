package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mystari/mystari-api/internal/dependencies/clock"
	"github.com/mystari/mystari-api/internal/dependencies/random"
	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingSecret      = errors.New("token signing secret is not configured")
)

// externalPasswordBytes is the entropy of the random password given to
// accounts created through an identity provider. Nobody knows it, so the
// account can only be reached through the provider.
const externalPasswordBytes = 32

// Session is the result of a successful register or login
type Session struct {
	Token     string
	UserID    model.ID
	ExpiresAt time.Time
}

// ExternalProfile is an identity asserted by an external provider
type ExternalProfile struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Service handles registration, login and token verification
type Service struct {
	storage storage.Storage
	tokens  *TokenManager
	hasher  PasswordHasher
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// New creates a new auth Service
func New(store storage.Storage, tokens *TokenManager, hasher PasswordHasher, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Service {
	return &Service{
		storage: store,
		tokens:  tokens,
		hasher:  hasher,
		clock:   clk,
		random:  rnd,
		logger:  logger,
	}
}

// Register creates a user account and returns a session for it
func (s *Service) Register(ctx context.Context, email, password, username string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, model.NewValidationError("email", "required")
	}
	if password == "" {
		return nil, model.NewValidationError("password", "required")
	}
	if len(password) > MaxPasswordBytes {
		return nil, model.NewValidationError("password", "max")
	}

	// Check if the email exists
	_, err := s.storage.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, model.ErrEmailTaken
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           model.NewID(),
		Email:        email,
		PasswordHash: hash,
		Username:     strings.TrimSpace(username),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The store enforces uniqueness too, covering concurrent registrations
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID.Hex()))
	return s.IssueSession(user.ID)
}

// Login authenticates by email and password.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.storage.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			// Spend the same hashing time as a real comparison
			s.hasher.Verify(password, s.dummy())
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.IssueSession(user.ID)
}

// Authenticate verifies a session token and returns its claims
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// IssueSession signs a new token for userID
func (s *Service) IssueSession(userID model.ID) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(userID.Hex())
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}, nil
}

// ChangePassword replaces a user's password after checking the current one.
// When newPassword equals the current password the stored hash is left untouched.
func (s *Service) ChangePassword(ctx context.Context, userID model.ID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return model.NewValidationError("new_password", "required")
	}
	if len(newPassword) > MaxPasswordBytes {
		return model.NewValidationError("new_password", "max")
	}

	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, changed, err := s.rehashIfModified(user.PasswordHash, newPassword)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := s.storage.UpdateUserPassword(ctx, userID, hash, s.clock.Now()); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("user_id", userID.Hex()))
	return nil
}

// rehashIfModified hashes password unless it already matches currentHash
func (s *Service) rehashIfModified(currentHash, password string) (string, bool, error) {
	if currentHash != "" && s.hasher.Verify(password, currentHash) {
		return currentHash, false, nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// ExchangeExternalIdentity maps a provider profile onto a local user,
// creating the user on first sight, and returns the user's ID
func (s *Service) ExchangeExternalIdentity(ctx context.Context, profile ExternalProfile) (model.ID, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return model.ID{}, model.NewValidationError("email", "required")
	}

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.ID{}, err
	}

	hash, err := s.hasher.Hash(s.random.Token(externalPasswordBytes))
	if err != nil {
		return model.ID{}, err
	}

	now := s.clock.Now()
	user = &model.User{
		ID:              model.NewID(),
		Email:           email,
		PasswordHash:    hash,
		Username:        profile.Name,
		Provider:        profile.Provider,
		ProviderSubject: profile.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			// Lost a race with a concurrent first login
			existing, getErr := s.storage.GetUserByEmail(ctx, email)
			if getErr != nil {
				return model.ID{}, getErr
			}
			return existing.ID, nil
		}
		return model.ID{}, err
	}

	s.logger.Info("user created from external identity",
		slog.String("user_id", user.ID.Hex()),
		slog.String("provider", profile.Provider),
	)
	return user.ID, nil
}

// dummy returns a hash used to equalise login timing for unknown emails
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(s.random.Token(externalPasswordBytes))
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
