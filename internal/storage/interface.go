package storage

import (
	"context"
	"time"

	"github.com/mystari/mystari-api/internal/model"
)

// Storage defines the interface for data persistence
type Storage interface {
	// User operations
	// CreateUser fails with model.ErrEmailTaken when the email is already registered
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id model.ID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateUserPassword replaces the password hash and stamps UpdatedAt
	UpdateUserPassword(ctx context.Context, id model.ID, passwordHash string, updatedAt time.Time) error

	// Player operations
	// CreatePlayer fails with model.ErrUsernameTaken when the username is already used
	CreatePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.ID) (*model.Player, error)
	ListPlayers(ctx context.Context) ([]model.Player, error)
	// UpdatePlayer applies update atomically and returns the resulting record
	UpdatePlayer(ctx context.Context, id model.ID, update model.PlayerUpdate) (*model.Player, error)

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}
