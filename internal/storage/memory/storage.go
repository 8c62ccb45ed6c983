package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Records are copied in and out so callers never share state with the store.
type Storage struct {
	mu sync.RWMutex

	users         map[model.ID]model.User
	emailIndex    map[string]model.ID
	players       map[model.ID]model.Player
	playerOrder   []model.ID
	usernameIndex map[string]model.ID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:         make(map[model.ID]model.User),
		emailIndex:    make(map[string]model.ID),
		players:       make(map[model.ID]model.Player),
		usernameIndex: make(map[string]model.ID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emailIndex[user.Email]; ok {
		return model.ErrEmailTaken
	}
	s.users[user.ID] = *user
	s.emailIndex[user.Email] = user.ID
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.ID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) UpdateUserPassword(ctx context.Context, id model.ID, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = updatedAt
	s.users[id] = user
	return nil
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usernameIndex[player.Username]; ok {
		return model.ErrUsernameTaken
	}
	s.players[player.ID] = *player
	s.playerOrder = append(s.playerOrder, player.ID)
	s.usernameIndex[player.Username] = player.ID
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.ID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]model.Player, 0, len(s.playerOrder))
	for _, id := range s.playerOrder {
		players = append(players, s.players[id])
	}
	return players, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.ID, update model.PlayerUpdate) (*model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}

	oldUsername := player.Username
	update.Apply(&player)
	if player.Username != oldUsername {
		if _, taken := s.usernameIndex[player.Username]; taken {
			return nil, model.ErrUsernameTaken
		}
		delete(s.usernameIndex, oldUsername)
		s.usernameIndex[player.Username] = id
	}

	s.players[id] = player
	return &player, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}
