package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user.Stored())
	if err != nil {
		return err
	}

	// The email index doubles as the uniqueness constraint
	claimed, err := s.client.SetNX(ctx, emailIndexKey(user.Email), user.ID.Hex(), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrEmailTaken
	}

	if err := s.client.Set(ctx, userKey(user.ID), data, 0).Err(); err != nil {
		// Release the index so the email is not left dangling
		_ = s.client.Del(ctx, emailIndexKey(user.Email)).Err()
		return err
	}
	return nil
}

func (s *Storage) GetUser(ctx context.Context, id model.ID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var stored model.StoredUser
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return stored.User(), nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	// Look up user ID from email index
	idStr, err := s.client.Get(ctx, emailIndexKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	id, err := model.ParseID(idStr)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *Storage) UpdateUserPassword(ctx context.Context, id model.ID, passwordHash string, updatedAt time.Time) error {
	key := userKey(id)
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrUserNotFound
			}
			return err
		}

		var stored model.StoredUser
		if err := json.Unmarshal(data, &stored); err != nil {
			return err
		}
		stored.PasswordHash = passwordHash
		stored.UpdatedAt = updatedAt

		updated, err := json.Marshal(stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}, key)
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	claimed, err := s.client.SetNX(ctx, playerUsernameIndexKey(player.Username), player.ID.Hex(), 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrUsernameTaken
	}

	// Use pipeline for atomic save + list update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, playerKey(player.ID), data, 0)
	pipe.RPush(ctx, playersListKey(), player.ID.Hex())
	if _, err := pipe.Exec(ctx); err != nil {
		_ = s.client.Del(ctx, playerUsernameIndexKey(player.Username)).Err()
		return err
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.ID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	ids, err := s.client.LRange(ctx, playersListKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []model.Player{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, idStr := range ids {
		id, err := model.ParseID(idStr)
		if err != nil {
			continue // Skip corrupt index entries
		}
		keys = append(keys, playerKey(id))
	}

	// Fetch all players in one round trip using MGET
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]model.Player, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}
		var player model.Player
		if err := json.Unmarshal([]byte(str), &player); err != nil {
			return nil, err
		}
		players = append(players, player)
	}

	return players, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.ID, update model.PlayerUpdate) (*model.Player, error) {
	key := playerKey(id)
	watched := []string{key}
	if update.Username != nil {
		watched = append(watched, playerUsernameIndexKey(*update.Username))
	}

	var result *model.Player
	err := s.withRetry(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrPlayerNotFound
			}
			return err
		}

		var player model.Player
		if err := json.Unmarshal(data, &player); err != nil {
			return err
		}

		oldUsername := player.Username
		update.Apply(&player)
		renamed := player.Username != oldUsername

		if renamed {
			taken, err := tx.Exists(ctx, playerUsernameIndexKey(player.Username)).Result()
			if err != nil {
				return err
			}
			if taken > 0 {
				return model.ErrUsernameTaken
			}
		}

		updated, err := json.Marshal(player)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			if renamed {
				pipe.Del(ctx, playerUsernameIndexKey(oldUsername))
				pipe.Set(ctx, playerUsernameIndexKey(player.Username), id.Hex(), 0)
			}
			return nil
		})
		if err != nil {
			return err
		}

		result = &player
		return nil
	}, watched...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withRetry runs fn inside WATCH on keys, retrying when another client
// modified a watched key before EXEC
func (s *Storage) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < s.cfg.MaxTxRetries; i++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}
