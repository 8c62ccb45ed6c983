// Package mongo stores users and players as documents in MongoDB.
// Uniqueness of user emails and player usernames is enforced by unique indexes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/storage"
)

const (
	usersCollection   = "users"
	playersCollection = "players"
)

// Storage is a MongoDB-backed implementation of the storage interface
type Storage struct {
	client  *mongo.Client
	users   *mongo.Collection
	players *mongo.Collection
}

// New connects to MongoDB, verifies the connection and ensures indexes exist
func New(ctx context.Context, cfg Config) (*Storage, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := NewWithClient(client, cfg.Database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewWithClient creates a storage over an existing client (for testing)
func NewWithClient(client *mongo.Client, database string) *Storage {
	db := client.Database(database)
	return &Storage{
		client:  client,
		users:   db.Collection(usersCollection),
		players: db.Collection(playersCollection),
	}
}

// EnsureIndexes creates the unique indexes the storage relies on
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = s.players.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return fmt.Errorf("create players index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Storage) Close() error {
	return s.client.Disconnect(context.Background())
}

// Ping checks the primary is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) error {
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrEmailTaken
	}
	return err
}

func (s *Storage) GetUser(ctx context.Context, id model.ID) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Storage) findUser(ctx context.Context, filter bson.D) (*model.User, error) {
	var user model.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Storage) UpdateUserPassword(ctx context.Context, id model.ID, passwordHash string, updatedAt time.Time) error {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "password", Value: passwordHash},
			{Key: "updated_at", Value: updatedAt},
		}}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// Player operations

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	_, err := s.players.InsertOne(ctx, player)
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrUsernameTaken
	}
	return err
}

func (s *Storage) GetPlayer(ctx context.Context, id model.ID) (*model.Player, error) {
	var player model.Player
	if err := s.players.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&player); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]model.Player, error) {
	// ObjectIDs embed their creation second, so _id order is creation order
	cursor, err := s.players.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	players := []model.Player{}
	if err := cursor.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.ID, update model.PlayerUpdate) (*model.Player, error) {
	set := setDocument(update)
	if len(set) == 0 {
		return s.GetPlayer(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var player model.Player
	err := s.players.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&player)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, model.ErrPlayerNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, model.ErrUsernameTaken
		}
		return nil, err
	}
	return &player, nil
}

// setDocument converts the non-nil fields of update into a $set document
func setDocument(u model.PlayerUpdate) bson.D {
	set := bson.D{}
	if u.Username != nil {
		set = append(set, bson.E{Key: "username", Value: *u.Username})
	}
	if u.Level != nil {
		set = append(set, bson.E{Key: "level", Value: *u.Level})
	}
	if u.XP != nil {
		set = append(set, bson.E{Key: "xp", Value: *u.XP})
	}
	if u.Energy != nil {
		set = append(set, bson.E{Key: "energy", Value: *u.Energy})
	}
	if u.Health != nil {
		set = append(set, bson.E{Key: "health", Value: *u.Health})
	}
	if u.Faction != nil {
		set = append(set, bson.E{Key: "faction", Value: *u.Faction})
	}
	if u.Rarity != nil {
		set = append(set, bson.E{Key: "rarity", Value: *u.Rarity})
	}
	if u.Type != nil {
		set = append(set, bson.E{Key: "type", Value: *u.Type})
	}
	if !u.UpdatedAt.IsZero() {
		set = append(set, bson.E{Key: "updated_at", Value: u.UpdatedAt})
	}
	return set
}
