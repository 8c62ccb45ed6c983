package players

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mystari/mystari-api/internal/dependencies/clock"
	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/storage"
)

// Service handles listing, creating and updating players
type Service struct {
	storage  storage.Storage
	clock    clock.Clock
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a new players Service
func New(store storage.Storage, clk clock.Clock, logger *slog.Logger) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		storage:  store,
		clock:    clk,
		validate: v,
		logger:   logger,
	}
}

// List returns every player in storage order
func (s *Service) List(ctx context.Context) ([]model.Player, error) {
	return s.storage.ListPlayers(ctx)
}

// Get returns one player by its hex identifier
func (s *Service) Get(ctx context.Context, rawID string) (*model.Player, error) {
	id, err := model.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	return s.storage.GetPlayer(ctx, id)
}

// Create stores a new player built from seed, with defaults filled in
func (s *Service) Create(ctx context.Context, seed model.PlayerSeed) (*model.Player, error) {
	player := seed.Player()
	player.Username = strings.TrimSpace(player.Username)
	if err := s.check(player); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	player.ID = model.NewID()
	player.CreatedAt = now
	player.UpdatedAt = now

	if err := s.storage.CreatePlayer(ctx, &player); err != nil {
		return nil, err
	}

	s.logger.Info("player created",
		slog.String("player_id", player.ID.Hex()),
		slog.String("username", player.Username),
	)
	return &player, nil
}

// Update applies a partial update to the player identified by rawID.
// The identifier is checked before storage is touched.
func (s *Service) Update(ctx context.Context, rawID string, update model.PlayerUpdate) (*model.Player, error) {
	id, err := model.ParseID(rawID)
	if err != nil {
		return nil, err
	}

	if update.Username != nil {
		trimmed := strings.TrimSpace(*update.Username)
		update.Username = &trimmed
	}
	if err := s.check(update); err != nil {
		return nil, err
	}

	update.UpdatedAt = s.clock.Now()

	player, err := s.storage.UpdatePlayer(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.logger.Info("player updated", slog.String("player_id", id.Hex()))
	return player, nil
}

// Seed creates each seed in order. Usernames that already exist are
// skipped so the same file can be applied repeatedly.
func (s *Service) Seed(ctx context.Context, seeds []model.PlayerSeed) (int, error) {
	created := 0
	for _, seed := range seeds {
		if _, err := s.Create(ctx, seed); err != nil {
			if errors.Is(err, model.ErrUsernameTaken) {
				s.logger.Info("seed player exists, skipping", slog.String("username", seed.Username))
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

// check runs struct validation and converts failures to model.ValidationError
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	vErr := &model.ValidationError{}
	for _, fe := range fieldErrs {
		vErr.Fields = append(vErr.Fields, model.FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return vErr
}
