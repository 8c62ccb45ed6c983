// Package storagetest holds the behaviour suite every storage backend must pass.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/storage"
)

// Suite runs the shared storage contract against Storage.
// Backend suites embed it and assign Storage in SetupTest.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newUser(email string) *model.User {
	return &model.User{
		ID:           model.NewID(),
		Email:        email,
		PasswordHash: "$2a$10$hash",
		Username:     "alice",
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
}

func newPlayer(username string) *model.Player {
	p := model.PlayerSeed{Username: username, Type: model.TypeFire}.Player()
	p.ID = model.NewID()
	p.CreatedAt = baseTime
	p.UpdatedAt = baseTime
	return &p
}

// User tests

func (s *Suite) TestCreateAndGetUser() {
	user := newUser("a@x.com")
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, user))

	byID, err := s.Storage.GetUser(s.Ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.Email, byID.Email)
	s.Equal(user.PasswordHash, byID.PasswordHash)

	byEmail, err := s.Storage.GetUserByEmail(s.Ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(user.ID, byEmail.ID)
	s.Equal("alice", byEmail.Username)
}

func (s *Suite) TestGetUserNotFound() {
	_, err := s.Storage.GetUser(s.Ctx, model.NewID())
	s.ErrorIs(err, model.ErrUserNotFound)

	_, err = s.Storage.GetUserByEmail(s.Ctx, "nobody@x.com")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestCreateUserDuplicateEmailLeavesOriginal() {
	original := newUser("a@x.com")
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, original))

	dup := newUser("a@x.com")
	dup.PasswordHash = "$2a$10$other"
	dup.Username = "mallory"
	err := s.Storage.CreateUser(s.Ctx, dup)
	s.ErrorIs(err, model.ErrEmailTaken)

	stored, err := s.Storage.GetUserByEmail(s.Ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(original.ID, stored.ID)
	s.Equal("$2a$10$hash", stored.PasswordHash)
	s.Equal("alice", stored.Username)

	_, err = s.Storage.GetUser(s.Ctx, dup.ID)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestConcurrentDuplicateRegistrationOnlyOneWins() {
	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Storage.CreateUser(s.Ctx, newUser("race@x.com"))
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			s.ErrorIs(err, model.ErrEmailTaken)
		}
	}
	s.Equal(1, successes)
}

func (s *Suite) TestUpdateUserPassword() {
	user := newUser("a@x.com")
	s.Require().NoError(s.Storage.CreateUser(s.Ctx, user))

	changedAt := baseTime.Add(90 * time.Minute)
	s.Require().NoError(s.Storage.UpdateUserPassword(s.Ctx, user.ID, "$2a$10$new", changedAt))

	stored, err := s.Storage.GetUser(s.Ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("$2a$10$new", stored.PasswordHash)
	s.True(changedAt.Equal(stored.UpdatedAt), "updated_at = %s", stored.UpdatedAt)
	s.True(baseTime.Equal(stored.CreatedAt), "created_at = %s", stored.CreatedAt)
}

func (s *Suite) TestUpdateUserPasswordNotFound() {
	err := s.Storage.UpdateUserPassword(s.Ctx, model.NewID(), "$2a$10$new", baseTime)
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Player tests

func (s *Suite) TestListPlayersEmpty() {
	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.NotNil(players)
	s.Empty(players)
}

func (s *Suite) TestCreateAndListPlayers() {
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, newPlayer("ember")))
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, newPlayer("frost")))

	players, err := s.Storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Len(players, 2)

	names := []string{players[0].Username, players[1].Username}
	s.ElementsMatch([]string{"ember", "frost"}, names)
}

func (s *Suite) TestCreatePlayerDuplicateUsername() {
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, newPlayer("ember")))

	err := s.Storage.CreatePlayer(s.Ctx, newPlayer("ember"))
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *Suite) TestGetPlayer() {
	player := newPlayer("ember")
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, player))

	got, err := s.Storage.GetPlayer(s.Ctx, player.ID)
	s.Require().NoError(err)
	s.Equal("ember", got.Username)
	s.Equal(model.DefaultLevel, got.Level)
	s.Equal(model.RarityCommon, got.Rarity)
	s.Equal(model.TypeFire, got.Type)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Storage.GetPlayer(s.Ctx, model.NewID())
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestUpdatePlayerMergesFields() {
	player := newPlayer("ember")
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, player))

	level := 5
	rarity := model.RarityEpic
	updated, err := s.Storage.UpdatePlayer(s.Ctx, player.ID, model.PlayerUpdate{
		Level:     &level,
		Rarity:    &rarity,
		UpdatedAt: baseTime.Add(time.Hour),
	})
	s.Require().NoError(err)

	s.Equal(5, updated.Level)
	s.Equal(model.RarityEpic, updated.Rarity)
	s.Equal(player.ID, updated.ID)
	s.Equal(player.Username, updated.Username)
	s.Equal(player.XP, updated.XP)
	s.Equal(player.Energy, updated.Energy)
	s.Equal(player.Health, updated.Health)
	s.Equal(player.Faction, updated.Faction)
	s.Equal(player.Type, updated.Type)
	s.True(updated.UpdatedAt.Equal(baseTime.Add(time.Hour)))

	stored, err := s.Storage.GetPlayer(s.Ctx, player.ID)
	s.Require().NoError(err)
	s.Equal(5, stored.Level)
}

func (s *Suite) TestUpdatePlayerNotFound() {
	level := 2
	_, err := s.Storage.UpdatePlayer(s.Ctx, model.NewID(), model.PlayerUpdate{Level: &level})
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestUpdatePlayerRenameOntoTakenUsername() {
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, newPlayer("ember")))
	frost := newPlayer("frost")
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, frost))

	name := "ember"
	_, err := s.Storage.UpdatePlayer(s.Ctx, frost.ID, model.PlayerUpdate{Username: &name})
	s.ErrorIs(err, model.ErrUsernameTaken)

	stored, err := s.Storage.GetPlayer(s.Ctx, frost.ID)
	s.Require().NoError(err)
	s.Equal("frost", stored.Username)
}

func (s *Suite) TestUpdatePlayerRenameFreesOldUsername() {
	ember := newPlayer("ember")
	s.Require().NoError(s.Storage.CreatePlayer(s.Ctx, ember))

	name := "blaze"
	_, err := s.Storage.UpdatePlayer(s.Ctx, ember.ID, model.PlayerUpdate{Username: &name})
	s.Require().NoError(err)

	s.NoError(s.Storage.CreatePlayer(s.Ctx, newPlayer("ember")))
}

func (s *Suite) TestPing() {
	s.NoError(s.Storage.Ping(s.Ctx))
}
