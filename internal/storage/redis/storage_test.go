package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini    *miniredis.Miniredis
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.storage = NewWithClient(client, DefaultConfig())
	s.Storage = s.storage
	s.Ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestUserRecordKeepsHashButIndexHoldsID() {
	user := &model.User{ID: model.NewID(), Email: "a@x.com", PasswordHash: "$2a$10$hash"}
	s.Require().NoError(s.storage.CreateUser(s.Ctx, user))

	idx, err := s.mini.Get(emailIndexKey("a@x.com"))
	s.Require().NoError(err)
	s.Equal(user.ID.Hex(), idx)

	raw, err := s.mini.Get(userKey(user.ID))
	s.Require().NoError(err)

	var stored map[string]any
	s.Require().NoError(json.Unmarshal([]byte(raw), &stored))
	s.Equal("$2a$10$hash", stored["password_hash"])
}

func (s *StorageSuite) TestRenameMovesUsernameIndex() {
	p := model.PlayerSeed{Username: "ember", Type: model.TypeFire}.Player()
	p.ID = model.NewID()
	s.Require().NoError(s.storage.CreatePlayer(s.Ctx, &p))

	name := "blaze"
	_, err := s.storage.UpdatePlayer(s.Ctx, p.ID, model.PlayerUpdate{Username: &name})
	s.Require().NoError(err)

	s.False(s.mini.Exists(playerUsernameIndexKey("ember")))
	idx, err := s.mini.Get(playerUsernameIndexKey("blaze"))
	s.Require().NoError(err)
	s.Equal(p.ID.Hex(), idx)
}

func (s *StorageSuite) TestListSkipsMissingRecords() {
	p := model.PlayerSeed{Username: "ember", Type: model.TypeFire}.Player()
	p.ID = model.NewID()
	s.Require().NoError(s.storage.CreatePlayer(s.Ctx, &p))

	// Simulate a record removed out of band while the list entry remains
	s.mini.Del(playerKey(p.ID))

	players, err := s.storage.ListPlayers(s.Ctx)
	s.Require().NoError(err)
	s.Empty(players)
}

func (s *StorageSuite) TestPingFailsWhenServerDown() {
	s.mini.Close()
	s.Error(s.storage.Ping(s.Ctx))
}
