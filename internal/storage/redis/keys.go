package redis

import (
	"fmt"

	"github.com/mystari/mystari-api/internal/model"
)

// Key prefix for all application data
const keyPrefix = "mystari"

// userKey returns the Redis key for a User
func userKey(id model.ID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id.Hex())
}

// emailIndexKey returns the Redis key for the email -> user_id index
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}

// playerKey returns the Redis key for a Player
func playerKey(id model.ID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id.Hex())
}

// playerUsernameIndexKey returns the Redis key for the username -> player_id index
func playerUsernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:player_username:%s", keyPrefix, username)
}

// playersListKey returns the Redis key for the LIST of player ids in creation order
func playersListKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}
