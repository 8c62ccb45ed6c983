package model

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ID identifies a stored document (user or player).
// It is the 12-byte document database identifier, written as 24 hex characters.
type ID = bson.ObjectID

// NewID generates a fresh identifier
func NewID() ID {
	return bson.NewObjectID()
}

// ParseID parses a hex identifier, surrounding whitespace is ignored
func ParseID(s string) (ID, error) {
	id, err := bson.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return bson.NilObjectID, ErrInvalidID
	}
	return id, nil
}
