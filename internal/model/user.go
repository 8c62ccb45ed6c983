package model

import "time"

// User is a registered account.
// PasswordHash is never serialised to JSON; see StoredUser.
type User struct {
	ID              ID        `json:"id" bson:"_id"`
	Email           string    `json:"email" bson:"email"`
	PasswordHash    string    `json:"-" bson:"password"`
	Username        string    `json:"username,omitempty" bson:"username,omitempty"`
	Provider        string    `json:"provider,omitempty" bson:"provider,omitempty"`
	ProviderSubject string    `json:"-" bson:"provider_subject,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// StoredUser is the JSON form key-value backends persist, hash included
type StoredUser struct {
	ID              ID        `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"password_hash"`
	Username        string    `json:"username,omitempty"`
	Provider        string    `json:"provider,omitempty"`
	ProviderSubject string    `json:"provider_subject,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Stored converts the user to its persisted form
func (u *User) Stored() StoredUser {
	return StoredUser(*u)
}

// User converts the persisted form back to a User
func (s StoredUser) User() *User {
	u := User(s)
	return &u
}
