package model

import "time"

// Rarity grades a player
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityUncommon  Rarity = "Uncommon"
	RarityRare      Rarity = "Rare"
	RarityEpic      Rarity = "Epic"
	RarityLegendary Rarity = "Legendary"
)

// ElementType is a player's element
type ElementType string

const (
	TypeFire     ElementType = "Fire"
	TypeWater    ElementType = "Water"
	TypeIce      ElementType = "Ice"
	TypeElectric ElementType = "Electric"
	TypeEarth    ElementType = "Earth"
)

// Player defaults
const (
	DefaultLevel   = 1
	DefaultXP      = 0
	DefaultEnergy  = 100
	DefaultHealth  = 100
	DefaultFaction = "None"
	DefaultRarity  = RarityCommon
)

// Player is a game character record.
// Players are shared across all users; there is no owner reference.
type Player struct {
	ID        ID          `json:"id" bson:"_id"`
	Username  string      `json:"username" bson:"username" validate:"required"`
	Level     int         `json:"level" bson:"level" validate:"min=1"`
	XP        int         `json:"xp" bson:"xp" validate:"min=0"`
	Energy    int         `json:"energy" bson:"energy"`
	Health    int         `json:"health" bson:"health"`
	Faction   string      `json:"faction" bson:"faction"`
	Rarity    Rarity      `json:"rarity" bson:"rarity" validate:"oneof=Common Uncommon Rare Epic Legendary"`
	Type      ElementType `json:"type" bson:"type" validate:"required,oneof=Fire Water Ice Electric Earth"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" bson:"updated_at"`
}

// PlayerSeed holds the optional fields of a player as supplied out of band.
// Nil numeric fields take their defaults.
type PlayerSeed struct {
	Username string      `yaml:"username" json:"username"`
	Level    *int        `yaml:"level" json:"level"`
	XP       *int        `yaml:"xp" json:"xp"`
	Energy   *int        `yaml:"energy" json:"energy"`
	Health   *int        `yaml:"health" json:"health"`
	Faction  string      `yaml:"faction" json:"faction"`
	Rarity   Rarity      `yaml:"rarity" json:"rarity"`
	Type     ElementType `yaml:"type" json:"type"`
}

// Player builds a Player from the seed, filling defaults
func (s PlayerSeed) Player() Player {
	p := Player{
		Username: s.Username,
		Level:    DefaultLevel,
		XP:       DefaultXP,
		Energy:   DefaultEnergy,
		Health:   DefaultHealth,
		Faction:  s.Faction,
		Rarity:   s.Rarity,
		Type:     s.Type,
	}
	if s.Level != nil {
		p.Level = *s.Level
	}
	if s.XP != nil {
		p.XP = *s.XP
	}
	if s.Energy != nil {
		p.Energy = *s.Energy
	}
	if s.Health != nil {
		p.Health = *s.Health
	}
	if p.Faction == "" {
		p.Faction = DefaultFaction
	}
	if p.Rarity == "" {
		p.Rarity = DefaultRarity
	}
	return p
}

// PlayerUpdate is a partial change to a player. Nil fields are left as-is.
type PlayerUpdate struct {
	Username *string      `json:"username,omitempty" validate:"omitempty,min=1"`
	Level    *int         `json:"level,omitempty" validate:"omitempty,min=1"`
	XP       *int         `json:"xp,omitempty" validate:"omitempty,min=0"`
	Energy   *int         `json:"energy,omitempty"`
	Health   *int         `json:"health,omitempty"`
	Faction  *string      `json:"faction,omitempty"`
	Rarity   *Rarity      `json:"rarity,omitempty" validate:"omitempty,oneof=Common Uncommon Rare Epic Legendary"`
	Type     *ElementType `json:"type,omitempty" validate:"omitempty,oneof=Fire Water Ice Electric Earth"`

	// UpdatedAt is stamped by the service, not accepted from clients
	UpdatedAt time.Time `json:"-"`
}

// IsEmpty reports whether the update changes nothing
func (u PlayerUpdate) IsEmpty() bool {
	return u.Username == nil && u.Level == nil && u.XP == nil && u.Energy == nil &&
		u.Health == nil && u.Faction == nil && u.Rarity == nil && u.Type == nil
}

// Apply merges the update into p
func (u PlayerUpdate) Apply(p *Player) {
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.Level != nil {
		p.Level = *u.Level
	}
	if u.XP != nil {
		p.XP = *u.XP
	}
	if u.Energy != nil {
		p.Energy = *u.Energy
	}
	if u.Health != nil {
		p.Health = *u.Health
	}
	if u.Faction != nil {
		p.Faction = *u.Faction
	}
	if u.Rarity != nil {
		p.Rarity = *u.Rarity
	}
	if u.Type != nil {
		p.Type = *u.Type
	}
	if !u.UpdatedAt.IsZero() {
		p.UpdatedAt = u.UpdatedAt
	}
}
