package mongo

import "time"

// Config holds MongoDB connection settings
type Config struct {
	// URI is the connection string (e.g., mongodb://localhost:27017)
	URI string
	// Database is the database holding the users and players collections
	Database string

	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// DefaultConfig returns sensible defaults for MongoDB configuration
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "mystari",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    100,
	}
}
