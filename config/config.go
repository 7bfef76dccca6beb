// Package config loads the relay configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ListenAddr is the fixed address the HTTP/WebSocket server binds to.
const ListenAddr = ":3000"

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

var (
	ErrInvalidDriver = errors.New("invalid store driver")
	ErrInvalidRoomID = errors.New("room id must be positive")
	ErrInvalidLimit  = errors.New("rate limit must not be negative")
)

// Config holds the relay configuration.
type Config struct {
	MongoURL        string        `env:"MONGO_URL" envDefault:"mongodb://localhost:27017/local"`
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"mongo"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"chat.db"`
	RoomID          int64         `env:"ROOM_ID" envDefault:"1"`
	ValidateUsers   bool          `env:"VALIDATE_USERS" envDefault:"false"`
	ConsoleEnabled  bool          `env:"CONSOLE_ENABLED" envDefault:"true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RateLimit is the sustained number of frames per second a single
	// connection may send. Zero disables limiting.
	RateLimit      int `env:"RATE_LIMIT" envDefault:"0"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// Load reads the given dotenv files (".env" when none are given) and then
// parses the environment. Missing dotenv files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that env tags cannot express.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.StoreDriver)
	}
	if c.RoomID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRoomID, c.RoomID)
	}
	if c.RateLimit < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidLimit, c.RateLimit, c.RateLimitBurst)
	}
	return nil
}
