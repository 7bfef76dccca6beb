// Package store persists users and chat messages.
package store

import (
	"context"
	"fmt"

	"github.com/example/chat-relay/config"
	domain "github.com/example/chat-relay/domain/chat"
)

// Store is the persistence port used by the relay.
//
// FindMessages returns the messages of a room sorted by CreatedAt ascending;
// messages with equal timestamps keep their insertion order.
type Store interface {
	CreateUser(ctx context.Context) (string, error)
	UserExists(ctx context.Context, userID string) (bool, error)
	InsertMessage(ctx context.Context, msg *domain.Message) error
	FindMessages(ctx context.Context, roomID int64) ([]domain.Message, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open connects to the backend selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		s, err := OpenMongo(ctx, cfg.MongoURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDriver, cfg.StoreDriver)
	}
}
