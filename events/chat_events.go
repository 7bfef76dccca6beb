package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// UserCreatedEvent is emitted when an anonymous join creates a new user.
type UserCreatedEvent struct {
	UserID    string    `json:"user_id"`
	ConnID    string    `json:"conn_id"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageSentEvent is emitted after a message has been persisted.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	ChatID    int64     `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	FromRobot bool      `json:"from_robot"`
}

// Event definitions for the relay.
var (
	UserCreatedV1 = helper.EventDefinition[UserCreatedEvent](
		"relay",
		"UserCreated",
		"v1",
	)

	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"relay",
		"MessageSent",
		"v1",
	)
)
