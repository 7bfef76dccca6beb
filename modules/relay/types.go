package relay

import (
	"encoding/json"

	domain "github.com/example/chat-relay/domain/chat"
)

// Wire event names.
const (
	EventUserJoined = "userJoined"
	EventMessage    = "message"
)

// ServiceGetHistory is the request-reply service exposing room history.
const ServiceGetHistory = "get-history"

// IncomingUser is the author block a client attaches to a message.
type IncomingUser struct {
	ID     string `json:"_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// IncomingMessage is the payload of a client "message" event.
// CreatedAt is kept raw so both strings and numbers can be accepted.
type IncomingMessage struct {
	Text      string          `json:"text"`
	User      IncomingUser    `json:"user"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
}

// GetHistoryRequest asks for the room history, newest first.
// A Limit of zero or less returns everything.
type GetHistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// GetHistoryResponse carries the room history, newest first.
type GetHistoryResponse struct {
	RoomID   int64            `json:"room_id"`
	Messages []domain.Message `json:"messages"`
}
