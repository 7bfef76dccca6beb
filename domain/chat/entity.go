package chat

import "time"

// RobotUserID is the reserved author id for messages typed on the server console.
const RobotUserID = "robot"

// DefaultRoomID is the room every message belongs to unless configured otherwise.
const DefaultRoomID int64 = 1

// Author identifies who wrote a message.
type Author struct {
	ID     string `json:"_id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Message represents a persisted chat message.
type Message struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	User      Author    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ChatID    int64     `json:"chatId"`
}

// Reversed returns a copy of messages in reverse order.
func Reversed(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[len(messages)-1-i] = msg
	}
	return out
}
