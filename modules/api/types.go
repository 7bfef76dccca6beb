package api

import (
	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/modules/activity"
)

// HistoryResponse is the API response for the room history.
type HistoryResponse struct {
	RoomID   int64            `json:"room_id"`
	Count    int              `json:"count"`
	Messages []domain.Message `json:"messages"`
}

// ActivityResponse is the API response for relay activity.
type ActivityResponse struct {
	Stats  activity.Stats   `json:"stats"`
	Recent []activity.Entry `json:"recent"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
