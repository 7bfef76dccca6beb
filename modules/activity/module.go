// Package activity keeps a running tally of relay events.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/chat-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

const maxRecent = 100

// Entry is one observed relay event.
type Entry struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarises what the relay has done since startup.
type Stats struct {
	UsersCreated   int       `json:"users_created"`
	MessagesSent   int       `json:"messages_sent"`
	ServerMessages int       `json:"server_messages"`
	LastMessageAt  time.Time `json:"last_message_at,omitempty"`
}

// Module subscribes to relay events.
type Module struct {
	logger types.Logger

	mu     sync.RWMutex
	stats  Stats
	recent []Entry
}

var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates an activity module with empty counters.
func NewModule(logger types.Logger) *Module {
	return &Module{
		logger: logger,
		recent: make([]Entry, 0, maxRecent),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// RegisterEventConsumers subscribes to the relay events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.UserCreatedV1, m.handleUserCreated, m); err != nil {
		return fmt.Errorf("failed to register UserCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageSentV1, m.handleMessageSent, m); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "UserCreated, MessageSent")
	return nil
}

func (m *Module) handleUserCreated(_ context.Context, event events.UserCreatedEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.UsersCreated++
	m.record(Entry{
		Kind:      "user_created",
		UserID:    event.UserID,
		Detail:    "conn " + event.ConnID,
		Timestamp: event.Timestamp,
	})
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.MessagesSent++
	if event.FromRobot {
		m.stats.ServerMessages++
	}
	if event.CreatedAt.After(m.stats.LastMessageAt) {
		m.stats.LastMessageAt = event.CreatedAt
	}
	m.record(Entry{
		Kind:      "message_sent",
		UserID:    event.UserID,
		Detail:    event.MessageID,
		Timestamp: event.CreatedAt,
	})
	return nil
}

// record appends e, dropping the oldest entry when full. Caller holds mu.
func (m *Module) record(e Entry) {
	if len(m.recent) == maxRecent {
		copy(m.recent, m.recent[1:])
		m.recent = m.recent[:maxRecent-1]
	}
	m.recent = append(m.recent, e)
}

// Stats returns the current counters.
func (m *Module) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Recent returns the latest entries, oldest first.
func (m *Module) Recent() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Entry, len(m.recent))
	copy(result, m.recent)
	return result
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started, listening for relay events")
	return nil
}

// Stop logs the final counters.
func (m *Module) Stop(_ context.Context) error {
	stats := m.Stats()
	m.logger.Info("Activity module stopped",
		"usersCreated", stats.UsersCreated,
		"messagesSent", stats.MessagesSent)
	return nil
}

// Health returns the health status with the current counters.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"users_created":   stats.UsersCreated,
			"messages_sent":   stats.MessagesSent,
			"server_messages": stats.ServerMessages,
		},
	}
}
