package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/chat-relay/events"
	"github.com/example/chat-relay/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module exposes the relay to the rest of the application.
type Module struct {
	relay  *Relay
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the relay module.
func NewModule(st store.Store, fanout Fanout, logger types.Logger, opts Options) *Module {
	return &Module{
		relay:  New(st, fanout, NewRegistry(), logger, opts),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.relay.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserCreatedV1.ToBase(),
		events.MessageSentV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceGetHistory,
		json.Unmarshal,
		json.Marshal,
		m.handleGetHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetHistory, err)
	}

	m.logger.Info("Registered relay services", "services", ServiceGetHistory)
	return nil
}

func (m *Module) handleGetHistory(ctx context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	history, err := m.relay.History(ctx)
	if err != nil {
		return GetHistoryResponse{}, err
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return GetHistoryResponse{
		RoomID:   m.relay.RoomID(),
		Messages: history,
	}, nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Relay module started", "roomID", m.relay.RoomID())
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Relay module stopped", "openConnections", m.relay.Registry().Count())
	return nil
}

// Health reports connection counts.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"room_id":            m.relay.RoomID(),
			"connections":        m.relay.Registry().Count(),
			"identified_clients": m.relay.Registry().IdentifiedCount(),
		},
	}
}

// Relay returns the relay for transport modules.
func (m *Module) Relay() *Relay {
	return m.relay
}
