package store

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module ties an opened Store to the application lifecycle.
type Module struct {
	store  Store
	driver string
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule wraps an opened store.
func NewModule(store Store, driver string, logger types.Logger) *Module {
	return &Module{
		store:  store,
		driver: driver,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start verifies the store is reachable.
func (m *Module) Start(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable: %w", err)
	}
	m.logger.Info("Store module started", "driver", m.driver)
	return nil
}

// Stop closes the store.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.store.Close(ctx); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health pings the store.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("store ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.driver,
		},
	}
}

// Store returns the wrapped store.
func (m *Module) Store() Store {
	return m.store
}
