package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RelayPort is what other modules may ask of the relay over the service container.
type RelayPort interface {
	GetHistory(ctx context.Context, limit int) (*GetHistoryResponse, error)
}

// relayAdapter wraps a ServiceContainer for type-safe calls into the relay module.
type relayAdapter struct {
	container mono.ServiceContainer
}

// NewRelayAdapter creates an adapter for relay services.
func NewRelayAdapter(container mono.ServiceContainer) RelayPort {
	if container == nil {
		panic("relay adapter requires non-nil ServiceContainer")
	}
	return &relayAdapter{container: container}
}

// GetHistory fetches the room history via the get-history service.
func (a *relayAdapter) GetHistory(ctx context.Context, limit int) (*GetHistoryResponse, error) {
	req := GetHistoryRequest{Limit: limit}
	var resp GetHistoryResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetHistory,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s service call failed: %w", ServiceGetHistory, err)
	}
	return &resp, nil
}
