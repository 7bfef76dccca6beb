// Package console lets the operator speak into the room from standard input.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

const maxLineSize = 64 * 1024

// Poster publishes a message as the server.
type Poster interface {
	ServerMessage(ctx context.Context, text string) (*domain.Message, error)
}

// Module reads lines from an io.Reader and posts each one to the room.
type Module struct {
	in     io.Reader
	poster Poster
	logger types.Logger

	cancel context.CancelFunc
	done   chan struct{}
	posted atomic.Int64
	failed atomic.Int64

	// posting is held while a line is being posted.
	posting chan struct{}
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a console module reading from in.
func NewModule(in io.Reader, poster Poster, logger types.Logger) *Module {
	return &Module{
		in:     in,
		poster: poster,
		logger:  logger,
		done:    make(chan struct{}),
		posting: make(chan struct{}, 1),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "console"
}

// Start begins reading input in the background.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
	m.logger.Info("Console module started, type a line to post as the server")
	return nil
}

// Stop stops posting and waits, bounded by ctx, for a post in progress to
// finish. A read already blocked on the input is abandoned.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	select {
	case m.posting <- struct{}{}:
		<-m.posting
	case <-ctx.Done():
		return fmt.Errorf("console post still in progress: %w", ctx.Err())
	}
	m.logger.Info("Console module stopped", "posted", m.posted.Load())
	return nil
}

// Wait blocks until the input is exhausted.
func (m *Module) Wait() {
	<-m.done
}

// Health reports how many lines have been posted.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"posted": m.posted.Load(),
			"failed": m.failed.Load(),
		},
	}
}

func (m *Module) run(ctx context.Context) {
	defer close(m.done)

	scanner := bufio.NewScanner(m.in)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if !m.post(ctx, text) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		m.logger.Warn("Console input closed with error", "error", err)
		return
	}
	m.logger.Debug("Console input closed")
}

// post sends one line. It reports false once the module is stopping.
func (m *Module) post(ctx context.Context, text string) bool {
	m.posting <- struct{}{}
	defer func() { <-m.posting }()

	if ctx.Err() != nil {
		return false
	}
	if _, err := m.poster.ServerMessage(ctx, text); err != nil {
		m.failed.Add(1)
		m.logger.Error("Failed to post console message", "error", err)
		return true
	}
	m.posted.Add(1)
	return true
}
