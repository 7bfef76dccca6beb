package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

type recordingPoster struct {
	mu    sync.Mutex
	texts []string
	fail  map[string]bool
}

func (p *recordingPoster) ServerMessage(_ context.Context, text string) (*domain.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[text] {
		return nil, errors.New("insert failed")
	}
	p.texts = append(p.texts, text)
	return &domain.Message{Text: text, User: domain.Author{ID: domain.RobotUserID}}, nil
}

func TestModule_PostsTrimmedLines(t *testing.T) {
	poster := &recordingPoster{}
	input := "hello\n\n   \n  spaced out  \r\nlast line without newline"
	m := NewModule(strings.NewReader(input), poster, &mockLogger{})
	ctx := context.Background()

	assert.Equal(t, "console", m.Name())
	require.NoError(t, m.Start(ctx))
	m.Wait()
	require.NoError(t, m.Stop(ctx))

	assert.Equal(t, []string{"hello", "spaced out", "last line without newline"}, poster.texts)

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
	assert.Equal(t, int64(3), health.Details["posted"])
}

func TestModule_FailureDoesNotStopReading(t *testing.T) {
	poster := &recordingPoster{fail: map[string]bool{"boom": true}}
	m := NewModule(strings.NewReader("one\nboom\ntwo\n"), poster, &mockLogger{})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	m.Wait()
	require.NoError(t, m.Stop(ctx))

	assert.Equal(t, []string{"one", "two"}, poster.texts)
	assert.Equal(t, int64(1), m.Health(ctx).Details["failed"])
}

func TestModule_StopBeforeStart(t *testing.T) {
	m := NewModule(strings.NewReader(""), &recordingPoster{}, &mockLogger{})
	assert.NoError(t, m.Stop(context.Background()))
}

// blockingPoster holds every post until release is closed.
type blockingPoster struct {
	entered chan string
	release chan struct{}
}

func (p *blockingPoster) ServerMessage(_ context.Context, text string) (*domain.Message, error) {
	p.entered <- text
	<-p.release
	return &domain.Message{Text: text}, nil
}

func TestModule_StopWaitsForPostInProgress(t *testing.T) {
	poster := &blockingPoster{entered: make(chan string, 1), release: make(chan struct{})}
	m := NewModule(strings.NewReader("first\nsecond\n"), poster, &mockLogger{})
	require.NoError(t, m.Start(context.Background()))

	select {
	case text := <-poster.entered:
		assert.Equal(t, "first", text)
	case <-time.After(time.Second):
		t.Fatal("post never started")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- m.Stop(context.Background()) }()

	assert.Never(t, func() bool { return len(stopped) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	close(poster.release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the post finished")
	}

	m.Wait()
	assert.Empty(t, poster.entered, "no line is posted after Stop")
	assert.Equal(t, int64(1), m.Health(context.Background()).Details["posted"])
}

func TestModule_StopGivesUpAtDeadline(t *testing.T) {
	poster := &blockingPoster{entered: make(chan string, 1), release: make(chan struct{})}
	defer close(poster.release)
	m := NewModule(strings.NewReader("stuck\n"), poster, &mockLogger{})
	require.NoError(t, m.Start(context.Background()))
	<-poster.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
