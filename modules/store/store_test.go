package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/chat-relay/config"
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

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, open func(t *testing.T) (Store, int64)) {
	ctx := context.Background()

	t.Run("create user", func(t *testing.T) {
		s, _ := open(t)
		id, err := s.CreateUser(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		other, err := s.CreateUser(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, id, other)

		exists, err := s.UserExists(ctx, id)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = s.UserExists(ctx, "no-such-user")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("insert then query round trip", func(t *testing.T) {
		s, roomID := open(t)
		created := time.Date(2024, 5, 1, 12, 30, 0, 123_000_000, time.UTC)
		msg := &domain.Message{
			Text:      "hi",
			User:      domain.Author{ID: "u1", Name: "Ann"},
			CreatedAt: created,
			ChatID:    roomID,
		}
		require.NoError(t, s.InsertMessage(ctx, msg))
		assert.NotEmpty(t, msg.ID)

		got, err := s.FindMessages(ctx, roomID)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, msg.ID, got[0].ID)
		assert.Equal(t, "hi", got[0].Text)
		assert.Equal(t, "u1", got[0].User.ID)
		assert.Equal(t, "Ann", got[0].User.Name)
		assert.Equal(t, roomID, got[0].ChatID)
		assert.WithinDuration(t, created, got[0].CreatedAt, time.Millisecond)
	})

	t.Run("sorted ascending by createdAt", func(t *testing.T) {
		s, roomID := open(t)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for _, offset := range []int{3, 1, 2} {
			require.NoError(t, s.InsertMessage(ctx, &domain.Message{
				Text:      string(rune('a' + offset)),
				User:      domain.Author{ID: "u1"},
				CreatedAt: base.Add(time.Duration(offset) * time.Minute),
				ChatID:    roomID,
			}))
		}

		got, err := s.FindMessages(ctx, roomID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"b", "c", "d"}, []string{got[0].Text, got[1].Text, got[2].Text})
	})

	t.Run("equal timestamps keep insertion order", func(t *testing.T) {
		s, roomID := open(t)
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for _, text := range []string{"first", "second", "third"} {
			require.NoError(t, s.InsertMessage(ctx, &domain.Message{
				Text: text, User: domain.Author{ID: "u1"}, CreatedAt: at, ChatID: roomID,
			}))
		}

		got, err := s.FindMessages(ctx, roomID)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Text)
		assert.Equal(t, "third", got[2].Text)
	})

	t.Run("rooms are isolated", func(t *testing.T) {
		s, roomID := open(t)
		require.NoError(t, s.InsertMessage(ctx, &domain.Message{
			Text: "elsewhere", User: domain.Author{ID: "u1"}, CreatedAt: time.Now(), ChatID: roomID + 1,
		}))

		got, err := s.FindMessages(ctx, roomID)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T) (Store, int64) {
		return NewMemoryStore(), domain.DefaultRoomID
	})
}

func TestMemoryStore_FailNext(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	boom := errors.New("boom")

	s.FailNext(boom)
	_, err := s.CreateUser(ctx)
	assert.ErrorIs(t, err, boom)

	// Only the next write fails.
	_, err = s.CreateUser(ctx)
	assert.NoError(t, err)

	s.FailNext(boom)
	err = s.InsertMessage(ctx, &domain.Message{Text: "x", ChatID: 1})
	assert.ErrorIs(t, err, boom)

	got, err := s.FindMessages(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore(t *testing.T) {
	runContract(t, func(t *testing.T) (Store, int64) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "chat.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s, domain.DefaultRoomID
	})
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close(context.Background())

	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.InsertMessage(ctx, &domain.Message{
		Text: "hello", User: domain.Author{ID: "u1"}, CreatedAt: time.Now(), ChatID: 1,
	}))

	got, err := s.FindMessages(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URL")
	if uri == "" {
		uri = "mongodb://localhost:27017/chat_relay_test"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	probe, err := OpenMongo(ctx, uri)
	if err != nil {
		t.Skipf("MongoDB not available at %s: %v", uri, err)
	}
	_ = probe.Close(context.Background())

	// A fresh room per subtest keeps reruns independent of old data.
	room := time.Now().UnixNano()
	runContract(t, func(t *testing.T) (Store, int64) {
		s, err := OpenMongo(context.Background(), uri)
		require.NoError(t, err)
		room += 2
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s, room
	})
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Config{StoreDriver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "open.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	_ = s.Close(ctx)

	_, err = Open(ctx, config.Config{StoreDriver: "cassandra"})
	assert.ErrorIs(t, err, config.ErrInvalidDriver)
}

func TestModule_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewModule(NewMemoryStore(), config.DriverMemory, &mockLogger{})

	assert.Equal(t, "store", m.Name())
	require.NoError(t, m.Start(ctx))

	health := m.Health(ctx)
	assert.True(t, health.Healthy)
	assert.Equal(t, config.DriverMemory, health.Details["driver"])

	require.NoError(t, m.Stop(ctx))
}
