package store

import (
	"context"
	"sort"
	"sync"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/google/uuid"
)

// MemoryStore provides thread-safe in-process storage for users and messages.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]struct{}
	messages map[int64][]domain.Message // roomID -> messages in insertion order
	failNext error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]struct{}),
		messages: make(map[int64][]domain.Message),
	}
}

// FailNext makes the next write return err. Used to exercise failure paths.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// CreateUser registers a new user and returns its id.
func (s *MemoryStore) CreateUser(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	s.users[id] = struct{}{}
	return id, nil
}

// UserExists reports whether a user with the given id was created.
func (s *MemoryStore) UserExists(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok, nil
}

// InsertMessage appends a message to its room and assigns it an id.
func (s *MemoryStore) InsertMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return err
	}

	msg.ID = uuid.New().String()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], *msg)
	return nil
}

// FindMessages returns a copy of the room's messages ordered by CreatedAt.
func (s *MemoryStore) FindMessages(_ context.Context, roomID int64) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[roomID]
	result := make([]domain.Message, len(messages))
	copy(result, messages)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}
