package relay

import (
	"sync"
	"time"
)

// State is the identification state of a connection.
type State int

const (
	Unidentified State = iota
	Identified
)

func (s State) String() string {
	if s == Identified {
		return "identified"
	}
	return "unidentified"
}

// Session is the relay's view of one live connection.
type Session struct {
	ConnID      string
	UserID      string
	ConnectedAt time.Time
}

// State reports whether the session has announced a user.
func (s Session) State() State {
	if s.UserID == "" {
		return Unidentified
	}
	return Identified
}

// Registry maps live connections to their sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // connID -> Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register adds an unidentified session for connID.
func (r *Registry) Register(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = &Session{ConnID: connID, ConnectedAt: time.Now()}
}

// Identify binds userID to an existing session. It returns false when
// connID is not registered.
func (r *Registry) Identify(connID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connID]
	if !ok {
		return false
	}
	session.UserID = userID
	return true
}

// Lookup returns the user bound to connID, if any.
func (r *Registry) Lookup(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[connID]
	if !ok || session.State() != Identified {
		return "", false
	}
	return session.UserID, true
}

// Session returns a copy of the session for connID.
func (r *Registry) Session(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Unregister drops the session for connID. It returns false if none existed.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[connID]; !ok {
		return false
	}
	delete(r.sessions, connID)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IdentifiedCount returns the number of sessions bound to a user.
func (r *Registry) IdentifiedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.State() == Identified {
			n++
		}
	}
	return n
}
