package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/chat-relay/domain/chat"
	"github.com/example/chat-relay/events"
	"github.com/example/chat-relay/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// ErrUnidentified is returned for a message sent before the connection joined.
var ErrUnidentified = errors.New("connection has not joined")

// Peer is a single connected client.
type Peer interface {
	ID() string
	Send(msgType string, payload any) error
}

// Fanout delivers an event to every connected client except exceptID.
// An empty exceptID reaches everyone.
type Fanout interface {
	Broadcast(msgType string, payload any, exceptID string)
}

// Options tune the relay.
type Options struct {
	RoomID        int64
	ValidateUsers bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Relay implements the join and message protocol for a single room.
type Relay struct {
	store    store.Store
	fanout   Fanout
	registry *Registry
	logger   types.Logger
	eventBus mono.EventBus

	roomID        int64
	validateUsers bool
	now           func() time.Time
}

// New creates a relay. A nil registry is replaced by an empty one.
func New(st store.Store, fanout Fanout, registry *Registry, logger types.Logger, opts Options) *Relay {
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.RoomID <= 0 {
		opts.RoomID = domain.DefaultRoomID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Relay{
		store:         st,
		fanout:        fanout,
		registry:      registry,
		logger:        logger,
		roomID:        opts.RoomID,
		validateUsers: opts.ValidateUsers,
		now:           opts.Now,
	}
}

// SetEventBus enables event publishing. It must be called before the relay
// serves connections.
func (r *Relay) SetEventBus(bus mono.EventBus) {
	r.eventBus = bus
}

// RoomID returns the room this relay serves.
func (r *Relay) RoomID() int64 {
	return r.roomID
}

// Registry returns the connection registry.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Connect records a new, unidentified connection.
func (r *Relay) Connect(peer Peer) {
	r.registry.Register(peer.ID())
	r.logger.Debug("Connection opened", "connID", peer.ID())
}

// Disconnect forgets the connection.
func (r *Relay) Disconnect(peer Peer) {
	if r.registry.Unregister(peer.ID()) {
		r.logger.Debug("Connection closed", "connID", peer.ID())
	}
}

// Join identifies peer. An empty userID creates a new user which is sent
// back to the peer before the history replay.
func (r *Relay) Join(ctx context.Context, peer Peer, userID string) error {
	userID = strings.TrimSpace(userID)

	if userID != "" && r.validateUsers {
		exists, err := r.store.UserExists(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to look up user %s: %w", userID, err)
		}
		if !exists {
			r.logger.Info("Unknown user claimed, issuing a new id", "connID", peer.ID(), "claimed", userID)
			userID = ""
		}
	}

	if userID == "" {
		created, err := r.store.CreateUser(ctx)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		userID = created

		if err := peer.Send(EventUserJoined, userID); err != nil {
			return fmt.Errorf("failed to send user id: %w", err)
		}
		r.registry.Identify(peer.ID(), userID)
		r.logger.Info("A new user has joined", "connID", peer.ID(), "userID", userID)
		r.publishUserCreated(peer.ID(), userID)
	} else {
		r.registry.Identify(peer.ID(), userID)
		r.logger.Info("An existing user has joined", "connID", peer.ID(), "userID", userID)
	}

	return r.replayHistory(ctx, peer)
}

// replayHistory sends the room history to peer, newest first. Nothing is
// sent for an empty room.
func (r *Relay) replayHistory(ctx context.Context, peer Peer) error {
	history, err := r.History(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	if err := peer.Send(EventMessage, history); err != nil {
		return fmt.Errorf("failed to send history: %w", err)
	}
	return nil
}

// History returns every message of the room, newest first.
func (r *Relay) History(ctx context.Context) ([]domain.Message, error) {
	messages, err := r.store.FindMessages(ctx, r.roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return domain.Reversed(messages), nil
}

// HandleMessage persists a message from peer and delivers it to every
// other connection. Unidentified peers get ErrUnidentified and nothing
// is stored.
func (r *Relay) HandleMessage(ctx context.Context, peer Peer, in IncomingMessage) (*domain.Message, error) {
	userID, ok := r.registry.Lookup(peer.ID())
	if !ok {
		return nil, ErrUnidentified
	}

	msg := &domain.Message{
		Text: in.Text,
		User: domain.Author{
			ID:     userID,
			Name:   in.User.Name,
			Avatar: in.User.Avatar,
		},
		CreatedAt: ParseTimestamp(in.CreatedAt, r.now().UTC()),
		ChatID:    r.roomID,
	}
	if err := r.saveAndSend(ctx, msg, peer.ID()); err != nil {
		return nil, err
	}
	return msg, nil
}

// ServerMessage posts text as the robot user to every connection.
func (r *Relay) ServerMessage(ctx context.Context, text string) (*domain.Message, error) {
	msg := &domain.Message{
		Text:      text,
		User:      domain.Author{ID: domain.RobotUserID},
		CreatedAt: r.now().UTC(),
		ChatID:    r.roomID,
	}
	if err := r.saveAndSend(ctx, msg, ""); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Relay) saveAndSend(ctx context.Context, msg *domain.Message, exceptID string) error {
	if err := r.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	r.fanout.Broadcast(EventMessage, []domain.Message{*msg}, exceptID)
	r.publishMessageSent(msg)
	return nil
}

func (r *Relay) publishUserCreated(connID, userID string) {
	if r.eventBus == nil {
		return
	}
	event := events.UserCreatedEvent{
		UserID:    userID,
		ConnID:    connID,
		Timestamp: r.now().UTC(),
	}
	if err := events.UserCreatedV1.Publish(r.eventBus, event, nil); err != nil {
		r.logger.Warn("Failed to publish UserCreated event", "error", err)
	}
}

func (r *Relay) publishMessageSent(msg *domain.Message) {
	if r.eventBus == nil {
		return
	}
	event := events.MessageSentEvent{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		UserID:    msg.User.ID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
		FromRobot: msg.User.ID == domain.RobotUserID,
	}
	if err := events.MessageSentV1.Publish(r.eventBus, event, nil); err != nil {
		r.logger.Warn("Failed to publish MessageSent event", "error", err)
	}
}
