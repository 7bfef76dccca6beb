package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	err    error
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) envelopes(t *testing.T) []Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})
	return hub
}

func TestEncode(t *testing.T) {
	frame, err := Encode("userJoined", "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"userJoined","payload":"abc"}`, string(frame))

	_, err = Encode("message", make(chan int))
	assert.Error(t, err)
}

func TestClient_SendAndSendError(t *testing.T) {
	conn := &fakeConn{}
	client := NewClient("c1", conn)

	require.NoError(t, client.Send("message", []string{"a"}))
	require.NoError(t, client.SendError("bad frame"))

	envs := conn.envelopes(t)
	require.Len(t, envs, 2)
	assert.Equal(t, "message", envs[0].Type)
	assert.JSONEq(t, `["a"]`, string(envs[0].Payload))
	assert.Equal(t, "error", envs[1].Type)
	assert.Equal(t, "bad frame", envs[1].Error)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t)
	a := NewClient("a", &fakeConn{})
	b := NewClient("b", &fakeConn{})

	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Same(t, a, hub.GetClient("a"))

	hub.Unregister(a)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, hub.GetClient("a"))
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := startHub(t)
	conns := map[string]*fakeConn{"a": {}, "b": {}, "c": {}}
	for id, conn := range conns {
		hub.Register(NewClient(id, conn))
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 5*time.Millisecond)

	hub.Broadcast("message", []string{"hi"}, "a")

	require.Eventually(t, func() bool {
		return conns["b"].count() == 1 && conns["c"].count() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, conns["a"].count())
}

func TestHub_BroadcastToEveryone(t *testing.T) {
	hub := startHub(t)
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(NewClient("a", a))
	hub.Register(NewClient("b", b))
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast("message", []string{"from server"}, "")

	require.Eventually(t, func() bool { return a.count() == 1 && b.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastKeepsOrder(t *testing.T) {
	hub := startHub(t)
	conn := &fakeConn{}
	hub.Register(NewClient("a", conn))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := range 20 {
		hub.Broadcast("message", i, "")
	}

	require.Eventually(t, func() bool { return conn.count() == 20 }, time.Second, 5*time.Millisecond)
	for i, env := range conn.envelopes(t) {
		var n int
		require.NoError(t, json.Unmarshal(env.Payload, &n))
		assert.Equal(t, i, n)
	}
}

func TestHub_WriteFailureDoesNotStopOthers(t *testing.T) {
	hub := startHub(t)
	broken := &fakeConn{err: errors.New("broken pipe")}
	healthy := &fakeConn{}
	hub.Register(NewClient("broken", broken))
	hub.Register(NewClient("healthy", healthy))
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast("message", "x", "")

	require.Eventually(t, func() bool { return healthy.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn := &fakeConn{}
	hub.Register(NewClient("a", conn))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	hub.Wait()

	assert.True(t, conn.closed)
	assert.Equal(t, 0, hub.ClientCount())

	// Calls after shutdown must not block.
	hub.Register(NewClient("late", &fakeConn{}))
	hub.Broadcast("message", "late", "")
	hub.Unregister(NewClient("late", &fakeConn{}))
}

func TestBroadcastModule_Lifecycle(t *testing.T) {
	m := NewModule()
	ctx := context.Background()

	assert.Equal(t, "broadcast", m.Name())
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.Health(ctx).Healthy)
	assert.NotNil(t, m.GetHub())
	require.NoError(t, m.Stop(ctx))
}
