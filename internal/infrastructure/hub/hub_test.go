package hub

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedHub(t *testing.T) *Hub {
	t.Helper()
	hub := New(&mockLogger{}, nil)
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(func() { _ = hub.Stop(context.Background()) })
	return hub
}

func TestHub_StartStop(t *testing.T) {
	hub := New(&mockLogger{}, nil)
	ctx := context.Background()

	require.NoError(t, hub.Start(ctx))
	assert.True(t, hub.IsRunning())
	assert.Equal(t, ModeRelay, hub.Mode())

	assert.ErrorIs(t, hub.Start(ctx), ErrHubAlreadyRunning)

	require.NoError(t, hub.Stop(ctx))
	assert.False(t, hub.IsRunning())

	// stopping twice is harmless
	require.NoError(t, hub.Stop(ctx))

	// and the hub can be started again
	require.NoError(t, hub.Start(ctx))
	require.NoError(t, hub.Stop(ctx))
}

func TestHub_ConnectionManagement(t *testing.T) {
	hub := startedHub(t)

	assert.Equal(t, 0, hub.ConnectionCount())

	conn := newMockConnection("test-conn-1")
	hub.OnConnect(conn)
	assert.Equal(t, 1, hub.ConnectionCount())

	retrieved, exists := hub.GetConnection("test-conn-1")
	require.True(t, exists)
	assert.Equal(t, "test-conn-1", retrieved.ID())
	assert.Len(t, hub.GetConnectionsByType("mock"), 1)
	assert.Empty(t, hub.GetConnectionsByType(TypeWebSocket))

	// registering the same connection twice keeps one entry
	hub.OnConnect(conn)
	assert.Equal(t, 1, hub.ConnectionCount())

	hub.OnDisconnect(conn)
	assert.Equal(t, 0, hub.ConnectionCount())
	_, exists = hub.GetConnection("test-conn-1")
	assert.False(t, exists)
}

func TestHub_HelloReachesEveryoneButSender(t *testing.T) {
	hub := startedHub(t)

	a, b, c := newMockConnection("a"), newMockConnection("b"), newMockConnection("c")
	hub.OnConnect(a)
	hub.OnConnect(b)
	hub.OnConnect(c)

	hub.OnMessage(a, TextMessage("hello"))

	assert.Empty(t, a.received())
	assert.Equal(t, []string{"hello"}, b.received())
	assert.Equal(t, []string{"hello"}, c.received())
}

func TestHub_FanOutIsNMinusOne(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d connections", n), func(t *testing.T) {
			hub := startedHub(t)

			conns := make([]*mockConnection, n)
			for i := range conns {
				conns[i] = newMockConnection(fmt.Sprintf("conn-%d", i))
				hub.OnConnect(conns[i])
			}

			hub.OnMessage(conns[0], TextMessage("payload"))

			recipients := 0
			for _, conn := range conns[1:] {
				if assert.Len(t, conn.received(), 1) {
					recipients++
				}
			}
			assert.Equal(t, n-1, recipients)
			assert.Empty(t, conns[0].received())
		})
	}
}

func TestHub_DisconnectedPeerGetsNothing(t *testing.T) {
	hub := startedHub(t)

	a, b := newMockConnection("a"), newMockConnection("b")
	hub.OnConnect(a)
	hub.OnConnect(b)

	hub.OnDisconnect(b)
	hub.OnMessage(a, TextMessage("ping"))

	assert.Empty(t, a.received())
	assert.Empty(t, b.received())
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_DisconnectIsIdempotent(t *testing.T) {
	hub := startedHub(t)

	a, b, c := newMockConnection("a"), newMockConnection("b"), newMockConnection("c")
	hub.OnConnect(a)
	hub.OnConnect(b)
	hub.OnConnect(c)

	hub.OnDisconnect(c)
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.OnDisconnect(c)
	assert.Equal(t, 2, hub.ConnectionCount())

	// never registered
	hub.OnDisconnect(newMockConnection("ghost"))
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.OnMessage(a, TextMessage("after"))
	assert.Equal(t, []string{"after"}, b.received())
	assert.Empty(t, c.received())
}

func TestHub_FailedPeerDoesNotStopBroadcast(t *testing.T) {
	hub := startedHub(t)

	sender := newMockConnection("sender")
	broken := newMockConnection("broken")
	broken.sendErr = errors.New("write: broken pipe")
	healthy := newMockConnection("healthy")
	full := newMockConnection("full")
	full.sendErr = ErrSendBufferFull

	for _, conn := range []*mockConnection{sender, broken, healthy, full} {
		hub.OnConnect(conn)
	}

	hub.OnMessage(sender, TextMessage("still delivered"))

	assert.Equal(t, []string{"still delivered"}, healthy.received())
	assert.Empty(t, sender.received())
	// failures do not unregister anyone
	assert.Equal(t, 4, hub.ConnectionCount())
}

func TestHub_ClosedPeerIsSkipped(t *testing.T) {
	hub := startedHub(t)

	a, b := newMockConnection("a"), newMockConnection("b")
	hub.OnConnect(a)
	hub.OnConnect(b)
	require.NoError(t, b.Close())

	hub.OnMessage(a, TextMessage("hi"))
	assert.Empty(t, b.received())
}

func TestHub_BroadcastReachesEveryone(t *testing.T) {
	hub := startedHub(t)

	a, b := newMockConnection("a"), newMockConnection("b")
	hub.OnConnect(a)
	hub.OnConnect(b)

	require.NoError(t, hub.Broadcast(context.Background(), TextMessage("from server")))

	assert.Equal(t, []string{"from server"}, a.received())
	assert.Equal(t, []string{"from server"}, b.received())
}

func TestHub_NotRunning(t *testing.T) {
	hub := New(&mockLogger{}, nil)

	a := newMockConnection("a")
	hub.OnConnect(a)
	assert.Equal(t, 0, hub.ConnectionCount())

	err := hub.Broadcast(context.Background(), TextMessage("x"))
	assert.ErrorIs(t, err, ErrHubNotRunning)

	// must not block or panic
	hub.OnMessage(a, TextMessage("x"))
	hub.OnDisconnect(a)
}

func TestHub_StopClosesConnections(t *testing.T) {
	hub := New(&mockLogger{}, nil)
	ctx := context.Background()
	require.NoError(t, hub.Start(ctx))

	a, b := newMockConnection("a"), newMockConnection("b")
	hub.OnConnect(a)
	hub.OnConnect(b)

	require.NoError(t, hub.Stop(ctx))
	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_IndependentInstances(t *testing.T) {
	first, second := startedHub(t), startedHub(t)

	first.OnConnect(newMockConnection("a"))
	assert.Equal(t, 1, first.ConnectionCount())
	assert.Equal(t, 0, second.ConnectionCount())
}

func TestHub_CancelledPeerIsSkipped(t *testing.T) {
	hub := startedHub(t)

	ctx, cancel := context.WithCancel(context.Background())
	a, b := newMockConnection("a"), newMockConnection("b")
	b.ctx = ctx
	hub.OnConnect(a)
	hub.OnConnect(b)
	cancel()

	hub.OnMessage(a, TextMessage("hi"))
	assert.Empty(t, b.received())
	// still registered until the transport reports the disconnect
	assert.Equal(t, 2, hub.ConnectionCount())
}

func TestHub_RestartDropsEventsFromPreviousRun(t *testing.T) {
	hub := New(&mockLogger{}, nil)
	ctx := context.Background()

	require.NoError(t, hub.Start(ctx))
	previous := hub.events
	require.NoError(t, hub.Stop(ctx))

	// queued after the old loop exited, never acknowledged
	previous.register <- connEvent{conn: newMockConnection("stale"), done: make(chan struct{})}

	require.NoError(t, hub.Start(ctx))
	t.Cleanup(func() { _ = hub.Stop(ctx) })

	// OnConnect returns only after the new loop has applied it
	hub.OnConnect(newMockConnection("fresh"))

	_, stale := hub.GetConnection("stale")
	assert.False(t, stale)
	assert.Equal(t, 1, hub.ConnectionCount())
}
