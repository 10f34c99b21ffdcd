package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-broadcast-relay/internal/infrastructure/logger"
	"go-broadcast-relay/internal/infrastructure/metrics"
)

const sendTimeout = 5 * time.Second

// Hub relays every inbound message to all other registered connections.
// Connection events are applied one at a time by a single run loop, which is
// the only writer of the registry.
type Hub struct {
	registry *Registry

	running   bool
	runningMu sync.RWMutex

	logger  logger.Logger
	metrics *metrics.RelayMetrics

	// Channels of the current run loop, replaced on every Start
	events *hubEvents

	// Context for graceful shutdown
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

type hubEvents struct {
	register   chan connEvent
	unregister chan connEvent
	broadcast  chan broadcastEvent
}

func newHubEvents() *hubEvents {
	return &hubEvents{
		register:   make(chan connEvent, 100),
		unregister: make(chan connEvent, 100),
		broadcast:  make(chan broadcastEvent, 1000),
	}
}

type connEvent struct {
	conn Connection
	done chan struct{}
}

type broadcastEvent struct {
	origin  Connection
	message *Message
	done    chan struct{}
}

var (
	_ Relay     = (*Hub)(nil)
	_ Publisher = (*Hub)(nil)
)

// New creates a new Hub instance
func New(logger logger.Logger, relayMetrics *metrics.RelayMetrics) *Hub {
	if relayMetrics == nil {
		relayMetrics = metrics.NewNoopRelayMetrics()
	}

	return &Hub{
		registry: NewRegistry(),
		logger:   logger.WithField("component", "hub"),
		metrics:  relayMetrics,
	}
}

// Mode reports the relay variant
func (h *Hub) Mode() string {
	return ModeRelay
}

// Start starts the hub and begins processing connection events
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.stopped = make(chan struct{})
	// events left over from a previous run are never applied
	h.events = newHubEvents()
	h.running = true

	go h.run(h.ctx, h.events, h.stopped)

	h.logger.Info("Hub started successfully")
	return nil
}

// Stop stops the run loop and closes every registered connection
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if !h.running {
		return nil
	}

	h.cancel()
	h.running = false

	select {
	case <-h.stopped:
	case <-ctx.Done():
		return fmt.Errorf("waiting for hub loop: %w", ctx.Err())
	}

	for _, conn := range h.registry.Drain() {
		if err := conn.Close(); err != nil {
			h.logger.Errorf("Failed to close connection %s: %v", conn.ID(), err)
		}
		h.metrics.ConnectionClosed(context.Background(), conn.Type())
	}

	h.logger.Info("Hub stopped successfully")
	return nil
}

// IsRunning returns true if the hub is currently running
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// OnConnect registers conn. It returns once the registration is applied.
func (h *Hub) OnConnect(conn Connection) {
	ev := connEvent{conn: conn, done: make(chan struct{})}
	if err := h.submit(func(ctx context.Context, events *hubEvents) error {
		return send(ctx, events.register, ev)
	}, ev.done); err != nil {
		h.logger.Warnf("Dropping connect of %s: %v", conn.ID(), err)
	}
}

// OnDisconnect removes conn from the registry. Unknown connections are ignored.
func (h *Hub) OnDisconnect(conn Connection) {
	ev := connEvent{conn: conn, done: make(chan struct{})}
	if err := h.submit(func(ctx context.Context, events *hubEvents) error {
		return send(ctx, events.unregister, ev)
	}, ev.done); err != nil {
		h.logger.Debugf("Dropping disconnect of %s: %v", conn.ID(), err)
	}
}

// OnMessage relays message to every registered connection except conn
func (h *Hub) OnMessage(conn Connection, message *Message) {
	ev := broadcastEvent{origin: conn, message: message, done: make(chan struct{})}
	if err := h.submit(func(ctx context.Context, events *hubEvents) error {
		return send(ctx, events.broadcast, ev)
	}, ev.done); err != nil {
		h.logger.Warnf("Dropping message %s from %s: %v", message.ID, conn.ID(), err)
	}
}

// Broadcast relays a server-originated message to every registered connection
func (h *Hub) Broadcast(ctx context.Context, message *Message) error {
	ev := broadcastEvent{message: message, done: make(chan struct{})}
	return h.submit(func(loopCtx context.Context, events *hubEvents) error {
		select {
		case events.broadcast <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-loopCtx.Done():
			return fmt.Errorf("hub is shutting down: %w", loopCtx.Err())
		}
	}, ev.done)
}

// GetConnection returns a connection by ID
func (h *Hub) GetConnection(connID string) (Connection, bool) {
	return h.registry.Get(connID)
}

// GetConnections returns all registered connections
func (h *Hub) GetConnections() []Connection {
	return h.registry.Snapshot()
}

// GetConnectionsByType returns connections of a specific type
func (h *Hub) GetConnectionsByType(connType string) []Connection {
	return h.registry.SnapshotByType(connType)
}

// ConnectionCount returns the number of registered connections
func (h *Hub) ConnectionCount() int {
	return h.registry.Len()
}

// submit hands an event to the run loop with enqueue and waits until the loop
// has applied it.
func (h *Hub) submit(enqueue func(ctx context.Context, events *hubEvents) error, done <-chan struct{}) error {
	h.runningMu.RLock()
	running, ctx, events := h.running, h.ctx, h.events
	h.runningMu.RUnlock()

	if !running {
		return ErrHubNotRunning
	}

	if err := enqueue(ctx, events); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hub is shutting down: %w", ctx.Err())
	}
}

func send[T any](ctx context.Context, ch chan<- T, ev T) error {
	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hub is shutting down: %w", ctx.Err())
	}
}

// run is the main hub loop that processes connection events
func (h *Hub) run(ctx context.Context, events *hubEvents, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		select {
		case ev := <-events.register:
			h.handleRegister(ev.conn)
			close(ev.done)

		case ev := <-events.unregister:
			h.handleUnregister(ev.conn)
			close(ev.done)

		case ev := <-events.broadcast:
			h.handleBroadcast(ctx, ev.origin, ev.message)
			close(ev.done)

		case <-ctx.Done():
			h.logger.Info("Hub run loop stopped")
			return
		}
	}
}

func (h *Hub) handleRegister(conn Connection) {
	if !h.registry.Add(conn) {
		h.logger.Debugf("Connection %s already registered", conn.ID())
		return
	}
	h.metrics.ConnectionOpened(context.Background(), conn.Type())

	h.logger.Infof("Connection %s registered (type: %s), total: %d", conn.ID(), conn.Type(), h.registry.Len())
}

func (h *Hub) handleUnregister(conn Connection) {
	if _, exists := h.registry.Remove(conn.ID()); !exists {
		return
	}
	h.metrics.ConnectionClosed(context.Background(), conn.Type())

	h.logger.Infof("Connection %s unregistered, total: %d", conn.ID(), h.registry.Len())
}

func (h *Hub) handleBroadcast(ctx context.Context, origin Connection, message *Message) {
	if origin != nil {
		h.metrics.MessageReceived(ctx, origin.Type())
	}

	peers := h.registry.Snapshot()
	delivered := 0

	for _, peer := range peers {
		if origin != nil && peer.ID() == origin.ID() {
			continue
		}
		// gone peers are skipped until their transport reports the disconnect
		if peer.IsClosed() || peer.Context().Err() != nil {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := peer.Send(sendCtx, message)
		cancel()

		if err != nil {
			// The peer is skipped; the sender is never told.
			h.logger.Warnf("Failed to relay message %s to connection %s: %v", message.ID, peer.ID(), err)
			h.metrics.SendFailed(ctx, peer.Type())
			continue
		}

		delivered++
		h.metrics.MessageDelivered(ctx, peer.Type(), message.Size())
	}

	from := "server"
	if origin != nil {
		from = origin.ID()
	}
	h.logger.Debugf("Relayed message %s from %s to %d of %d connections", message.ID, from, delivered, len(peers))
}
