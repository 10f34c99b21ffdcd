package hub

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"

	"go-broadcast-relay/internal/infrastructure/logger"
)

const (
	TypeWebSocket = "websocket"
	TypeSSE       = "sse"
)

// ConnectionOptions tunes the per-connection buffers and timers
type ConnectionOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	// PingPeriod must be shorter than PongTimeout
	PingPeriod time.Duration
	// KeepAlive is the SSE keep-alive event interval
	KeepAlive time.Duration
}

func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PongTimeout:  60 * time.Second,
		PingPeriod:   54 * time.Second,
		KeepAlive:    30 * time.Second,
	}
}

func (o ConnectionOptions) sanitize() ConnectionOptions {
	def := DefaultConnectionOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = def.SendBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = def.PongTimeout
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongTimeout {
		o.PingPeriod = o.PongTimeout * 9 / 10
	}
	// a timeout too short to derive a ticker period from
	if o.PingPeriod <= 0 {
		o.PongTimeout = def.PongTimeout
		o.PingPeriod = def.PingPeriod
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = def.KeepAlive
	}
	return o
}

// WebSocketConnection implements the Connection interface for WebSocket connections
type WebSocketConnection struct {
	id   string
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	logger logger.Logger

	// Outbound queue drained by writePump
	send chan *Message

	lastActivity time.Time
	activityMu   sync.RWMutex

	opts ConnectionOptions
}

// NewWebSocketConnection wraps an upgraded connection. Nothing is read or
// written until Serve is called.
func NewWebSocketConnection(
	id string,
	conn *websocket.Conn,
	logger logger.Logger,
	opts ConnectionOptions,
) *WebSocketConnection {
	ctx, cancel := context.WithCancel(context.Background())
	opts = opts.sanitize()

	return &WebSocketConnection{
		id:           id,
		conn:         conn,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.WithField("connection_id", id),
		send:         make(chan *Message, opts.SendBuffer),
		lastActivity: time.Now(),
		opts:         opts,
	}
}

// ID returns unique connection identifier
func (c *WebSocketConnection) ID() string {
	return c.id
}

// Type returns the connection type
func (c *WebSocketConnection) Type() string {
	return TypeWebSocket
}

// Send queues a message for this connection without blocking. A full queue
// yields ErrSendBufferFull.
func (c *WebSocketConnection) Send(ctx context.Context, message *Message) error {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

// Close gracefully closes the WebSocket connection
func (c *WebSocketConnection) Close() error {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return nil
	}

	c.closed = true
	c.cancel()
	close(c.send)
	c.closedMu.Unlock()

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.opts.WriteTimeout),
	)
	err := c.conn.Close()

	c.logger.Debug("WebSocket connection closed")
	return err
}

// IsClosed returns true if connection is closed
func (c *WebSocketConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// Context returns the connection's context (for cancellation)
func (c *WebSocketConnection) Context() context.Context {
	return c.ctx
}

// LastActivity returns the time of the last frame seen or written
func (c *WebSocketConnection) LastActivity() time.Time {
	c.activityMu.RLock()
	defer c.activityMu.RUnlock()
	return c.lastActivity
}

// Serve reports the connection to handler and pumps frames until the peer
// goes away. It blocks; OnDisconnect is the last event delivered.
func (c *WebSocketConnection) Serve(handler EventHandler) {
	handler.OnConnect(c)

	go c.writePump()
	c.readPump(handler)

	if err := c.Close(); err != nil {
		c.logger.Debugf("Close after read loop: %v", err)
	}
	handler.OnDisconnect(c)
}

// writePump handles sending messages to the WebSocket connection
func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(message.FrameType(), message.Payload); err != nil {
				c.logger.Errorf("Failed to write message: %v", err)
				return
			}

			c.updateActivity()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Errorf("Failed to send ping: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump hands every data frame to handler until the connection fails
func (c *WebSocketConnection) readPump(handler EventHandler) {
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.updateActivity()
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) && !c.IsClosed() {
				c.logger.Warnf("WebSocket read error: %v", err)
			}
			return
		}

		c.updateActivity()
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))

		message, err := MessageFromFrame(frameType, data)
		if err != nil {
			c.logger.Debugf("Ignoring frame: %v", err)
			continue
		}

		c.logger.Debugf("Received %s message %s (%d bytes)", message.Type, message.ID, message.Size())
		handler.OnMessage(c, message)
	}
}

// updateActivity updates the last activity timestamp
func (c *WebSocketConnection) updateActivity() {
	c.activityMu.Lock()
	c.lastActivity = time.Now()
	c.activityMu.Unlock()
}

// SSEConnection is a receive-only listener fed through Server-Sent Events
type SSEConnection struct {
	id string

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex

	logger logger.Logger

	send chan *Message
	opts ConnectionOptions
}

// NewSSEConnection creates a new SSE connection bound to the request context
func NewSSEConnection(
	ctx context.Context,
	id string,
	logger logger.Logger,
	opts ConnectionOptions,
) *SSEConnection {
	rctx, cancel := context.WithCancel(ctx)
	opts = opts.sanitize()

	return &SSEConnection{
		id:     id,
		ctx:    rctx,
		cancel: cancel,
		logger: logger.WithField("connection_id", id),
		send:   make(chan *Message, opts.SendBuffer),
		opts:   opts,
	}
}

func (c *SSEConnection) ID() string {
	return c.id
}

func (c *SSEConnection) Type() string {
	return TypeSSE
}

func (c *SSEConnection) Send(ctx context.Context, message *Message) error {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendBufferFull
	}
}

func (c *SSEConnection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cancel()
	close(c.send)

	c.logger.Debug("SSE connection closed")
	return nil
}

func (c *SSEConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *SSEConnection) Context() context.Context {
	return c.ctx
}

// Serve registers the listener with handler and streams relayed messages to w
// until the client goes away. It blocks.
func (c *SSEConnection) Serve(w http.ResponseWriter, handler EventHandler) {
	setupSSEHeaders(w)

	handler.OnConnect(c)
	defer func() {
		_ = c.Close()
		handler.OnDisconnect(c)
	}()

	err := c.writeEvent(w, sse.Event{
		Event: "connected",
		Data: map[string]any{
			"connection_id": c.id,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		c.logger.Errorf("Failed to write connected event: %v", err)
		return
	}

	ticker := time.NewTicker(c.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.writeEvent(w, formatSSEEvent(message)); err != nil {
				c.logger.Errorf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			err := c.writeEvent(w, sse.Event{
				Event: "keepalive",
				Data:  fmt.Sprintf("%d", time.Now().Unix()),
			})
			if err != nil {
				c.logger.Errorf("Failed to send keep-alive: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *SSEConnection) writeEvent(w http.ResponseWriter, event sse.Event) error {
	if err := sse.Encode(w, event); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // For nginx
}

// formatSSEEvent maps a relayed message onto an SSE event. Binary payloads
// are base64 encoded since SSE data is text.
func formatSSEEvent(message *Message) sse.Event {
	data := message.Text()
	if message.Type == MessageTypeBinary {
		data = base64.StdEncoding.EncodeToString(message.Payload)
	}

	return sse.Event{
		Id:    message.ID,
		Event: string(message.Type),
		Data:  data,
	}
}
