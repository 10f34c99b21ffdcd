package hub

import (
	"context"
	"errors"
)

var (
	ErrHubNotRunning     = errors.New("hub is not running")
	ErrHubAlreadyRunning = errors.New("hub is already running")
	ErrConnectionClosed  = errors.New("connection is closed")
	ErrSendBufferFull    = errors.New("send buffer is full")
)

// Connection represents any type of connection (WebSocket, SSE, etc.)
type Connection interface {
	ID() string
	Type() string
	Send(ctx context.Context, message *Message) error
	Close() error
	IsClosed() bool
	Context() context.Context
}

// EventHandler receives the lifecycle events a transport reports for its
// connections. OnDisconnect must be safe to call more than once.
type EventHandler interface {
	OnConnect(conn Connection)
	OnMessage(conn Connection, message *Message)
	OnDisconnect(conn Connection)
}

// Relay is an EventHandler with a lifecycle and a queryable registry.
type Relay interface {
	EventHandler

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
	Mode() string

	ConnectionCount() int
	GetConnection(connID string) (Connection, bool)
	GetConnections() []Connection
	GetConnectionsByType(connType string) []Connection
}

// Publisher is implemented by relays that accept server-originated messages.
type Publisher interface {
	Broadcast(ctx context.Context, message *Message) error
}

const (
	ModeRelay   = "relay"
	ModeObserve = "observe"
)
