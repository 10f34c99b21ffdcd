package hub

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go-broadcast-relay/internal/infrastructure/logger"
	"go-broadcast-relay/internal/infrastructure/metrics"
)

// Recorder stores an observed message
type Recorder interface {
	Record(conn Connection, message *Message) error
}

// LogRecorder writes observed text to the structured log
type LogRecorder struct {
	logger logger.Logger
}

func NewLogRecorder(log logger.Logger) *LogRecorder {
	return &LogRecorder{logger: log.WithField("recorder", "log")}
}

func (r *LogRecorder) Record(conn Connection, message *Message) error {
	r.logger.WithFields(logger.Fields{
		"connection_id": conn.ID(),
		"message_id":    message.ID,
	}).Infof("Received transcription: %s", message.Text())
	return nil
}

// WriterRecorder appends one line per observed message to w
type WriterRecorder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterRecorder(w io.Writer) *WriterRecorder {
	return &WriterRecorder{w: w}
}

func (r *WriterRecorder) Record(conn Connection, message *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := fmt.Fprintf(r.w, "%s\t%s\t%s\n",
		message.ReceivedAt.Format("2006-01-02T15:04:05.000Z07:00"), conn.ID(), message.Text())
	return err
}

// MultiRecorder records to every recorder in order
type MultiRecorder []Recorder

func (m MultiRecorder) Record(conn Connection, message *Message) error {
	var firstErr error
	for _, r := range m {
		if err := r.Record(conn, message); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Observer tracks connections like Hub does but only records inbound text.
// Nothing is ever sent back to a client.
type Observer struct {
	registry *Registry
	recorder Recorder

	running   bool
	runningMu sync.RWMutex

	// serializes connection events
	eventsMu sync.Mutex

	logger  logger.Logger
	metrics *metrics.RelayMetrics
}

var _ Relay = (*Observer)(nil)

func NewObserver(log logger.Logger, recorder Recorder, relayMetrics *metrics.RelayMetrics) *Observer {
	if relayMetrics == nil {
		relayMetrics = metrics.NewNoopRelayMetrics()
	}
	if recorder == nil {
		recorder = NewLogRecorder(log)
	}

	return &Observer{
		registry: NewRegistry(),
		recorder: recorder,
		logger:   log.WithField("component", "observer"),
		metrics:  relayMetrics,
	}
}

func (o *Observer) Mode() string {
	return ModeObserve
}

func (o *Observer) Start(ctx context.Context) error {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()

	if o.running {
		return ErrHubAlreadyRunning
	}
	o.running = true

	o.logger.Info("Observer started successfully")
	return nil
}

func (o *Observer) Stop(ctx context.Context) error {
	o.runningMu.Lock()
	defer o.runningMu.Unlock()

	if !o.running {
		return nil
	}
	o.running = false

	for _, conn := range o.registry.Drain() {
		if err := conn.Close(); err != nil {
			o.logger.Errorf("Failed to close connection %s: %v", conn.ID(), err)
		}
		o.metrics.ConnectionClosed(ctx, conn.Type())
	}

	o.logger.Info("Observer stopped successfully")
	return nil
}

func (o *Observer) IsRunning() bool {
	o.runningMu.RLock()
	defer o.runningMu.RUnlock()
	return o.running
}

func (o *Observer) OnConnect(conn Connection) {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()

	if !o.IsRunning() {
		o.logger.Warnf("Dropping connect of %s: %v", conn.ID(), ErrHubNotRunning)
		return
	}
	if o.registry.Add(conn) {
		o.metrics.ConnectionOpened(context.Background(), conn.Type())
		o.logger.Infof("Client connected: %s", conn.ID())
	}
}

func (o *Observer) OnMessage(conn Connection, message *Message) {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()

	if !o.IsRunning() {
		return
	}
	o.metrics.MessageReceived(context.Background(), conn.Type())

	if err := o.recorder.Record(conn, message); err != nil {
		o.logger.Errorf("Failed to record message %s from %s: %v", message.ID, conn.ID(), err)
	}
}

func (o *Observer) OnDisconnect(conn Connection) {
	o.eventsMu.Lock()
	defer o.eventsMu.Unlock()

	if _, exists := o.registry.Remove(conn.ID()); exists {
		o.metrics.ConnectionClosed(context.Background(), conn.Type())
		o.logger.Infof("Client disconnected: %s", conn.ID())
	}
}

func (o *Observer) GetConnection(connID string) (Connection, bool) {
	return o.registry.Get(connID)
}

func (o *Observer) GetConnections() []Connection {
	return o.registry.Snapshot()
}

func (o *Observer) GetConnectionsByType(connType string) []Connection {
	return o.registry.SnapshotByType(connType)
}

func (o *Observer) ConnectionCount() int {
	return o.registry.Len()
}
