package hub

import (
	"context"
	"io"
	"sync"

	"go-broadcast-relay/internal/infrastructure/logger"
)

// Mock implementations for testing

type mockLogger struct{}

func (m *mockLogger) Debug(msg string)                              {}
func (m *mockLogger) Debugf(format string, args ...any)             {}
func (m *mockLogger) Info(msg string)                               {}
func (m *mockLogger) Infof(format string, args ...any)              {}
func (m *mockLogger) Warn(msg string)                               {}
func (m *mockLogger) Warnf(format string, args ...any)              {}
func (m *mockLogger) Error(msg string)                              {}
func (m *mockLogger) Errorf(format string, args ...any)             {}
func (m *mockLogger) Fatal(msg string)                              {}
func (m *mockLogger) Fatalf(format string, args ...any)             {}
func (m *mockLogger) WithField(key string, value any) logger.Logger { return m }
func (m *mockLogger) WithFields(fields logger.Fields) logger.Logger { return m }
func (m *mockLogger) WithContext(ctx context.Context) logger.Logger { return m }
func (m *mockLogger) SetLevel(level logger.Level)                   {}
func (m *mockLogger) SetOutput(output io.Writer)                    {}
func (m *mockLogger) Writer() io.WriteCloser                        { return nopWriteCloser{io.Discard} }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type mockConnection struct {
	id      string
	ctx     context.Context
	sendErr error

	mu               sync.Mutex
	closed           bool
	receivedMessages []*Message
}

func newMockConnection(id string) *mockConnection {
	return &mockConnection{id: id, ctx: context.Background()}
}

func (m *mockConnection) ID() string   { return m.id }
func (m *mockConnection) Type() string { return "mock" }
func (m *mockConnection) Send(ctx context.Context, message *Message) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivedMessages = append(m.receivedMessages, message)
	return nil
}
func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
func (m *mockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
func (m *mockConnection) Context() context.Context { return m.ctx }

func (m *mockConnection) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, 0, len(m.receivedMessages))
	for _, msg := range m.receivedMessages {
		texts = append(texts, msg.Text())
	}
	return texts
}

type mockRecorder struct {
	mu      sync.Mutex
	records []string
}

func (r *mockRecorder) Record(conn Connection, message *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, conn.ID()+":"+message.Text())
	return nil
}

func (r *mockRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.records...)
}
