package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, m.Endpoint, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNew_DefaultEndpoint(t *testing.T) {
	m, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, m.Endpoint)

	m, err = New("/stats")
	require.NoError(t, err)
	assert.Equal(t, "/stats", m.Endpoint)
}

func TestRelayMetrics_Exported(t *testing.T) {
	m, err := New("")
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	rm, err := NewRelayMetrics(m.Meter, "relay")
	require.NoError(t, err)

	ctx := context.Background()
	rm.ConnectionOpened(ctx, "websocket")
	rm.MessageReceived(ctx, "websocket")
	rm.MessageDelivered(ctx, "websocket", 5)
	rm.SendFailed(ctx, "websocket")

	body := scrape(t, m)
	for _, name := range []string{
		"relay_connections",
		"relay_messages_received",
		"relay_messages_delivered",
		"relay_send_failures",
		"relay_bytes_delivered",
	} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, `mode="relay"`)
	assert.Contains(t, body, `conn_type="websocket"`)
}

func TestRegistriesAreIndependent(t *testing.T) {
	first, err := New("")
	require.NoError(t, err)
	second, err := New("")
	require.NoError(t, err)

	rm, err := NewRelayMetrics(first.Meter, "relay")
	require.NoError(t, err)
	rm.MessageReceived(context.Background(), "sse")

	assert.Contains(t, scrape(t, first), "relay_messages_received")
	assert.NotContains(t, scrape(t, second), "relay_messages_received")
}

func TestNoopRelayMetrics(t *testing.T) {
	rm := NewNoopRelayMetrics()
	require.NotNil(t, rm)

	assert.NotPanics(t, func() {
		rm.ConnectionOpened(context.Background(), "websocket")
		rm.ConnectionClosed(context.Background(), "websocket")
	})
}
