package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
	"go-broadcast-relay/internal/infrastructure/metrics"
)

func testLogger() logger.Logger {
	log := logger.NewLogrusLogger(logger.NewDefaultConfig())
	log.SetOutput(io.Discard)
	return log
}

func newTestApp(t *testing.T, mode string) (*httptest.Server, hub.Relay) {
	t.Helper()

	m, err := metrics.New("")
	require.NoError(t, err)
	relayMetrics, err := metrics.NewRelayMetrics(m.Meter, mode)
	require.NoError(t, err)

	cfg := validConfig()
	relay, _ := newRelay(cfg, mode, testLogger(), relayMetrics)
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(func() { _ = relay.Stop(context.Background()) })

	srv := httptest.NewServer(InitRouter(relay, testLogger(), io.Discard, m, cfg.ConnectionOptions()))
	t.Cleanup(srv.Close)
	return srv, relay
}

func TestRouter_RelayModeEndToEnd(t *testing.T) {
	srv, relay := newTestApp(t, hub.ModeRelay)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	a, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws", nil)
	require.NoError(t, err)
	defer b.Close()
	require.Eventually(t, func() bool { return relay.ConnectionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/messages", "application/json", bytes.NewBufferString(`{"message":"hi all"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "hi all", string(data))
	}

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("hello")))
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	exposition, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(exposition), "relay_messages_delivered")
	assert.Contains(t, string(exposition), "relay_connections")
}

func TestRouter_ObserveModeHasNoPublishing(t *testing.T) {
	srv, _ := newTestApp(t, hub.ModeObserve)

	resp, err := http.Post(srv.URL+"/api/messages", "application/json", bytes.NewBufferString(`{"message":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	statusResp, err := http.Get(srv.URL + "/hub/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()

	var status map[string]any
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	assert.Equal(t, "observe", status["mode"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv, _ := newTestApp(t, hub.ModeRelay)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/messages", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
