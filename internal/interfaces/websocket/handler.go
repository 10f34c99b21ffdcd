package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
)

// WebSocketHandler upgrades clients and hands their connections to the relay
type WebSocketHandler struct {
	relay    hub.Relay
	logger   logger.Logger
	upgrader websocket.Upgrader
	opts     hub.ConnectionOptions
}

// NewWebSocketHandler creates a new WebSocket handler instance
func NewWebSocketHandler(relay hub.Relay, logger logger.Logger, opts hub.ConnectionOptions) *WebSocketHandler {
	return &WebSocketHandler{
		relay:  relay,
		logger: logger.WithField("handler", "websocket"),
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// There is no authentication; any origin may connect.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect upgrades the request and serves the connection until it closes
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if !h.relay.IsRunning() {
		h.logger.Error("Relay is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.logger.Warnf("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := hub.NewWebSocketConnection(generateWebSocketConnectionID(), conn, h.logger, h.opts)
	h.logger.Infof("A user connected: %s from %s", wsConn.ID(), c.ClientIP())

	wsConn.Serve(h.relay)

	h.logger.Infof("A user disconnected: %s", wsConn.ID())
}

// GetConnections returns information about WebSocket connections
func (h *WebSocketHandler) GetConnections(c *gin.Context) {
	connections := h.relay.GetConnectionsByType(hub.TypeWebSocket)
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		info := gin.H{
			"id":     conn.ID(),
			"type":   conn.Type(),
			"closed": conn.IsClosed(),
		}
		if active, ok := conn.(interface{ LastActivity() time.Time }); ok {
			info["last_activity"] = active.LastActivity().UTC().Format(time.RFC3339)
		}
		connectionInfo[i] = info
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
		"hub_running":       h.relay.IsRunning(),
		"mode":              h.relay.Mode(),
	})
}

func generateWebSocketConnectionID() string {
	return "ws-" + uuid.NewString()
}
