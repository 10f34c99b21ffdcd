package sse

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
)

// ServerSentEventHandler attaches receive-only SSE listeners to the relay
type ServerSentEventHandler struct {
	relay  hub.Relay
	logger logger.Logger
	opts   hub.ConnectionOptions
}

func NewServerSentEventHandler(relay hub.Relay, logger logger.Logger, opts hub.ConnectionOptions) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		relay:  relay,
		logger: logger.WithField("handler", "sse"),
		opts:   opts,
	}
}

// Connect streams relayed messages to the client until it disconnects
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	if !h.relay.IsRunning() {
		h.logger.Error("Relay is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	conn := hub.NewSSEConnection(c.Request.Context(), generateConnectionID(), h.logger, h.opts)
	h.logger.Infof("SSE listener %s connected", conn.ID())

	conn.Serve(c.Writer, h.relay)

	h.logger.Infof("SSE listener %s disconnected", conn.ID())
}

// GetConnections returns information about SSE listeners
func (h *ServerSentEventHandler) GetConnections(c *gin.Context) {
	connections := h.relay.GetConnectionsByType(hub.TypeSSE)
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		connectionInfo[i] = gin.H{
			"id":     conn.ID(),
			"type":   conn.Type(),
			"closed": conn.IsClosed(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
		"hub_running":       h.relay.IsRunning(),
	})
}

func generateConnectionID() string {
	return "sse-" + uuid.NewString()
}
