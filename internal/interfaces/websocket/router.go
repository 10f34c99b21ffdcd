package websocket

import (
	"github.com/gin-gonic/gin"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
)

// InitWebSocketRouter initializes WebSocket routes
func InitWebSocketRouter(logger logger.Logger, relay hub.Relay, opts hub.ConnectionOptions, rg *gin.RouterGroup) {
	wsHandler := NewWebSocketHandler(relay, logger, opts)

	// "/" keeps plain ws://host:port clients working
	rg.GET("/", wsHandler.Connect)
	rg.GET("/ws", wsHandler.Connect)

	apiGroup := rg.Group("/api/v1/ws")
	apiGroup.GET("/connections", wsHandler.GetConnections)
}
