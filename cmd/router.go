package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
	"go-broadcast-relay/internal/infrastructure/metrics"
	"go-broadcast-relay/internal/interfaces/rest/v1/handler"
	"go-broadcast-relay/internal/interfaces/sse"
	"go-broadcast-relay/internal/interfaces/websocket"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func InitRouter(
	relay hub.Relay,
	log logger.Logger,
	accessLog io.Writer,
	m *metrics.Metrics,
	opts hub.ConnectionOptions,
) http.Handler {
	router := gin.New()
	router.Use(gin.LoggerWithWriter(accessLog))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Cache-Control")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	statusHandler := handler.NewStatusHandler(relay, log)
	rootGroup.GET("/hub/status", statusHandler.Status)

	if m != nil {
		rootGroup.GET(m.Endpoint, gin.WrapH(m.Handler()))
	}

	websocket.InitWebSocketRouter(log, relay, opts, rootGroup)

	// Server-originated messages and SSE listeners only make sense when
	// messages are relayed.
	if publisher, ok := relay.(hub.Publisher); ok {
		messageHandler := handler.NewMessageHandler(publisher, relay, log)
		rootGroup.Group("/api").POST("/messages", messageHandler.Publish)

		sse.InitSSERouter(log, relay, opts, rootGroup)
	}

	return router
}
