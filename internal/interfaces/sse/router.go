package sse

import (
	"github.com/gin-gonic/gin"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
)

func InitSSERouter(logger logger.Logger, relay hub.Relay, opts hub.ConnectionOptions, rg *gin.RouterGroup) {
	sseHandler := NewServerSentEventHandler(relay, logger, opts)

	rg.GET("/sse", sseHandler.Connect)

	apiGroup := rg.Group("/api/v1/sse")
	apiGroup.GET("/connections", sseHandler.GetConnections)
}
