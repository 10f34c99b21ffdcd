package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
)

type StatusHandler struct {
	relay  hub.Relay
	logger logger.Logger
}

func NewStatusHandler(relay hub.Relay, logger logger.Logger) *StatusHandler {
	return &StatusHandler{
		relay:  relay,
		logger: logger.WithField("handler", "status"),
	}
}

func (h *StatusHandler) Status(c *gin.Context) {
	isRunning := h.relay.IsRunning()
	count := h.relay.ConnectionCount()
	h.logger.Debugf("Hub status check - Running: %v, Connections: %d", isRunning, count)

	status := "healthy"
	code := http.StatusOK
	if !isRunning {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":      status,
		"mode":        h.relay.Mode(),
		"hub_running": isRunning,
		"connections": count,
	})
}
