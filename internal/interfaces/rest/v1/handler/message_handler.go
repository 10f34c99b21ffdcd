package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-broadcast-relay/internal/infrastructure/hub"
	"go-broadcast-relay/internal/infrastructure/logger"
)

// MessageHandler publishes server-originated messages to every connection
type MessageHandler struct {
	publisher hub.Publisher
	relay     hub.Relay
	validator *hub.MessageValidator
	logger    logger.Logger
}

type PublishMessageRequest struct {
	Message string `json:"message" binding:"required"`
	// Type is "text" (default) or "binary"; binary messages are base64 encoded
	Type string `json:"type"`
}

type PublishMessageResponse struct {
	Status      string `json:"status"`
	MessageID   string `json:"message_id"`
	Connections int    `json:"connections"`
}

func NewMessageHandler(publisher hub.Publisher, relay hub.Relay, logger logger.Logger) *MessageHandler {
	return &MessageHandler{
		publisher: publisher,
		relay:     relay,
		validator: hub.NewMessageValidator(),
		logger:    logger.WithField("handler", "message"),
	}
}

func (h *MessageHandler) Publish(c *gin.Context) {
	var req PublishMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnf("Invalid request format: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid message format",
		})
		return
	}

	message, err := buildMessage(req)
	if err == nil {
		err = h.validator.Validate(message)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if !h.relay.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	if err := h.publisher.Broadcast(c.Request.Context(), message); err != nil {
		h.logger.Errorf("Failed to broadcast message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to send message",
		})
		return
	}

	c.JSON(http.StatusOK, PublishMessageResponse{
		Status:      "sent",
		MessageID:   message.ID,
		Connections: h.relay.ConnectionCount(),
	})
}

func buildMessage(req PublishMessageRequest) (*hub.Message, error) {
	switch hub.MessageType(req.Type) {
	case "", hub.MessageTypeText:
		return hub.TextMessage(req.Message), nil
	case hub.MessageTypeBinary:
		payload, err := base64.StdEncoding.DecodeString(req.Message)
		if err != nil {
			return nil, err
		}
		return hub.BinaryMessage(payload), nil
	default:
		// let the validator reject it
		return hub.NewMessageBuilder().
			WithType(hub.MessageType(req.Type)).
			WithPayload([]byte(req.Message)).
			Build(), nil
	}
}
