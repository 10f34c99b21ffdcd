package hub

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageType is the frame kind a payload arrived in
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeBinary MessageType = "binary"
)

// Message is a single relayed payload. Payload is forwarded untouched.
type Message struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	Payload    []byte      `json:"payload"`
	ReceivedAt time.Time   `json:"received_at"`
}

// Text returns the payload as a string
func (m *Message) Text() string {
	return string(m.Payload)
}

// Size returns the payload length in bytes
func (m *Message) Size() int {
	return len(m.Payload)
}

// MessageBuilder helps build messages with fluent interface
type MessageBuilder struct {
	message *Message
}

// NewMessageBuilder creates a new message builder
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		message: &Message{
			Type: MessageTypeText,
		},
	}
}

// WithID sets the message ID
func (mb *MessageBuilder) WithID(id string) *MessageBuilder {
	mb.message.ID = id
	return mb
}

// WithType sets the frame kind
func (mb *MessageBuilder) WithType(msgType MessageType) *MessageBuilder {
	mb.message.Type = msgType
	return mb
}

// WithPayload sets the raw payload
func (mb *MessageBuilder) WithPayload(payload []byte) *MessageBuilder {
	mb.message.Payload = payload
	return mb
}

// WithText sets a text payload
func (mb *MessageBuilder) WithText(text string) *MessageBuilder {
	mb.message.Type = MessageTypeText
	mb.message.Payload = []byte(text)
	return mb
}

// Build returns the constructed message
func (mb *MessageBuilder) Build() *Message {
	if mb.message.ID == "" {
		mb.message.ID = generateMessageID()
	}

	if mb.message.ReceivedAt.IsZero() {
		mb.message.ReceivedAt = time.Now().UTC()
	}

	return mb.message
}

// TextMessage creates a text message
func TextMessage(text string) *Message {
	return NewMessageBuilder().WithText(text).Build()
}

// BinaryMessage creates a binary message
func BinaryMessage(payload []byte) *Message {
	return NewMessageBuilder().
		WithType(MessageTypeBinary).
		WithPayload(payload).
		Build()
}

// MessageFromFrame converts a WebSocket data frame into a message.
func MessageFromFrame(frameType int, data []byte) (*Message, error) {
	switch frameType {
	case websocket.TextMessage:
		return NewMessageBuilder().WithType(MessageTypeText).WithPayload(data).Build(), nil
	case websocket.BinaryMessage:
		return BinaryMessage(data), nil
	default:
		return nil, fmt.Errorf("unsupported frame type %d", frameType)
	}
}

// FrameType returns the WebSocket frame type the message should be written as
func (m *Message) FrameType() int {
	if m.Type == MessageTypeBinary {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func generateMessageID() string {
	return "msg-" + uuid.NewString()
}

// MessageValidator validates server-originated messages before publishing
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// Validate validates a message
func (mv *MessageValidator) Validate(message *Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}

	if message.ID == "" {
		return errors.New("message ID cannot be empty")
	}

	if !IsValidMessageType(string(message.Type)) {
		return fmt.Errorf("unknown message type %q", message.Type)
	}

	if message.Type == MessageTypeText && !utf8.Valid(message.Payload) {
		return errors.New("text payload must be valid UTF-8")
	}

	return nil
}

// IsValidMessageType checks if a message type is valid
func IsValidMessageType(msgType string) bool {
	switch MessageType(msgType) {
	case MessageTypeText, MessageTypeBinary:
		return true
	default:
		return false
	}
}
