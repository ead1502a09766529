package ws

import "github.com/tuht/evsc-assistant/internal/domain"

// Frame types.
const (
	TypeStatus       = "status"
	TypeChatMessage  = "chat_message"
	TypeChatResponse = "chat_response"
	TypeError        = "error"
)

// Error codes.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeChatFailed     = "chat_failed"
)

// BaseFrame is the envelope shared by all frames.
type BaseFrame struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// StatusFrame is sent on connect and on conversation binding.
type StatusFrame struct {
	BaseFrame
	Status string `json:"status"`
}

// ChatMessageFrame is an inbound user turn.
type ChatMessageFrame struct {
	BaseFrame
	Message string            `json:"message"`
	UserID  string            `json:"user_id,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// ChatResponseFrame carries the assistant's reply.
type ChatResponseFrame struct {
	BaseFrame
	Payload *domain.ChatResponse `json:"payload"`
}

// ErrorFrame reports a protocol or processing error.
type ErrorFrame struct {
	BaseFrame
	Code    string `json:"code"`
	Message string `json:"message"`
}
