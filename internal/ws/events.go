package ws

import "github.com/jobchat/internal/model"

type EventType string

const (
	EventNewMessage  EventType = "new_message"
	EventMessageAck  EventType = "message_ack"
	EventChatCreated EventType = "chat_created"
	EventChatUpdated EventType = "chat_updated"
	EventTyping      EventType = "typing"
	EventMessageRead EventType = "message_read"
	EventError       EventType = "error"
)

// IncomingEvent is what the server pushes to this client.
type IncomingEvent struct {
	Type EventType `json:"type"`

	// new_message, message_ack
	Message *model.ChatMessage `json:"message,omitempty"`
	// message_ack: the client-local id the confirmed message replaces
	LocalID string `json:"local_id,omitempty"`

	// chat_created, chat_updated
	Chat *model.Chat `json:"chat,omitempty"`

	ChatID string `json:"chat_id,omitempty"`
	UserID string `json:"user_id,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// OutgoingEvent is what this client sends upstream.
// Payload uses typed fields, no map[string]any.
type OutgoingEvent struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chat_id,omitempty"`
}
