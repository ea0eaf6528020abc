package model

import (
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

type MessageStatus string

const (
	// MessageStatusPending — сообщение создано локально, сервер ещё не подтвердил.
	MessageStatusPending MessageStatus = "pending"
	MessageStatusSent    MessageStatus = "sent"
	MessageStatusFailed  MessageStatus = "failed"
)

// FileAttachment is a picked local file, as returned by the host's media pickers.
type FileAttachment struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
}

// ChatMessage is a single chat message. Locally created messages carry a
// namespaced temporary ID and status pending until the server acknowledges
// them; CreatedAt is assigned by the client at creation and never mutated.
type ChatMessage struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chat_id"`
	SenderID  string          `json:"sender_id"`
	Type      MessageType     `json:"type"`
	Text      string          `json:"text,omitempty"`
	File      *FileAttachment `json:"file,omitempty"`
	FileURL   string          `json:"file_url,omitempty"` // server-resolved, set once uploaded
	Status    MessageStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

var (
	ErrTextRequired = errors.New("text message requires text and no file")
	ErrFileRequired = errors.New("file message requires a file and no text")
	ErrBadType      = errors.New("unknown message type")
)

// Validate enforces that exactly one of Text/File is populated per Type.
func (m *ChatMessage) Validate() error {
	switch m.Type {
	case MessageTypeText:
		if m.Text == "" || m.File != nil {
			return ErrTextRequired
		}
	case MessageTypeImage, MessageTypeFile:
		if m.File == nil || m.Text != "" {
			return ErrFileRequired
		}
	default:
		return ErrBadType
	}
	return nil
}
