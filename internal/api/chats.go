package api

import (
	"context"
	"net/http"

	"github.com/jobchat/internal/model"
)

// ChatPage — одна страница списка чатов.
type ChatPage struct {
	Chats    []model.Chat `json:"chats"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
}

// ListChats fetches one page of the viewer's chats, optionally filtered by a
// search string matched server-side against chat and member names.
func (c *Client) ListChats(ctx context.Context, page, pageSize int, search string) (*ChatPage, error) {
	var out ChatPage
	if err := c.do(ctx, http.MethodGet, "/chats?"+pageQuery(page, pageSize, search), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type CreateChatRequest struct {
	UserIDs   []string       `json:"user_ids"`
	Type      model.ChatType `json:"type"`
	GroupName string         `json:"group_name,omitempty"`
}

// CreateChat creates a chat server-side and returns it with membership rows
// populated.
func (c *Client) CreateChat(ctx context.Context, req CreateChatRequest) (*model.Chat, error) {
	var out model.Chat
	if err := c.do(ctx, http.MethodPost, "/chats", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type SendMessageRequest struct {
	SenderID string                `json:"sender_id"`
	Type     model.MessageType     `json:"type"`
	Text     string                `json:"text,omitempty"`
	File     *model.FileAttachment `json:"file,omitempty"`
	FileURL  string                `json:"file_url,omitempty"`
}

// SendMessage posts a message to a chat. The response is the server-confirmed
// message: server-assigned id, status sent, resolved file URL.
func (c *Client) SendMessage(ctx context.Context, chatID string, req SendMessageRequest) (*model.ChatMessage, error) {
	var out model.ChatMessage
	if err := c.do(ctx, http.MethodPost, "/chats/"+chatID+"/messages", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
