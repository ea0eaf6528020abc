// Package store is the client-side chat cache: a read replica of server
// state with explicit mutation entry points. Screens mutate through Store
// and subscribe to its events instead of polling shared globals.
package store

import (
	"context"
	"errors"

	"github.com/jobchat/internal/model"
)

// ErrNotFound сообщает, что чат или сообщение отсутствует в кеше.
var ErrNotFound = errors.New("store: not found")

// Cache — хранилище чатов и сообщений на клиенте.
// Реализации: memory.Cache, sqlite.Cache (переживает перезапуск).
type Cache interface {
	UpsertChat(ctx context.Context, chat *model.Chat) error
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	ListChats(ctx context.Context) ([]*model.Chat, error)

	// AppendMessage adds a message to the end of the chat's collection.
	// A message whose id is already present is dropped silently.
	AppendMessage(ctx context.Context, m model.ChatMessage) error
	// Messages returns the chat's messages in submission order.
	Messages(ctx context.Context, chatID string) ([]model.ChatMessage, error)
	UpdateMessageStatus(ctx context.Context, chatID, messageID string, status model.MessageStatus) error
	// ResolveLocalID replaces the optimistic entry identified by localID with
	// the server-confirmed message, keeping the entry's position and its
	// client-assigned CreatedAt.
	ResolveLocalID(ctx context.Context, chatID, localID string, confirmed model.ChatMessage) error

	ResetUnseen(ctx context.Context, chatID, viewerID string) error
	Close() error
}

type EventKind string

const (
	EventChatUpserted    EventKind = "chat_upserted"
	EventMessageAppended EventKind = "message_appended"
	EventMessageUpdated  EventKind = "message_updated"
	EventUnseenReset     EventKind = "unseen_reset"
)

// Event describes one cache mutation. Subscribers re-read the affected
// chat/message from the cache; events carry ids only.
type Event struct {
	Kind      EventKind
	ChatID    string
	MessageID string
}

// Store couples a Cache with event fan-out: every mutation that succeeds is
// published to all subscribers.
type Store struct {
	Cache
	hub *Hub
}

func New(cache Cache) *Store {
	return &Store{Cache: cache, hub: NewHub()}
}

// Subscribe returns a channel of cache events and a cancel func. The channel
// is closed on cancel.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.hub.Subscribe()
}

func (s *Store) UpsertChat(ctx context.Context, chat *model.Chat) error {
	if err := s.Cache.UpsertChat(ctx, chat); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: EventChatUpserted, ChatID: chat.ID})
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, m model.ChatMessage) error {
	if err := s.Cache.AppendMessage(ctx, m); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: EventMessageAppended, ChatID: m.ChatID, MessageID: m.ID})
	return nil
}

func (s *Store) UpdateMessageStatus(ctx context.Context, chatID, messageID string, status model.MessageStatus) error {
	if err := s.Cache.UpdateMessageStatus(ctx, chatID, messageID, status); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: EventMessageUpdated, ChatID: chatID, MessageID: messageID})
	return nil
}

func (s *Store) ResolveLocalID(ctx context.Context, chatID, localID string, confirmed model.ChatMessage) error {
	if err := s.Cache.ResolveLocalID(ctx, chatID, localID, confirmed); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: EventMessageUpdated, ChatID: chatID, MessageID: confirmed.ID})
	return nil
}

func (s *Store) ResetUnseen(ctx context.Context, chatID, viewerID string) error {
	if err := s.Cache.ResetUnseen(ctx, chatID, viewerID); err != nil {
		return err
	}
	s.hub.Publish(Event{Kind: EventUnseenReset, ChatID: chatID})
	return nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return s.Cache.Close()
}
