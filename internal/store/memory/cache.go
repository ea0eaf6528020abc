// Package memory is the in-process Cache implementation: mutex-guarded maps,
// no persistence. Default when no cache path is configured.
package memory

import (
	"context"
	"sync"

	"github.com/jobchat/internal/model"
	"github.com/jobchat/internal/store"
)

type Cache struct {
	mu       sync.RWMutex
	chats    map[string]*model.Chat
	order    []string // chat ids in first-seen order
	messages map[string][]model.ChatMessage
	index    map[string]map[string]struct{} // chatID -> message ids present
}

func New() *Cache {
	return &Cache{
		chats:    make(map[string]*model.Chat),
		messages: make(map[string][]model.ChatMessage),
		index:    make(map[string]map[string]struct{}),
	}
}

func (c *Cache) Close() error { return nil }

// UpsertChat stores the chat as-is. The pointer is returned verbatim by
// GetChat, so a re-fetched chat (new pointer) invalidates any projection
// memoized on the old one. Callers must not mutate a chat after upserting.
func (c *Cache) UpsertChat(ctx context.Context, chat *model.Chat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.chats[chat.ID]; !ok {
		c.order = append(c.order, chat.ID)
	}
	c.chats[chat.ID] = chat
	return nil
}

func (c *Cache) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chat, ok := c.chats[chatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return chat, nil
}

func (c *Cache) ListChats(ctx context.Context) ([]*model.Chat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Chat, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.chats[id])
	}
	return out, nil
}

func (c *Cache) AppendMessage(ctx context.Context, m model.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.index[m.ChatID]
	if !ok {
		ids = make(map[string]struct{})
		c.index[m.ChatID] = ids
	}
	if _, dup := ids[m.ID]; dup {
		return nil
	}
	ids[m.ID] = struct{}{}
	c.messages[m.ChatID] = append(c.messages[m.ChatID], m)
	return nil
}

func (c *Cache) Messages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := c.messages[chatID]
	out := make([]model.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (c *Cache) UpdateMessageStatus(ctx context.Context, chatID, messageID string, status model.MessageStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[chatID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (c *Cache) ResolveLocalID(ctx context.Context, chatID, localID string, confirmed model.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[chatID]
	for i := range msgs {
		if msgs[i].ID != localID {
			continue
		}
		// Позиция и клиентский CreatedAt сохраняются; id, статус и FileURL
		// берутся из подтверждённого сообщения.
		created := msgs[i].CreatedAt
		msgs[i] = confirmed
		msgs[i].CreatedAt = created
		ids := c.index[chatID]
		delete(ids, localID)
		ids[confirmed.ID] = struct{}{}
		return nil
	}
	return store.ErrNotFound
}

func (c *Cache) ResetUnseen(ctx context.Context, chatID, viewerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.chats[chatID]
	if !ok {
		return store.ErrNotFound
	}
	updated := *chat
	updated.UnseenCounts = nil
	for _, uc := range chat.UnseenCounts {
		if uc.SenderID == viewerID {
			updated.UnseenCounts = append(updated.UnseenCounts, uc)
		}
	}
	c.chats[chatID] = &updated
	return nil
}
