// Package sqlite is the persistent Cache implementation: chats and messages
// are kept as JSON rows in a local SQLite file so the chat list and message
// history survive a restart and render before the first network round-trip.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jobchat/internal/model"
	"github.com/jobchat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	chat_id TEXT NOT NULL,
	id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (chat_id, id)
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_seq ON messages (chat_id, seq);
`

type Cache struct {
	db *sql.DB
}

func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// Одно соединение: sqlite не любит конкурентные писатели.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) UpsertChat(ctx context.Context, chat *model.Chat) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("marshal chat %s: %w", chat.ID, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO chats (id, seq, data)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM chats), 0) + 1, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		chat.ID, string(data))
	return err
}

func (c *Cache) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	var data string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM chats WHERE id = ?`, chatID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var chat model.Chat
	if err := json.Unmarshal([]byte(data), &chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat %s: %w", chatID, err)
	}
	return &chat, nil
}

func (c *Cache) ListChats(ctx context.Context) ([]*model.Chat, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT data FROM chats ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Chat
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var chat model.Chat
		if err := json.Unmarshal([]byte(data), &chat); err != nil {
			return nil, fmt.Errorf("unmarshal chat: %w", err)
		}
		out = append(out, &chat)
	}
	return out, rows.Err()
}

func (c *Cache) AppendMessage(ctx context.Context, m model.ChatMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", m.ID, err)
	}
	// Дубликат id игнорируется; seq растёт в порядке добавления.
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, id, seq, data)
		VALUES (?, ?, COALESCE((SELECT MAX(seq) FROM messages WHERE chat_id = ?), 0) + 1, ?)
		ON CONFLICT(chat_id, id) DO NOTHING`,
		m.ChatID, m.ID, m.ChatID, string(data))
	return err
}

func (c *Cache) Messages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM messages WHERE chat_id = ? ORDER BY seq`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *Cache) UpdateMessageStatus(ctx context.Context, chatID, messageID string, status model.MessageStatus) error {
	return c.mutateMessage(ctx, chatID, messageID, func(m *model.ChatMessage) {
		m.Status = status
	})
}

func (c *Cache) ResolveLocalID(ctx context.Context, chatID, localID string, confirmed model.ChatMessage) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT seq, data FROM messages WHERE chat_id = ? AND id = ?`,
		chatID, localID).Scan(&seq, &data)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	var local model.ChatMessage
	if err := json.Unmarshal([]byte(data), &local); err != nil {
		return fmt.Errorf("unmarshal message %s: %w", localID, err)
	}
	// Клиентский CreatedAt сохраняется, позиция (seq) тоже.
	confirmed.CreatedAt = local.CreatedAt
	newData, err := json.Marshal(confirmed)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", confirmed.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE chat_id = ? AND id = ?`, chatID, localID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (chat_id, id, seq, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(chat_id, id) DO UPDATE SET seq = excluded.seq, data = excluded.data`,
		chatID, confirmed.ID, seq, string(newData)); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *Cache) ResetUnseen(ctx context.Context, chatID, viewerID string) error {
	chat, err := c.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	kept := chat.UnseenCounts[:0]
	for _, uc := range chat.UnseenCounts {
		if uc.SenderID == viewerID {
			kept = append(kept, uc)
		}
	}
	chat.UnseenCounts = kept
	return c.UpsertChat(ctx, chat)
}

func (c *Cache) mutateMessage(ctx context.Context, chatID, messageID string, fn func(*model.ChatMessage)) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM messages WHERE chat_id = ? AND id = ?`,
		chatID, messageID).Scan(&data)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	var m model.ChatMessage
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return fmt.Errorf("unmarshal message %s: %w", messageID, err)
	}
	fn(&m)
	newData, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", messageID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET data = ? WHERE chat_id = ? AND id = ?`,
		string(newData), chatID, messageID); err != nil {
		return err
	}
	return tx.Commit()
}
