package model

import "time"

type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Group — данные группового чата. DeletedAt не nil = группа удалена (soft delete).
type Group struct {
	Name      string     `json:"name"`
	IconURL   string     `json:"icon_url"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ChatUser is a membership record linking a user to a chat.
type ChatUser struct {
	ID     string      `json:"id"`
	ChatID string      `json:"chat_id"`
	UserID string      `json:"user_id"`
	User   UserProfile `json:"user"`
}

// Block suppresses message exchange between two chat participants.
// Soft-deleted: a block is active iff DeletedAt is nil, so unblock/re-block
// keeps the history.
type Block struct {
	ChatUserID string     `json:"chat_user_id"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func (b Block) Active() bool { return b.DeletedAt == nil }

// Mute suppresses notification delivery for a chat until MutedUntil.
type Mute struct {
	ChatUserID string    `json:"chat_user_id"`
	MutedUntil time.Time `json:"muted_until"`
}

// UnseenCount — число непрочитанных сообщений от одного отправителя
// с точки зрения текущего пользователя.
type UnseenCount struct {
	SenderID string `json:"sender_id"`
	Count    int    `json:"count"`
}

type Chat struct {
	ID           string        `json:"id"`
	Type         ChatType      `json:"type"`
	Group        *Group        `json:"group,omitempty"` // present only when Type == group
	Users        []ChatUser    `json:"users"`
	Blocks       []Block       `json:"blocks,omitempty"`
	Mutes        []Mute        `json:"mutes,omitempty"`
	UnseenCounts []UnseenCount `json:"unseen_message_counts,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Member returns the viewer's own membership record, or nil if the viewer
// is not a participant of the chat.
func (c *Chat) Member(userID string) *ChatUser {
	for i := range c.Users {
		if c.Users[i].UserID == userID {
			return &c.Users[i]
		}
	}
	return nil
}
