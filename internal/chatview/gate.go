package chatview

import (
	"time"

	"github.com/jobchat/internal/model"
)

// Gate is the compose-affordance state of a chat. Exactly one applies.
type Gate string

const (
	GateBlocked      Gate = "blocked"
	GateGroupDeleted Gate = "group_deleted"
	GateNormal       Gate = "normal"
)

// ComposeState decides which gate governs the compose UI, in priority order
// blocked > group_deleted > normal. Evaluated fresh on every chat load —
// block/delete status can change between visits, so the result is never
// cached across navigation.
func ComposeState(chat *model.Chat, viewerID string) Gate {
	for _, b := range chat.Blocks {
		if b.Active() {
			return GateBlocked
		}
	}
	if chat.Group != nil && chat.Group.DeletedAt != nil {
		return GateGroupDeleted
	}
	return GateNormal
}

// IsMuted reports whether the viewer muted this chat at the given moment.
// Used to suppress notification output for incoming messages.
func IsMuted(chat *model.Chat, viewerID string, now time.Time) bool {
	viewer := chat.Member(viewerID)
	if viewer == nil {
		return false
	}
	for _, m := range chat.Mutes {
		if m.ChatUserID == viewer.ID && m.MutedUntil.After(now) {
			return true
		}
	}
	return false
}
