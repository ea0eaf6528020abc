// Package chatview computes display projections of raw chat records: the
// derived name/icon/membership view of a chat and the compose-gating state.
// Everything here is a pure read-side projection, safe to recompute on every
// render; stored data is never mutated.
package chatview

import (
	"strings"
	"sync"

	"github.com/jobchat/internal/model"
)

// Resolved is the display projection of one chat for one viewer.
type Resolved struct {
	DisplayName       string
	IconURL           string
	Members           []model.ChatUser
	IsBlockedByViewer bool
	IsGroupDeleted    bool
	UnseenCount       int
}

// maxCacheEntries bounds the memo cache; on overflow the whole cache is
// dropped rather than evicted piecemeal.
const maxCacheEntries = 1024

type cacheKey struct {
	chat   *model.Chat
	viewer string
}

// Resolver memoizes Resolve per (chat pointer, viewer). The same chat object
// and viewer yield the identical *Resolved, so callers can compare by
// reference and skip re-rendering. A re-fetched chat is a new pointer and
// naturally misses the cache.
type Resolver struct {
	mu    sync.Mutex
	cache map[cacheKey]*Resolved
}

func NewResolver() *Resolver {
	return &Resolver{cache: make(map[cacheKey]*Resolved)}
}

func (r *Resolver) Resolve(chat *model.Chat, viewerID string) *Resolved {
	key := cacheKey{chat: chat, viewer: viewerID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[key]; ok {
		return v
	}
	v := resolve(chat, viewerID)
	if len(r.cache) >= maxCacheEntries {
		r.cache = make(map[cacheKey]*Resolved)
	}
	r.cache[key] = v
	return v
}

// Resolve computes the projection without memoization.
func Resolve(chat *model.Chat, viewerID string) *Resolved {
	return resolve(chat, viewerID)
}

func resolve(chat *model.Chat, viewerID string) *Resolved {
	res := &Resolved{}

	for i := range chat.Users {
		if chat.Users[i].UserID != viewerID {
			res.Members = append(res.Members, chat.Users[i])
		}
	}

	if chat.Group != nil {
		res.DisplayName = chat.Group.Name
		res.IconURL = chat.Group.IconURL
		res.IsGroupDeleted = chat.Group.DeletedAt != nil
	} else {
		names := make([]string, 0, len(res.Members))
		for _, m := range res.Members {
			names = append(names, m.User.FullName())
		}
		res.DisplayName = strings.Join(names, ", ")
		if len(res.Members) > 0 {
			res.IconURL = res.Members[0].User.PictureURL
		}
	}

	// Блокировка считается наложенной текущим пользователем, если активный
	// block указывает не на его собственное членство (см. DESIGN.md).
	if viewer := chat.Member(viewerID); viewer != nil {
		for _, b := range chat.Blocks {
			if b.Active() && b.ChatUserID != viewer.ID {
				res.IsBlockedByViewer = true
				break
			}
		}
	}

	for _, uc := range chat.UnseenCounts {
		if uc.SenderID != viewerID {
			res.UnseenCount += uc.Count
		}
	}

	return res
}
