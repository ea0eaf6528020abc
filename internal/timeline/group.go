// Package timeline turns a flat message list into date-bucketed groups for
// inverse-chronological rendering.
package timeline

import (
	"sort"
	"time"

	"github.com/jobchat/internal/model"
)

// DateGroup is one calendar day of messages, newest first.
type DateGroup struct {
	Date     time.Time
	Messages []model.ChatMessage
}

// GroupByDate buckets messages by the local calendar date of CreatedAt
// (day/month/year, not elapsed-24h windows). Duplicate message ids are
// dropped silently, first occurrence wins. Within a bucket messages are
// sorted by CreatedAt descending; buckets keep the order in which their
// day was first encountered while scanning the input.
//
// Pure transform: the input slice is not modified.
func GroupByDate(msgs []model.ChatMessage) []DateGroup {
	groups := make([]DateGroup, 0, 4)
	index := make(map[string]int, 4) // day key -> index in groups
	seen := make(map[string]struct{}, len(msgs))

	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}

		y, mo, d := m.CreatedAt.Local().Date()
		key := dayKey(y, mo, d)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DateGroup{
				Date: time.Date(y, mo, d, 0, 0, 0, 0, time.Local),
			})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}

	for i := range groups {
		msgs := groups[i].Messages
		sort.SliceStable(msgs, func(a, b int) bool {
			return msgs[a].CreatedAt.After(msgs[b].CreatedAt)
		})
	}

	return groups
}

func dayKey(y int, m time.Month, d int) string {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}
