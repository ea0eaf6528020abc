package ws

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jobchat/internal/model"
	"github.com/jobchat/internal/store"
	"github.com/jobchat/internal/store/memory"
)

type recordingNotifier struct {
	mu    sync.Mutex
	infos []string
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}
func (n *recordingNotifier) Warn(msg string)  {}
func (n *recordingNotifier) Error(msg string) {}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(memory.New())
	t.Cleanup(func() { st.Close() })
	chat := &model.Chat{
		ID:   "c1",
		Type: model.ChatTypePrivate,
		Users: []model.ChatUser{
			{ID: "cu1", ChatID: "c1", UserID: "u1", User: model.UserProfile{ID: "u1", FirstName: "Alice"}},
			{ID: "cu2", ChatID: "c1", UserID: "u2", User: model.UserProfile{ID: "u2", FirstName: "Bob", LastName: "Jones"}},
		},
		UnseenCounts: []model.UnseenCount{{SenderID: "u2", Count: 2}},
	}
	if err := st.UpsertChat(context.Background(), chat); err != nil {
		t.Fatal(err)
	}
	return st
}

func incomingText(id, sender, text string) *model.ChatMessage {
	return &model.ChatMessage{
		ID: id, ChatID: "c1", SenderID: sender,
		Type: model.MessageTypeText, Text: text,
		Status: model.MessageStatusSent, CreatedAt: time.Now().UTC(),
	}
}

func TestApplyNewMessageAppendsAndNotifies(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	n := &recordingNotifier{}
	a := NewApplier(st, n, "u1")

	a.Handle(ctx, IncomingEvent{Type: EventNewMessage, Message: incomingText("m1", "u2", "hi there")})

	msgs, _ := st.Messages(ctx, "c1")
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("store = %+v", msgs)
	}
	if len(n.infos) != 1 || !strings.HasPrefix(n.infos[0], "Bob Jones: ") {
		t.Errorf("notification = %v, want resolved chat name as title", n.infos)
	}

	// Дубликат по сокету не добавляется и не уведомляет повторно.
	a.Handle(ctx, IncomingEvent{Type: EventNewMessage, Message: incomingText("m1", "u2", "hi there")})
	if msgs, _ := st.Messages(ctx, "c1"); len(msgs) != 1 {
		t.Errorf("duplicate appended: %v", msgs)
	}
}

func TestApplyNewMessageOwnEchoIsSilent(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	n := &recordingNotifier{}
	a := NewApplier(st, n, "u1")

	a.Handle(ctx, IncomingEvent{Type: EventNewMessage, Message: incomingText("m1", "u1", "mine")})
	if len(n.infos) != 0 {
		t.Errorf("notified about own message: %v", n.infos)
	}
}

func TestApplyNewMessageMutedChatIsSilent(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	chat, _ := st.GetChat(ctx, "c1")
	muted := *chat
	muted.Mutes = []model.Mute{{ChatUserID: "cu1", MutedUntil: time.Now().Add(time.Hour)}}
	st.UpsertChat(ctx, &muted)

	n := &recordingNotifier{}
	a := NewApplier(st, n, "u1")
	a.Handle(ctx, IncomingEvent{Type: EventNewMessage, Message: incomingText("m1", "u2", "hi")})

	if msgs, _ := st.Messages(ctx, "c1"); len(msgs) != 1 {
		t.Fatal("muted message must still be cached")
	}
	if len(n.infos) != 0 {
		t.Errorf("notification for a muted chat: %v", n.infos)
	}
}

func TestApplyAckResolvesLocalID(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	a := NewApplier(st, &recordingNotifier{}, "u1")

	local := incomingText("local-abc", "u1", "hello")
	local.Status = model.MessageStatusPending
	st.AppendMessage(ctx, *local)

	confirmed := incomingText("srv-1", "u1", "hello")
	a.Handle(ctx, IncomingEvent{Type: EventMessageAck, LocalID: "local-abc", Message: confirmed})

	msgs, _ := st.Messages(ctx, "c1")
	if len(msgs) != 1 || msgs[0].ID != "srv-1" || msgs[0].Status != model.MessageStatusSent {
		t.Errorf("store = %+v", msgs)
	}
}

func TestApplyAckWithoutLocalEntryAppends(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	a := NewApplier(st, &recordingNotifier{}, "u1")

	a.Handle(ctx, IncomingEvent{Type: EventMessageAck, LocalID: "local-gone", Message: incomingText("srv-2", "u1", "x")})
	msgs, _ := st.Messages(ctx, "c1")
	if len(msgs) != 1 || msgs[0].ID != "srv-2" {
		t.Errorf("store = %+v, want the confirmed message kept", msgs)
	}
}

func TestApplyChatCreatedUpserts(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	a := NewApplier(st, &recordingNotifier{}, "u1")

	a.Handle(ctx, IncomingEvent{Type: EventChatCreated, Chat: &model.Chat{ID: "c9", Type: model.ChatTypeGroup}})
	if _, err := st.GetChat(ctx, "c9"); err != nil {
		t.Errorf("chat not cached: %v", err)
	}
}

func TestApplyReadResetsUnseenForViewerOnly(t *testing.T) {
	ctx := context.Background()
	st := seededStore(t)
	a := NewApplier(st, &recordingNotifier{}, "u1")

	// Чтение другим участником не трогает локальные счётчики.
	a.Handle(ctx, IncomingEvent{Type: EventMessageRead, ChatID: "c1", UserID: "u2"})
	chat, _ := st.GetChat(ctx, "c1")
	if len(chat.UnseenCounts) != 1 {
		t.Fatalf("counts = %v, want untouched", chat.UnseenCounts)
	}

	// Чтение этим же пользователем с другого устройства — сбрасывает.
	a.Handle(ctx, IncomingEvent{Type: EventMessageRead, ChatID: "c1", UserID: "u1"})
	chat, _ = st.GetChat(ctx, "c1")
	if len(chat.UnseenCounts) != 0 {
		t.Errorf("counts = %v, want reset", chat.UnseenCounts)
	}
}
