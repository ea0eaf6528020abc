package ws

import (
	"context"
	"time"

	"github.com/jobchat/internal/chatview"
	"github.com/jobchat/internal/logger"
	"github.com/jobchat/internal/model"
	"github.com/jobchat/internal/send"
	"github.com/jobchat/internal/store"
)

// Applier applies server events to the local cache. One Applier per signed-in
// user; it is the only writer the socket side has into the store.
type Applier struct {
	store    *store.Store
	notifier send.Notifier
	viewerID string

	// OnTyping, if set, is called when another member is typing.
	OnTyping func(chatID, userID string)

	now func() time.Time
}

func NewApplier(st *store.Store, notifier send.Notifier, viewerID string) *Applier {
	return &Applier{store: st, notifier: notifier, viewerID: viewerID, now: time.Now}
}

func (a *Applier) Handle(ctx context.Context, ev IncomingEvent) {
	switch ev.Type {
	case EventNewMessage:
		a.applyNewMessage(ctx, ev)
	case EventMessageAck:
		a.applyAck(ctx, ev)
	case EventChatCreated, EventChatUpdated:
		a.applyChat(ctx, ev)
	case EventMessageRead:
		a.applyRead(ctx, ev)
	case EventTyping:
		if a.OnTyping != nil && ev.UserID != a.viewerID {
			a.OnTyping(ev.ChatID, ev.UserID)
		}
	case EventError:
		logger.Errorf("ws server error: %s", ev.Error)
	default:
		logger.Errorf("ws unknown event type %q", ev.Type)
	}
}

func (a *Applier) applyNewMessage(ctx context.Context, ev IncomingEvent) {
	if ev.Message == nil {
		return
	}
	m := *ev.Message
	if m.Status == "" {
		m.Status = model.MessageStatusSent
	}
	// Дубликаты отбрасывает кеш (собственное отправленное сообщение может
	// прийти и эхом по сокету).
	if err := a.store.AppendMessage(ctx, m); err != nil {
		logger.Errorf("ws append message %s: %v", m.ID, err)
		return
	}
	if m.SenderID == a.viewerID {
		return
	}
	a.notify(ctx, m)
}

// notify surfaces an incoming message unless the viewer muted the chat.
func (a *Applier) notify(ctx context.Context, m model.ChatMessage) {
	chat, err := a.store.GetChat(ctx, m.ChatID)
	if err != nil {
		if err != store.ErrNotFound {
			logger.Errorf("ws get chat %s: %v", m.ChatID, err)
		}
		return
	}
	if chatview.IsMuted(chat, a.viewerID, a.now()) {
		return
	}
	title := chatview.Resolve(chat, a.viewerID).DisplayName
	body := m.Text
	if m.Type != model.MessageTypeText {
		body = "attachment"
	}
	if len(body) > 120 {
		body = body[:117] + "..."
	}
	a.notifier.Info(title + ": " + body)
}

func (a *Applier) applyAck(ctx context.Context, ev IncomingEvent) {
	if ev.Message == nil || ev.LocalID == "" {
		return
	}
	confirmed := *ev.Message
	confirmed.Status = model.MessageStatusSent
	if err := a.store.ResolveLocalID(ctx, confirmed.ChatID, ev.LocalID, confirmed); err != nil {
		// Ack обычно опережает или дублирует ответ HTTP-запроса send; если
		// локальной записи уже нет, оставляем подтверждённую версию.
		if err == store.ErrNotFound {
			if appendErr := a.store.AppendMessage(ctx, confirmed); appendErr != nil {
				logger.Errorf("ws append acked message %s: %v", confirmed.ID, appendErr)
			}
			return
		}
		logger.Errorf("ws ack %s: %v", ev.LocalID, err)
	}
}

func (a *Applier) applyChat(ctx context.Context, ev IncomingEvent) {
	if ev.Chat == nil {
		return
	}
	if err := a.store.UpsertChat(ctx, ev.Chat); err != nil {
		logger.Errorf("ws upsert chat %s: %v", ev.Chat.ID, err)
	}
}

func (a *Applier) applyRead(ctx context.Context, ev IncomingEvent) {
	// Чат прочитан этим же пользователем с другого устройства — сбрасываем
	// счётчики непрочитанного локально.
	if ev.UserID != a.viewerID || ev.ChatID == "" {
		return
	}
	if err := a.store.ResetUnseen(ctx, ev.ChatID, a.viewerID); err != nil && err != store.ErrNotFound {
		logger.Errorf("ws reset unseen chat=%s: %v", ev.ChatID, err)
	}
}
