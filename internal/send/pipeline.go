// Package send implements the optimistic send pipeline: a message becomes
// visible with status pending the moment the user submits it, then
// transitions to sent on server ack or to failed on error. Failures are
// terminal until the user retries.
package send

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jobchat/internal/api"
	"github.com/jobchat/internal/logger"
	"github.com/jobchat/internal/model"
	"github.com/jobchat/internal/store"
)

// localIDPrefix namespaces client-generated ids so they can never collide
// with server-assigned ones; the ack reconciliation replaces them.
const localIDPrefix = "local-"

func IsLocalID(id string) bool {
	return len(id) > len(localIDPrefix) && id[:len(localIDPrefix)] == localIDPrefix
}

var (
	// ErrCancelled — пользователь закрыл пикер; не ошибка пайплайна.
	ErrCancelled = errors.New("send: picker cancelled")
	// ErrPermissionDenied — доступ к медиатеке не выдан.
	ErrPermissionDenied = errors.New("send: media permission denied")
	ErrUnsupportedFile  = errors.New("send: unsupported file type")
	ErrNoRecipients     = errors.New("send: no recipients")
	ErrNotFailed        = errors.New("send: message is not in failed state")
)

// Notifier is the transient user-visible notification surface (toast/banner).
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Pipeline wires the cache, the API client and the notifier together.
// Zero-value hooks (now, newID, open) get production defaults in New.
type Pipeline struct {
	store    *store.Store
	api      *api.Client
	notifier Notifier

	now   func() time.Time
	newID func() string
	open  func(uri string) (io.ReadCloser, error)
}

func New(st *store.Store, client *api.Client, notifier Notifier) *Pipeline {
	return &Pipeline{
		store:    st,
		api:      client,
		notifier: notifier,
		now:      time.Now,
		newID:    func() string { return localIDPrefix + uuid.New().String() },
		open:     func(uri string) (io.ReadCloser, error) { return os.Open(uri) },
	}
}

// SendText appends a pending text message and pushes it to the server.
// The pending entry is visible to subscribers before the network call; the
// returned message is the final state (sent or failed).
func (p *Pipeline) SendText(ctx context.Context, chatID, senderID, text string) (*model.ChatMessage, error) {
	m := model.ChatMessage{
		ID:        p.newID(),
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      model.MessageTypeText,
		Text:      text,
		Status:    model.MessageStatusPending,
		CreatedAt: p.now(),
	}
	return p.deliver(ctx, m)
}

// SendImage runs the picker→validate→upload→send chain for an image from
// the photo library.
func (p *Pipeline) SendImage(ctx context.Context, chatID, senderID string, picker ImagePicker) (*model.ChatMessage, error) {
	res := picker.PickImage(ctx)
	if err := p.checkPick(res); err != nil {
		return nil, err
	}
	return p.sendAttachment(ctx, chatID, senderID, model.MessageTypeImage, res.File)
}

// SendFile runs the same chain for a document, restricted to PDF/Word.
func (p *Pipeline) SendFile(ctx context.Context, chatID, senderID string, picker FilePicker) (*model.ChatMessage, error) {
	res := picker.PickFile(ctx, AllowedFileTypes)
	if err := p.checkPick(res); err != nil {
		return nil, err
	}
	// Пикер фильтрует по mime сам, но проверяем ещё раз.
	if !allowedFileType(res.File.MimeType) {
		p.notifier.Warn("only PDF and Word documents can be attached")
		return nil, ErrUnsupportedFile
	}
	return p.sendAttachment(ctx, chatID, senderID, model.MessageTypeFile, res.File)
}

// SendToRecipients sends the first message to a set of recipients with no
// existing chat: the chat is created server-side first (group iff more than
// one recipient), and only then is the message attached. If creation fails,
// nothing is enqueued.
func (p *Pipeline) SendToRecipients(ctx context.Context, senderID string, recipients []string, text string) (*model.ChatMessage, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	req := api.CreateChatRequest{UserIDs: recipients, Type: model.ChatTypePrivate}
	if len(recipients) > 1 {
		req.Type = model.ChatTypeGroup
		req.GroupName = "untitled"
	}
	chat, err := p.api.CreateChat(ctx, req)
	if err != nil {
		p.notifier.Error("could not start the conversation")
		return nil, fmt.Errorf("create chat: %w", err)
	}
	if err := p.store.UpsertChat(ctx, chat); err != nil {
		return nil, err
	}
	return p.SendText(ctx, chat.ID, senderID, text)
}

// Retry resubmits a failed message: it re-enters pending and goes through
// the normal delivery path. Only failed messages can be retried.
func (p *Pipeline) Retry(ctx context.Context, chatID, messageID string) (*model.ChatMessage, error) {
	msgs, err := p.store.Messages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	var found *model.ChatMessage
	for i := range msgs {
		if msgs[i].ID == messageID {
			found = &msgs[i]
			break
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	if found.Status != model.MessageStatusFailed {
		return nil, ErrNotFailed
	}

	if err := p.store.UpdateMessageStatus(ctx, chatID, messageID, model.MessageStatusPending); err != nil {
		return nil, err
	}
	m := *found
	m.Status = model.MessageStatusPending
	return p.push(ctx, m)
}

func (p *Pipeline) checkPick(res PickResult) error {
	switch res.Outcome {
	case PickPicked:
		return nil
	case PickDenied:
		p.notifier.Warn("media library access is required to attach files")
		return ErrPermissionDenied
	case PickCancelled:
		p.notifier.Info("attachment cancelled")
		return ErrCancelled
	default:
		p.notifier.Error("could not open the picker")
		if res.Err != nil {
			return fmt.Errorf("picker: %w", res.Err)
		}
		return errors.New("send: picker error")
	}
}

func (p *Pipeline) sendAttachment(ctx context.Context, chatID, senderID string, typ model.MessageType, file model.FileAttachment) (*model.ChatMessage, error) {
	f := file
	m := model.ChatMessage{
		ID:        p.newID(),
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      typ,
		File:      &f,
		Status:    model.MessageStatusPending,
		CreatedAt: p.now(),
	}
	return p.deliver(ctx, m)
}

// deliver appends the pending message, then pushes it to the server.
func (p *Pipeline) deliver(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := p.store.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return p.push(ctx, m)
}

// push uploads the attachment if any, sends the message and reconciles the
// cache entry. The message must already be present in the cache as pending.
func (p *Pipeline) push(ctx context.Context, m model.ChatMessage) (*model.ChatMessage, error) {
	defer logger.DeferLogDuration("send.push", time.Now())()

	fileURL := m.FileURL
	if m.File != nil && fileURL == "" {
		url, err := p.uploadFile(ctx, *m.File)
		if err != nil {
			return p.fail(ctx, m, fmt.Errorf("upload: %w", err))
		}
		fileURL = url
	}

	confirmed, err := p.api.SendMessage(ctx, m.ChatID, api.SendMessageRequest{
		SenderID: m.SenderID,
		Type:     m.Type,
		Text:     m.Text,
		File:     m.File,
		FileURL:  fileURL,
	})
	if err != nil {
		return p.fail(ctx, m, err)
	}

	confirmed.ChatID = m.ChatID
	confirmed.Status = model.MessageStatusSent
	if err := p.store.ResolveLocalID(ctx, m.ChatID, m.ID, *confirmed); err != nil {
		// Запись могла исчезнуть из кеша (например, очистка); сообщение на
		// сервере уже есть, поэтому просто добавляем подтверждённое.
		logger.Errorf("send: reconcile %s: %v", m.ID, err)
		if appendErr := p.store.AppendMessage(ctx, *confirmed); appendErr != nil {
			return nil, appendErr
		}
	}
	out := *confirmed
	out.CreatedAt = m.CreatedAt
	return &out, nil
}

func (p *Pipeline) fail(ctx context.Context, m model.ChatMessage, cause error) (*model.ChatMessage, error) {
	logger.Errorf("send: message %s failed: %v", m.ID, cause)
	if err := p.store.UpdateMessageStatus(ctx, m.ChatID, m.ID, model.MessageStatusFailed); err != nil {
		logger.Errorf("send: mark failed %s: %v", m.ID, err)
	}
	p.notifier.Error("message not sent, tap to retry")
	m.Status = model.MessageStatusFailed
	return &m, cause
}

func (p *Pipeline) uploadFile(ctx context.Context, file model.FileAttachment) (string, error) {
	r, err := p.open(file.URI)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return p.api.UploadFile(ctx, file.Name, file.MimeType, r)
}
