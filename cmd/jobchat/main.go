package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jobchat/internal/api"
	"github.com/jobchat/internal/chatview"
	"github.com/jobchat/internal/config"
	"github.com/jobchat/internal/logger"
	"github.com/jobchat/internal/model"
	"github.com/jobchat/internal/send"
	"github.com/jobchat/internal/store"
	"github.com/jobchat/internal/store/memory"
	"github.com/jobchat/internal/store/sqlite"
	"github.com/jobchat/internal/timeline"
	"github.com/jobchat/internal/ws"
)

// stderrNotifier печатает транзиентные уведомления в stderr (замена тостов).
type stderrNotifier struct{}

func (stderrNotifier) Info(msg string)  { fmt.Fprintln(os.Stderr, "i "+msg) }
func (stderrNotifier) Warn(msg string)  { fmt.Fprintln(os.Stderr, "! "+msg) }
func (stderrNotifier) Error(msg string) { fmt.Fprintln(os.Stderr, "x "+msg) }

func main() {
	logger.SetPrefix("client")
	userID := flag.String("user", os.Getenv("USER_ID"), "signed-in user id")
	chatID := flag.String("chat", "", "chat id to show or send into")
	sendText := flag.String("send", "", "send a text message and exit")
	to := flag.String("to", "", "comma-separated recipient user ids (new chat)")
	search := flag.String("search", "", "filter the chat list")
	follow := flag.Bool("follow", false, "stay connected and print realtime updates")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "user id is required (-user or USER_ID)")
		os.Exit(1)
	}

	logger.Info("starting jobchat client")
	cfg := config.Load()

	var cache store.Cache
	if cfg.CachePath != "" {
		c, err := sqlite.Open(cfg.CachePath)
		if err != nil {
			logger.Errorf("open cache %s: %v", cfg.CachePath, err)
			os.Exit(1)
		}
		cache = c
	} else {
		cache = memory.New()
	}
	st := store.New(cache)
	defer st.Close()

	client := api.NewClient(cfg.APIBaseURL, cfg.AuthToken, cfg.HTTPTimeout)
	notifier := stderrNotifier{}
	pipeline := send.New(st, client, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := syncChats(ctx, st, client, cfg.PageSize, *search); err != nil {
		logger.Errorf("fetch chats: %v", err)
	}

	switch {
	case *sendText != "" && *to != "":
		recipients := strings.Split(*to, ",")
		m, err := pipeline.SendToRecipients(ctx, *userID, recipients, *sendText)
		if err != nil {
			logger.Errorf("send: %v", err)
			os.Exit(1)
		}
		fmt.Printf("sent %s to chat %s\n", m.ID, m.ChatID)
		return
	case *sendText != "":
		if *chatID == "" {
			fmt.Fprintln(os.Stderr, "-send requires -chat or -to")
			os.Exit(1)
		}
		m, err := pipeline.SendText(ctx, *chatID, *userID, *sendText)
		if err != nil {
			logger.Errorf("send: %v", err)
			os.Exit(1)
		}
		fmt.Printf("sent %s\n", m.ID)
		return
	case *chatID != "":
		printChat(ctx, st, *chatID, *userID)
	default:
		printChatList(ctx, st, *userID)
	}

	if !*follow {
		return
	}

	applier := ws.NewApplier(st, notifier, *userID)
	conn, err := ws.Dial(ctx, cfg.WSURL, cfg.AuthToken, applier, func(err error) {
		if err != nil {
			logger.Errorf("ws connection down: %v", err)
		}
		stop()
	})
	if err != nil {
		logger.Errorf("ws dial %s: %v", cfg.WSURL, err)
		os.Exit(1)
	}

	events, cancel := st.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down...")
			conn.Close()
			conn.Wait()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == store.EventMessageAppended && *chatID != "" && ev.ChatID == *chatID {
				printChat(ctx, st, *chatID, *userID)
			} else {
				logger.Debugf("store event %s chat=%s", ev.Kind, ev.ChatID)
			}
		}
	}
}

// syncChats pulls every page of the chat list into the cache.
func syncChats(ctx context.Context, st *store.Store, client *api.Client, pageSize int, search string) error {
	for page := 1; ; page++ {
		res, err := client.ListChats(ctx, page, pageSize, search)
		if err != nil {
			return err
		}
		for i := range res.Chats {
			chat := res.Chats[i]
			if err := st.UpsertChat(ctx, &chat); err != nil {
				return err
			}
		}
		if page*pageSize >= res.Total || len(res.Chats) == 0 {
			return nil
		}
	}
}

func printChatList(ctx context.Context, st *store.Store, userID string) {
	chats, err := st.ListChats(ctx)
	if err != nil {
		logger.Errorf("list chats: %v", err)
		return
	}
	resolver := chatview.NewResolver()
	for _, chat := range chats {
		r := resolver.Resolve(chat, userID)
		line := fmt.Sprintf("%s  %s", chat.ID, r.DisplayName)
		if r.UnseenCount > 0 {
			line += fmt.Sprintf("  (%d unseen)", r.UnseenCount)
		}
		if gate := chatview.ComposeState(chat, userID); gate != chatview.GateNormal {
			line += "  [" + string(gate) + "]"
		}
		fmt.Println(line)
	}
}

func printChat(ctx context.Context, st *store.Store, chatID, userID string) {
	msgs, err := st.Messages(ctx, chatID)
	if err != nil {
		logger.Errorf("messages %s: %v", chatID, err)
		return
	}
	for _, g := range timeline.GroupByDate(msgs) {
		fmt.Println("--- " + g.Date.Format("Mon, 2 Jan 2006"))
		for _, m := range g.Messages {
			body := m.Text
			if m.Type != model.MessageTypeText {
				body = "[" + string(m.Type) + "] " + m.FileURL
			}
			marker := ""
			if m.Status != model.MessageStatusSent {
				marker = " (" + string(m.Status) + ")"
			}
			fmt.Printf("%s  %s: %s%s\n", m.CreatedAt.Format("15:04"), m.SenderID, body, marker)
		}
	}
}
