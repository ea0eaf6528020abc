package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jobchat/internal/model"
)

type collectingHandler struct {
	mu     sync.Mutex
	events []IncomingEvent
	seen   chan struct{}
}

func newCollectingHandler() *collectingHandler {
	return &collectingHandler{seen: make(chan struct{}, 16)}
}

func (h *collectingHandler) Handle(ctx context.Context, ev IncomingEvent) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
	h.seen <- struct{}{}
}

// wsTestServer upgrades one connection and hands it to fn.
func wsTestServer(t *testing.T, fn func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		fn(conn, r)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialSendsBearerTokenAndReceivesEvents(t *testing.T) {
	gotAuth := make(chan string, 1)
	srv := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		ev := IncomingEvent{
			Type:    EventNewMessage,
			Message: &model.ChatMessage{ID: "m1", ChatID: "c1", SenderID: "u2", Type: model.MessageTypeText, Text: "hi"},
		}
		data, _ := json.Marshal(ev)
		conn.WriteMessage(websocket.TextMessage, data)
		// Держим соединение, пока клиент не закроет.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	h := newCollectingHandler()
	conn, err := Dial(context.Background(), wsURL(srv), "tok-7", h, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		conn.Close()
		conn.Wait()
	}()

	if auth := <-gotAuth; auth != "Bearer tok-7" {
		t.Errorf("Authorization = %q", auth)
	}

	select {
	case <-h.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) != 1 || h.events[0].Type != EventNewMessage || h.events[0].Message.ID != "m1" {
		t.Errorf("events = %+v", h.events)
	}
}

func TestSendTypingReachesServer(t *testing.T) {
	received := make(chan OutgoingEvent, 1)
	srv := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev OutgoingEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Errorf("unmarshal: %v", err)
			return
		}
		received <- ev
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	conn, err := Dial(context.Background(), wsURL(srv), "tok", newCollectingHandler(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		conn.Close()
		conn.Wait()
	}()

	conn.SendTyping("c1")
	select {
	case ev := <-received:
		if ev.Type != EventTyping || ev.ChatID != "c1" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive the typing event")
	}
}

func TestOnDownReportedOnceOnServerClose(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		// Обрываем соединение сразу, без close-фрейма.
		conn.Close()
	})
	defer srv.Close()

	downs := make(chan error, 4)
	conn, err := Dial(context.Background(), wsURL(srv), "tok", newCollectingHandler(), func(err error) {
		downs <- err
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case err := <-downs:
		if err == nil {
			t.Error("onDown(nil) for an abnormal close, want an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onDown not called")
	}
	conn.Close()
	conn.Wait()

	select {
	case <-downs:
		t.Error("onDown called more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCleanCloseReportsNil(t *testing.T) {
	srv := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	downs := make(chan error, 1)
	conn, err := Dial(context.Background(), wsURL(srv), "tok", newCollectingHandler(), func(err error) {
		downs <- err
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
	conn.Wait()

	select {
	case err := <-downs:
		if err != nil {
			t.Errorf("onDown(%v) for a clean Close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onDown not called on Close")
	}
}
