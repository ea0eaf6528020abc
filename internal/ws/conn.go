// Package ws maintains the client side of the realtime channel: one
// persistent WebSocket connection authenticated with a bearer token at
// connect time. Reconnect/backoff is the host's concern; a dead connection
// is reported once through the error callback.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jobchat/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufSize    = 64
	dialTimeout    = 15 * time.Second
)

// bufPool pools bytes.Buffer for JSON encoding in the hot-path (writePump).
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Handler consumes server events. Called from the read goroutine, one event
// at a time.
type Handler interface {
	Handle(ctx context.Context, ev IncomingEvent)
}

// Conn is one realtime connection.
// Lifecycle: Dial -> [readPump, writePump] -> Close -> Wait.
type Conn struct {
	conn    *websocket.Conn
	send    chan OutgoingEvent
	handler Handler
	onDown  func(error)

	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// Dial connects to the realtime endpoint and starts the pumps. onDown is
// invoked once when the connection dies (nil on clean Close); the host
// decides whether to redial.
func Dial(ctx context.Context, url, token string, h Handler, onDown func(error)) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	wsConn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Conn{
		conn:    wsConn,
		send:    make(chan OutgoingEvent, sendBufSize),
		handler: h,
		onDown:  onDown,
		done:    make(chan struct{}),
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(pumpCtx)
	go c.readPump(pumpCtx)
	return c, nil
}

// Wait blocks until both pump goroutines have exited.
func (c *Conn) Wait() {
	c.wg.Wait()
}

// Close signals the connection to stop. Safe to call multiple times from any
// goroutine.
func (c *Conn) Close() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		// Force both pumps to unblock (ReadMessage / WriteMessage will error).
		c.conn.Close()
	})
}

// SendTyping tells the server the user is typing in the chat.
func (c *Conn) SendTyping(chatID string) {
	c.enqueue(OutgoingEvent{Type: EventTyping, ChatID: chatID})
}

// SendRead tells the server the user has seen the chat's messages.
func (c *Conn) SendRead(chatID string) {
	c.enqueue(OutgoingEvent{Type: EventMessageRead, ChatID: chatID})
}

func (c *Conn) enqueue(ev OutgoingEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		logger.Errorf("ws send buffer full, dropping %s", ev.Type)
	}
}

func (c *Conn) down(err error) {
	if c.onDown != nil {
		c.onDown(err)
	}
}

func (c *Conn) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			c.down(nil)
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				c.down(nil)
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Errorf("ws read error: %v", err)
				}
				c.down(err)
			}
			return
		}

		var ev IncomingEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Errorf("ws unmarshal error: %v", err)
			continue
		}
		c.handler.Handle(ctx, ev)
	}
}

func (c *Conn) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Errorf("ws close message: %v", err)
			}
			return
		case ev := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline: %v", err)
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			enc := json.NewEncoder(buf)
			if err := enc.Encode(ev); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error: %v", err)
				continue
			}
			data := buf.Bytes()
			// json.Encoder appends '\n'; trim it for WebSocket text messages.
			if len(data) > 0 && data[len(data)-1] == '\n' {
				data = data[:len(data)-1]
			}
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
