package wsclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"PPChat/logger"
	"PPChat/module/chat/model"
	"PPChat/service/chat"
	"PPChat/tools/errs"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	Token            string // sent as Authorization: Bearer
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
}

// HandlerFunc receives the data of one inbound event.
type HandlerFunc func(ctx context.Context, event string, data json.RawMessage) error

// Client is one event-channel connection seen from the user side.
type Client struct {
	conn      *websocket.Conn
	writeWait time.Duration
	log       *zap.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	any      []HandlerFunc

	closeOnce sync.Once
}

// Dial opens the event channel at rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string, opts Options) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("bad url", "url", rawURL, "err", err)
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	h := http.Header{}
	for k, v := range opts.Header {
		h[k] = v
	}
	if opts.Token != "" {
		h.Set("Authorization", "Bearer "+opts.Token)
	}

	d := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout, Proxy: http.ProxyFromEnvironment}
	conn, resp, err := d.DialContext(ctx, u.String(), h)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errs.ErrIdentityMismatch.WrapMsg("handshake rejected", "status", resp.StatusCode)
		}
		return nil, errs.WrapMsg(err, "dial", "url", u.String())
	}
	return &Client{
		conn:      conn,
		writeWait: opts.WriteWait,
		log:       logger.Named("wsclient"),
		handlers:  make(map[string][]HandlerFunc),
	}, nil
}

// On adds a handler for event. Handlers run on the Run goroutine in order.
func (c *Client) On(event string, h HandlerFunc) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()
}

// OnAny adds a handler that sees every event.
func (c *Client) OnAny(h HandlerFunc) {
	c.mu.Lock()
	c.any = append(c.any, h)
	c.mu.Unlock()
}

// Emit sends one event frame.
func (c *Client) Emit(event string, data any) error {
	frame, err := chat.Encode(event, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errs.WrapMsg(err, "write frame", "event", event)
	}
	return nil
}

// Run reads frames until the connection closes or ctx ends. A normal close
// returns nil.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errs.WrapMsg(err, "read frame")
		}
		f, err := chat.ParseFrame(raw)
		if err != nil {
			c.log.Warn("bad frame", zap.Error(err))
			continue
		}
		c.dispatch(ctx, f)
	}
}

func (c *Client) dispatch(ctx context.Context, f *chat.Frame) {
	c.mu.RLock()
	hs := append(append([]HandlerFunc(nil), c.any...), c.handlers[f.Event]...)
	c.mu.RUnlock()
	for _, h := range hs {
		if err := h(ctx, f.Event, f.Data); err != nil {
			c.log.Warn("event handler failed", zap.String("event", f.Event), zap.Error(err))
		}
	}
}

// Close sends a close frame and shuts the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// ---- events ----

func (c *Client) Join(_ context.Context, userID string) error {
	return c.Emit(chat.EventJoin, userID)
}

func (c *Client) JoinChat(_ context.Context, chatID string) error {
	return c.Emit(chat.EventJoinChat, chatID)
}

func (c *Client) LeaveChat(_ context.Context, chatID string) error {
	return c.Emit(chat.EventLeaveChat, chatID)
}

func (c *Client) SendMessage(_ context.Context, in model.NewMessage) error {
	return c.Emit(chat.EventSendMessage, in)
}

func (c *Client) Typing(_ context.Context, chatID, userID, username string) error {
	return c.Emit(chat.EventTyping, chat.TypingPayload{ChatID: chatID, UserID: userID, Username: username})
}

func (c *Client) StopTyping(_ context.Context, chatID, userID string) error {
	return c.Emit(chat.EventStopTyping, chat.StopTypingPayload{ChatID: chatID, UserID: userID})
}

func (c *Client) AddReaction(_ context.Context, p chat.ReactionPayload) error {
	return c.Emit(chat.EventAddReaction, p)
}
