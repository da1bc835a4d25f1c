package reconcile

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"PPChat/logger"
	"PPChat/module/chat/model"
	"PPChat/service/chat"
	"PPChat/tools/errs"

	"go.uber.org/zap"
)

// Sender is the outbound half of the event channel.
type Sender interface {
	JoinChat(ctx context.Context, chatID string) error
	SendMessage(ctx context.Context, in model.NewMessage) error
	Typing(ctx context.Context, chatID, userID, username string) error
	StopTyping(ctx context.Context, chatID, userID string) error
}

// Reconciler is the client-side state of one signed-in user: chat list,
// per-chat views, presence and typing. Inbound frames go to Handle; user
// actions go through Open, Send and Keystroke.
type Reconciler struct {
	userID   string
	username string
	sender   Sender
	idle     time.Duration

	mu       sync.Mutex
	list     *ChatList
	views    map[string]*ChatView
	active   string
	presence *PresenceSet
	typing   *TypingSet
	notifier *TypingNotifier
	lastErr  string
}

func New(userID, username string, sender Sender) *Reconciler {
	return &Reconciler{
		userID:   userID,
		username: username,
		sender:   sender,
		idle:     DefaultTypingIdle,
		list:     NewChatList(),
		views:    make(map[string]*ChatView),
		presence: NewPresenceSet(),
		typing:   NewTypingSet(userID),
	}
}

// SetTypingIdle changes the stopTyping delay for chats opened afterwards.
func (r *Reconciler) SetTypingIdle(d time.Duration) {
	r.mu.Lock()
	r.idle = d
	r.mu.Unlock()
}

// SetChats 加载会话列表并订阅每个会话的房间（用于列表排序与预览）
func (r *Reconciler) SetChats(ctx context.Context, chats []model.Chat) error {
	r.mu.Lock()
	r.list.Set(chats)
	ids := r.list.IDs()
	r.mu.Unlock()
	for _, id := range ids {
		if err := r.sender.JoinChat(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Open makes chatID the active chat, joins its room and loads history.
func (r *Reconciler) Open(ctx context.Context, chatID string, history []model.Message) error {
	if chatID == "" {
		return errs.ErrArgs.WrapMsg("chatId is required")
	}
	if err := r.sender.JoinChat(ctx, chatID); err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.notifier
	v := r.viewLocked(chatID)
	v.Load(history)
	r.active = chatID
	r.typing.Clear()
	r.notifier = NewTypingNotifier(r.sender, chatID, r.userID, r.username, r.idle)
	r.mu.Unlock()

	if prev != nil {
		return prev.Stop(ctx)
	}
	return nil
}

// Send shows the message at once and sends it. A failed send leaves the
// optimistic entry in place.
func (r *Reconciler) Send(ctx context.Context, in model.NewMessage) (Entry, error) {
	r.mu.Lock()
	if r.active == "" {
		r.mu.Unlock()
		return Entry{}, errs.ErrArgs.WrapMsg("no chat is open")
	}
	req, e := r.viewLocked(r.active).SendLocal(r.userID, in)
	n := r.notifier
	r.mu.Unlock()

	if n != nil {
		if err := n.Stop(ctx); err != nil {
			logger.Debug("stopTyping failed", zap.String("chatId", req.ChatID), zap.Error(err))
		}
	}
	return e, r.sender.SendMessage(ctx, req)
}

// Keystroke reports input activity in the active chat.
func (r *Reconciler) Keystroke(ctx context.Context) error {
	r.mu.Lock()
	n := r.notifier
	r.mu.Unlock()
	if n == nil {
		return nil
	}
	return n.Keystroke(ctx)
}

// Handle applies one inbound frame.
func (r *Reconciler) Handle(ctx context.Context, event string, data json.RawMessage) error {
	switch event {
	case chat.EventOnlineUsers:
		var users []string
		if err := json.Unmarshal(data, &users); err != nil {
			return errs.ErrArgs.WrapMsg("onlineUsers", "err", err)
		}
		r.mu.Lock()
		r.presence.Snapshot(users)
		r.mu.Unlock()

	case chat.EventUserOnline, chat.EventUserOffline, chat.EventUserStoppedTyping:
		var userID string
		if err := json.Unmarshal(data, &userID); err != nil {
			return errs.ErrArgs.WrapMsg(event, "err", err)
		}
		r.mu.Lock()
		switch event {
		case chat.EventUserOnline:
			r.presence.Online(userID)
		case chat.EventUserOffline:
			r.presence.Offline(userID)
			r.typing.Stop(userID)
		default:
			r.typing.Stop(userID)
		}
		r.mu.Unlock()

	case chat.EventUserTyping:
		var t chat.UserTyping
		if err := json.Unmarshal(data, &t); err != nil {
			return errs.ErrArgs.WrapMsg("userTyping", "err", err)
		}
		r.mu.Lock()
		// 不带 chatId 的帧视为来自当前会话
		if t.ChatID == "" || t.ChatID == r.active {
			r.typing.Start(t.UserID, t.Username)
		}
		r.mu.Unlock()

	case chat.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return errs.ErrArgs.WrapMsg("newMessage", "err", err)
		}
		r.OnCanonicalMessage(msg)

	case chat.EventNewChat:
		var c model.Chat
		if err := json.Unmarshal(data, &c); err != nil {
			return errs.ErrArgs.WrapMsg("newChat", "err", err)
		}
		r.mu.Lock()
		added := r.list.Add(c)
		r.mu.Unlock()
		if added {
			return r.sender.JoinChat(ctx, c.ID)
		}

	case chat.EventReactionAdded:
		var ra chat.ReactionAdded
		if err := json.Unmarshal(data, &ra); err != nil {
			return errs.ErrArgs.WrapMsg("reactionAdded", "err", err)
		}
		r.mu.Lock()
		for _, v := range r.views {
			if v.Has(ra.MessageID) {
				v.SetReactions(ra.MessageID, ra.Reactions)
			}
		}
		r.mu.Unlock()

	case chat.EventError:
		var msg string
		_ = json.Unmarshal(data, &msg)
		r.mu.Lock()
		r.lastErr = msg
		r.mu.Unlock()
		logger.Warn("server error event", zap.String("userId", r.userID), zap.String("error", msg))

	default:
		logger.Debug("ignored event", zap.String("event", event))
	}
	return nil
}

// OnCanonicalMessage merges msg into its chat's view, if one is open, and
// moves the chat to the front of the list.
func (r *Reconciler) OnCanonicalMessage(msg model.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	if v, ok := r.views[msg.ChatID]; ok {
		changed = v.OnCanonicalMessage(msg)
	}
	r.list.OnMessage(msg)
	return changed
}

func (r *Reconciler) viewLocked(chatID string) *ChatView {
	v, ok := r.views[chatID]
	if !ok {
		v = NewChatView(chatID)
		r.views[chatID] = v
	}
	return v
}

// ---- read side ----

func (r *Reconciler) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Reconciler) Messages(chatID string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[chatID]; ok {
		return v.Entries()
	}
	return nil
}

func (r *Reconciler) Reactions(chatID, messageID string) []model.Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[chatID]; ok {
		return v.Reactions(messageID)
	}
	return nil
}

func (r *Reconciler) Chats() []ChatSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list.Chats()
}

func (r *Reconciler) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presence.List()
}

func (r *Reconciler) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presence.IsOnline(userID)
}

func (r *Reconciler) Typing() []Typer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typing.List()
}

// LastError is the text of the most recent error event.
func (r *Reconciler) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}
