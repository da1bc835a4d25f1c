package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"PPChat/logger"

	"go.uber.org/zap"
)

// DefaultTypingIdle 最后一次输入后多久发送 stopTyping
const DefaultTypingIdle = 2 * time.Second

type Typer struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// TypingSet 当前打开会话中正在输入的用户（不含自己）
type TypingSet struct {
	self  string
	users map[string]string
}

func NewTypingSet(self string) *TypingSet {
	return &TypingSet{self: self, users: make(map[string]string)}
}

func (t *TypingSet) Start(userID, username string) {
	if userID == "" || userID == t.self {
		return
	}
	t.users[userID] = username
}

func (t *TypingSet) Stop(userID string) { delete(t.users, userID) }

func (t *TypingSet) Clear() { t.users = make(map[string]string) }

// List returns the typers sorted by user id.
func (t *TypingSet) List() []Typer {
	out := make([]Typer, 0, len(t.users))
	for id, name := range t.users {
		out = append(out, Typer{UserID: id, Username: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// TypingNotifier 把按键转成 typing / stopTyping：首次按键发 typing，
// 空闲超过 idle 或调用 Stop 时发 stopTyping
type TypingNotifier struct {
	sender   Sender
	chatID   string
	userID   string
	username string
	idle     time.Duration

	mu     sync.Mutex
	active bool
	timer  *time.Timer
	gen    uint64
}

func NewTypingNotifier(sender Sender, chatID, userID, username string, idle time.Duration) *TypingNotifier {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingNotifier{sender: sender, chatID: chatID, userID: userID, username: username, idle: idle}
}

func (n *TypingNotifier) Keystroke(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.timer = time.AfterFunc(n.idle, func() { n.expire(gen) })
	if n.active {
		return nil
	}
	n.active = true
	return n.sender.Typing(ctx, n.chatID, n.userID, n.username)
}

// expire 第 gen 代空闲定时器到期时执行。
// 定时器触发时若新的按键已重置定时器，则已过期，直接返回
func (n *TypingNotifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return
	}
	if err := n.stopLocked(context.Background()); err != nil {
		logger.Debug("stopTyping failed", zap.String("chatId", n.chatID), zap.Error(err))
	}
}

// Stop 已发过 typing 时发送 stopTyping，重复调用无操作
func (n *TypingNotifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stopLocked(ctx)
}

func (n *TypingNotifier) stopLocked(ctx context.Context) error {
	n.gen++
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if !n.active {
		return nil
	}
	n.active = false
	return n.sender.StopTyping(ctx, n.chatID, n.userID)
}

func (n *TypingNotifier) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}
