package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// 本地投递完成后发布的事件类型
const (
	MessageCreated  = "message.created"
	PresenceOnline  = "presence.online"
	PresenceOffline = "presence.offline"
	ChatCreated     = "chat.created"
	ReactionUpdated = "reaction.updated"
)

// Event 供其他服务消费的事件信封
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	ChatID string    `json:"chatId,omitempty"`
	UserID string    `json:"userId,omitempty"`
	At     time.Time `json:"at"`
	Data   any       `json:"data,omitempty"`
}

func New(typ, chatID, userID string, data any) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   typ,
		ChatID: chatID,
		UserID: userID,
		At:     time.Now().UTC(),
		Data:   data,
	}
}

// Key 分区/顺序 key：有会话用会话，否则用用户
func (e Event) Key() string {
	if e.ChatID != "" {
		return e.ChatID
	}
	return e.UserID
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher 把事件发出进程。对 hub 而言尽力而为：失败只记日志，不影响投递
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
