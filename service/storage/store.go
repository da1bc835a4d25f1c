package storage

import (
	"context"
	"time"

	"PPChat/module/chat/model"
)

// Store chat hub 的持久化接口。
//
// CreateMessage 是原子的，同时也是权限校验：发送者不是会话成员时返回
// errs.ErrNoPermission，且不写入任何数据
type Store interface {
	CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error)
	UpdateChatActivity(ctx context.Context, chatID string, at time.Time) error
	GetChatParticipants(ctx context.Context, chatID string) ([]string, error)
	CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]model.Message, error)
	UpsertReaction(ctx context.Context, messageID, userID, emoji string) (chatID string, err error)
	ListReactions(ctx context.Context, messageID string) ([]model.Reaction, error)
	Close() error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// now 存储时钟：UTC，精确到微秒（与 Postgres 一致）
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
