package chat

import (
	"context"

	"PPChat/module/chat/model"
	"PPChat/service/events"

	"go.uber.org/zap"
)

// CreateChat 创建会话并通知在线的成员
func (h *Hub) CreateChat(ctx context.Context, in model.NewChat) (*model.Chat, error) {
	sctx, cancel := h.storeCtx(ctx)
	defer cancel()
	chat, err := h.store.CreateChat(sctx, in)
	if err != nil {
		return nil, err
	}
	n := h.NotifyNewChat(chat)
	h.log.Info("chat created", zap.String("chatId", chat.ID), zap.Int("participants", len(chat.Participants)), zap.Int("notified", n))
	h.publish(events.New(events.ChatCreated, chat.ID, in.CreatorID, chat))
	return chat, nil
}

// NotifyNewChat 向每个成员登记的连接发送 newChat，返回在线人数
func (h *Hub) NotifyNewChat(chat *model.Chat) int {
	frame, err := Encode(EventNewChat, chat)
	if err != nil {
		return 0
	}
	ids := make([]string, 0, len(chat.Participants))
	for _, u := range chat.Participants {
		if connID, ok := h.registry.ConnOf(u); ok {
			ids = append(ids, connID)
		}
	}
	return h.conns.DeliverMany(ids, frame)
}
