package chat

import (
	"context"
	"strings"

	"PPChat/tools/errs"

	"go.uber.org/zap"
)

// JoinChat 订阅 chatID 房间，重复加入无副作用
func (h *Hub) JoinChat(ctx context.Context, c *Client, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return errs.ErrArgs.WrapMsg("chatId is required")
	}
	if h.opts.RequireMembership {
		userID := c.UserID()
		if userID == "" {
			return errs.ErrNotJoined.WrapMsg("join before joinChat")
		}
		sctx, cancel := h.storeCtx(ctx)
		participants, err := h.store.GetChatParticipants(sctx, chatID)
		cancel()
		if err != nil {
			return err
		}
		if !contains(participants, userID) {
			return errs.ErrNoPermission.WrapMsg("not a participant", "chatId", chatID, "userId", userID)
		}
	}
	if _, ok := h.conns.Get(c.ID); !ok {
		return errs.ErrNotJoined.WrapMsg("connection is closed")
	}
	if h.rooms.Join(c.ID, chatID) {
		h.log.Debug("joinChat", zap.String("connId", c.ID), zap.String("userId", c.UserID()), zap.String("chatId", chatID))
	}
	return nil
}

// LeaveChat 退出单个房间
func (h *Hub) LeaveChat(_ context.Context, c *Client, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return errs.ErrArgs.WrapMsg("chatId is required")
	}
	if h.rooms.Leave(c.ID, chatID) {
		h.log.Debug("leaveChat", zap.String("connId", c.ID), zap.String("chatId", chatID))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
