package chat

import (
	"context"
	"strings"

	"PPChat/tools/errs"
)

// Typing 向房间转发 userTyping，不回发给发送者连接。
// 服务端不做超时，由客户端发送 stopTyping
func (h *Hub) Typing(_ context.Context, c *Client, p TypingPayload) error {
	userID, err := h.typingSender(c, p.ChatID, p.UserID)
	if err != nil {
		return err
	}
	frame, err := Encode(EventUserTyping, UserTyping{ChatID: p.ChatID, UserID: userID, Username: p.Username})
	if err != nil {
		return err
	}
	h.broadcastRoom(p.ChatID, frame, c.ID)
	return nil
}

// StopTyping 转发 userStoppedTyping，载荷只有 userId
func (h *Hub) StopTyping(_ context.Context, c *Client, p StopTypingPayload) error {
	userID, err := h.typingSender(c, p.ChatID, p.UserID)
	if err != nil {
		return err
	}
	frame, err := Encode(EventUserStoppedTyping, userID)
	if err != nil {
		return err
	}
	h.broadcastRoom(p.ChatID, frame, c.ID)
	return nil
}

func (h *Hub) typingSender(c *Client, chatID, userID string) (string, error) {
	if strings.TrimSpace(chatID) == "" {
		return "", errs.ErrArgs.WrapMsg("chatId is required")
	}
	owner := c.UserID()
	if owner == "" {
		if h.opts.RequireMembership || userID == "" {
			return "", errs.ErrNotJoined.WrapMsg("join before typing")
		}
		return userID, nil
	}
	if userID != "" && userID != owner {
		return "", errs.ErrIdentityMismatch.WrapMsg("userId differs from joined user", "userId", userID)
	}
	if h.opts.RequireMembership && !h.rooms.In(c.ID, chatID) {
		return "", errs.ErrNotJoined.WrapMsg("joinChat before typing", "chatId", chatID)
	}
	return owner, nil
}
