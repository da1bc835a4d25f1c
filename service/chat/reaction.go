package chat

import (
	"context"
	"strings"

	"PPChat/service/events"
	"PPChat/tools/errs"

	"go.uber.org/zap"
)

// AddReaction 写入用户的表情回应，并把该消息完整的回应列表发到会话房间（含发送者）
func (h *Hub) AddReaction(ctx context.Context, c *Client, p ReactionPayload) error {
	owner := c.UserID()
	if owner == "" {
		return errs.ErrNotJoined.WrapMsg("join before reacting")
	}
	if p.UserID != "" && p.UserID != owner {
		return errs.ErrIdentityMismatch.WrapMsg("userId differs from joined user", "userId", p.UserID)
	}
	if strings.TrimSpace(p.MessageID) == "" || strings.TrimSpace(p.Emoji) == "" {
		return errs.ErrArgs.WrapMsg("messageId and emoji are required")
	}

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()
	chatID, err := h.store.UpsertReaction(sctx, p.MessageID, owner, p.Emoji)
	if err != nil {
		return err
	}
	if p.ChatID != "" && p.ChatID != chatID {
		h.log.Warn("reaction chatId mismatch", zap.String("claimed", p.ChatID), zap.String("actual", chatID))
	}
	reactions, err := h.store.ListReactions(sctx, p.MessageID)
	if err != nil {
		return err
	}

	added := ReactionAdded{MessageID: p.MessageID, Reactions: reactions}
	frame, err := Encode(EventReactionAdded, added)
	if err != nil {
		return err
	}
	h.broadcastRoom(chatID, frame, "")
	h.publish(events.New(events.ReactionUpdated, chatID, owner, added))
	return nil
}
