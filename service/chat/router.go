package chat

import (
	"context"
	"strings"

	"PPChat/module/chat/model"
	"PPChat/service/events"
	"PPChat/tools/errs"

	"go.uber.org/zap"
)

// SendMessage 先落库，再把规范消息广播到会话房间。
// 落库失败不广播，返回的错误只发给发送者
func (h *Hub) SendMessage(ctx context.Context, c *Client, in model.NewMessage) (*model.Message, error) {
	owner := c.UserID()
	if owner == "" {
		return nil, errs.ErrNotJoined.WrapMsg("join before sending")
	}
	in.Normalize()
	if in.SenderID == "" {
		in.SenderID = owner
	}
	if in.SenderID != owner {
		return nil, errs.ErrIdentityMismatch.WrapMsg("senderId differs from joined user", "senderId", in.SenderID)
	}
	if err := validateNewMessage(in); err != nil {
		return nil, err
	}

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()

	msg, err := h.store.CreateMessage(sctx, in)
	if err != nil {
		if errs.Code(err) == errs.ServerInternalError {
			err = errs.ErrStorage.WrapMsg(err.Error())
		}
		h.log.Warn("send rejected",
			zap.String("connId", c.ID), zap.String("chatId", in.ChatID), zap.String("senderId", in.SenderID), zap.Error(err))
		return nil, err
	}

	// 消息已落库；会话时间更新失败不影响广播
	if err := h.store.UpdateChatActivity(sctx, msg.ChatID, msg.CreatedAt); err != nil {
		h.log.Warn("update chat activity failed", zap.String("chatId", msg.ChatID), zap.Error(err))
	}

	msg.TempID = in.TempID
	frame, err := Encode(EventNewMessage, msg)
	if err != nil {
		return nil, err
	}
	n := h.broadcastRoom(msg.ChatID, frame, "")
	h.log.Debug("message delivered", zap.String("chatId", msg.ChatID), zap.String("messageId", msg.ID), zap.Int("recipients", n))

	h.publish(events.New(events.MessageCreated, msg.ChatID, msg.SenderID, msg))
	return msg, nil
}

func validateNewMessage(in model.NewMessage) error {
	if in.ChatID == "" {
		return errs.ErrArgs.WrapMsg("chatId is required")
	}
	if !model.ValidMsgType(in.Type) {
		return errs.ErrArgs.WrapMsg("unknown message type", "type", in.Type)
	}
	switch in.Type {
	case model.MsgTypeText:
		if strings.TrimSpace(in.Content) == "" {
			return errs.ErrArgs.WrapMsg("content is empty")
		}
	default:
		if in.FileURL == "" {
			return errs.ErrArgs.WrapMsg("fileUrl is required", "type", in.Type)
		}
	}
	return nil
}
