package handlers

import (
	"encoding/json"

	"PPChat/service/chat"
	"PPChat/tools/decode"
)

// JoinChatHandler 订阅会话房间
// Payload: "chatId" or {"chatId": ...}.
type JoinChatHandler struct{}

func NewJoinChatHandler() chat.Handler { return &JoinChatHandler{} }

func (h *JoinChatHandler) Event() string { return chat.EventJoinChat }

func (h *JoinChatHandler) Handle(cc *chat.ChatContext, c *chat.Client, data json.RawMessage) error {
	chatID, err := decode.ReadID(data, "chatId")
	if err != nil {
		return err
	}
	return cc.Hub.JoinChat(cc, c, chatID)
}

type LeaveChatHandler struct{}

func NewLeaveChatHandler() chat.Handler { return &LeaveChatHandler{} }

func (h *LeaveChatHandler) Event() string { return chat.EventLeaveChat }

func (h *LeaveChatHandler) Handle(cc *chat.ChatContext, c *chat.Client, data json.RawMessage) error {
	chatID, err := decode.ReadID(data, "chatId")
	if err != nil {
		return err
	}
	return cc.Hub.LeaveChat(cc, c, chatID)
}
