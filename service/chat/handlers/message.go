package handlers

import (
	"encoding/json"

	"PPChat/module/chat/model"
	"PPChat/service/chat"
	"PPChat/tools/decode"
)

// SendMessageHandler 落库并广播一条消息
// Payload: {senderId, chatId, content, type, fileUrl?, fileName?, tempId?}.
type SendMessageHandler struct{}

func NewSendMessageHandler() chat.Handler { return &SendMessageHandler{} }

func (h *SendMessageHandler) Event() string { return chat.EventSendMessage }

func (h *SendMessageHandler) Handle(cc *chat.ChatContext, c *chat.Client, data json.RawMessage) error {
	in, err := decode.DecodeJSON[model.NewMessage](data)
	if err != nil {
		return err
	}
	_, err = cc.Hub.SendMessage(cc, c, *in)
	return err
}
