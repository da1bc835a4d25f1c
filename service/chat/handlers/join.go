package handlers

import (
	"encoding/json"

	"PPChat/service/chat"
	"PPChat/tools/decode"
)

// JoinHandler 绑定连接与用户，并广播上线
// Payload: "userId" or {"userId": ...}.
type JoinHandler struct{}

func NewJoinHandler() chat.Handler { return &JoinHandler{} }

func (h *JoinHandler) Event() string { return chat.EventJoin }

func (h *JoinHandler) Handle(cc *chat.ChatContext, c *chat.Client, data json.RawMessage) error {
	userID, err := decode.ReadID(data, "userId")
	if err != nil {
		return err
	}
	return cc.Hub.Join(cc, c, userID)
}
