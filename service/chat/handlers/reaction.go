package handlers

import (
	"encoding/json"

	"PPChat/service/chat"
	"PPChat/tools/decode"
)

type AddReactionHandler struct{}

func NewAddReactionHandler() chat.Handler { return &AddReactionHandler{} }

func (h *AddReactionHandler) Event() string { return chat.EventAddReaction }

func (h *AddReactionHandler) Handle(cc *chat.ChatContext, c *chat.Client, data json.RawMessage) error {
	p, err := decode.DecodeJSON[chat.ReactionPayload](data)
	if err != nil {
		return err
	}
	return cc.Hub.AddReaction(cc, c, *p)
}
