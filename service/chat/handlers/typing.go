package handlers

import (
	"encoding/json"

	"PPChat/service/chat"
	"PPChat/tools/decode"
)

type TypingHandler struct{}

func NewTypingHandler() chat.Handler { return &TypingHandler{} }

func (h *TypingHandler) Event() string { return chat.EventTyping }

func (h *TypingHandler) Handle(cc *chat.ChatContext, c *chat.Client, data json.RawMessage) error {
	p, err := decode.DecodeJSON[chat.TypingPayload](data)
	if err != nil {
		return err
	}
	return cc.Hub.Typing(cc, c, *p)
}

type StopTypingHandler struct{}

func NewStopTypingHandler() chat.Handler { return &StopTypingHandler{} }

func (h *StopTypingHandler) Event() string { return chat.EventStopTyping }

func (h *StopTypingHandler) Handle(cc *chat.ChatContext, c *chat.Client, data json.RawMessage) error {
	p, err := decode.DecodeJSON[chat.StopTypingPayload](data)
	if err != nil {
		return err
	}
	return cc.Hub.StopTyping(cc, c, *p)
}
