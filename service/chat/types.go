package chat

import (
	"context"
	"encoding/json"
)

// Handler serves one client event.
type Handler interface {
	Event() string
	Handle(cc *ChatContext, c *Client, data json.RawMessage) error
}

// ChatContext handler 的上下文：连接的 ctx 与 hub
type ChatContext struct {
	context.Context
	Hub *Hub
}

type handlerFunc struct {
	event string
	fn    func(cc *ChatContext, c *Client, data json.RawMessage) error
}

func (h handlerFunc) Event() string { return h.event }
func (h handlerFunc) Handle(cc *ChatContext, c *Client, data json.RawMessage) error {
	return h.fn(cc, c, data)
}

// HandlerFunc adapts a function to Handler.
func HandlerFunc(event string, fn func(cc *ChatContext, c *Client, data json.RawMessage) error) Handler {
	return handlerFunc{event: event, fn: fn}
}
