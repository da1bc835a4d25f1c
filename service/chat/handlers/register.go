package handlers

import "PPChat/service/chat"

// Register 注册所有客户端事件 handler
func Register(d *chat.Dispatcher) {
	for _, h := range []chat.Handler{
		NewJoinHandler(),
		NewJoinChatHandler(),
		NewLeaveChatHandler(),
		NewSendMessageHandler(),
		NewTypingHandler(),
		NewStopTypingHandler(),
		NewAddReactionHandler(),
	} {
		d.Register(h)
	}
}
