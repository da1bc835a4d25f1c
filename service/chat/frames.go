package chat

import (
	"encoding/json"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
)

// 客户端 -> 服务端
const (
	EventJoin        = "join"
	EventJoinChat    = "joinChat"
	EventLeaveChat   = "leaveChat"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventAddReaction = "addReaction"
)

// 服务端 -> 客户端
const (
	EventOnlineUsers       = "onlineUsers"
	EventUserOnline        = "userOnline"
	EventUserOffline       = "userOffline"
	EventNewMessage        = "newMessage"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventNewChat           = "newChat"
	EventReactionAdded     = "reactionAdded"
	EventError             = "error"
)

// Frame 双向文本帧的统一信封 {event, data}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("unmarshal frame", "err", err)
	}
	if f.Event == "" {
		return nil, errs.ErrArgs.WrapMsg("frame without event")
	}
	return f, nil
}

// Encode 编码一帧；广播时只编码一次，共享同一份字节
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// ---- 载荷 ----

type TypingPayload struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type StopTypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// UserTyping 房间内看到的输入状态；订阅了多个房间的客户端用 ChatID 区分会话
type UserTyping struct {
	ChatID   string `json:"chatId,omitempty"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type ReactionPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
}

type ReactionAdded struct {
	MessageID string           `json:"messageId"`
	Reactions []model.Reaction `json:"reactions"`
}
