package model

import (
	"strings"
	"time"
)

// ===== 消息类型 =====

const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeFile  = "file"

	MsgTableName      = "messages"
	ReactionTableName = "reactions"
)

// ValidMsgType t 是否为 text/image/file 之一
func ValidMsgType(t string) bool {
	switch t {
	case MsgTypeText, MsgTypeImage, MsgTypeFile:
		return true
	}
	return false
}

// Message 落库后的规范消息。TempID 为发送端的临时 id，
// 随消息保存，重新拉取历史时客户端据此替换待确认的消息
type Message struct {
	ID        string    `json:"id" bson:"_id"`
	ChatID    string    `json:"chatId" bson:"chat_id"`
	SenderID  string    `json:"senderId" bson:"sender_id"`
	Content   string    `json:"content" bson:"content"`
	Type      string    `json:"type" bson:"type"`
	FileURL   string    `json:"fileUrl,omitempty" bson:"file_url,omitempty"`
	FileName  string    `json:"fileName,omitempty" bson:"file_name,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	TempID    string    `json:"tempId,omitempty" bson:"temp_id,omitempty"`
}

// Preview 会话列表中展示的摘要
func (m Message) Preview() string {
	switch m.Type {
	case MsgTypeImage:
		return "[image]"
	case MsgTypeFile:
		if m.FileName != "" {
			return "[file] " + m.FileName
		}
		return "[file]"
	}
	return m.Content
}

// NewMessage 发送请求：客户端要求落库的内容
type NewMessage struct {
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	TempID   string `json:"tempId,omitempty"`
}

// Normalize 去除空白，Type 默认为 text
func (n *NewMessage) Normalize() {
	n.ChatID = strings.TrimSpace(n.ChatID)
	n.SenderID = strings.TrimSpace(n.SenderID)
	n.Type = strings.ToLower(strings.TrimSpace(n.Type))
	if n.Type == "" {
		n.Type = MsgTypeText
	}
}

// Reaction 用户对消息的表情回应；(MessageID, UserID) 唯一
type Reaction struct {
	MessageID string    `json:"messageId" bson:"message_id"`
	UserID    string    `json:"userId" bson:"user_id"`
	Emoji     string    `json:"emoji" bson:"emoji"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}
