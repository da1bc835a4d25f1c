package model

import "time"

const ChatTableName = "chats"

// Chat 单聊或群聊会话
type Chat struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name,omitempty" bson:"name,omitempty"`
	IsGroup      bool      `json:"isGroup" bson:"is_group"`
	Participants []string  `json:"participants" bson:"participants"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// HasParticipant userID 是否为会话成员
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type NewChat struct {
	Name         string   `json:"name"`
	IsGroup      bool     `json:"isGroup"`
	CreatorID    string   `json:"creatorId"`
	Participants []string `json:"participants"`
}

// Members 去重后的成员列表，创建者在最前
func (n NewChat) Members() []string {
	seen := make(map[string]struct{}, len(n.Participants)+1)
	out := make([]string, 0, len(n.Participants)+1)
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(n.CreatorID)
	for _, p := range n.Participants {
		add(p)
	}
	return out
}
