package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"
	"PPChat/tools/ids"
)

type memChat struct {
	chat    model.Chat
	members map[string]struct{}
	msgs    []model.Message
}

type reactionKey struct{ messageID, userID string }

// MemoryStore 进程内存储：默认驱动，也用于单测
type MemoryStore struct {
	mu        sync.RWMutex
	chats     map[string]*memChat
	msgChat   map[string]string // messageID -> chatID
	reactions map[reactionKey]model.Reaction
	gen       *ids.Generator
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:     make(map[string]*memChat),
		msgChat:   make(map[string]string),
		reactions: make(map[reactionKey]model.Reaction),
		gen:       ids.NewGenerator(1),
	}
}

func (s *MemoryStore) CreateChat(_ context.Context, in model.NewChat) (*model.Chat, error) {
	members := in.Members()
	if len(members) == 0 {
		return nil, errs.ErrArgs.WrapMsg("chat needs at least one participant")
	}
	ts := now()
	c := &memChat{
		chat: model.Chat{
			ID:           s.gen.NextString(),
			Name:         in.Name,
			IsGroup:      in.IsGroup || len(members) > 2,
			Participants: members,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		},
		members: make(map[string]struct{}, len(members)),
	}
	for _, m := range members {
		c.members[m] = struct{}{}
	}

	s.mu.Lock()
	s.chats[c.chat.ID] = c
	s.mu.Unlock()

	out := c.chat
	out.Participants = append([]string(nil), members...)
	return &out, nil
}

// PutChat 用调用方指定的 id 写入会话（已存在则覆盖）
func (s *MemoryStore) PutChat(chatID string, participants ...string) {
	ts := now()
	c := &memChat{
		chat: model.Chat{
			ID:           chatID,
			IsGroup:      len(participants) > 2,
			Participants: append([]string(nil), participants...),
			CreatedAt:    ts,
			UpdatedAt:    ts,
		},
		members: make(map[string]struct{}, len(participants)),
	}
	for _, p := range participants {
		c.members[p] = struct{}{}
	}
	s.mu.Lock()
	s.chats[chatID] = c
	s.mu.Unlock()
}

func (s *MemoryStore) CreateMessage(_ context.Context, in model.NewMessage) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chats[in.ChatID]
	if !ok {
		return nil, errs.ErrNoPermission.WrapMsg("chat not found", "chatId", in.ChatID)
	}
	if _, ok := c.members[in.SenderID]; !ok {
		return nil, errs.ErrNoPermission.WrapMsg("sender is not a participant", "chatId", in.ChatID, "senderId", in.SenderID)
	}
	m := model.Message{
		ID:        s.gen.NextString(),
		ChatID:    in.ChatID,
		SenderID:  in.SenderID,
		Content:   in.Content,
		Type:      in.Type,
		FileURL:   in.FileURL,
		FileName:  in.FileName,
		TempID:    in.TempID,
		CreatedAt: now(),
	}
	c.msgs = append(c.msgs, m)
	s.msgChat[m.ID] = c.chat.ID
	return &m, nil
}

func (s *MemoryStore) UpdateChatActivity(_ context.Context, chatID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	if at.After(c.chat.UpdatedAt) {
		c.chat.UpdatedAt = at
	}
	return nil
}

func (s *MemoryStore) GetChatParticipants(_ context.Context, chatID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	return append([]string(nil), c.chat.Participants...), nil
}

// GetChat 返回会话副本（单测与 REST 使用）
func (s *MemoryStore) GetChat(_ context.Context, chatID string) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	out := c.chat
	out.Participants = append([]string(nil), c.chat.Participants...)
	return &out, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, chatID string, limit int) ([]model.Message, error) {
	limit = clampLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("chat not found", "chatId", chatID)
	}
	msgs := c.msgs
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]model.Message(nil), msgs...), nil
}

func (s *MemoryStore) UpsertReaction(_ context.Context, messageID, userID, emoji string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chatID, ok := s.msgChat[messageID]
	if !ok {
		return "", errs.ErrRecordNotFound.WrapMsg("message not found", "messageId", messageID)
	}
	if _, ok := s.chats[chatID].members[userID]; !ok {
		return "", errs.ErrNoPermission.WrapMsg("user is not a participant", "chatId", chatID, "userId", userID)
	}
	k := reactionKey{messageID, userID}
	r, ok := s.reactions[k]
	if !ok {
		r = model.Reaction{MessageID: messageID, UserID: userID, CreatedAt: now()}
	}
	r.Emoji = emoji
	s.reactions[k] = r
	return chatID, nil
}

func (s *MemoryStore) ListReactions(_ context.Context, messageID string) ([]model.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reaction
	for k, r := range s.reactions {
		if k.messageID == messageID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
