package reconcile

import (
	"sort"
	"time"

	"PPChat/module/chat/model"
)

// ChatSummary is one row of the chat list.
type ChatSummary struct {
	model.Chat
	Preview      string `json:"preview,omitempty"`
	LastSenderID string `json:"lastSenderId,omitempty"`
}

// ChatList keeps chats most-recent-activity first. An inbound message moves
// its chat to the front; no other row moves.
type ChatList struct {
	items []ChatSummary
}

func NewChatList() *ChatList { return &ChatList{} }

// Set replaces the list, ordered by UpdatedAt descending.
func (l *ChatList) Set(chats []model.Chat) {
	l.items = make([]ChatSummary, 0, len(chats))
	seen := make(map[string]struct{}, len(chats))
	for _, c := range chats {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		l.items = append(l.items, ChatSummary{Chat: c})
	}
	sort.SliceStable(l.items, func(i, j int) bool {
		return l.items[i].UpdatedAt.After(l.items[j].UpdatedAt)
	})
}

// Add puts a new chat at the front. It returns false if the chat is already listed.
func (l *ChatList) Add(c model.Chat) bool {
	if l.index(c.ID) >= 0 {
		return false
	}
	l.items = append([]ChatSummary{{Chat: c}}, l.items...)
	return true
}

// OnMessage moves msg's chat to the front and updates its preview. Unknown
// chats are left alone; it reports whether the chat was found.
func (l *ChatList) OnMessage(msg model.Message) bool {
	i := l.index(msg.ChatID)
	if i < 0 {
		return false
	}
	row := l.items[i]
	row.Preview = msg.Preview()
	row.LastSenderID = msg.SenderID
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if at.After(row.UpdatedAt) {
		row.UpdatedAt = at
	}
	copy(l.items[1:i+1], l.items[:i])
	l.items[0] = row
	return true
}

func (l *ChatList) Get(chatID string) (ChatSummary, bool) {
	i := l.index(chatID)
	if i < 0 {
		return ChatSummary{}, false
	}
	return l.items[i], true
}

func (l *ChatList) Chats() []ChatSummary {
	return append([]ChatSummary(nil), l.items...)
}

// IDs returns the chat ids in display order.
func (l *ChatList) IDs() []string {
	out := make([]string, len(l.items))
	for i, c := range l.items {
		out[i] = c.ID
	}
	return out
}

func (l *ChatList) index(chatID string) int {
	for i := range l.items {
		if l.items[i].ID == chatID {
			return i
		}
	}
	return -1
}
