package reconcile

import (
	"time"

	"PPChat/module/chat/model"

	"github.com/google/uuid"
)

// Entry is one row of a chat view. Pending rows are optimistic: shown on send,
// replaced when the canonical message carrying their temp id arrives.
type Entry struct {
	model.Message
	Pending bool `json:"pending,omitempty"`
}

// ChatView is the visible message list of one chat.
//
// Merge rule for an inbound canonical message: drop it if its id is already
// listed, else remove the pending row with its temp id, then append it.
type ChatView struct {
	chatID    string
	entries   []Entry
	ids       map[string]struct{}
	reactions map[string][]model.Reaction
}

func NewChatView(chatID string) *ChatView {
	return &ChatView{
		chatID:    chatID,
		ids:       make(map[string]struct{}),
		reactions: make(map[string][]model.Reaction),
	}
}

func (v *ChatView) ChatID() string { return v.chatID }

// SendLocal appends an optimistic entry and returns the request to send.
func (v *ChatView) SendLocal(senderID string, in model.NewMessage) (model.NewMessage, Entry) {
	in.ChatID = v.chatID
	in.SenderID = senderID
	if in.TempID == "" {
		in.TempID = uuid.NewString()
	}
	in.Normalize()
	e := Entry{
		Message: model.Message{
			ChatID:    in.ChatID,
			SenderID:  in.SenderID,
			Content:   in.Content,
			Type:      in.Type,
			FileURL:   in.FileURL,
			FileName:  in.FileName,
			CreatedAt: time.Now().UTC(),
			TempID:    in.TempID,
		},
		Pending: true,
	}
	v.entries = append(v.entries, e)
	return in, e
}

// OnCanonicalMessage merges msg and reports whether the list changed.
// Applying the same message again is a no-op.
func (v *ChatView) OnCanonicalMessage(msg model.Message) bool {
	if msg.ChatID != v.chatID || msg.ID == "" {
		return false
	}
	if _, dup := v.ids[msg.ID]; dup {
		return false
	}
	if msg.TempID != "" {
		for i, e := range v.entries {
			if e.Pending && e.TempID == msg.TempID {
				v.entries = append(v.entries[:i], v.entries[i+1:]...)
				break
			}
		}
	}
	v.entries = append(v.entries, Entry{Message: msg})
	v.ids[msg.ID] = struct{}{}
	return true
}

// Load replaces the confirmed rows with history (ascending, as the store
// returns it). Pending rows without a match in history stay at the end.
func (v *ChatView) Load(history []model.Message) {
	pending := make([]Entry, 0)
	temps := make(map[string]struct{})
	for _, m := range history {
		if m.TempID != "" {
			temps[m.TempID] = struct{}{}
		}
	}
	for _, e := range v.entries {
		if !e.Pending {
			continue
		}
		if _, done := temps[e.TempID]; !done {
			pending = append(pending, e)
		}
	}

	v.entries = v.entries[:0]
	v.ids = make(map[string]struct{}, len(history))
	for _, m := range history {
		if m.ChatID != v.chatID {
			continue
		}
		if _, dup := v.ids[m.ID]; dup {
			continue
		}
		v.ids[m.ID] = struct{}{}
		v.entries = append(v.entries, Entry{Message: m})
	}
	v.entries = append(v.entries, pending...)
}

func (v *ChatView) SetReactions(messageID string, reactions []model.Reaction) {
	v.reactions[messageID] = append([]model.Reaction(nil), reactions...)
}

func (v *ChatView) Reactions(messageID string) []model.Reaction {
	return append([]model.Reaction(nil), v.reactions[messageID]...)
}

// Has reports whether a canonical message with id is listed.
func (v *ChatView) Has(id string) bool {
	_, ok := v.ids[id]
	return ok
}

// Entries returns a copy of the visible list.
func (v *ChatView) Entries() []Entry {
	return append([]Entry(nil), v.entries...)
}

func (v *ChatView) Len() int { return len(v.entries) }

func (v *ChatView) PendingCount() int {
	n := 0
	for _, e := range v.entries {
		if e.Pending {
			n++
		}
	}
	return n
}
