package storage

import (
	"context"
	"testing"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store = (*MemoryStore)(nil)

func TestMemoryCreateMessage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutChat("c1", "a", "b")

	m, err := s.CreateMessage(ctx, model.NewMessage{ChatID: "c1", SenderID: "a", Content: "hi", Type: model.MsgTypeText})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, time.UTC, m.CreatedAt.Location())

	_, err = s.CreateMessage(ctx, model.NewMessage{ChatID: "c1", SenderID: "x", Content: "no"})
	assert.True(t, errs.Is(err, errs.ErrNoPermission))
	_, err = s.CreateMessage(ctx, model.NewMessage{ChatID: "nope", SenderID: "a"})
	assert.True(t, errs.Is(err, errs.ErrNoPermission))

	msgs, err := s.ListMessages(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, m.ID, msgs[0].ID)
}

func TestMemoryListLimitKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutChat("c1", "a")
	var last string
	for i := 0; i < 5; i++ {
		m, err := s.CreateMessage(ctx, model.NewMessage{ChatID: "c1", SenderID: "a", Content: "x", Type: model.MsgTypeText})
		require.NoError(t, err)
		last = m.ID
	}
	msgs, err := s.ListMessages(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, last, msgs[1].ID)
}

func TestMemoryChat(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c, err := s.CreateChat(ctx, model.NewChat{CreatorID: "a", Participants: []string{"b", "c"}})
	require.NoError(t, err)
	assert.True(t, c.IsGroup)

	ps, err := s.GetChatParticipants(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ps)

	_, err = s.GetChatParticipants(ctx, "missing")
	assert.True(t, errs.Is(err, errs.ErrRecordNotFound))

	later := time.Now().Add(time.Hour).UTC()
	require.NoError(t, s.UpdateChatActivity(ctx, c.ID, later))
	got, err := s.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(later))

	_, err = s.CreateChat(ctx, model.NewChat{})
	assert.True(t, errs.Is(err, errs.ErrArgs))
}

func TestMemoryReactions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutChat("c1", "a", "b")
	m, err := s.CreateMessage(ctx, model.NewMessage{ChatID: "c1", SenderID: "a", Content: "hi", Type: model.MsgTypeText})
	require.NoError(t, err)

	chatID, err := s.UpsertReaction(ctx, m.ID, "b", "👍")
	require.NoError(t, err)
	assert.Equal(t, "c1", chatID)
	_, err = s.UpsertReaction(ctx, m.ID, "b", "❤️")
	require.NoError(t, err)

	rs, err := s.ListReactions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "❤️", rs[0].Emoji)

	_, err = s.UpsertReaction(ctx, m.ID, "z", "x")
	assert.True(t, errs.Is(err, errs.ErrNoPermission))
	_, err = s.UpsertReaction(ctx, "missing", "a", "x")
	assert.True(t, errs.Is(err, errs.ErrRecordNotFound))
}
