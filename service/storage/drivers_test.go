package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"PPChat/module/chat/model"
	"PPChat/tools/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MongoStore)(nil)
)

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()
	a, b, outsider := "a-"+uuid.NewString(), "b-"+uuid.NewString(), "x-"+uuid.NewString()

	c, err := s.CreateChat(ctx, model.NewChat{CreatorID: a, Participants: []string{b}})
	require.NoError(t, err)
	assert.False(t, c.IsGroup)

	ps, err := s.GetChatParticipants(ctx, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, ps)

	m, err := s.CreateMessage(ctx, model.NewMessage{ChatID: c.ID, SenderID: a, Content: "hi", Type: model.MsgTypeText, TempID: "t-hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", m.Content)
	assert.Equal(t, "t-hi", m.TempID)
	assert.Empty(t, m.FileURL)

	f, err := s.CreateMessage(ctx, model.NewMessage{ChatID: c.ID, SenderID: b, Type: model.MsgTypeFile, FileURL: "/u/1", FileName: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", f.FileName)

	_, err = s.CreateMessage(ctx, model.NewMessage{ChatID: c.ID, SenderID: outsider, Content: "no", Type: model.MsgTypeText})
	assert.True(t, errs.Is(err, errs.ErrNoPermission))

	require.NoError(t, s.UpdateChatActivity(ctx, c.ID, m.CreatedAt))
	assert.True(t, errs.Is(s.UpdateChatActivity(ctx, "missing-"+uuid.NewString(), time.Now()), errs.ErrRecordNotFound))

	msgs, err := s.ListMessages(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, m.ID, msgs[0].ID)
	assert.Equal(t, "t-hi", msgs[0].TempID)
	assert.Equal(t, f.ID, msgs[1].ID)
	assert.Empty(t, msgs[1].TempID)

	chatID, err := s.UpsertReaction(ctx, m.ID, b, "👍")
	require.NoError(t, err)
	assert.Equal(t, c.ID, chatID)
	_, err = s.UpsertReaction(ctx, m.ID, b, "🎉")
	require.NoError(t, err)
	rs, err := s.ListReactions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "🎉", rs[0].Emoji)

	_, err = s.UpsertReaction(ctx, m.ID, outsider, "x")
	assert.True(t, errs.Is(err, errs.ErrNoPermission))
}

func TestMemoryContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("PPCHAT_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("PPCHAT_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn, 4)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))
	storeContract(t, s)
}

func TestMongoContract(t *testing.T) {
	uri := os.Getenv("PPCHAT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PPCHAT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, MongoConfig{URI: uri, Database: "ppchat_test"})
	if err != nil {
		t.Skipf("mongo not available: %v", err)
	}
	defer s.Close()
	require.NoError(t, s.EnsureIndexes(ctx))
	storeContract(t, s)
}

func TestRedisPresence(t *testing.T) {
	addr := os.Getenv("PPCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PPCHAT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	p, err := NewRedisPresence(ctx, RedisConfig{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer p.Close()

	user := "u-" + uuid.NewString()
	require.NoError(t, p.Online(ctx, user, "c1"))
	require.NoError(t, p.Online(ctx, user, "c2"))

	// stale offline from the superseded connection keeps the user online
	require.NoError(t, p.Offline(ctx, user, "c1"))
	conn, online, err := p.Lookup(ctx, user)
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, "c2", conn)

	require.NoError(t, p.Offline(ctx, user, "c2"))
	_, online, err = p.Lookup(ctx, user)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, p.Refresh(ctx, map[string]string{user: "c3"}))
	conn, online, err = p.Lookup(ctx, user)
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, "c3", conn)
	require.NoError(t, p.Offline(ctx, user, "c3"))
}
