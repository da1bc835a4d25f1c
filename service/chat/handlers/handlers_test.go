package handlers

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"PPChat/logger"
	"PPChat/service/chat"
	"PPChat/service/storage"
	"PPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func setup(t *testing.T) (*chat.Dispatcher, *chat.ChatContext, *chat.Hub) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.PutChat("chat1", "A", "B")
	hub := chat.NewHub(chat.Options{Store: store, RequireMembership: true})
	t.Cleanup(hub.Close)
	d := chat.NewDispatcher()
	Register(d)
	return d, &chat.ChatContext{Context: context.Background(), Hub: hub}, hub
}

func newClient(t *testing.T, hub *chat.Hub, id string) *chat.Client {
	t.Helper()
	c := chat.NewClient(id, "", 32, nopCloser{})
	require.True(t, hub.Connect(c))
	return c
}

func dispatch(d *chat.Dispatcher, cc *chat.ChatContext, c *chat.Client, event, data string) error {
	return d.Dispatch(cc, c, &chat.Frame{Event: event, Data: json.RawMessage(data)})
}

func TestRegisterInstallsClientEvents(t *testing.T) {
	d, _, _ := setup(t)
	assert.ElementsMatch(t, []string{
		chat.EventJoin, chat.EventJoinChat, chat.EventLeaveChat, chat.EventSendMessage,
		chat.EventTyping, chat.EventStopTyping, chat.EventAddReaction,
	}, d.Events())
}

func TestJoinPayloadShapes(t *testing.T) {
	d, cc, hub := setup(t)

	a := newClient(t, hub, "c1")
	require.NoError(t, dispatch(d, cc, a, chat.EventJoin, `"A"`))
	assert.Equal(t, "A", a.UserID())

	b := newClient(t, hub, "c2")
	require.NoError(t, dispatch(d, cc, b, chat.EventJoin, `{"userId":"B"}`))
	assert.True(t, hub.IsOnline("B"))

	x := newClient(t, hub, "c3")
	assert.True(t, errs.Is(dispatch(d, cc, x, chat.EventJoin, `{}`), errs.ErrArgs))
	assert.True(t, errs.Is(dispatch(d, cc, x, chat.EventJoin, `[1,2]`), errs.ErrArgs))
}

func TestRoomAndMessageHandlers(t *testing.T) {
	d, cc, hub := setup(t)
	a := newClient(t, hub, "c1")
	require.NoError(t, dispatch(d, cc, a, chat.EventJoin, `"A"`))
	require.NoError(t, dispatch(d, cc, a, chat.EventJoinChat, `"chat1"`))
	assert.True(t, hub.Rooms().In("c1", "chat1"))

	require.NoError(t, dispatch(d, cc, a, chat.EventSendMessage,
		`{"chatId":"chat1","senderId":"A","content":"hi","tempId":"t1"}`))
	msgs, err := hub.Store().ListMessages(context.Background(), "chat1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)

	reaction := `{"chatId":"chat1","messageId":"` + msgs[0].ID + `","emoji":"👍"}`
	require.NoError(t, dispatch(d, cc, a, chat.EventAddReaction, reaction))

	require.NoError(t, dispatch(d, cc, a, chat.EventTyping, `{"chatId":"chat1","userId":"A","username":"alice"}`))
	require.NoError(t, dispatch(d, cc, a, chat.EventStopTyping, `{"chatId":"chat1","userId":"A"}`))

	require.NoError(t, dispatch(d, cc, a, chat.EventLeaveChat, `{"chatId":"chat1"}`))
	assert.False(t, hub.Rooms().In("c1", "chat1"))

	assert.True(t, errs.Is(dispatch(d, cc, a, chat.EventSendMessage, `"not an object"`), errs.ErrArgs))
}
