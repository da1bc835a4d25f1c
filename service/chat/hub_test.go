package chat

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"PPChat/logger"
	"PPChat/module/chat/model"
	"PPChat/service/events"
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

// ---- helpers ----

type failingStore struct {
	*storage.MemoryStore
	createErr   error
	activityErr error
}

func (s *failingStore) CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.MemoryStore.CreateMessage(ctx, in)
}

func (s *failingStore) UpdateChatActivity(ctx context.Context, chatID string, at time.Time) error {
	if s.activityErr != nil {
		return s.activityErr
	}
	return s.MemoryStore.UpdateChatActivity(ctx, chatID, at)
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	p.got = append(p.got, e)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.got))
	for _, e := range p.got {
		out = append(out, e.Type)
	}
	return out
}

type recordingMirror struct {
	mu  sync.Mutex
	ops []string
}

func (m *recordingMirror) Online(_ context.Context, userID, connID string) error {
	m.mu.Lock()
	m.ops = append(m.ops, "on:"+userID+"@"+connID)
	m.mu.Unlock()
	return nil
}

func (m *recordingMirror) Offline(_ context.Context, userID, connID string) error {
	m.mu.Lock()
	m.ops = append(m.ops, "off:"+userID+"@"+connID)
	m.mu.Unlock()
	return nil
}

func newTestHub(t *testing.T, store storage.Store) *Hub {
	t.Helper()
	h := NewHub(Options{Store: store, RequireMembership: true})
	t.Cleanup(h.Close)
	return h
}

func connect(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := NewClient(id, "", 64, &fakeConn{})
	require.True(t, h.Connect(c))
	return c
}

func joined(t *testing.T, h *Hub, id, user string, chats ...string) *Client {
	t.Helper()
	c := connect(t, h, id)
	require.NoError(t, h.Join(context.Background(), c, user))
	for _, chat := range chats {
		require.NoError(t, h.JoinChat(context.Background(), c, chat))
	}
	drain(c)
	return c
}

// drain returns every frame queued for c right now.
func drain(c *Client) []Frame {
	var out []Frame
	for {
		select {
		case raw, ok := <-c.Send():
			if !ok {
				return out
			}
			f, err := ParseFrame(raw)
			if err != nil {
				panic(err)
			}
			out = append(out, *f)
		default:
			return out
		}
	}
}

func only(frames []Frame, event string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func decodeData[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func memStore(chats map[string][]string) *storage.MemoryStore {
	s := storage.NewMemoryStore()
	for id, members := range chats {
		s.PutChat(id, members...)
	}
	return s
}

// ---- presence ----

func TestJoinSnapshotThenDelta(t *testing.T) {
	h := newTestHub(t, memStore(nil))
	ctx := context.Background()

	a := connect(t, h, "ca")
	require.NoError(t, h.Join(ctx, a, "A"))
	fa := drain(a)
	require.Len(t, fa, 1)
	assert.Equal(t, EventOnlineUsers, fa[0].Event)
	assert.Equal(t, []string{"A"}, decodeData[[]string](t, fa[0]))

	b := connect(t, h, "cb")
	require.NoError(t, h.Join(ctx, b, "B"))

	fb := drain(b)
	require.Len(t, fb, 1)
	assert.Equal(t, EventOnlineUsers, fb[0].Event)
	assert.Equal(t, []string{"A", "B"}, decodeData[[]string](t, fb[0]))

	fa = drain(a)
	require.Len(t, fa, 1)
	assert.Equal(t, EventUserOnline, fa[0].Event)
	assert.Equal(t, "B", decodeData[string](t, fa[0]))
}

func TestUnjoinedConnectionGetsNoPresence(t *testing.T) {
	h := newTestHub(t, memStore(nil))
	idle := connect(t, h, "idle")
	joined(t, h, "ca", "A")
	assert.Empty(t, drain(idle))
}

func TestStaleDisconnectKeepsUserOnline(t *testing.T) {
	mirror := &recordingMirror{}
	h := NewHub(Options{Store: memStore(nil), Presence: mirror})
	defer h.Close()

	watcher := joined(t, h, "cw", "W")
	old := joined(t, h, "c1", "A")
	fresh := joined(t, h, "c2", "A")
	drain(watcher)

	h.Disconnect(old)
	assert.True(t, h.IsOnline("A"))
	assert.Empty(t, only(drain(watcher), EventUserOffline))

	h.Disconnect(fresh)
	assert.False(t, h.IsOnline("A"))
	off := only(drain(watcher), EventUserOffline)
	require.Len(t, off, 1)
	assert.Equal(t, "A", decodeData[string](t, off[0]))

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	assert.Equal(t, []string{"on:W@cw", "on:A@c1", "on:A@c2", "off:A@c2"}, mirror.ops)
}

func TestJoinIdentity(t *testing.T) {
	h := newTestHub(t, memStore(nil))
	ctx := context.Background()

	c := connect(t, h, "c1")
	assert.True(t, errs.Is(h.Join(ctx, c, " "), errs.ErrArgs))
	require.NoError(t, h.Join(ctx, c, "A"))
	require.NoError(t, h.Join(ctx, c, "A"))
	assert.True(t, errs.Is(h.Join(ctx, c, "B"), errs.ErrIdentityMismatch))

	authed := NewClient("c2", "X", 8, &fakeConn{})
	require.True(t, h.Connect(authed))
	assert.True(t, errs.Is(h.Join(ctx, authed, "Y"), errs.ErrIdentityMismatch))
	assert.NoError(t, h.Join(ctx, authed, "X"))
}

// ---- rooms ----

func TestJoinChatRequiresParticipant(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A", "B"}}))
	ctx := context.Background()

	c := connect(t, h, "c1")
	assert.True(t, errs.Is(h.JoinChat(ctx, c, "chat1"), errs.ErrNotJoined))

	require.NoError(t, h.Join(ctx, c, "C"))
	assert.True(t, errs.Is(h.JoinChat(ctx, c, "chat1"), errs.ErrNoPermission))
	assert.True(t, errs.Is(h.JoinChat(ctx, c, "missing"), errs.ErrRecordNotFound))
	assert.False(t, h.Rooms().In("c1", "chat1"))

	a := joined(t, h, "ca", "A", "chat1")
	assert.True(t, h.Rooms().In(a.ID, "chat1"))
	require.NoError(t, h.LeaveChat(ctx, a, "chat1"))
	assert.False(t, h.Rooms().In(a.ID, "chat1"))
}

func TestJoinChatWithoutMembershipCheck(t *testing.T) {
	h := NewHub(Options{Store: memStore(nil)})
	defer h.Close()
	c := connect(t, h, "c1")
	require.NoError(t, h.JoinChat(context.Background(), c, "anything"))
	assert.True(t, h.Rooms().In("c1", "anything"))
}

// ---- message router ----

func TestSendMessageReachesRoomOnce(t *testing.T) {
	store := memStore(map[string][]string{"chat1": {"A", "B", "C"}})
	h := newTestHub(t, store)

	a := joined(t, h, "ca", "A", "chat1")
	b := joined(t, h, "cb", "B", "chat1")
	c := joined(t, h, "cc", "C") // online but not in the room
	drain(a)

	msg, err := h.SendMessage(context.Background(), a, model.NewMessage{
		ChatID: "chat1", SenderID: "A", Content: "hi", TempID: "t-1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.MsgTypeText, msg.Type)

	for _, cl := range []*Client{a, b} {
		got := only(drain(cl), EventNewMessage)
		require.Len(t, got, 1, cl.ID)
		m := decodeData[model.Message](t, got[0])
		assert.Equal(t, msg.ID, m.ID)
		assert.Equal(t, "hi", m.Content)
		assert.Equal(t, "t-1", m.TempID)
	}
	assert.Empty(t, only(drain(c), EventNewMessage))

	chat, err := store.GetChat(context.Background(), "chat1")
	require.NoError(t, err)
	assert.True(t, chat.UpdatedAt.Equal(msg.CreatedAt))
}

func TestSendMessageFailureBroadcastsNothing(t *testing.T) {
	store := &failingStore{
		MemoryStore: memStore(map[string][]string{"chat1": {"A", "B"}}),
		createErr:   errs.ErrStorage.WrapMsg("db down"),
	}
	h := newTestHub(t, store)
	a := joined(t, h, "ca", "A", "chat1")
	b := joined(t, h, "cb", "B", "chat1")
	drain(a)

	_, err := h.SendMessage(context.Background(), a, model.NewMessage{ChatID: "chat1", SenderID: "A", Content: "hi"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrStorage))
	assert.Empty(t, drain(a))
	assert.Empty(t, drain(b))
}

func TestSendMessageRejected(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A"}}))
	ctx := context.Background()

	anon := connect(t, h, "c0")
	_, err := h.SendMessage(ctx, anon, model.NewMessage{ChatID: "chat1", Content: "x"})
	assert.True(t, errs.Is(err, errs.ErrNotJoined))

	a := joined(t, h, "ca", "A", "chat1")
	b := joined(t, h, "cb", "B")
	drain(a)

	tests := []struct {
		name string
		from *Client
		in   model.NewMessage
		want errs.CodeError
	}{
		{"spoofed sender", a, model.NewMessage{ChatID: "chat1", SenderID: "B", Content: "x"}, errs.ErrIdentityMismatch},
		{"not a participant", b, model.NewMessage{ChatID: "chat1", Content: "x"}, errs.ErrNoPermission},
		{"empty text", a, model.NewMessage{ChatID: "chat1", Content: "  "}, errs.ErrArgs},
		{"file without url", a, model.NewMessage{ChatID: "chat1", Type: model.MsgTypeFile}, errs.ErrArgs},
		{"unknown type", a, model.NewMessage{ChatID: "chat1", Type: "video", Content: "x"}, errs.ErrArgs},
		{"no chat", a, model.NewMessage{Content: "x"}, errs.ErrArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.SendMessage(ctx, tt.from, tt.in)
			assert.True(t, errs.Is(err, tt.want), "got %v", err)
			assert.Empty(t, drain(a))
		})
	}
}

func TestActivityFailureStillBroadcasts(t *testing.T) {
	store := &failingStore{
		MemoryStore: memStore(map[string][]string{"chat1": {"A", "B"}}),
		activityErr: errs.ErrStorage.WrapMsg("timeout"),
	}
	h := newTestHub(t, store)
	a := joined(t, h, "ca", "A", "chat1")
	b := joined(t, h, "cb", "B", "chat1")
	drain(a)

	_, err := h.SendMessage(context.Background(), a, model.NewMessage{ChatID: "chat1", Content: "hi"})
	require.NoError(t, err)
	assert.Len(t, only(drain(b), EventNewMessage), 1)
}

func TestDisconnectedConnectionStopsReceiving(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A", "B"}}))
	a := joined(t, h, "ca", "A", "chat1")
	b := joined(t, h, "cb", "B", "chat1")
	drain(a)

	h.Disconnect(b)
	assert.False(t, h.Rooms().In(b.ID, "chat1"))

	_, err := h.SendMessage(context.Background(), a, model.NewMessage{ChatID: "chat1", Content: "after"})
	require.NoError(t, err)

	// b's queue is closed and holds nothing sent after the disconnect
	for raw := range b.Send() {
		f, err := ParseFrame(raw)
		require.NoError(t, err)
		assert.NotEqual(t, EventNewMessage, f.Event)
	}
	assert.Len(t, only(drain(a), EventNewMessage), 1)
}

func TestSlowConsumerIsClosed(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A", "B"}}))
	a := joined(t, h, "ca", "A", "chat1")

	fc := &fakeConn{}
	slow := NewClient("slow", "", 2, fc)
	require.True(t, h.Connect(slow))
	require.NoError(t, h.Join(context.Background(), slow, "B"))
	require.NoError(t, h.JoinChat(context.Background(), slow, "chat1"))

	for i := 0; i < 3; i++ {
		_, err := h.SendMessage(context.Background(), a, model.NewMessage{ChatID: "chat1", Content: "x"})
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool { return fc.closed.Load() > 0 }, time.Second, 5*time.Millisecond)
}

// ---- typing ----

func TestTypingExcludesSender(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A", "B"}}))
	ctx := context.Background()
	a := joined(t, h, "ca", "A", "chat1")
	b := joined(t, h, "cb", "B", "chat1")
	drain(a)

	require.NoError(t, h.Typing(ctx, a, TypingPayload{ChatID: "chat1", UserID: "A", Username: "alice"}))
	require.NoError(t, h.StopTyping(ctx, a, StopTypingPayload{ChatID: "chat1", UserID: "A"}))

	assert.Empty(t, drain(a))
	fb := drain(b)
	require.Len(t, fb, 2)
	assert.Equal(t, EventUserTyping, fb[0].Event)
	assert.Equal(t, UserTyping{ChatID: "chat1", UserID: "A", Username: "alice"}, decodeData[UserTyping](t, fb[0]))
	assert.Equal(t, EventUserStoppedTyping, fb[1].Event)
	assert.Equal(t, "A", decodeData[string](t, fb[1]))
}

func TestTypingRejected(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A", "B"}}))
	ctx := context.Background()
	a := joined(t, h, "ca", "A")

	assert.True(t, errs.Is(h.Typing(ctx, a, TypingPayload{ChatID: "chat1"}), errs.ErrNotJoined))
	assert.True(t, errs.Is(h.Typing(ctx, a, TypingPayload{}), errs.ErrArgs))
	require.NoError(t, h.JoinChat(ctx, a, "chat1"))
	assert.True(t, errs.Is(h.StopTyping(ctx, a, StopTypingPayload{ChatID: "chat1", UserID: "B"}), errs.ErrIdentityMismatch))
}

// ---- reactions and new chats ----

func TestAddReactionBroadcastsList(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A", "B"}}))
	ctx := context.Background()
	a := joined(t, h, "ca", "A", "chat1")
	b := joined(t, h, "cb", "B", "chat1")
	drain(a)

	msg, err := h.SendMessage(ctx, a, model.NewMessage{ChatID: "chat1", Content: "hi"})
	require.NoError(t, err)
	drain(a)
	drain(b)

	require.NoError(t, h.AddReaction(ctx, b, ReactionPayload{ChatID: "chat1", MessageID: msg.ID, UserID: "B", Emoji: "👍"}))
	for _, cl := range []*Client{a, b} {
		got := only(drain(cl), EventReactionAdded)
		require.Len(t, got, 1)
		ra := decodeData[ReactionAdded](t, got[0])
		assert.Equal(t, msg.ID, ra.MessageID)
		require.Len(t, ra.Reactions, 1)
		assert.Equal(t, "👍", ra.Reactions[0].Emoji)
	}

	assert.True(t, errs.Is(h.AddReaction(ctx, a, ReactionPayload{MessageID: msg.ID}), errs.ErrArgs))
	assert.True(t, errs.Is(h.AddReaction(ctx, a, ReactionPayload{MessageID: "nope", Emoji: "x"}), errs.ErrRecordNotFound))
}

func TestCreateChatNotifiesOnlineParticipants(t *testing.T) {
	h := newTestHub(t, memStore(nil))
	a := joined(t, h, "ca", "A")
	b := joined(t, h, "cb", "B")
	c := joined(t, h, "cc", "C")
	drain(a)
	drain(b)

	chat, err := h.CreateChat(context.Background(), model.NewChat{CreatorID: "A", Participants: []string{"B", "offline"}})
	require.NoError(t, err)

	for _, cl := range []*Client{a, b} {
		got := only(drain(cl), EventNewChat)
		require.Len(t, got, 1)
		assert.Equal(t, chat.ID, decodeData[model.Chat](t, got[0]).ID)
	}
	assert.Empty(t, only(drain(c), EventNewChat))
}

// ---- lifecycle ----

func TestEventsPublishedAndFlushedOnClose(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewHub(Options{Store: memStore(map[string][]string{"chat1": {"A"}}), Publisher: pub})
	a := joined(t, h, "ca", "A", "chat1")
	_, err := h.SendMessage(context.Background(), a, model.NewMessage{ChatID: "chat1", Content: "hi"})
	require.NoError(t, err)

	h.Close()
	assert.Equal(t, []string{events.PresenceOnline, events.MessageCreated}, pub.types())
	assert.False(t, h.Connect(NewClient("late", "", 1, &fakeConn{})))
}

func TestCloseClosesTransports(t *testing.T) {
	h := NewHub(Options{Store: memStore(nil)})
	fc := &fakeConn{}
	require.True(t, h.Connect(NewClient("c1", "", 1, fc)))
	h.Close()
	h.Close()
	assert.Equal(t, int32(1), fc.closed.Load())
}

func TestStats(t *testing.T) {
	h := newTestHub(t, memStore(map[string][]string{"chat1": {"A"}}))
	joined(t, h, "ca", "A", "chat1")
	connect(t, h, "idle")
	assert.Equal(t, Stats{Connections: 2, OnlineUsers: 1, Rooms: 1}, h.Stats())
}

func TestDispatcher(t *testing.T) {
	h := newTestHub(t, memStore(nil))
	c := connect(t, h, "c1")
	d := NewDispatcher()
	d.Register(HandlerFunc("boom", func(*ChatContext, *Client, json.RawMessage) error { panic("bad") }))
	cc := &ChatContext{Context: context.Background(), Hub: h}

	err := d.Dispatch(cc, c, &Frame{Event: "boom"})
	assert.Equal(t, errs.ServerInternalError, errs.Code(err))

	err = d.Dispatch(cc, c, &Frame{Event: "nope"})
	assert.True(t, errs.Is(err, errs.ErrUnsupportedEvent))
	assert.Equal(t, []string{"boom"}, d.Events())
}
