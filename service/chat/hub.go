package chat

import (
	"context"
	"sync"
	"time"

	"PPChat/logger"
	"PPChat/service/events"
	"PPChat/service/storage"
	"PPChat/tools/safe"

	"go.uber.org/zap"
)

// PresenceMirror 在 hub 完成在线状态变更后接收同一变更（如写入 redis）
type PresenceMirror interface {
	Online(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) error
}

type Options struct {
	Store     storage.Store
	Publisher events.Publisher // nil => events.Nop
	Presence  PresenceMirror   // nil => 不做镜像
	// RequireMembership 为 true 时 joinChat 会校验存储中的成员列表
	RequireMembership bool
	// StoreTimeout 处理单个事件时每次存储调用的超时
	StoreTimeout time.Duration
}

// Hub 持有连接注册表、房间与在线连接；服务启动时创建，Close 时销毁
type Hub struct {
	registry *Registry
	rooms    *Rooms
	conns    *ConnManager

	store     storage.Store
	publisher events.Publisher
	mirror    PresenceMirror
	opts      Options
	log       *zap.Logger

	// presenceMu 保证注册表变更与其产生的在线帧顺序一致：
	// 新加入者先收到快照，之后才是增量
	presenceMu sync.Mutex

	eventQ     chan events.Event
	publishers sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

const eventQueueSize = 1024

func NewHub(opts Options) *Hub {
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	h := &Hub{
		registry:  NewRegistry(),
		rooms:     NewRooms(),
		conns:     NewConnManager(),
		store:     opts.Store,
		publisher: opts.Publisher,
		mirror:    opts.Presence,
		opts:      opts,
		log:       logger.Named("hub"),
		eventQ:    make(chan events.Event, eventQueueSize),
		closed:    make(chan struct{}),
	}
	h.publishers.Add(1)
	safe.Go("hub-events", h.runPublisher)
	return h
}

func (h *Hub) Registry() *Registry { return h.registry }
func (h *Hub) Rooms() *Rooms       { return h.rooms }
func (h *Hub) Store() storage.Store {
	return h.store
}

// Connect 接入刚完成握手的连接；join 之前不会收到任何帧
func (h *Hub) Connect(c *Client) bool {
	select {
	case <-h.closed:
		return false
	default:
	}
	h.conns.Add(c)
	h.log.Debug("connect", zap.String("connId", c.ID), zap.String("remote", c.RemoteAddr))
	return true
}

// Disconnect 先把 c 移出所有房间和连接表，再处理在线状态，之后它不会再收到任何帧
func (h *Hub) Disconnect(c *Client) {
	left := h.rooms.LeaveAll(c.ID)
	if _, ok := h.conns.Remove(c.ID); !ok {
		return
	}
	h.log.Info("disconnect", zap.String("connId", c.ID), zap.String("userId", c.UserID()), zap.Strings("rooms", left))
	h.unregister(c)
}

// Close 断开所有连接，并把队列中的事件刷给 publisher（可重复调用）
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)
		h.conns.CloseAll()
		h.publishers.Wait()
		h.log.Info("hub closed")
	})
}

type Stats struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"onlineUsers"`
	Rooms       int `json:"rooms"`
}

func (h *Hub) Stats() Stats {
	return Stats{
		Connections: h.conns.Len(),
		OnlineUsers: h.registry.Len(),
		Rooms:       h.rooms.Count(),
	}
}

// SendError 只向 c 发送 "error" 事件
func (h *Hub) SendError(c *Client, message string) {
	frame, err := Encode(EventError, message)
	if err != nil {
		return
	}
	h.conns.Deliver(c.ID, frame)
}

// broadcastRoom 向 chatID 房间内除 skip 外的所有连接投递 frame
func (h *Hub) broadcastRoom(chatID string, frame []byte, skip string) int {
	members := h.rooms.Members(chatID)
	if skip != "" {
		out := members[:0]
		for _, id := range members {
			if id != skip {
				out = append(out, id)
			}
		}
		members = out
	}
	return h.conns.DeliverMany(members, frame)
}

func (h *Hub) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.opts.StoreTimeout)
}

// publish 把 e 放入发布队列，不阻塞投递；队列满时丢弃并记日志
func (h *Hub) publish(e events.Event) {
	select {
	case <-h.closed:
		return
	default:
	}
	select {
	case h.eventQ <- e:
	default:
		h.log.Warn("event queue full, dropping event", zap.String("type", e.Type), zap.String("key", e.Key()))
	}
}

// runPublisher 按顺序逐条发布队列中的事件
func (h *Hub) runPublisher() {
	defer h.publishers.Done()
	for {
		select {
		case e := <-h.eventQ:
			h.publishOne(e)
		case <-h.closed:
			for {
				select {
				case e := <-h.eventQ:
					h.publishOne(e)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) publishOne(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := safe.Call(func() error { return h.publisher.Publish(ctx, e) }); err != nil {
		h.log.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}
