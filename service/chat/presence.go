package chat

import (
	"context"
	"strings"
	"time"

	"PPChat/service/events"
	"PPChat/tools/errs"

	"go.uber.org/zap"
)

// Join 把 c 绑定到 userID 并登记为该用户的连接。
//
// c 收到完整在线列表 onlineUsers，其他已登记连接收到 userOnline。
// 两者都在 presenceMu 下入队，任何连接都不会先于快照看到增量
func (h *Hub) Join(ctx context.Context, c *Client, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errs.ErrArgs.WrapMsg("userId is required")
	}
	if err := c.bindUser(userID); err != nil {
		return err
	}

	delta, err := Encode(EventUserOnline, userID)
	if err != nil {
		return err
	}

	h.presenceMu.Lock()
	if _, ok := h.conns.Get(c.ID); !ok {
		h.presenceMu.Unlock()
		return errs.ErrNotJoined.WrapMsg("connection is closed")
	}
	prev, had := h.registry.ConnOf(userID)
	online := h.registry.Register(c.ID, userID)
	snapshot, err := Encode(EventOnlineUsers, online)
	if err == nil {
		h.conns.Deliver(c.ID, snapshot)
		h.conns.DeliverMany(h.registry.conns(c.ID), delta)
	}
	h.presenceMu.Unlock()
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.String("connId", c.ID), zap.String("userId", userID), zap.Int("online", len(online))}
	if had && prev != c.ID {
		fields = append(fields, zap.String("superseded", prev))
	}
	h.log.Info("join", fields...)

	h.mirrorOnline(ctx, userID, c.ID)
	h.publish(events.New(events.PresenceOnline, "", userID, map[string]string{"connId": c.ID}))
	return nil
}

// unregister 断线时调用。只有 c 仍是该用户登记的连接时才广播 userOffline；
// 被挤掉的旧连接不改变在线状态
func (h *Hub) unregister(c *Client) {
	h.presenceMu.Lock()
	userID, removed := h.registry.Unregister(c.ID)
	if removed {
		if frame, err := Encode(EventUserOffline, userID); err == nil {
			h.conns.DeliverMany(h.registry.conns(""), frame)
		}
	}
	h.presenceMu.Unlock()

	if !removed {
		return
	}
	h.log.Info("offline", zap.String("connId", c.ID), zap.String("userId", userID))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.mirrorOffline(ctx, userID, c.ID)
	h.publish(events.New(events.PresenceOffline, "", userID, map[string]string{"connId": c.ID}))
}

func (h *Hub) IsOnline(userID string) bool { return h.registry.IsOnline(userID) }

// Online 返回排序后的在线用户
func (h *Hub) Online() []string { return h.registry.Online() }

func (h *Hub) mirrorOnline(ctx context.Context, userID, connID string) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.mirror.Online(ctx, userID, connID); err != nil {
		h.log.Warn("presence mirror online failed", zap.String("userId", userID), zap.Error(err))
	}
}

func (h *Hub) mirrorOffline(ctx context.Context, userID, connID string) {
	if h.mirror == nil {
		return
	}
	if err := h.mirror.Offline(ctx, userID, connID); err != nil {
		h.log.Warn("presence mirror offline failed", zap.String("userId", userID), zap.Error(err))
	}
}
