package chat

import (
	"sync"

	"PPChat/logger"

	"go.uber.org/zap"
)

// ConnManager 管理在线连接及其发送队列。
//
// 入队持读锁，关闭队列持写锁：已移除的连接不会再被写入
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]*Client // connID -> client
}

func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]*Client)}
}

func (m *ConnManager) Add(c *Client) {
	m.mu.Lock()
	m.conns[c.ID] = c
	m.mu.Unlock()
}

func (m *ConnManager) Get(id string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[id]
	return c, ok
}

// Remove 移除连接并关闭其发送队列，剩余数据由 writer 发完
func (m *ConnManager) Remove(id string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[id]
	if !ok {
		return nil, false
	}
	delete(m.conns, id)
	close(c.send)
	return c, true
}

// Deliver 非阻塞地向单个连接入队。队列满说明消费太慢：
// 直接关闭底层连接，走正常的断线清理
func (m *ConnManager) Deliver(id string, data []byte) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deliverLocked(id, data)
}

// DeliverMany 向每个 id 投递同一份字节，返回成功入队的数量
func (m *ConnManager) DeliverMany(ids []string, data []byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, id := range ids {
		if m.deliverLocked(id, data) {
			n++
		}
	}
	return n
}

func (m *ConnManager) deliverLocked(id string, data []byte) bool {
	c, ok := m.conns[id]
	if !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		logger.Warn("slow consumer, closing connection",
			zap.String("connId", id), zap.String("userId", c.UserID()), zap.Int("queue", cap(c.send)))
		go c.Close()
		return false
	}
}

func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// CloseAll 关闭所有底层连接，各自的读循环随后完成断线处理
func (m *ConnManager) CloseAll() {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.conns))
	for _, c := range m.conns {
		clients = append(clients, c)
	}
	m.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}
