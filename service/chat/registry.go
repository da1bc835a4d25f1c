package chat

import (
	"sort"
	"sync"
)

// Registry 记录每个在线用户当前唯一的连接（后登录者覆盖）
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]string)}
}

// Register 把 connID 记为 userID 的当前连接（覆盖旧连接），返回变更后的在线用户
func (r *Registry) Register(connID, userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = connID
	return r.onlineLocked()
}

// Unregister 仅删除值等于 connID 的记录；被挤掉的旧连接找不到记录，用户保持在线
func (r *Registry) Unregister(connID string) (userID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for u, c := range r.byUser {
		if c == connID {
			delete(r.byUser, u)
			return u, true
		}
	}
	return "", false
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

// ConnOf 返回 userID 当前登记的连接
func (r *Registry) ConnOf(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// Online 返回排序后的在线用户
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

func (r *Registry) onlineLocked() []string {
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Snapshot 复制 userID -> connID 表
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.byUser))
	for u, c := range r.byUser {
		out[u] = c
	}
	return out
}

// conns 返回除 skip 外所有已登记的连接
func (r *Registry) conns(skip string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for _, c := range r.byUser {
		if c != skip {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
