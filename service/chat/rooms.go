package chat

import (
	"sort"
	"sync"
)

type set map[string]struct{}

// Rooms 记录每个会话房间里的连接。双向索引：断线时无需全表扫描即可退出所有房间
type Rooms struct {
	mu     sync.RWMutex
	byChat map[string]set // chatID -> connIDs
	byConn map[string]set // connID -> chatIDs
}

func NewRooms() *Rooms {
	return &Rooms{byChat: make(map[string]set), byConn: make(map[string]set)}
}

// Join 把 connID 加入 chatID 房间；已在房间内返回 false
func (r *Rooms) Join(connID, chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.byChat[chatID]
	if members == nil {
		members = make(set)
		r.byChat[chatID] = members
	}
	if _, ok := members[connID]; ok {
		return false
	}
	members[connID] = struct{}{}
	chats := r.byConn[connID]
	if chats == nil {
		chats = make(set)
		r.byConn[connID] = chats
	}
	chats[chatID] = struct{}{}
	return true
}

func (r *Rooms) Leave(connID, chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID, chatID)
}

func (r *Rooms) leaveLocked(connID, chatID string) bool {
	members := r.byChat[chatID]
	if _, ok := members[connID]; !ok {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.byChat, chatID)
	}
	if chats := r.byConn[connID]; chats != nil {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// LeaveAll 把 connID 移出所有房间，返回退出的会话
func (r *Rooms) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	chats := r.byConn[connID]
	out := make([]string, 0, len(chats))
	for chatID := range chats {
		out = append(out, chatID)
	}
	for _, chatID := range out {
		r.leaveLocked(connID, chatID)
	}
	sort.Strings(out)
	return out
}

// Members 返回房间内连接的副本
func (r *Rooms) Members(chatID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.byChat[chatID]
	out := make([]string, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

func (r *Rooms) In(connID, chatID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byChat[chatID][connID]
	return ok
}

// ChatsOf 返回 connID 所在的房间（已排序）
func (r *Rooms) ChatsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byConn[connID]))
	for c := range r.byConn[connID] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Count 非空房间数
func (r *Rooms) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChat)
}
