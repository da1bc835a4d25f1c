package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

// Manager 在建路由前收集全局中间件
type Manager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager(h ...gin.HandlerFunc) *Manager {
	return &Manager{mids: append([]gin.HandlerFunc(nil), h...)}
}

// Add 追加到中间件链末尾
func (m *Manager) Add(h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h)
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Apply 把当前中间件链挂到 r 上
func (m *Manager) Apply(r gin.IRoutes) {
	m.mu.RLock()
	handlers := append([]gin.HandlerFunc{}, m.mids...)
	m.mu.RUnlock()
	if len(handlers) > 0 {
		r.Use(handlers...)
	}
}
