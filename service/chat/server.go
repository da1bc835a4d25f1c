package chat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"PPChat/tools/ids"
	"PPChat/tools/security"

	"github.com/gorilla/websocket"
)

// ===== 配置 =====

type ServerConfig struct {
	SendQueue    int
	ReadLimit    int64
	PongWait     time.Duration
	PingInterval time.Duration
	WriteWait    time.Duration
	CheckOrigin  func(r *http.Request) bool
	// Auth 开启握手鉴权；nil 则接受匿名连接
	Auth       *security.Options
	QueryToken string
}

func (c *ServerConfig) norm() {
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.QueryToken == "" {
		c.QueryToken = "token"
	}
}

// Server 把 websocket 连接接入 hub：每连接一个读协程、一个写协程
type Server struct {
	hub      *Hub
	disp     *Dispatcher
	cfg      ServerConfig
	upgrader websocket.Upgrader
	ids      *ids.Generator

	active sync.WaitGroup
}

func NewServer(hub *Hub, disp *Dispatcher, cfg ServerConfig, gen *ids.Generator) *Server {
	cfg.norm()
	if gen == nil {
		gen = ids.NewGenerator(1)
	}
	return &Server{
		hub:  hub,
		disp: disp,
		cfg:  cfg,
		ids:  gen,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

func (s *Server) Hub() *Hub         { return s.hub }
func (s *Server) Disp() *Dispatcher { return s.disp }

// Shutdown 关闭 hub 并等待所有连接协程退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
