package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"PPChat/logger"
	midsec "PPChat/middleware/security"
	"PPChat/tools/errs"
	"PPChat/tools/safe"
	"PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandleWS 事件通道的 gin handler
func (s *Server) HandleWS(c *gin.Context) {
	s.ServeWS(c.Writer, c.Request)
}

// ServeWS 校验握手并升级，运行该连接直到关闭
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := logger.Named("ws")

	var authUser string
	if s.cfg.Auth != nil {
		token := midsec.ExtractToken(r, s.cfg.QueryToken)
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		claims, err := security.Verify(*s.cfg.Auth, token)
		if err != nil {
			log.Info("handshake rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
			http.Error(w, errs.Message(err), http.StatusUnauthorized)
			return
		}
		authUser = claims.Subject
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// 非 websocket 请求或握手失败，Upgrade 已经回复
		log.Info("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(s.ids.NextString(), authUser, s.cfg.SendQueue, ws)
	client.RemoteAddr = r.RemoteAddr
	if !s.hub.Connect(client) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.WriteWait))
		_ = ws.Close()
		return
	}

	s.active.Add(1)
	defer s.active.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	written := make(chan struct{})
	safe.Go("ws-write-"+client.ID, func() {
		defer close(written)
		s.writePump(ws, client)
	})

	s.readLoop(ctx, ws, client)

	// 先退出房间和注册表（同时关闭发送队列），writer 随后发 close 帧并关闭 socket
	s.hub.Disconnect(client)
	<-written
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, client *Client) {
	log := logger.Named("ws")
	ws.SetReadLimit(s.cfg.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	cc := &ChatContext{Context: ctx, Hub: s.hub}
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				log.Debug("peer closed", zap.String("connId", client.ID))
			case errors.As(err, &ne) && ne.Timeout():
				log.Info("read timeout", zap.String("connId", client.ID), zap.String("userId", client.UserID()))
			default:
				log.Debug("read error", zap.String("connId", client.ID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, err := ParseFrame(data)
		if err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			log.Info("bad frame", zap.String("connId", client.ID), zap.ByteString("sample", sample), zap.Error(err))
			s.hub.SendError(client, errs.Message(err))
			continue
		}

		// 同一连接的事件按到达顺序执行，不阻塞其他连接
		if err := s.disp.Dispatch(cc, client, f); err != nil {
			log.Info("event failed",
				zap.String("event", f.Event), zap.String("connId", client.ID),
				zap.String("userId", client.UserID()), zap.Error(err))
			s.hub.SendError(client, errs.Message(err))
		}
	}
}

func (s *Server) writePump(ws *websocket.Conn, client *Client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Send():
			_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.Close()
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		}
	}
}
