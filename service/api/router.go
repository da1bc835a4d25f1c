package api

import (
	"PPChat/middleware"
	midsec "PPChat/middleware/security"
	"PPChat/service/chat"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Hub     *chat.Hub
	WS      *chat.Server
	Origins *middleware.OriginPolicy
	WSPath  string // default "/ws"
	// Auth guards the REST routes; nil leaves them open.
	Auth *midsec.Options
}

// NewRouter builds the HTTP surface: the event channel, health, presence and chats.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	mids := middleware.NewManager(middleware.Recovery(), middleware.Logger())
	if d.Origins != nil {
		mids.Add(d.Origins.CORS())
	}
	mids.Apply(engine)

	rt := middleware.Router{}
	if d.Auth != nil {
		rt.Auth = midsec.Middleware(*d.Auth)
	}
	h := &handler{hub: d.Hub, authOn: d.Auth != nil}

	rt.GET(engine, "/health", h.health, middleware.RouteOpt{})
	// the websocket handshake verifies its own token
	wsPath := d.WSPath
	if wsPath == "" {
		wsPath = "/ws"
	}
	rt.GET(engine, wsPath, d.WS.HandleWS, middleware.RouteOpt{})

	g := engine.Group("/api")
	rt.GET(g, "/presence", h.online, middleware.RouteOpt{IsAuth: true})
	rt.GET(g, "/presence/:userId", h.presence, middleware.RouteOpt{IsAuth: true})
	rt.POST(g, "/chats", h.createChat, middleware.RouteOpt{IsAuth: true})
	rt.GET(g, "/chats/:id/messages", h.messages, middleware.RouteOpt{IsAuth: true})
	return engine
}
