package middleware

import (
	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
}

// Router 注册路由，需要鉴权的路由前加 auth
type Router struct {
	Auth gin.HandlerFunc // nil => 不鉴权
}

func (rt Router) handlers(h gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	if opt.IsAuth && rt.Auth != nil {
		return []gin.HandlerFunc{rt.Auth, h}
	}
	return []gin.HandlerFunc{h}
}

func (rt Router) POST(r gin.IRoutes, path string, h gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, rt.handlers(h, opt)...)
}

func (rt Router) GET(r gin.IRoutes, path string, h gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, rt.handlers(h, opt)...)
}
