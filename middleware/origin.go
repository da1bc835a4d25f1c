package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginPolicy decides which browser origins may call the API and open the event channel.
type OriginPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			p.allowAll = true
		}
		if o != "" {
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether origin may connect. Requests without an Origin header
// are not browser requests and are let through.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}
	_, ok := p.allowed[strings.TrimRight(origin, "/")]
	return ok
}

// CheckOrigin matches websocket.Upgrader.CheckOrigin.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	return p.Allowed(r.Header.Get("Origin"))
}

// CORS answers preflight requests and stamps the allow headers for permitted origins.
func (p *OriginPolicy) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if !p.Allowed(origin) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
