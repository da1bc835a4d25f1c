package security

import (
	"net/http"
	"strings"

	"PPChat/tools/errs"
	"PPChat/tools/security"

	"github.com/gin-gonic/gin"
)

// 中间件写入 gin.Context 的 key
const (
	CtxUserIDKey = "userId"
	CtxTokenKey  = "authorization"
)

type Options struct {
	JWT        security.Options
	QueryToken string // 默认 "token"；浏览器 websocket 握手无法设置 header
	// Optional 允许无 token 的请求通过（无身份）
	Optional bool
}

// ExtractToken 先读 Authorization 头，再读 query 参数
func ExtractToken(r *http.Request, queryKey string) string {
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			return strings.TrimSpace(authz[7:])
		}
	}
	if queryKey == "" {
		queryKey = "token"
	}
	return strings.TrimSpace(r.URL.Query().Get(queryKey))
}

func Middleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.Request, opts.QueryToken)
		if token == "" {
			if opts.Optional {
				c.Next()
				return
			}
			abort(c, errs.ErrIdentityMismatch.WrapMsg("missing token"))
			return
		}
		claims, err := security.Verify(opts.JWT, token)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(CtxTokenKey, token)
		c.Set(CtxUserIDKey, claims.Subject)
		c.Next()
	}
}

// UserID 返回已验证的用户，无 token 时为空
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": errs.Code(err), "error": errs.Message(err)})
}
