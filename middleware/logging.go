package middleware

import (
	"time"

	"PPChat/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger 每个请求一行 zap 日志
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		l := logger.L().Named("http")
		if c.Writer.Status() >= 500 {
			l.Error("request", fields...)
			return
		}
		l.Debug("request", fields...)
	}
}

// Recovery handler panic 时返回 500 并记日志
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.L().Error("http handler panic",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"))
		c.AbortWithStatusJSON(500, gin.H{"error": "internal server error"})
	})
}
