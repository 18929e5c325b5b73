package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
)

// Middleware tags each request with a request id, exposes a request logger on both
// the gin context and the request context, and logs one summary line per request.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case len(c.Errors) > 0:
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
		case c.Writer.Status() >= 500:
			reqLogger.Error("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
