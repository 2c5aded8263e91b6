package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/pkg/ctxutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Server errors log at error level,
// client errors at warn and the rest at debug.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if log == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if user := c.Param("username"); user != "" {
			kv = append(kv, "username", user)
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			kv = append(kv, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if errs := c.Errors.String(); errs != "" {
			kv = append(kv, "errors", errs)
		}

		logAt := log.Debug
		if status >= 500 {
			logAt = log.Error
		} else if status >= 400 {
			logAt = log.Warn
		}
		logAt("HTTP request", kv...)
	}
}
