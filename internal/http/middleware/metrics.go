package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storyboard-backend/internal/observability"
)

// Metrics observes every matched route except SSE streams and the scrape endpoint.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if m == nil || route == "/metrics" || strings.HasPrefix(route, "/api/sse/") {
			c.Next()
			return
		}
		done := m.TrackAPI(c.Request.Method, route)
		c.Next()
		done(strconv.Itoa(c.Writer.Status()))
	}
}
