package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/school-system/grade-engine/internal/services"
)

// Metrics records request count and latency per route template.
func Metrics(m *services.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
