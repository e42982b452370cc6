package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mission-gateway/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes every request by route template and caller role. Paths that
// match no route share one label so probing clients cannot grow the series set.
// Routes listed in skip (probes, the scrape endpoint) are not observed.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		if route == "" {
			route = unmatchedRoute
		}
		var role string
		if session := SessionFromContext(c); session != nil {
			role = string(session.Role)
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), role, time.Since(start))
	}
}
