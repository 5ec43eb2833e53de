package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records latency and status per route template. Unrouted requests share one
// label so scanners cannot blow up series cardinality; the scrape endpoint itself is not counted.
func Metrics(metricsSvc *service.MetricsService, scrapePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == scrapePath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
