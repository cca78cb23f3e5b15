package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/telemetry"
)

// noRoute labels requests that matched no route, so unknown URLs do not
// create new series.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request, labelled with the route
// template from c.FullPath(). Register it after gin.Recovery so statuses
// written by the recovery handler are counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
