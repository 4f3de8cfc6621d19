package middleware

import (
	"time"

	"emagsync/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records every request by its route template, so /runs/:id is one
// series however many runs exist.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}
