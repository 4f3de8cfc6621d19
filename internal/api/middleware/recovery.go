package middleware

import (
	"net/http"
	"runtime/debug"

	"emagsync/internal/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a 500 JSON error and logs it with the
// request it happened on. gin itself aborts without a response when the
// client has already hung up.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered interface{}) {
		reqLog := log.With("method", c.Request.Method).With("path", c.Request.URL.Path)
		reqLog.Error("Panic in handler: %v", recovered)
		reqLog.Debug("Panic stack:\n%s", debug.Stack())

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
