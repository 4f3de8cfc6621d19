package middleware

import (
	"github.com/gin-gonic/gin"
)

// BasicAuth protects the API when credentials are configured and lets every
// request through otherwise.
func BasicAuth(username, password string) gin.HandlerFunc {
	if username == "" || password == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuth(gin.Accounts{username: password})
}
