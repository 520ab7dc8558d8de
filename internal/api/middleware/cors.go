package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultAllowedOrigins are the local development front ends.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// OriginAllowed reports whether origin is in allowed.
func OriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if origin == a {
			return true
		}
	}
	return false
}

// CORS adds cross-origin headers for the allowed origins and answers preflight requests.
func CORS(allowed ...string) gin.HandlerFunc {
	if len(allowed) == 0 {
		allowed = DefaultAllowedOrigins
	}
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); OriginAllowed(origin, allowed) {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
