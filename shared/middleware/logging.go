package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingMiddleware logs one line per request with status, latency and
// trace ID, using the stdlib "log" package exactly like the rest of this
// codebase — every main.go already calls this; it previously had no
// implementation to call.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		log.Printf("%s %s %d %s trace=%s",
			c.Request.Method, path, c.Writer.Status(), time.Since(start), traceIDFrom(c))
	}
}
