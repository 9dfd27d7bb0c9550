package httpapi

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// logRequest prints one [HTTP]-prefixed access log line, matching the
// ambient-stack rule (SPEC_FULL.md's AMBIENT STACK: plain log.Printf with a
// [COMPONENT] prefix, no structured logging library).
func logRequest(c *gin.Context, latency time.Duration) {
	requestID, _ := c.Get(ContextKeyRequestID)
	log.Printf("[HTTP] %s %s %d %s request_id=%v",
		c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latency, requestID)
}
