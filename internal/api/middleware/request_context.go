package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bank-api/internal/pkg/logging"
)

const requestIDContextKey = "request_id"

// RequestContextMiddleware stamps every request with a request ID (request
// scoped, generated fresh so it never needs a client-supplied header) and
// logs start/completion the way the teacher's request-scoped middleware
// does, minus the per-request database/event-broker handles: the ledger's
// handlers get their dependencies from the closure-captured
// HandlerDependencies instead.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set(requestIDContextKey, id)
		start := time.Now()

		logging.Info("request started", map[string]interface{}{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		})

		c.Next()

		logging.Info("request completed", map[string]interface{}{
			"request_id":  id,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}
