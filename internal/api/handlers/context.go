package handlers

import "github.com/gin-gonic/gin"

const requestIDKey = "request_id"

// requestID retrieves the request ID stamped by
// middleware.RequestContextMiddleware, falling back to "-" so log lines
// never carry an empty field.
func requestID(c *gin.Context) string {
	if v, exists := c.Get(requestIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return "-"
}
