package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Healthz serves GET /healthz: liveness only, no database round trip. The
// scheduler and HTTP server run in the same process, so a 200 here means
// the process is up, not that it has working database connectivity.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
