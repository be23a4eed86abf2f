package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pgmhq/pgm-backend/internal/health"
)

// HealthHandler serves GET /healthz: 200 when every dependency probe passes,
// 503 otherwise.
func HealthHandler(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.Check(c.Request.Context())
		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
