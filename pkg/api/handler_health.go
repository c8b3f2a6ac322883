package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/matter-crawler/pkg/database"
	"github.com/codeready-toolchain/matter-crawler/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /health, returning a minimal, safe response
// suitable for unauthenticated access. Only the crawler's own components
// (database, session manager) are checked; the target site is excluded so a
// temporary site outage never flips this process's own health to unhealthy.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if _, err := database.Health(reqCtx, s.dbClient.DB()); err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.sessionMgr != nil {
		checks["session_manager"] = HealthCheck{Status: healthStatusHealthy}
	} else {
		status = healthStatusDegraded
		checks["session_manager"] = HealthCheck{Status: healthStatusDegraded, Message: "not wired"}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:  status,
		Version: version.Full(),
		Checks:  checks,
	})
}
