// internal/api/health.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const probeTimeout = 5 * time.Second

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz runs every registered dependency probe. One failure makes
// the daemon not ready.
func (s *Server) handleReadyz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	for name, probe := range s.deps.Probes {
		if err := probe(ctx); err != nil {
			s.log.Warn("Readiness probe failed", map[string]interface{}{
				"probe": name,
				"error": err.Error(),
			})
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"failed": name,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
