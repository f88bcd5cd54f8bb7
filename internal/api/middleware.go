// internal/api/middleware.go
package api

import (
	"net/http"
	"strings"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

// requireAuth verifies the bearer token and stashes the principal on the
// request context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := s.deps.Tokens.Verify(bearerToken(c.Request()))
		if err != nil {
			return writeError(c, err)
		}
		c.Set(principalKey, principal)
		return next(c)
	}
}

// requireControl additionally demands an instructor or service principal.
func (s *Server) requireControl(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal := currentPrincipal(c)
		if principal == nil || !principal.CanControlSessions() {
			return writeError(c, errors.NewAuthorizationError("instructor or service role required"))
		}
		return next(c)
	}
}

func currentPrincipal(c echo.Context) *models.Principal {
	principal, _ := c.Get(principalKey).(*models.Principal)
	return principal
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
