// internal/api/tokens.go
package api

import (
	"crypto/subtle"
	"net/http"

	"haptic-trainer/internal/common/errors"

	"github.com/labstack/echo/v4"
)

type tokenRequest struct {
	APIKey  string `json:"apiKey"`
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
}

// handleIssueToken exchanges the shared API key for a bearer JWT. With no
// key configured the endpoint is closed.
func (s *Server) handleIssueToken(c echo.Context) error {
	if s.apiKey == "" {
		return writeError(c, errors.NewAuthenticationError("token minting is not configured"))
	}

	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewInputValidationFailedError("malformed token request"))
	}
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		return writeError(c, errors.NewAuthenticationError("invalid api key"))
	}

	token, err := s.deps.Tokens.Issue(req.Subject, req.Name, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, token)
}
