// internal/api/respond.go
package api

import (
	"fmt"
	"net/http"

	"haptic-trainer/internal/common/errors"

	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// httpStatus maps internal error codes to transport statuses. Codes the API
// never produces fall through to 500.
func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInputValidationFailed,
		errors.ErrCodeTrajectoryInvalid,
		errors.ErrCodeCatalogInvalid:
		return http.StatusBadRequest
	case "AUTHENTICATION_ERROR":
		return http.StatusUnauthorized
	case "AUTHORIZATION_ERROR":
		return http.StatusForbidden
	case errors.ErrCodeSessionNotFound,
		errors.ErrCodeTrajectoryNotFound,
		errors.ErrCodeSkillScoreNotFound,
		errors.ErrCodeBaselineNotFound,
		"RESOURCE_NOT_FOUND":
		return http.StatusNotFound
	case errors.ErrCodeDeviceBusy,
		errors.ErrCodeSessionStateInvalid:
		return http.StatusConflict
	case errors.ErrCodeQueryTimeout,
		errors.ErrCodeSearchTimeout,
		errors.ErrCodeDeviceTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a StandardError in the API envelope. Non-standard
// errors come out as a plain 500 without leaking their text.
func writeError(c echo.Context, err error) error {
	std, ok := err.(*errors.StandardError)
	if !ok {
		return writeEnvelope(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return c.JSON(httpStatus(std.Code), errorResponse{Error: errorBody{
		Code:    string(std.Code),
		Message: std.Message,
		Details: std.Details,
	}})
}

func writeEnvelope(c echo.Context, status int, code string, message interface{}) error {
	return c.JSON(status, errorResponse{Error: errorBody{
		Code:    code,
		Message: fmt.Sprintf("%v", message),
	}})
}
