// internal/api/analytics.go
package api

import (
	"net/http"
	"strconv"

	"haptic-trainer/internal/analytics"
	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/labstack/echo/v4"
)

// handleAnalyticsSearch fronts the Elasticsearch queries. Parameter
// validation beyond type conversion lives with the query builder.
func (s *Server) handleAnalyticsSearch(c echo.Context) error {
	params := analytics.SearchParams{
		Type:      models.QueryType(c.QueryParam("type")),
		TraineeID: c.QueryParam("traineeId"),
		Task:      c.QueryParam("task"),
		Metric:    c.QueryParam("metric"),
	}

	if raw := c.QueryParam("interval"); raw != "" {
		interval, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return writeError(c, errors.NewInputValidationFailedError("interval must be a number"))
		}
		params.Interval = interval
	}

	var err error
	if params.From, err = intParam(c, "from", 0); err != nil {
		return writeError(c, err)
	}
	if params.Size, err = intParam(c, "size", 0); err != nil {
		return writeError(c, err)
	}

	result, err := s.deps.Search.Search(c.Request().Context(), params)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
