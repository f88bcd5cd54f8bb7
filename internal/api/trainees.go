// internal/api/trainees.go
package api

import (
	"net/http"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleCreateTrainee(c echo.Context) error {
	var trainee models.Trainee
	if err := c.Bind(&trainee); err != nil {
		return writeError(c, errors.NewInputValidationFailedError("malformed trainee"))
	}
	if trainee.Email == "" || trainee.Name == "" {
		return writeError(c, errors.NewInputValidationFailedError("email and name are required"))
	}
	if trainee.ID == "" {
		trainee.ID = uuid.NewString()
	}

	if err := s.deps.Trainees.Create(c.Request().Context(), &trainee); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, trainee)
}

// handleLookupTrainee resolves a trainee by login email, for clients that
// have the badge email but not the id.
func (s *Server) handleLookupTrainee(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return writeError(c, errors.NewInputValidationFailedError("email query parameter is required"))
	}

	trainee, err := s.deps.Trainees.FindByEmail(c.Request().Context(), email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, trainee)
}

func (s *Server) handleGetTrainee(c echo.Context) error {
	trainee, err := s.deps.Trainees.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, trainee)
}

// handleUpdateTrainee replaces the mutable profile fields. The path id wins
// over anything in the body.
func (s *Server) handleUpdateTrainee(c echo.Context) error {
	var trainee models.Trainee
	if err := c.Bind(&trainee); err != nil {
		return writeError(c, errors.NewInputValidationFailedError("malformed trainee"))
	}
	trainee.ID = c.Param("id")

	if err := s.deps.Trainees.Update(c.Request().Context(), &trainee); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, trainee)
}

// handleSkillHistory serves a trainee's graded scores for one task, newest
// first.
func (s *Server) handleSkillHistory(c echo.Context) error {
	task := c.QueryParam("task")
	if task == "" {
		return writeError(c, errors.NewInputValidationFailedError("task query parameter is required"))
	}
	limit, err := intParam(c, "limit", defaultListLimit)
	if err != nil {
		return writeError(c, err)
	}

	scores, err := s.deps.Reports.SkillHistory(c.Request().Context(), c.Param("id"), task, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, scores)
}
