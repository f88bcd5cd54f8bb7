// internal/api/sessions.go
package api

import (
	"net/http"
	"strconv"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/session"

	"github.com/labstack/echo/v4"
)

const defaultListLimit = 20

type abortRequest struct {
	Reason string `json:"reason"`
}

// handleStartSession creates a session and binds it to the device loop in
// one step. Trainee-role callers always run as themselves; the traineeId in
// the body only matters for instructors and services.
func (s *Server) handleStartSession(c echo.Context) error {
	var req session.StartRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewInputValidationFailedError("malformed session request"))
	}

	principal := currentPrincipal(c)
	if !principal.CanControlSessions() {
		req.TraineeID = principal.Subject
	}

	created, err := s.deps.Sessions.Start(c.Request().Context(), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleCompleteSession(c echo.Context) error {
	sessionID := c.Param("id")
	if err := s.authorizeSessionMutation(c, sessionID); err != nil {
		return writeError(c, err)
	}

	completed, err := s.deps.Sessions.Complete(c.Request().Context(), sessionID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, completed)
}

func (s *Server) handleAbortSession(c echo.Context) error {
	sessionID := c.Param("id")
	if err := s.authorizeSessionMutation(c, sessionID); err != nil {
		return writeError(c, err)
	}

	var req abortRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.NewInputValidationFailedError("malformed abort request"))
	}

	aborted, err := s.deps.Sessions.Abort(c.Request().Context(), sessionID, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, aborted)
}

func (s *Server) handleGetSession(c echo.Context) error {
	found, err := s.deps.Sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, found)
}

// handleListSessions returns a trainee's recent sessions. Trainee-role
// callers always list their own regardless of the query parameter.
func (s *Server) handleListSessions(c echo.Context) error {
	principal := currentPrincipal(c)
	traineeID := c.QueryParam("traineeId")
	if !principal.CanControlSessions() {
		traineeID = principal.Subject
	}
	if traineeID == "" {
		return writeError(c, errors.NewInputValidationFailedError("traineeId query parameter is required"))
	}

	limit, err := intParam(c, "limit", defaultListLimit)
	if err != nil {
		return writeError(c, err)
	}

	sessions, err := s.deps.Sessions.ListByTrainee(c.Request().Context(), traineeID, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleLiveSession(c echo.Context) error {
	snapshot, err := s.deps.Sessions.LiveSnapshot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

// handleSessionReport serves the stored metric reports plus the skill score
// once grading ran. Ungraded sessions return reports with a null score.
func (s *Server) handleSessionReport(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	if _, err := s.deps.Sessions.Get(ctx, sessionID); err != nil {
		return writeError(c, err)
	}

	reports, err := s.deps.Reports.ReportsBySession(ctx, sessionID)
	if err != nil {
		return writeError(c, err)
	}

	score, err := s.deps.Reports.SkillScoreBySession(ctx, sessionID)
	if err != nil {
		if !isCode(err, errors.ErrCodeSkillScoreNotFound) {
			return writeError(c, err)
		}
		score = nil
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId":  sessionID,
		"reports":    reports,
		"skillScore": score,
	})
}

// authorizeSessionMutation lets instructors and services touch any session,
// trainees only their own.
func (s *Server) authorizeSessionMutation(c echo.Context, sessionID string) error {
	principal := currentPrincipal(c)
	if principal.CanControlSessions() {
		return nil
	}

	found, err := s.deps.Sessions.Get(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	if found.TraineeID != principal.Subject {
		return errors.NewAuthorizationError("session belongs to another trainee")
	}
	return nil
}

func intParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewInputValidationFailedError(name + " must be an integer")
	}
	return value, nil
}

func isCode(err error, code errors.ErrorCode) bool {
	std, ok := err.(*errors.StandardError)
	return ok && std.Code == code
}
