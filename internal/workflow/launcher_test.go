// internal/workflow/launcher_test.go
package workflow

import (
	"context"
	"fmt"
	"testing"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	StartFunc func(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

func (f *fakeStarter) CreateProcessInstance(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	return f.StartFunc(ctx, processID, variables)
}

func TestLauncher_LaunchPostSession(t *testing.T) {
	var gotProcess string
	var gotVars map[string]interface{}
	starter := &fakeStarter{
		StartFunc: func(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
			gotProcess = processID
			gotVars = variables
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return 2251799813685249, nil
		},
	}
	launcher := NewLauncher(starter, Config{}, logger.NewNoOpLogger())

	err := launcher.LaunchPostSession(context.Background(), &models.TrainingSession{
		ID:        "sess-1",
		TraineeID: "trainee-1",
		Task:      "Suturing",
		State:     models.SessionStateCompleted,
	})

	require.NoError(t, err)
	assert.Equal(t, ProcessSessionScoring, gotProcess)
	assert.Equal(t, "sess-1", gotVars["sessionId"])
	assert.Equal(t, "trainee-1", gotVars["traineeId"])
	assert.Equal(t, "Suturing", gotVars["task"])
	assert.Equal(t, "completed", gotVars["state"])
	assert.NotContains(t, gotVars, "faultReason")
}

func TestLauncher_LaunchPostSession_FaultedCarriesReason(t *testing.T) {
	var gotVars map[string]interface{}
	starter := &fakeStarter{
		StartFunc: func(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
			gotVars = variables
			return 1, nil
		},
	}
	launcher := NewLauncher(starter, Config{}, logger.NewNoOpLogger())

	err := launcher.LaunchPostSession(context.Background(), &models.TrainingSession{
		ID:          "sess-2",
		TraineeID:   "trainee-1",
		Task:        "Needle_Passing",
		State:       models.SessionStateFaulted,
		FaultReason: "force limit exceeded",
	})

	require.NoError(t, err)
	assert.Equal(t, "faulted", gotVars["state"])
	assert.Equal(t, "force limit exceeded", gotVars["faultReason"])
}

func TestLauncher_LaunchReferenceIngest(t *testing.T) {
	var gotProcess string
	var gotVars map[string]interface{}
	starter := &fakeStarter{
		StartFunc: func(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
			gotProcess = processID
			gotVars = variables
			return 7, nil
		},
	}
	launcher := NewLauncher(starter, Config{}, logger.NewNoOpLogger())

	err := launcher.LaunchReferenceIngest(context.Background(), "traj-42", "Knot_Tying")

	require.NoError(t, err)
	assert.Equal(t, ProcessReferenceIngest, gotProcess)
	assert.Equal(t, map[string]interface{}{
		"trajectoryId": "traj-42",
		"task":         "Knot_Tying",
	}, gotVars)
}

func TestLauncher_ConfigOverridesProcessIDs(t *testing.T) {
	var gotProcess string
	starter := &fakeStarter{
		StartFunc: func(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
			gotProcess = processID
			return 1, nil
		},
	}
	launcher := NewLauncher(starter, Config{ScoringProcess: "session-scoring-v2"}, logger.NewNoOpLogger())

	err := launcher.LaunchPostSession(context.Background(), &models.TrainingSession{ID: "sess-4"})

	require.NoError(t, err)
	assert.Equal(t, "session-scoring-v2", gotProcess)
}

func TestLauncher_PropagatesBrokerError(t *testing.T) {
	starter := &fakeStarter{
		StartFunc: func(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
			return 0, errors.NewExternalServiceError("zeebe", fmt.Errorf("broker unreachable"))
		},
	}
	launcher := NewLauncher(starter, Config{}, logger.NewNoOpLogger())

	err := launcher.LaunchPostSession(context.Background(), &models.TrainingSession{ID: "sess-3"})

	require.Error(t, err)
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.True(t, stdErr.Retryable)
}
