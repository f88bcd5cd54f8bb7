// internal/session/service_test.go
package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/device"
	"haptic-trainer/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// stubDevice is a device backend that reads a constant state and accepts any
// force command.
type stubDevice struct{}

func (d *stubDevice) Open(ctx context.Context) error  { return nil }
func (d *stubDevice) Close() error                    { return nil }
func (d *stubDevice) Info() device.Info               { return device.Info{Name: "stub", Axes: 3} }
func (d *stubDevice) ReadState(ctx context.Context) (device.State, error) {
	return device.State{Position: device.Vec3{1, 0, 0}}, nil
}
func (d *stubDevice) WriteForce(ctx context.Context, f device.Vec3) error { return nil }

type fakeLauncher struct {
	mu       sync.Mutex
	sessions []*models.TrainingSession
}

func (f *fakeLauncher) LaunchPostSession(ctx context.Context, session *models.TrainingSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeLauncher) launched() []*models.TrainingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.TrainingSession(nil), f.sessions...)
}

type serviceHarness struct {
	service  *Service
	mock     sqlmock.Sqlmock
	launcher *fakeLauncher
	cancel   context.CancelFunc
}

func createTestService(t *testing.T) *serviceHarness {
	store, mock := createMockStore(t)
	client, _ := createTestRedis(t)

	profile := device.Profile{
		Name:            "test",
		MaxForceN:       3.3,
		SustainForceN:   3.3,
		SustainWindowMs: 500,
		NominalRateHz:   1000,
		Workspace: [3]device.AxisRange{
			{Min: -200, Max: 200}, {Min: -200, Max: 200}, {Min: -200, Max: 200},
		},
	}
	sampler, err := device.NewSampler(&stubDevice{}, profile, device.SamplerOptions{
		Interval:      time.Millisecond,
		WatchdogTicks: 5,
	}, logger.NewNoOpLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go sampler.Run(ctx)
	t.Cleanup(cancel)

	launcher := &fakeLauncher{}
	service := NewService(store, NewLive(client, time.Minute), sampler, launcher,
		logger.NewTestLogger(t), ServiceConfig{
			Control: control.Params{
				StiffnessMin:    0.05,
				StiffnessMax:    0.5,
				DampingRatio:    0.7,
				StiffnessSlew:   2.0,
				ForceRamp:       10 * time.Millisecond,
				AdaptiveErrorMm: 15,
				MaxForceN:       3.3,
			},
			// Recorder thresholds sit far above what a short test produces,
			// so the only database traffic is the lifecycle itself.
			Recorder: RecorderConfig{
				KeepEvery:     1 << 20,
				BatchSize:     1 << 20,
				FlushInterval: time.Hour,
			},
			LivePublish:    10 * time.Millisecond,
			AccumKeepEvery: 1,
		})

	return &serviceHarness{service: service, mock: mock, launcher: launcher, cancel: cancel}
}

func traineeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "name", "handedness",
		"experience", "status", "created_at", "updated_at", "last_session"}).
		AddRow("trainee-1", "res1@hospital.example", "R. Chen", "right",
			"novice", "active", testTime, testTime, nil)
}

func expectStartSequence(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT id, email, name, handedness").
		WithArgs("trainee-1").
		WillReturnRows(traineeRows())
	mock.ExpectExec("INSERT INTO training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE trainees").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func expectFinishSequence(mock sqlmock.Sqlmock) {
	mock.ExpectExec("UPDATE training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func referencePayload(t *testing.T) []byte {
	trajectory := &control.Trajectory{
		ID:   "traj-1",
		Task: "Suturing",
		Rate: 30,
		Waypoints: []control.Waypoint{
			{Elapsed: 0, Position: device.Vec3{0, 0, 0}},
			{Elapsed: time.Second, Position: device.Vec3{10, 0, 0}},
		},
	}
	payload, err := json.Marshal(trajectory)
	require.NoError(t, err)
	return payload
}

// ==========================
// Lifecycle Tests
// ==========================

func TestService_StartAndComplete(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	expectStartSequence(h.mock)

	session, err := h.service.Start(ctx, &StartRequest{
		TraineeID: "trainee-1",
		Task:      "Suturing",
		Mode:      control.ModeOff,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateRunning, session.State)
	assert.NotNil(t, session.StartedAt)
	assert.Equal(t, session.ID, h.service.ActiveID())

	expectFinishSequence(h.mock)
	ended, err := h.service.Complete(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateCompleted, ended.State)
	assert.NotNil(t, ended.EndedAt)
	assert.Equal(t, "", h.service.ActiveID())

	launched := h.launcher.launched()
	require.Len(t, launched, 1)
	assert.Equal(t, session.ID, launched[0].ID)
	assert.Equal(t, models.SessionStateCompleted, launched[0].State)
}

func TestService_StartWithReferenceTrajectory(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()

	h.mock.ExpectQuery("SELECT id, email, name, handedness").
		WithArgs("trainee-1").
		WillReturnRows(traineeRows())
	h.mock.ExpectQuery("SELECT id, task, gesture, manipulator").
		WithArgs("traj-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task", "gesture",
			"manipulator", "source_file", "frames", "duration_ms", "rate",
			"payload", "created_at"}).
			AddRow("traj-1", "Suturing", "", "master_left", "Suturing_B001.txt",
				30, int64(1000), 30.0, referencePayload(t), testTime))
	h.mock.ExpectExec("INSERT INTO training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec("UPDATE training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec("UPDATE trainees").
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := h.service.Start(ctx, &StartRequest{
		TraineeID:    "trainee-1",
		Task:         "Suturing",
		TrajectoryID: "traj-1",
		Mode:         control.ModeFull,
	})
	require.NoError(t, err)
	assert.Equal(t, "traj-1", session.TrajectoryID)

	// The controller is bound: the live snapshot carries its stiffness.
	assert.Eventually(t, func() bool {
		snapshot, err := h.service.LiveSnapshot(ctx, session.ID)
		return err == nil && snapshot.Stiffness > 0 && snapshot.Samples > 0
	}, 2*time.Second, 10*time.Millisecond)

	expectFinishSequence(h.mock)
	_, err = h.service.Complete(ctx, session.ID)
	require.NoError(t, err)
}

func TestService_TaskGainsOverrideDefaults(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()

	// Catalog-style override with a stiffness ceiling the global defaults
	// cannot reach.
	h.service.config.TaskControl = map[string]control.Params{
		"Suturing": {
			StiffnessMin:    0.1,
			StiffnessMax:    0.9,
			DampingRatio:    1.0,
			StiffnessSlew:   5.0,
			ForceRamp:       10 * time.Millisecond,
			AdaptiveErrorMm: 15,
			MaxForceN:       3.3,
		},
	}

	h.mock.ExpectQuery("SELECT id, email, name, handedness").
		WithArgs("trainee-1").
		WillReturnRows(traineeRows())
	h.mock.ExpectQuery("SELECT id, task, gesture, manipulator").
		WithArgs("traj-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task", "gesture",
			"manipulator", "source_file", "frames", "duration_ms", "rate",
			"payload", "created_at"}).
			AddRow("traj-1", "Suturing", "", "master_left", "Suturing_B001.txt",
				30, int64(1000), 30.0, referencePayload(t), testTime))
	h.mock.ExpectExec("INSERT INTO training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec("UPDATE training_sessions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec("UPDATE trainees").
		WillReturnResult(sqlmock.NewResult(0, 1))

	session, err := h.service.Start(ctx, &StartRequest{
		TraineeID:    "trainee-1",
		Task:         "Suturing",
		TrajectoryID: "traj-1",
		Mode:         control.ModeFull,
	})
	require.NoError(t, err)

	// Full guidance pins stiffness at the schedule maximum. Climbing past
	// the default 0.5 N/mm proves the per-task gains were used.
	assert.Eventually(t, func() bool {
		snapshot, err := h.service.LiveSnapshot(ctx, session.ID)
		return err == nil && snapshot.Stiffness > 0.6
	}, 2*time.Second, 10*time.Millisecond)

	expectFinishSequence(h.mock)
	_, err = h.service.Complete(ctx, session.ID)
	require.NoError(t, err)
}

func TestService_SecondStartIsBusy(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	expectStartSequence(h.mock)

	session, err := h.service.Start(ctx, &StartRequest{
		TraineeID: "trainee-1",
		Task:      "Suturing",
		Mode:      control.ModeOff,
	})
	require.NoError(t, err)

	_, err = h.service.Start(ctx, &StartRequest{
		TraineeID: "trainee-1",
		Task:      "Knot_Tying",
		Mode:      control.ModeOff,
	})
	assertErrorCode(t, err, errors.ErrCodeDeviceBusy)

	expectFinishSequence(h.mock)
	_, err = h.service.Complete(ctx, session.ID)
	require.NoError(t, err)
}

func TestService_StartValidation(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()

	_, err := h.service.Start(ctx, &StartRequest{Task: "Suturing"})
	assertErrorCode(t, err, errors.ErrCodeInputValidationFailed)

	_, err = h.service.Start(ctx, &StartRequest{TraineeID: "trainee-1", Task: "Juggling"})
	assertErrorCode(t, err, errors.ErrCodeInputValidationFailed)
}

func TestService_AbortSkipsWorkflow(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	expectStartSequence(h.mock)

	session, err := h.service.Start(ctx, &StartRequest{
		TraineeID: "trainee-1",
		Task:      "Suturing",
		Mode:      control.ModeOff,
	})
	require.NoError(t, err)

	expectFinishSequence(h.mock)
	ended, err := h.service.Abort(ctx, session.ID, "trainee stopped")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateAborted, ended.State)
	assert.Equal(t, "trainee stopped", ended.FaultReason)
	assert.Empty(t, h.launcher.launched())
}

func TestService_FaultEndsSessionAndLaunchesWorkflow(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	expectStartSequence(h.mock)

	_, err := h.service.Start(ctx, &StartRequest{
		TraineeID: "trainee-1",
		Task:      "Suturing",
		Mode:      control.ModeOff,
	})
	require.NoError(t, err)

	expectFinishSequence(h.mock)
	ended, err := h.service.FaultActive(ctx, "sustained force limit")
	require.NoError(t, err)
	require.NotNil(t, ended)
	assert.Equal(t, models.SessionStateFaulted, ended.State)
	assert.Equal(t, "sustained force limit", ended.FaultReason)

	// Faulted sessions still feed the post-session pipeline, with the final
	// state on the record the launcher sees.
	require.Len(t, h.launcher.launched(), 1)
	assert.Equal(t, models.SessionStateFaulted, h.launcher.launched()[0].State)
}

func TestService_FaultActiveWhenIdle(t *testing.T) {
	h := createTestService(t)

	session, err := h.service.FaultActive(context.Background(), "device fault")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestService_RecoverOrphans(t *testing.T) {
	h := createTestService(t)

	// One session left running by a crashed daemon, one never started.
	h.mock.ExpectQuery("SELECT id, trainee_id, task, trajectory_id").
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow("sess-orphan-run", "trainee-1", "Suturing", "", "off",
				"master_left", "running", "", int64(480), testTime, nil, testTime, testTime).
			AddRow("sess-orphan-new", "trainee-1", "Knot_Tying", "", "off",
				"master_left", "created", "", int64(0), nil, nil, testTime, testTime))
	h.mock.ExpectExec("UPDATE training_sessions").
		WithArgs("sess-orphan-run", "faulted", "daemon restarted mid-session",
			int64(480), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec("UPDATE training_sessions").
		WithArgs("sess-orphan-new", "aborted", "daemon restarted mid-session",
			int64(0), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	recovered, err := h.service.RecoverOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestService_RecoverOrphansNoneActive(t *testing.T) {
	h := createTestService(t)

	h.mock.ExpectQuery("SELECT id, trainee_id, task, trajectory_id").
		WillReturnRows(sqlmock.NewRows(sessionColumns()))

	recovered, err := h.service.RecoverOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)
}

func TestService_CompleteUnknownSession(t *testing.T) {
	h := createTestService(t)

	h.mock.ExpectQuery("SELECT id, trainee_id, task, trajectory_id").
		WithArgs("sess-done").
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow("sess-done", "trainee-1", "Suturing", "", "off", "master_left",
				"completed", "", int64(100), testTime, testTime, testTime, testTime))

	_, err := h.service.Complete(context.Background(), "sess-done")
	assertErrorCode(t, err, errors.ErrCodeSessionStateInvalid)
}

// ==========================
// Live Snapshot Tests
// ==========================

func TestService_LiveSnapshotPublishedToRedis(t *testing.T) {
	h := createTestService(t)
	ctx := context.Background()
	expectStartSequence(h.mock)

	session, err := h.service.Start(ctx, &StartRequest{
		TraineeID: "trainee-1",
		Task:      "Suturing",
		Mode:      control.ModeOff,
	})
	require.NoError(t, err)

	// The publish loop writes through to Redis on its own cadence.
	assert.Eventually(t, func() bool {
		snapshot, err := h.service.live.Get(ctx, session.ID)
		return err == nil && snapshot.SessionID == session.ID
	}, 2*time.Second, 10*time.Millisecond)

	expectFinishSequence(h.mock)
	_, err = h.service.Complete(ctx, session.ID)
	require.NoError(t, err)
}
