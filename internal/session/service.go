// internal/session/service.go

// Package session manages training session lifecycle and persistence: the
// Postgres store, the Redis live snapshot, the sample recorder, and the
// service that binds a session's stiffness controller to the device sampler.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/common/metrics"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/device"
	"haptic-trainer/internal/jigsaws"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/motion"

	"github.com/google/uuid"
)

// StartRequest describes the session a trainee wants to run.
type StartRequest struct {
	TraineeID    string `json:"traineeId"`
	Task         string `json:"task"`
	TrajectoryID string `json:"trajectoryId"`
	Mode         string `json:"mode"`
	Manipulator  string `json:"manipulator"`
}

// ServiceConfig tunes the per-session runtime.
type ServiceConfig struct {
	Control        control.Params
	TaskControl    map[string]control.Params // per-task gains, usually from the catalog
	Recorder       RecorderConfig
	LivePublish    time.Duration // live snapshot period
	AccumKeepEvery int           // accumulator decimation for live stats
}

// WorkflowLauncher starts the post-session BPMN process. Implementations
// wrap the Zeebe client; a nil launcher disables the pipeline.
type WorkflowLauncher interface {
	LaunchPostSession(ctx context.Context, session *models.TrainingSession) error
}

type activeSession struct {
	session    *models.TrainingSession
	controller *control.Controller
	acc        *motion.Accumulator
	recorder   *Recorder
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	pubDone    chan struct{}
}

// Service runs training sessions. One device, one active session at a time;
// starting a second one fails with a device-busy error until the first ends.
type Service struct {
	store    *Store
	live     *Live
	sampler  *device.Sampler
	launcher WorkflowLauncher
	log      logger.Logger
	config   ServiceConfig

	mu       sync.Mutex
	active   *activeSession
	starting bool
}

// NewService wires the session runtime together.
func NewService(store *Store, live *Live, sampler *device.Sampler, launcher WorkflowLauncher, log logger.Logger, config ServiceConfig) *Service {
	if config.LivePublish <= 0 {
		config.LivePublish = 500 * time.Millisecond
	}
	if config.AccumKeepEvery < 1 {
		config.AccumKeepEvery = 5
	}
	return &Service{
		store:    store,
		live:     live,
		sampler:  sampler,
		launcher: launcher,
		log:      log,
		config:   config,
	}
}

// Start creates a session, binds its controller to the sampler, and begins
// recording. The returned session is already in the running state.
func (s *Service) Start(ctx context.Context, req *StartRequest) (*models.TrainingSession, error) {
	if req.TraineeID == "" {
		return nil, errors.NewInputValidationFailedError("traineeId is required")
	}
	if !jigsaws.ValidTask(req.Task) {
		return nil, errors.NewInputValidationFailedError("unknown task: " + req.Task)
	}
	if req.Mode == "" {
		req.Mode = control.ModeAdaptive
		if override, ok := s.config.TaskControl[req.Task]; ok && override.Mode != "" {
			req.Mode = override.Mode
		}
	}
	if req.Manipulator == "" {
		req.Manipulator = string(jigsaws.MasterLeft)
	}

	// Reserve the device for the whole start sequence so two concurrent
	// starts cannot both pass the busy check.
	s.mu.Lock()
	if s.active != nil || s.starting {
		activeID := ""
		if s.active != nil {
			activeID = s.active.session.ID
		}
		s.mu.Unlock()
		return nil, errors.NewDeviceBusyError(activeID)
	}
	s.starting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	if _, err := s.store.FindTraineeByID(ctx, req.TraineeID); err != nil {
		return nil, err
	}

	controller, trajectoryID, err := s.buildController(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &models.TrainingSession{
		ID:           uuid.New().String(),
		TraineeID:    req.TraineeID,
		Task:         req.Task,
		TrajectoryID: trajectoryID,
		Mode:         req.Mode,
		Manipulator:  req.Manipulator,
		State:        models.SessionStateCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	if !session.State.CanTransitionTo(models.SessionStateRunning) {
		return nil, errors.NewSessionStateInvalidError(session.ID,
			string(session.State), string(models.SessionStateRunning))
	}
	started := time.Now().UTC()
	session.State = models.SessionStateRunning
	session.StartedAt = &started
	session.UpdatedAt = started
	if err := s.store.Update(ctx, session); err != nil {
		return nil, err
	}

	s.mu.Lock()
	active := s.launchRuntime(session, controller)
	s.active = active
	s.mu.Unlock()
	metrics.SessionsActive.Inc()

	if err := s.store.TouchTraineeLastSession(ctx, req.TraineeID); err != nil {
		s.log.Warn("Failed to stamp trainee last session", map[string]interface{}{
			"traineeId": req.TraineeID,
			"error":     err.Error(),
		})
	}

	metrics.SessionsStarted.WithLabelValues(req.Task, req.Mode).Inc()
	s.log.Info("Session started", map[string]interface{}{
		"sessionId":    session.ID,
		"traineeId":    req.TraineeID,
		"task":         req.Task,
		"mode":         req.Mode,
		"trajectoryId": trajectoryID,
	})
	return session, nil
}

// buildController loads the reference trajectory and constructs the stiffness
// controller. Mode off runs without one: no trajectory, no guidance force.
func (s *Service) buildController(ctx context.Context, req *StartRequest) (*control.Controller, string, error) {
	if req.Mode == control.ModeOff && req.TrajectoryID == "" {
		return nil, "", nil
	}

	trajectoryID := req.TrajectoryID
	if trajectoryID == "" {
		metas, err := s.store.FindTrajectoriesByTask(ctx, req.Task)
		if err != nil {
			return nil, "", err
		}
		if len(metas) == 0 {
			return nil, "", errors.NewTrajectoryNotFoundError("task:" + req.Task)
		}
		trajectoryID = metas[0].ID
	}

	_, payload, err := s.store.FindTrajectoryByID(ctx, trajectoryID)
	if err != nil {
		return nil, "", err
	}

	var trajectory control.Trajectory
	if err := json.Unmarshal(payload, &trajectory); err != nil {
		return nil, "", errors.NewTrajectoryInvalidError("payload: " + err.Error())
	}

	params := s.config.Control
	if override, ok := s.config.TaskControl[req.Task]; ok {
		params = override
	}
	params.Mode = req.Mode
	controller, err := control.NewController(&trajectory, params)
	if err != nil {
		return nil, "", err
	}
	return controller, trajectoryID, nil
}

// launchRuntime starts the recorder, accumulator, and live publisher, and
// binds the controller to the sampler. Caller holds s.mu.
func (s *Service) launchRuntime(session *models.TrainingSession, controller *control.Controller) *activeSession {
	runCtx, cancel := context.WithCancel(context.Background())
	active := &activeSession{
		session:    session,
		controller: controller,
		acc:        motion.NewAccumulator(s.config.AccumKeepEvery),
		recorder:   NewRecorder(s.store, s.log, s.config.Recorder),
		cancel:     cancel,
		pubDone:    make(chan struct{}),
	}

	recorderCh := s.sampler.Subscribe(recorderSub(session.ID), 0)
	accCh := s.sampler.Subscribe(accumulatorSub(session.ID), 0)

	active.wg.Add(2)
	go func() {
		defer active.wg.Done()
		active.recorder.Run(runCtx, session.ID, recorderCh)
	}()
	go func() {
		defer active.wg.Done()
		active.acc.Run(runCtx, accCh)
	}()

	go func() {
		defer close(active.pubDone)
		s.publishLoop(runCtx, active)
	}()

	if controller != nil {
		s.sampler.SetSource(controller)
	}
	return active
}

func recorderSub(sessionID string) string    { return "recorder:" + sessionID }
func accumulatorSub(sessionID string) string { return "metrics:" + sessionID }

// Complete ends the active session normally and launches the post-session
// pipeline.
func (s *Service) Complete(ctx context.Context, sessionID string) (*models.TrainingSession, error) {
	return s.finish(ctx, sessionID, models.SessionStateCompleted, "")
}

// Abort ends the active session without analysis.
func (s *Service) Abort(ctx context.Context, sessionID, reason string) (*models.TrainingSession, error) {
	return s.finish(ctx, sessionID, models.SessionStateAborted, reason)
}

// Fault ends the active session after a safety or device fault. The
// controller ramps its force down before the source is unbound.
func (s *Service) Fault(ctx context.Context, sessionID, reason string) (*models.TrainingSession, error) {
	s.mu.Lock()
	if s.active != nil && s.active.session.ID == sessionID && s.active.controller != nil {
		s.active.controller.Fault(reason)
	}
	s.mu.Unlock()

	// Give the ramp one interval to wind the force down before unbinding.
	time.Sleep(s.config.Control.ForceRamp)
	return s.finish(ctx, sessionID, models.SessionStateFaulted, reason)
}

// FaultActive faults whatever session is currently bound. Used by the daemon
// when the sampler itself reports a fault.
func (s *Service) FaultActive(ctx context.Context, reason string) (*models.TrainingSession, error) {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil, nil
	}
	sessionID := s.active.session.ID
	s.mu.Unlock()
	return s.Fault(ctx, sessionID, reason)
}

func (s *Service) finish(ctx context.Context, sessionID string, target models.SessionState, reason string) (*models.TrainingSession, error) {
	s.mu.Lock()
	active := s.active
	if active == nil || active.session.ID != sessionID {
		s.mu.Unlock()
		session, err := s.store.FindByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return nil, errors.NewSessionStateInvalidError(sessionID,
			string(session.State), string(target))
	}
	session := active.session
	if !session.State.CanTransitionTo(target) {
		s.mu.Unlock()
		return nil, errors.NewSessionStateInvalidError(sessionID,
			string(session.State), string(target))
	}
	s.active = nil
	s.mu.Unlock()

	// Unbind first so the next servo tick commands zero force, then close
	// the subscriptions so the recorder flushes its tail and exits. The
	// publisher must be stopped before the snapshot is cleared, or a late
	// tick would re-create the key.
	s.sampler.SetSource(nil)
	s.sampler.Unsubscribe(recorderSub(sessionID))
	s.sampler.Unsubscribe(accumulatorSub(sessionID))
	active.wg.Wait()
	active.cancel()
	<-active.pubDone

	// Finish a detached copy: a LiveSnapshot caller may still hold the
	// original from before the active slot was cleared.
	ended := time.Now().UTC()
	finished := *session
	finished.State = target
	finished.FaultReason = reason
	finished.EndedAt = &ended
	finished.SampleCount = int64(active.recorder.Recorded())
	finished.UpdatedAt = ended
	if err := s.store.Update(ctx, &finished); err != nil {
		return nil, err
	}

	if err := s.live.Clear(ctx, sessionID); err != nil {
		s.log.Warn("Failed to clear live snapshot", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
	}

	metrics.SessionsActive.Dec()
	metrics.SessionsEnded.WithLabelValues(finished.Task, string(target)).Inc()
	s.log.Info("Session ended", map[string]interface{}{
		"sessionId": sessionID,
		"state":     string(target),
		"samples":   finished.SampleCount,
		"dropped":   active.recorder.Dropped(),
		"reason":    reason,
	})

	if s.launcher != nil && target != models.SessionStateAborted {
		if err := s.launcher.LaunchPostSession(ctx, &finished); err != nil {
			s.log.Error("Failed to launch post-session workflow", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
		}
	}
	return &finished, nil
}

// RecoverOrphans sweeps sessions a previous daemon run left in a non-terminal
// state. Running sessions become faulted, created ones aborted; their live
// snapshots are cleared. Recovery only rights the record, orphans never feed
// the scoring pipeline.
func (s *Service) RecoverOrphans(ctx context.Context) (int, error) {
	orphans, err := s.store.FindActive(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, orphan := range orphans {
		target := models.SessionStateFaulted
		if orphan.State == models.SessionStateCreated {
			target = models.SessionStateAborted
		}
		ended := time.Now().UTC()
		orphan.State = target
		orphan.FaultReason = "daemon restarted mid-session"
		orphan.EndedAt = &ended
		orphan.UpdatedAt = ended
		if err := s.store.Update(ctx, orphan); err != nil {
			s.log.Error("Failed to recover orphaned session", map[string]interface{}{
				"sessionId": orphan.ID,
				"error":     err.Error(),
			})
			continue
		}
		if err := s.live.Clear(ctx, orphan.ID); err != nil {
			s.log.Debug("Failed to clear orphaned live snapshot", map[string]interface{}{
				"sessionId": orphan.ID,
				"error":     err.Error(),
			})
		}
		recovered++
		s.log.Warn("Recovered orphaned session", map[string]interface{}{
			"sessionId": orphan.ID,
			"state":     string(target),
		})
	}
	return recovered, nil
}

// Get loads one session.
func (s *Service) Get(ctx context.Context, sessionID string) (*models.TrainingSession, error) {
	return s.store.FindByID(ctx, sessionID)
}

// ListByTrainee returns the trainee's recent sessions.
func (s *Service) ListByTrainee(ctx context.Context, traineeID string, limit int) ([]*models.TrainingSession, error) {
	return s.store.FindByTrainee(ctx, traineeID, limit)
}

// ActiveID returns the bound session's ID, or "" when idle.
func (s *Service) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.session.ID
}

// LiveSnapshot builds the current live view of the active session. For a
// non-active session it falls back to the Redis snapshot.
func (s *Service) LiveSnapshot(ctx context.Context, sessionID string) (*models.LiveSession, error) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active != nil && active.session.ID == sessionID {
		return s.buildSnapshot(active), nil
	}
	return s.live.Get(ctx, sessionID)
}

func (s *Service) buildSnapshot(active *activeSession) *models.LiveSession {
	snapshot := &models.LiveSession{
		SessionID: active.session.ID,
		State:     string(active.session.State),
		UpdatedAt: time.Now().UTC(),
	}
	if active.controller != nil {
		cs := active.controller.Snapshot()
		snapshot.Progress = cs.Progress
		snapshot.TrackingErrMm = cs.TrackingErrMm
		snapshot.Stiffness = cs.Stiffness
	}
	live := active.acc.Live()
	snapshot.Samples = live.Samples
	snapshot.PathLength = live.PathLength
	snapshot.MeanSpeed = live.MeanSpeed
	return snapshot
}

func (s *Service) publishLoop(ctx context.Context, active *activeSession) {
	ticker := time.NewTicker(s.config.LivePublish)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snapshot := s.buildSnapshot(active)
			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := s.live.Publish(pubCtx, snapshot)
			cancel()
			if err != nil {
				s.log.Debug("Live snapshot publish failed", map[string]interface{}{
					"sessionId": active.session.ID,
					"error":     err.Error(),
				})
			}
		case <-ctx.Done():
			return
		}
	}
}
