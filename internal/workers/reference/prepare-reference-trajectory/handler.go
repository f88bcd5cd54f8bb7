// internal/workers/reference/prepare-reference-trajectory/handler.go
package preparereferencetrajectory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "haptic-trainer/internal/common/errors"
	commonhttp "haptic-trainer/internal/common/http"
	"haptic-trainer/internal/common/logger"
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/jigsaws"
	"haptic-trainer/internal/models"
	"haptic-trainer/internal/session"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "prepare-reference-trajectory"
)

var (
	ErrInvalidInput       = errors.New("INPUT_VALIDATION_FAILED")
	ErrFetchFailed        = errors.New("DATASET_FETCH_FAILED")
	ErrParseFailed        = errors.New("DATASET_PARSE_FAILED")
	ErrTrajectoryNotFound = errors.New("TRAJECTORY_NOT_FOUND")
	ErrTrajectoryInvalid  = errors.New("TRAJECTORY_INVALID")
	ErrPersistFailed      = errors.New("DATABASE_INSERT_FAILED")
)

type Handler struct {
	config  *Config
	store   *session.Store
	fetcher *commonhttp.Client
	logger  logger.Logger
}

func NewHandler(config *Config, store *session.Store, fetcher *commonhttp.Client, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		store:   store,
		fetcher: fetcher,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "TRAJECTORY_PREPARE_FAILED"
		retries := int32(0)
		if errors.Is(err, ErrInvalidInput) {
			errorCode = "INPUT_VALIDATION_FAILED"
		} else if errors.Is(err, ErrFetchFailed) {
			errorCode = "DATASET_FETCH_FAILED"
			retries = 3
		} else if errors.Is(err, ErrParseFailed) {
			errorCode = "DATASET_PARSE_FAILED"
		} else if errors.Is(err, ErrTrajectoryNotFound) {
			errorCode = "TRAJECTORY_NOT_FOUND"
		} else if errors.Is(err, ErrTrajectoryInvalid) {
			errorCode = "TRAJECTORY_INVALID"
		} else if errors.Is(err, ErrPersistFailed) {
			errorCode = "DATABASE_INSERT_FAILED"
			retries = 3
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if !jigsaws.ValidTask(input.Task) {
		return nil, fmt.Errorf("%w: unknown task %q", ErrInvalidInput, input.Task)
	}
	if input.KinematicsURL == "" && input.TrajectoryID == "" {
		return nil, fmt.Errorf("%w: kinematicsUrl or trajectoryId is required", ErrInvalidInput)
	}
	manipulator := jigsaws.Manipulator(input.Manipulator)
	if manipulator == "" {
		manipulator = jigsaws.MasterLeft
	}
	if !manipulator.Valid() {
		return nil, fmt.Errorf("%w: unknown manipulator %q", ErrInvalidInput, input.Manipulator)
	}
	rate := input.TargetRateHz
	if rate <= 0 {
		rate = h.config.TargetRateHz
	}
	window := input.SmoothWindow
	if window <= 0 {
		window = h.config.SmoothWindow
	}

	var raw []*control.Trajectory
	var source string
	var err error
	if input.KinematicsURL != "" {
		source = input.KinematicsURL
		raw, err = h.fromRecording(ctx, input, manipulator)
	} else {
		source, raw, err = h.fromStored(ctx, input.TrajectoryID)
	}
	if err != nil {
		return nil, err
	}

	output := &Output{Task: input.Task, RateHz: rate}
	for _, tr := range raw {
		prepared := tr.Resample(rate).Smooth(window)
		if err := prepared.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTrajectoryInvalid, err)
		}
		payload, err := json.Marshal(prepared)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %v", ErrTrajectoryInvalid, prepared.ID, err)
		}
		meta := &models.TrajectoryMeta{
			ID:          prepared.ID,
			Task:        prepared.Task,
			Gesture:     prepared.Gesture,
			Manipulator: string(manipulator),
			SourceFile:  source,
			Frames:      len(prepared.Waypoints),
			DurationMs:  prepared.Duration().Milliseconds(),
			Rate:        rate,
			CreatedAt:   time.Now().UTC(),
		}
		if err := h.store.CreateTrajectory(ctx, meta, payload); err != nil {
			return nil, fmt.Errorf("%w: store %s: %v", ErrPersistFailed, prepared.ID, err)
		}
		output.Trajectories = append(output.Trajectories, PreparedTrajectory{
			TrajectoryID:   prepared.ID,
			Gesture:        prepared.Gesture,
			Waypoints:      len(prepared.Waypoints),
			DurationMs:     prepared.Duration().Milliseconds(),
			GestureWindows: len(prepared.Segments),
		})
	}

	h.logger.Info("reference trajectories prepared", map[string]interface{}{
		"task":         input.Task,
		"source":       source,
		"trajectories": len(output.Trajectories),
		"rateHz":       rate,
	})
	return output, nil
}

// fromRecording fetches and parses a raw kinematics file, producing the
// whole-trial trajectory (carrying its gesture windows) plus one exemplar
// per annotated gesture.
func (h *Handler) fromRecording(ctx context.Context, input *Input, manipulator jigsaws.Manipulator) ([]*control.Trajectory, error) {
	data, err := h.fetcher.Fetch(ctx, input.KinematicsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	kinematics, err := jigsaws.ParseKinematics(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailed, input.KinematicsURL, err)
	}
	frames, err := kinematics.Channel(manipulator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	baseID := input.TrajectoryID
	if baseID == "" {
		baseID = uuid.New().String()
	}
	whole, err := jigsaws.ToTrajectory(baseID, input.Task, "", frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrajectoryInvalid, err)
	}
	trajectories := []*control.Trajectory{whole}

	if input.TranscriptURL == "" {
		return trajectories, nil
	}
	transcript, err := h.fetcher.Fetch(ctx, input.TranscriptURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	segments, err := jigsaws.ParseTranscript(bytes.NewReader(transcript))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailed, input.TranscriptURL, err)
	}
	whole.Segments = jigsaws.GestureWindows(segments, len(frames))

	// A gesture can recur within a trial; the longest occurrence serves as
	// its exemplar.
	exemplars := map[int]jigsaws.Segment{}
	for _, seg := range segments {
		if best, ok := exemplars[seg.GestureID]; !ok || seg.EndFrame-seg.StartFrame > best.EndFrame-best.StartFrame {
			exemplars[seg.GestureID] = seg
		}
	}
	gestureIDs := make([]int, 0, len(exemplars))
	for id := range exemplars {
		gestureIDs = append(gestureIDs, id)
	}
	sort.Ints(gestureIDs)
	for _, gestureID := range gestureIDs {
		seg := exemplars[gestureID]
		sliced := jigsaws.SliceFrames(frames, seg)
		if len(sliced) < 2 {
			h.logger.Warn("gesture segment outside recording bounds", map[string]interface{}{
				"gesture":    seg.Gesture,
				"startFrame": seg.StartFrame,
				"endFrame":   seg.EndFrame,
			})
			continue
		}
		id := baseID + "-" + strings.ToLower(seg.Gesture)
		tr, err := jigsaws.ToTrajectory(id, input.Task, seg.Gesture, sliced)
		if err != nil {
			return nil, fmt.Errorf("%w: gesture %s: %v", ErrTrajectoryInvalid, seg.Gesture, err)
		}
		trajectories = append(trajectories, tr)
	}
	return trajectories, nil
}

// fromStored re-prepares a trajectory that was imported earlier, writing it
// back under the same id.
func (h *Handler) fromStored(ctx context.Context, trajectoryID string) (string, []*control.Trajectory, error) {
	meta, payload, err := h.store.FindTrajectoryByID(ctx, trajectoryID)
	if err != nil {
		if isCode(err, apperrors.ErrCodeTrajectoryNotFound) {
			return "", nil, fmt.Errorf("%w: %v", ErrTrajectoryNotFound, err)
		}
		return "", nil, fmt.Errorf("%w: load %s: %v", ErrFetchFailed, trajectoryID, err)
	}
	var trajectory control.Trajectory
	if err := json.Unmarshal(payload, &trajectory); err != nil {
		return "", nil, fmt.Errorf("%w: payload for %s: %v", ErrTrajectoryInvalid, trajectoryID, err)
	}
	return meta.SourceFile, []*control.Trajectory{&trajectory}, nil
}

func isCode(err error, code apperrors.ErrorCode) bool {
	stdErr, ok := err.(*apperrors.StandardError)
	return ok && stdErr.Code == code
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
