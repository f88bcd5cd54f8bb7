// Package errors provides standardized error handling shared by the servo
// daemon, the HTTP API, and the BPMN scoring pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Device / servo loop
	ErrCodeDeviceFault         ErrorCode = "DEVICE_FAULT"
	ErrCodeDeviceTimeout       ErrorCode = "DEVICE_TIMEOUT"
	ErrCodeSafetyLimitExceeded ErrorCode = "SAFETY_LIMIT_EXCEEDED"

	// Session lifecycle
	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionStateInvalid   ErrorCode = "SESSION_STATE_INVALID"
	ErrCodeSessionSamplesMissing ErrorCode = "SESSION_SAMPLES_MISSING"
	ErrCodeDeviceBusy            ErrorCode = "DEVICE_BUSY"

	// Reference trajectories / recordings
	ErrCodeTrajectoryNotFound ErrorCode = "TRAJECTORY_NOT_FOUND"
	ErrCodeTrajectoryInvalid  ErrorCode = "TRAJECTORY_INVALID"
	ErrCodeDatasetParseFailed ErrorCode = "DATASET_PARSE_FAILED"
	ErrCodeDatasetFetchFailed ErrorCode = "DATASET_FETCH_FAILED"

	// Metric computation
	ErrCodeMetricComputeFailed ErrorCode = "METRIC_COMPUTE_FAILED"
	ErrCodeInsufficientSamples ErrorCode = "INSUFFICIENT_SAMPLES"
	ErrCodeBaselineNotFound    ErrorCode = "BASELINE_NOT_FOUND"
	ErrCodeSkillScoreNotFound  ErrorCode = "SKILL_SCORE_NOT_FOUND"

	// Storage
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"

	// Analytics search
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexWriteFailed              ErrorCode = "INDEX_WRITE_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"

	// Notifications
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	// Validation
	ErrCodeInputValidationFailed ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeCatalogInvalid        ErrorCode = "CATALOG_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewDeviceFaultError creates a non-retryable device fault error.
func NewDeviceFaultError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeviceFault,
		Message:   "Haptic device reported a fault",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeviceTimeoutError creates a retryable device read/write timeout error.
func NewDeviceTimeoutError(op string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeviceTimeout,
		Message:   "Haptic device operation timed out",
		Details:   fmt.Sprintf("operation: %s", op),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSafetyLimitExceededError creates a non-retryable safety violation error.
func NewSafetyLimitExceededError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSafetyLimitExceeded,
		Message:   "Force command exceeded safety limits",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable session lookup error.
func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Training session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStateInvalidError creates a non-retryable lifecycle error.
func NewSessionStateInvalidError(sessionID, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStateInvalid,
		Message:   "Invalid session state transition",
		Details:   fmt.Sprintf("sessionId: %s, %s -> %s", sessionID, from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionSamplesMissingError creates a non-retryable error for sessions
// without recorded samples.
func NewSessionSamplesMissingError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionSamplesMissing,
		Message:   "Session has no recorded samples",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeviceBusyError creates a non-retryable error for a device already bound
// to a running session.
func NewDeviceBusyError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeviceBusy,
		Message:   "Device is bound to another running session",
		Details:   fmt.Sprintf("activeSessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTrajectoryNotFoundError creates a non-retryable trajectory lookup error.
func NewTrajectoryNotFoundError(trajectoryID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTrajectoryNotFound,
		Message:   "Reference trajectory not found",
		Details:   fmt.Sprintf("trajectoryId: %s", trajectoryID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTrajectoryInvalidError creates a non-retryable trajectory content error.
func NewTrajectoryInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTrajectoryInvalid,
		Message:   "Reference trajectory failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatasetParseFailedError creates a non-retryable recording parse error.
func NewDatasetParseFailedError(file string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatasetParseFailed,
		Message:   "Recording file could not be parsed",
		Details:   fmt.Sprintf("file: %s, error: %s", file, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatasetFetchFailedError creates a retryable dataset download error.
func NewDatasetFetchFailedError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatasetFetchFailed,
		Message:   "Recording fetch failed",
		Details:   fmt.Sprintf("url: %s, error: %s", url, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMetricComputeFailedError creates a non-retryable metric engine error.
// Metric computation is deterministic, so retrying the same samples cannot help.
func NewMetricComputeFailedError(metric string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMetricComputeFailed,
		Message:   "Motion metric computation failed",
		Details:   fmt.Sprintf("metric: %s, error: %s", metric, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsufficientSamplesError creates a non-retryable error for windows too
// short to score.
func NewInsufficientSamplesError(got, want int) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsufficientSamples,
		Message:   "Not enough samples to compute metrics",
		Details:   fmt.Sprintf("got %d samples, need at least %d", got, want),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBaselineNotFoundError creates a non-retryable baseline lookup error.
func NewBaselineNotFoundError(task string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBaselineNotFound,
		Message:   "No expert baseline for task",
		Details:   fmt.Sprintf("task: %s", task),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSkillScoreNotFoundError creates a non-retryable score lookup error.
func NewSkillScoreNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSkillScoreNotFound,
		Message:   "Session has not been graded",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable live-state cache error.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Live session cache unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexWriteFailedError creates a retryable analytics index error.
func NewIndexWriteFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexWriteFailed,
		Message:   "Analytics document indexing failed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Elasticsearch query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInputValidationFailedError creates a non-retryable input validation error.
func NewInputValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputValidationFailed,
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogInvalidError creates a non-retryable catalog/profile schema error.
func NewCatalogInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogInvalid,
		Message:   "Catalog or device profile failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthorizationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHORIZATION_ERROR",
		Message:   "Not allowed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. The codes
// are identical on both sides so boundary events can match on them directly.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeDeviceFault:                   "DEVICE_FAULT",
	ErrCodeDeviceTimeout:                 "DEVICE_TIMEOUT",
	ErrCodeSafetyLimitExceeded:           "SAFETY_LIMIT_EXCEEDED",
	ErrCodeSessionNotFound:               "SESSION_NOT_FOUND",
	ErrCodeSessionStateInvalid:           "SESSION_STATE_INVALID",
	ErrCodeSessionSamplesMissing:         "SESSION_SAMPLES_MISSING",
	ErrCodeDeviceBusy:                    "DEVICE_BUSY",
	ErrCodeTrajectoryNotFound:            "TRAJECTORY_NOT_FOUND",
	ErrCodeTrajectoryInvalid:             "TRAJECTORY_INVALID",
	ErrCodeDatasetParseFailed:            "DATASET_PARSE_FAILED",
	ErrCodeDatasetFetchFailed:            "DATASET_FETCH_FAILED",
	ErrCodeMetricComputeFailed:           "METRIC_COMPUTE_FAILED",
	ErrCodeInsufficientSamples:           "INSUFFICIENT_SAMPLES",
	ErrCodeBaselineNotFound:              "BASELINE_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:                  "QUERY_TIMEOUT",
	ErrCodeDatabaseInsertFailed:          "DATABASE_INSERT_FAILED",
	ErrCodeCacheUnavailable:              "CACHE_UNAVAILABLE",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeIndexWriteFailed:              "INDEX_WRITE_FAILED",
	ErrCodeSearchQueryFailed:             "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:                 "SEARCH_TIMEOUT",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeInputValidationFailed:         "INPUT_VALIDATION_FAILED",
	ErrCodeCatalogInvalid:                "CATALOG_INVALID",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeIndexWriteFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeDatasetFetchFailed,
		ErrCodeCacheUnavailable:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeDeviceTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DEVICE") || strings.Contains(codeStr, "SAFETY"):
		return "DEVICE"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "TRAJECTORY") || strings.Contains(codeStr, "DATASET"):
		return "REFERENCE"
	case strings.Contains(codeStr, "METRIC") || strings.Contains(codeStr, "SAMPLES") || strings.Contains(codeStr, "BASELINE"):
		return "METRICS"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "CACHE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "CATALOG"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
