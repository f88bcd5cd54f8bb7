// internal/workers/notification/send-training-report/models.go
package sendtrainingreport

type Input struct {
	SessionID        string                 `json:"sessionId"`
	NotificationType string                 `json:"notificationType,omitempty"` // defaults to "report_ready"
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Notification types
const (
	TypeReportReady      = "report_ready"
	TypeSessionFaulted   = "session_faulted"
	TypeMilestoneReached = "milestone_reached"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)
