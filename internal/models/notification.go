// internal/models/notification.go
package models

type Notification struct {
	ID            string                 `json:"id"`
	RecipientID   string                 `json:"recipientId"`
	RecipientType string                 `json:"recipientType"` // "trainee" or "instructor"
	Type          string                 `json:"type"`          // "report_ready", "session_faulted", "milestone_reached"
	Channel       string                 `json:"channel"`       // "email", "sms"
	Status        string                 `json:"status"`        // "sent", "failed", "disabled"
	Payload       map[string]interface{} `json:"payload"`
	SentAt        string                 `json:"sentAt"`
	CreatedAt     string                 `json:"createdAt"`
}

type NotificationTemplate struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	HTMLBody string `json:"htmlBody,omitempty"`
	Version  string `json:"version"`
}

// EmailMessage represents an email to be sent
type EmailMessage struct {
	To          []string               `json:"to"`
	Cc          []string               `json:"cc,omitempty"`
	Bcc         []string               `json:"bcc,omitempty"`
	Subject     string                 `json:"subject"`
	Body        string                 `json:"body"`
	HTMLBody    string                 `json:"htmlBody,omitempty"`
	From        string                 `json:"from"`
	FromName    string                 `json:"fromName,omitempty"`
	ReplyTo     string                 `json:"replyTo,omitempty"`
	TemplateID  string                 `json:"templateId,omitempty"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
	Attachments []EmailAttachment      `json:"attachments,omitempty"`
}

// EmailAttachment represents an email attachment
type EmailAttachment struct {
	Filename    string `json:"filename"`
	Content     []byte `json:"content"`
	ContentType string `json:"contentType"`
}
