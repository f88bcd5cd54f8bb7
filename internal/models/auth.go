package models

import "time"

// Principal roles recognized by the API and the telemetry gateway.
const (
	RoleTrainee    = "trainee"
	RoleInstructor = "instructor"
	RoleService    = "service"
)

// AuthToken is an issued bearer token with its validity window.
type AuthToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role"`
}

// CanControlSessions reports whether the principal may start, complete or
// abort sessions rather than just observe them.
func (p Principal) CanControlSessions() bool {
	return p.Role == RoleInstructor || p.Role == RoleService
}
