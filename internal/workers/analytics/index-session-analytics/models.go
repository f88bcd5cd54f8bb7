// internal/workers/analytics/index-session-analytics/models.go
package indexsessionanalytics

type Input struct {
	SessionID string `json:"sessionId"`
}

type Output struct {
	SessionID   string `json:"sessionId"`
	Index       string `json:"index"`
	DocsIndexed int    `json:"docsIndexed"`
}
