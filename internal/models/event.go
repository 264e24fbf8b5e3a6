package models

// Event types published after deferred processing writes a record.
const (
	EventTypeScored   = "transcript.scored"
	EventTypeRescored = "transcript.rescored"
)

// RecordEvent is published whenever a deferred task stores a record.
type RecordEvent struct {
	EventType      string   `json:"eventType"`
	TaskID         string   `json:"taskId"`
	TenantID       string   `json:"tenantId"`
	ConversationID string   `json:"conversationId"`
	SentimentScore float64  `json:"sentimentScore"`
	PreviousScore  *float64 `json:"previousScore,omitempty"`
	Tags           []string `json:"tags"`
	Status         Status   `json:"status"`
	Timestamp      int64    `json:"timestamp"`
}

// NewRecordEvent builds an event snapshot of rec.
func NewRecordEvent(eventType, taskID string, rec Record, timestamp int64) RecordEvent {
	return RecordEvent{
		EventType:      eventType,
		TaskID:         taskID,
		TenantID:       rec.TenantID,
		ConversationID: rec.ConversationID,
		SentimentScore: rec.SentimentScore,
		Tags:           rec.Clone().Tags,
		Status:         rec.Status,
		Timestamp:      timestamp,
	}
}
