package models

import (
	"slices"

	"github.com/pkg/errors"
)

// TagReviewRequired marks records whose rescored sentiment fell below the review threshold.
const TagReviewRequired = "review_required"

// Validation errors returned by NewRecord.
var (
	ErrMissingTenant       = errors.New("record: tenant id is empty")
	ErrMissingConversation = errors.New("record: conversation id is empty")
)

// Record is the stored outcome of processing one transcript.
type Record struct {
	ConversationID string   `json:"conversation_id"`
	SentimentScore float64  `json:"sentiment_score"`
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	Status         Status   `json:"status"`
	TenantID       string   `json:"tenant_id"`
}

// NewRecord builds a validated record. The tags slice is copied.
func NewRecord(tenantID, conversationID string, score float64, summary string, tags []string, status Status) (Record, error) {
	if tenantID == "" {
		return Record{}, ErrMissingTenant
	}
	if conversationID == "" {
		return Record{}, ErrMissingConversation
	}
	if _, err := status.MarshalText(); err != nil {
		return Record{}, err
	}
	return Record{
		ConversationID: conversationID,
		SentimentScore: score,
		Summary:        summary,
		Tags:           slices.Clone(tags),
		Status:         status,
		TenantID:       tenantID,
	}, nil
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Tags = slices.Clone(r.Tags)
	return r
}

// HasTag reports whether tag is present.
func (r Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// AddTag appends tag unless it is already present. Returns true if it was added.
func (r *Record) AddTag(tag string) bool {
	if r.HasTag(tag) {
		return false
	}
	r.Tags = append(r.Tags, tag)
	return true
}
