// Package models defines the data structures for transcripts, stored records and events.
package models

import (
	"strings"
	"unicode/utf8"
)

// MaxTextLength is the upper bound on transcript text, in characters.
const MaxTextLength = 5000

// TranscriptPayload is a transcript submitted for scoring.
type TranscriptPayload struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Text           string `json:"text" validate:"required,notblank"`
}

// TextLength returns the length of the transcript text in characters.
func (p TranscriptPayload) TextLength() int {
	return utf8.RuneCountInString(p.Text)
}

// HasText reports whether the text has any non-whitespace content.
func (p TranscriptPayload) HasText() bool {
	return strings.TrimSpace(p.Text) != ""
}

// Acknowledgment is returned to callers when deferred work has been queued.
type Acknowledgment struct {
	JobID          string `json:"job_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Status         Status `json:"status"`
}
