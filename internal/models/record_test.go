package models

import (
	"errors"
	"testing"
)

func TestNewRecord_Validation(t *testing.T) {
	tests := []struct {
		name           string
		tenantID       string
		conversationID string
		status         Status
		wantErr        error
	}{
		{"valid", "tenant-1", "c1", StatusCompleted, nil},
		{"missing tenant", "", "c1", StatusCompleted, ErrMissingTenant},
		{"missing conversation", "tenant-1", "", StatusCompleted, ErrMissingConversation},
		{"unknown status", "tenant-1", "c1", Status(42), ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecord(tt.tenantID, tt.conversationID, 0.8, "s", []string{"general"}, tt.status)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewRecord_CopiesTags(t *testing.T) {
	tags := []string{"finance", "risk"}
	rec, err := NewRecord("tenant-1", "c1", 0.8, "s", tags, StatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags[0] = "mutated"
	if rec.Tags[0] != "finance" {
		t.Errorf("record tags aliased caller slice: %v", rec.Tags)
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	rec := Record{ConversationID: "c1", Tags: []string{"general"}}
	cp := rec.Clone()
	cp.AddTag(TagReviewRequired)

	if rec.HasTag(TagReviewRequired) {
		t.Error("clone mutation leaked into original")
	}
	if !cp.HasTag(TagReviewRequired) {
		t.Error("expected clone to carry new tag")
	}
}

func TestRecord_AddTag_Idempotent(t *testing.T) {
	rec := Record{Tags: []string{"general"}}

	if !rec.AddTag(TagReviewRequired) {
		t.Error("expected first AddTag to add")
	}
	if rec.AddTag(TagReviewRequired) {
		t.Error("expected second AddTag to be a no-op")
	}
	if len(rec.Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", rec.Tags)
	}
}

func TestTranscriptPayload_TextHelpers(t *testing.T) {
	p := TranscriptPayload{ConversationID: "c1", Text: "  \t\n"}
	if p.HasText() {
		t.Error("expected whitespace-only text to have no content")
	}

	p.Text = "héllo"
	if p.TextLength() != 5 {
		t.Errorf("expected rune length 5, got %d", p.TextLength())
	}
}
