package model_test

import (
	"testing"

	"medstaff/sync-service/internal/model"
)

// ── ParseJobStatus ─────────────────────────────────────────────────────────

func TestParseJobStatus_ValidValues(t *testing.T) {
	valid := []string{"draft", "active", "filled", "expired"}
	for _, s := range valid {
		got, err := model.ParseJobStatus(s)
		if err != nil {
			t.Errorf("ParseJobStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseJobStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseJobStatus_InvalidValue(t *testing.T) {
	for _, s := range []string{"ACTIVE", "open", "deleted", ""} {
		if _, err := model.ParseJobStatus(s); err == nil {
			t.Errorf("ParseJobStatus(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from model.JobStatus
		to   model.JobStatus
	}{
		{model.StatusDraft, model.StatusActive},
		{model.StatusActive, model.StatusFilled},
		{model.StatusActive, model.StatusExpired},
		{model.StatusFilled, model.StatusExpired},
		{model.StatusExpired, model.StatusActive}, // repost
	}
	for _, c := range cases {
		if !model.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_Self(t *testing.T) {
	all := []model.JobStatus{
		model.StatusDraft, model.StatusActive, model.StatusFilled, model.StatusExpired,
	}
	for _, s := range all {
		if !model.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true (re-upsert)", s, s)
		}
	}
}

func TestIsTransitionAllowed_Backwards(t *testing.T) {
	cases := []struct {
		from model.JobStatus
		to   model.JobStatus
	}{
		{model.StatusActive, model.StatusDraft},
		{model.StatusFilled, model.StatusActive},
		{model.StatusFilled, model.StatusDraft},
		{model.StatusExpired, model.StatusDraft},
		{model.StatusExpired, model.StatusFilled},
	}
	for _, c := range cases {
		if model.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false", c.from, c.to)
		}
	}
}
