package transform_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"medstaff/sync-service/internal/model"
	"medstaff/sync-service/internal/transform"
)

var syncedAt = time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

func basePayload() model.UpstreamJobPayload {
	return model.UpstreamJobPayload{
		ID:           "J-100",
		Title:        "Travel RN",
		Specialty:    "ICU",
		FacilityName: "St. Mary Medical Center",
		City:         "Long Beach",
		State:        "CA",
		Zip:          "90806",
		Status:       "open",
		UpdatedAt:    "2026-08-10T08:00:00Z",
	}
}

// ── certifications and experience ──────────────────────────────────────────

func TestJob_CertificationExtraction(t *testing.T) {
	p := basePayload()
	p.Requirements = "Active CA RN license, BLS, ACLS, 2+ years ICU experience"

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}

	want := []string{"BLS", "ACLS"}
	got := rec.Requirements.Certifications
	if len(got) != len(want) {
		t.Fatalf("certifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("certifications[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if rec.Requirements.MinExperienceYears == nil || *rec.Requirements.MinExperienceYears != 2 {
		t.Errorf("minExperienceYears = %v, want 2", rec.Requirements.MinExperienceYears)
	}
}

func TestJob_IsolatedRNTokenMatches(t *testing.T) {
	p := basePayload()
	p.Requirements = "RN, BLS required"

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	got := rec.Requirements.Certifications
	if len(got) != 2 || got[0] != "RN" || got[1] != "BLS" {
		t.Errorf("certifications = %v, want [RN BLS] in order of appearance", got)
	}
}

func TestJob_CertificationsCaseInsensitiveNoDuplicates(t *testing.T) {
	p := basePayload()
	p.Requirements = "bls and BLS and acls"

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	got := rec.Requirements.Certifications
	if len(got) != 2 || got[0] != "BLS" || got[1] != "ACLS" {
		t.Errorf("certifications = %v, want [BLS ACLS]", got)
	}
}

func TestJob_NoExperienceMatchLeavesUnset(t *testing.T) {
	p := basePayload()
	p.Requirements = "Experienced nurses preferred"

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec.Requirements.MinExperienceYears != nil {
		t.Errorf("minExperienceYears = %d, want unset (never default to zero)",
			*rec.Requirements.MinExperienceYears)
	}
}

// ── shift parsing ──────────────────────────────────────────────────────────

func TestJob_ShiftPatternAndNightType(t *testing.T) {
	p := basePayload()
	p.ShiftText = "3x12 - Night Shift (7PM-7AM)"

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec.Shift.Type == nil || *rec.Shift.Type != model.ShiftNight {
		t.Errorf("shift type = %v, want Night", rec.Shift.Type)
	}
	if rec.Shift.Pattern == nil || *rec.Shift.Pattern != "3x12" {
		t.Errorf("shift pattern = %v, want 3x12", rec.Shift.Pattern)
	}
	if rec.Shift.Hours != nil {
		t.Errorf("shift hours = %d, want unset (no explicit hour token)", *rec.Shift.Hours)
	}
}

func TestJob_ShiftHoursAndDayType(t *testing.T) {
	p := basePayload()
	p.ShiftText = "12 hour Day shift"

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec.Shift.Type == nil || *rec.Shift.Type != model.ShiftDay {
		t.Errorf("shift type = %v, want Day", rec.Shift.Type)
	}
	if rec.Shift.Hours == nil || *rec.Shift.Hours != 12 {
		t.Errorf("shift hours = %v, want 12", rec.Shift.Hours)
	}
	if rec.Shift.Pattern != nil {
		t.Errorf("shift pattern = %q, want unset", *rec.Shift.Pattern)
	}
}

func TestJob_ShiftKeywordPrecedence(t *testing.T) {
	// "day" wins over "night" regardless of order in the text.
	p := basePayload()
	p.ShiftText = "Rotating night/day coverage"

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec.Shift.Type == nil || *rec.Shift.Type != model.ShiftDay {
		t.Errorf("shift type = %v, want Day (first keyword in precedence order)", rec.Shift.Type)
	}
}

func TestJob_EmptyShiftTextLeavesAllUnset(t *testing.T) {
	rec, err := transform.Job(basePayload(), syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec.Shift.Type != nil || rec.Shift.Hours != nil || rec.Shift.Pattern != nil {
		t.Errorf("shift = %+v, want all fields unset", rec.Shift)
	}
}

// ── status mapping ─────────────────────────────────────────────────────────

func TestJob_StatusMapping(t *testing.T) {
	cases := []struct {
		upstream string
		want     model.JobStatus
	}{
		{"open", model.StatusActive},
		{"Active", model.StatusActive},
		{"filled", model.StatusFilled},
		{"closed", model.StatusFilled},
		{"cancelled", model.StatusExpired},
		{"deleted", model.StatusExpired},
		{"draft", model.StatusDraft},
		{"something-new", model.StatusDraft},
		{"", model.StatusDraft},
	}
	for _, c := range cases {
		p := basePayload()
		p.Status = c.upstream
		rec, err := transform.Job(p, syncedAt)
		if err != nil {
			t.Fatalf("Job(status=%q): %v", c.upstream, err)
		}
		if rec.Status != c.want {
			t.Errorf("status %q mapped to %s, want %s", c.upstream, rec.Status, c.want)
		}
	}
}

// ── pay figures, metadata, determinism ─────────────────────────────────────

func TestJob_CompensationDecimals(t *testing.T) {
	p := basePayload()
	p.PayRate = json.Number("2450.50")
	p.Stipend = json.Number("1200")

	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec.Compensation.PayRate == nil || rec.Compensation.PayRate.String() != "2450.5" {
		t.Errorf("payRate = %v, want 2450.5", rec.Compensation.PayRate)
	}
	if rec.Compensation.Stipend == nil || rec.Compensation.Stipend.String() != "1200" {
		t.Errorf("stipend = %v, want 1200", rec.Compensation.Stipend)
	}
}

func TestJob_MissingPayLeavesUnset(t *testing.T) {
	rec, err := transform.Job(basePayload(), syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec.Compensation.PayRate != nil || rec.Compensation.Stipend != nil {
		t.Errorf("compensation = %+v, want unset", rec.Compensation)
	}
}

func TestJob_MetadataCarriesRawAndTimestamps(t *testing.T) {
	p := basePayload()
	rec, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if !rec.Metadata.SyncedAt.Equal(syncedAt) {
		t.Errorf("syncedAt = %v, want %v", rec.Metadata.SyncedAt, syncedAt)
	}
	want := time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC)
	if rec.Metadata.UpstreamUpdatedAt == nil || !rec.Metadata.UpstreamUpdatedAt.Equal(want) {
		t.Errorf("upstreamUpdatedAt = %v, want %v", rec.Metadata.UpstreamUpdatedAt, want)
	}

	var round model.UpstreamJobPayload
	if err := json.Unmarshal(rec.Metadata.Raw, &round); err != nil {
		t.Fatalf("metadata raw is not the original payload: %v", err)
	}
	if round.ID != p.ID {
		t.Errorf("metadata raw id = %q, want %q", round.ID, p.ID)
	}
}

func TestJob_Deterministic(t *testing.T) {
	p := basePayload()
	p.Requirements = "BLS, ACLS, 5 years experience"
	p.ShiftText = "4x10 Day"

	first, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	second, err := transform.Job(p, syncedAt)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("same payload produced different records")
	}
}

// ── malformed payloads ─────────────────────────────────────────────────────

func TestJob_MissingIDRejected(t *testing.T) {
	p := basePayload()
	p.ID = "   "
	_, err := transform.Job(p, syncedAt)
	var terr *transform.Error
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *transform.Error", err)
	}
}
