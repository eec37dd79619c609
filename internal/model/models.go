// Package model defines shared data structures for the sync service.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// UpstreamJobPayload is a raw job record as received from the upstream
// ATS/VMS, either from the paginated listing API or a webhook event.
// It is transient — the transformer converts it into a CatalogJobRecord
// and only the catalog record is persisted.
type UpstreamJobPayload struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Specialty    string      `json:"specialty"`
	FacilityName string      `json:"facility_name"`
	City         string      `json:"city"`
	State        string      `json:"state"`
	Zip          string      `json:"zip"`
	Latitude     *float64    `json:"latitude"`
	Longitude    *float64    `json:"longitude"`
	StartDate    string      `json:"start_date"`
	EndDate      string      `json:"end_date"`
	WeeklyHours  *int        `json:"weekly_hours"`
	ShiftText    string      `json:"shift"`
	Requirements string      `json:"requirements"`
	PayRate      json.Number `json:"pay_rate"`
	Stipend      json.Number `json:"stipend"`
	Status       string      `json:"status"`
	Featured     bool        `json:"featured"`
	Urgent       bool        `json:"urgent"`
	UpdatedAt    string      `json:"updated_at"`
}

// ShiftType is the coarse shift classification derived from free text.
type ShiftType string

const (
	ShiftDay     ShiftType = "Day"
	ShiftNight   ShiftType = "Night"
	ShiftEvening ShiftType = "Evening"
)

// Location is the structured location block of a catalog record.
type Location struct {
	City      string   `json:"city"`
	State     string   `json:"state"`
	Zip       string   `json:"zip"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Duration holds the assignment window and contracted weekly hours.
type Duration struct {
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	WeeklyHours *int       `json:"weeklyHours,omitempty"`
}

// Compensation holds pay figures. Decimals, never floats — these feed
// payroll-adjacent reporting downstream.
type Compensation struct {
	PayRate *decimal.Decimal `json:"payRate,omitempty"`
	Stipend *decimal.Decimal `json:"stipend,omitempty"`
}

// Shift is the structured shift block derived from the upstream free text.
// Every field is a pointer: nil means "could not be determined", which
// downstream consumers must treat as unknown rather than absent.
type Shift struct {
	Type    *ShiftType `json:"type,omitempty"`
	Hours   *int       `json:"hours,omitempty"`
	Pattern *string    `json:"pattern,omitempty"`
}

// Requirements is the structured requirements block derived from the
// upstream free text. Same nil-means-unknown convention as Shift.
type Requirements struct {
	Certifications     []string `json:"certifications,omitempty"`
	MinExperienceYears *int     `json:"minExperienceYears,omitempty"`
	Skills             []string `json:"skills,omitempty"`
}

// Metadata is the opaque traceability bag attached to every catalog record.
type Metadata struct {
	Raw               json.RawMessage `json:"raw,omitempty"`
	SyncedAt          time.Time       `json:"syncedAt"`
	UpstreamUpdatedAt *time.Time      `json:"upstreamUpdatedAt,omitempty"`
}

// CatalogJobRecord is the canonical structured job record persisted by the
// catalog store. UpstreamID is the natural key: one record per upstream
// identifier, never merged or split.
type CatalogJobRecord struct {
	UpstreamID   string       `json:"upstreamId"`
	Title        string       `json:"title"`
	Specialty    string       `json:"specialty"`
	FacilityName string       `json:"facilityName"`
	Location     Location     `json:"location"`
	Duration     Duration     `json:"duration"`
	Compensation Compensation `json:"compensation"`
	Shift        Shift        `json:"shift"`
	Requirements Requirements `json:"requirements"`
	Status       JobStatus    `json:"status"`
	Featured     bool         `json:"featured"`
	Urgent       bool         `json:"urgent"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Metadata     Metadata     `json:"metadata"`
}
