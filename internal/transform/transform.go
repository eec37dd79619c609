// Package transform converts raw upstream job payloads into structured
// catalog records. The mapping is a pure function: the same payload always
// produces the same record, and extraction that fails leaves the field nil
// rather than guessing — nil means "unknown", not "absent requirement".
package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medstaff/sync-service/internal/model"
)

// Error marks a payload the transformer could not map. The orchestrator
// logs and skips the record; it never fails the batch.
type Error struct {
	UpstreamID string
	Reason     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform job %q: %s", e.UpstreamID, e.Reason)
}

// certificationVocabulary is the fixed set of certification abbreviations
// scanned for in requirements free text, case-insensitive on word
// boundaries. A match immediately followed by a licensure word ("RN
// license") names a license, not a certification, and is skipped.
var certificationVocabulary = []string{
	"BLS", "ACLS", "PALS", "TNCC", "CCRN", "CEN", "CNOR", "RN", "LPN", "CNA",
}

// skillVocabulary is scanned the same way for unit/specialty skills.
var skillVocabulary = []string{
	"ICU", "ER", "OR", "PACU", "NICU", "Telemetry", "Med-Surg", "L&D",
	"Oncology", "Dialysis", "Cath Lab",
}

var (
	experienceRe = regexp.MustCompile(`(?i)\b(\d+)\s*\+?\s*(?:years?|yrs?)\b[^.;]*?\bexperience\b`)
	hoursRe      = regexp.MustCompile(`(?i)\b(\d+)\s*hours?\b`)
	patternRe    = regexp.MustCompile(`\b\d+x\d+\b`)

	vocabRes = compileVocabulary()
)

func compileVocabulary() map[string]*regexp.Regexp {
	res := make(map[string]*regexp.Regexp, len(certificationVocabulary)+len(skillVocabulary))
	for _, word := range append(append([]string{}, certificationVocabulary...), skillVocabulary...) {
		res[word] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	}
	return res
}

// Job maps one upstream payload into the structured subset of a catalog
// record. Identifier and audit timestamps are owned by the store; syncedAt
// is stamped into the traceability metadata.
func Job(p model.UpstreamJobPayload, syncedAt time.Time) (model.CatalogJobRecord, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return model.CatalogJobRecord{}, &Error{Reason: "missing upstream identifier"}
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return model.CatalogJobRecord{}, &Error{UpstreamID: id, Reason: "payload not serializable"}
	}

	rec := model.CatalogJobRecord{
		UpstreamID:   id,
		Title:        strings.TrimSpace(p.Title),
		Specialty:    strings.TrimSpace(p.Specialty),
		FacilityName: strings.TrimSpace(p.FacilityName),
		Location: model.Location{
			City:      strings.TrimSpace(p.City),
			State:     strings.TrimSpace(p.State),
			Zip:       strings.TrimSpace(p.Zip),
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		},
		Duration: model.Duration{
			StartDate:   parseDate(p.StartDate),
			EndDate:     parseDate(p.EndDate),
			WeeklyHours: p.WeeklyHours,
		},
		Compensation: model.Compensation{
			PayRate: decimalFromNumber(p.PayRate),
			Stipend: decimalFromNumber(p.Stipend),
		},
		Shift: model.Shift{
			Type:    shiftType(p.ShiftText),
			Hours:   shiftHours(p.ShiftText),
			Pattern: shiftPattern(p.ShiftText),
		},
		Requirements: model.Requirements{
			Certifications:     scanVocabulary(p.Requirements, certificationVocabulary),
			MinExperienceYears: minExperience(p.Requirements),
			Skills:             scanVocabulary(p.Requirements, skillVocabulary),
		},
		Status:   mapStatus(p.Status),
		Featured: p.Featured,
		Urgent:   p.Urgent,
		Metadata: model.Metadata{
			Raw:               raw,
			SyncedAt:          syncedAt,
			UpstreamUpdatedAt: parseTimestamp(p.UpdatedAt),
		},
	}
	return rec, nil
}

// scanVocabulary collects vocabulary words appearing in text, in order of
// first appearance, without duplicates.
func scanVocabulary(text string, vocabulary []string) []string {
	type hit struct {
		word string
		pos  int
	}
	var hits []hit
	for _, word := range vocabulary {
		for _, loc := range vocabRes[word].FindAllStringIndex(text, -1) {
			if namesLicense(text[loc[1]:]) {
				continue
			}
			hits = append(hits, hit{word: word, pos: loc[0]})
			break
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	words := make([]string, len(hits))
	for i, h := range hits {
		words[i] = h.word
	}
	return words
}

// namesLicense reports whether the text following a vocabulary match is a
// licensure word, e.g. the "license" in "Active CA RN license".
func namesLicense(rest string) bool {
	rest = strings.ToLower(strings.TrimLeft(rest, " \t"))
	return strings.HasPrefix(rest, "licens")
}

func minExperience(text string) *int {
	m := experienceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// shiftType applies the fixed keyword precedence: day, then night, then
// evening. No disambiguation beyond that.
func shiftType(text string) *model.ShiftType {
	lower := strings.ToLower(text)
	for _, c := range []struct {
		keyword string
		typ     model.ShiftType
	}{
		{"day", model.ShiftDay},
		{"night", model.ShiftNight},
		{"evening", model.ShiftEvening},
	} {
		if strings.Contains(lower, c.keyword) {
			t := c.typ
			return &t
		}
	}
	return nil
}

func shiftHours(text string) *int {
	m := hoursRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func shiftPattern(text string) *string {
	m := patternRe.FindString(text)
	if m == "" {
		return nil
	}
	return &m
}

// mapStatus folds the upstream's loose lifecycle strings onto the catalog
// enum. Unknown values land on draft so nothing goes live by accident.
func mapStatus(status string) model.JobStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "open", "active", "published":
		return model.StatusActive
	case "filled", "closed":
		return model.StatusFilled
	case "expired", "cancelled", "canceled", "deleted":
		return model.StatusExpired
	default:
		return model.StatusDraft
	}
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	return nil
}

func decimalFromNumber(num json.Number) *decimal.Decimal {
	if num.String() == "" {
		return nil
	}
	d, err := decimal.NewFromString(num.String())
	if err != nil {
		return nil
	}
	return &d
}
