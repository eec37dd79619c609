// Job lifecycle state machine.
//
// Valid status graph:
//
//	draft ──► active ──► filled ──► expired
//	            ▲  │                   ▲
//	            │  └───────────────────┤
//	            └──────────────────────┘ (repost)
//
// The sync engine never hard-deletes: an upstream deletion is represented
// as a transition to expired. An expired job may come back as active when
// the upstream reposts it — the upstream is the system of record.
package model

import "fmt"

// JobStatus mirrors the catalog's lifecycle status column.
type JobStatus string

const (
	StatusDraft   JobStatus = "draft"
	StatusActive  JobStatus = "active"
	StatusFilled  JobStatus = "filled"
	StatusExpired JobStatus = "expired"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[JobStatus][]JobStatus{
	StatusDraft:   {StatusActive, StatusExpired},
	StatusActive:  {StatusFilled, StatusExpired},
	StatusFilled:  {StatusExpired},
	StatusExpired: {StatusActive},
}

// ParseJobStatus converts a raw string to a JobStatus, returning an error
// for unknown values.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case StatusDraft, StatusActive, StatusFilled, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the lifecycle state machine. Self-transitions are allowed: re-upserting
// an unchanged record is the common case.
func IsTransitionAllowed(from, to JobStatus) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
