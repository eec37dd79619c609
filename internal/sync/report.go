// Package sync drives the scheduled reconciliation between the upstream
// ATS/VMS and the local catalog: an infrequent full re-pull plus a frequent
// incremental pull bounded by a watermark.
package sync

import (
	"time"

	"github.com/google/uuid"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerFull        Trigger = "full"
	TriggerIncremental Trigger = "incremental"
)

// RunStatus is the outcome of a run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial" // some records failed, run finished
	RunFailed  RunStatus = "failed"  // run aborted before finishing
	RunSkipped RunStatus = "skipped" // another run held the lock
)

// Report summarizes one sync run for the status surface and logs.
type Report struct {
	ID         uuid.UUID `json:"id"`
	Trigger    Trigger   `json:"trigger"`
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Synced     int       `json:"synced"`
	Failed     int       `json:"failed"`
}
