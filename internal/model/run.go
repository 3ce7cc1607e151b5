package model

import "time"

// RunStatus is the lifecycle state of a daily run in the journal.
type RunStatus string

// Run statuses. Only committed runs are visible to later runs; a failed run
// leaves no KPI or window state behind.
const (
	RunCommitted RunStatus = "committed"
	RunFailed    RunStatus = "failed"
)

// RunRecord journals one daily pipeline invocation.
type RunRecord struct {
	Day        time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Excluded   int
	Duplicates int

	// Emitted tracks whether the report sink accepted the day's row. A
	// committed run with Emitted=false can be re-emitted without re-running.
	Emitted bool
}
