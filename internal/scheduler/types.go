// Package scheduler implements the scheduled jobs of the platform. The
// nightly distribution job introduces a random sample of eligible athletes
// to every coach who has not been served yet.
package scheduler

import "time"

// TaskType identifies which job the scheduler Lambda should run.
type TaskType string

const (
	TaskDistributeAthletes TaskType = "distribute_athletes"
)

// JobPayload is the JSON payload sent by the EventBridge rule (or a manual
// invocation) to the distributor Lambda.
//
//	{
//	  "task": "distribute_athletes",
//	  "reference_time": "2026-02-06T07:00:00Z"  // optional
//	}
type JobPayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual runs and backfills. If nil,
	// time.Now() is used.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

// RunState is the terminal state of one distribution run.
type RunState string

const (
	StateDone                RunState = "DONE"
	StateTerminatedWithError RunState = "TERMINATED_WITH_ERROR"
)

// RunResult summarizes a distribution run.
type RunResult struct {
	State RunState
	Pages int
	// CoachesProcessed counts coaches whose transaction completed, including
	// the ones skipped for an empty pool.
	CoachesProcessed    int
	CoachesSkipped      int
	CoachesFailed       int
	DeliveriesAttempted int
	Delivered           int
	DeliveryFailures    int
	RecordsCommitted    int
	// Offset is the number of coaches fetched so far. On termination it is
	// the position the run stopped at.
	Offset int
}
