package domain

import "time"

// SyncKind distinguishes a full re-pull from an incremental one.
type SyncKind string

const (
	SyncFull        SyncKind = "full"
	SyncIncremental SyncKind = "incremental"
)

// SyncStatus is the lifecycle state of a bulk pull attempt.
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncRunning   SyncStatus = "running"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// SyncJob records one bulk data-pull attempt against a connection. The
// framework is a passive ledger here: the adapter driving the pull moves the
// job through running/completed/failed and fills in the counts.
type SyncJob struct {
	ID               string     `json:"id"`
	ConnectionID     string     `json:"connection_id"`
	Kind             SyncKind   `json:"kind"`
	Status           SyncStatus `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}
