package entity

import (
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
)

// SyncJobDoc is the MongoDB shape of a sync-job ledger entry.
type SyncJobDoc struct {
	JobID            string     `bson:"_id"`
	ConnectionID     string     `bson:"connectionId"`
	Kind             string     `bson:"kind"`
	Status           string     `bson:"status"`
	StartedAt        time.Time  `bson:"startedAt"`
	CompletedAt      *time.Time `bson:"completedAt,omitempty"`
	RecordsProcessed int        `bson:"recordsProcessed"`
	RecordsFailed    int        `bson:"recordsFailed"`
	ErrorMessage     string     `bson:"errorMessage,omitempty"`
}

// ToDomain converts the document to a domain sync job.
func (d *SyncJobDoc) ToDomain() *domain.SyncJob {
	return &domain.SyncJob{
		ID:               d.JobID,
		ConnectionID:     d.ConnectionID,
		Kind:             domain.SyncKind(d.Kind),
		Status:           domain.SyncStatus(d.Status),
		StartedAt:        d.StartedAt,
		CompletedAt:      d.CompletedAt,
		RecordsProcessed: d.RecordsProcessed,
		RecordsFailed:    d.RecordsFailed,
		ErrorMessage:     d.ErrorMessage,
	}
}

// SyncJobDocFromDomain converts a domain sync job to its document form.
func SyncJobDocFromDomain(job *domain.SyncJob) *SyncJobDoc {
	return &SyncJobDoc{
		JobID:            job.ID,
		ConnectionID:     job.ConnectionID,
		Kind:             string(job.Kind),
		Status:           string(job.Status),
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		RecordsProcessed: job.RecordsProcessed,
		RecordsFailed:    job.RecordsFailed,
		ErrorMessage:     job.ErrorMessage,
	}
}
