package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/domain"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub004/internal/ports"
)

// SyncService is the bulk-pull ledger. It records what adapters do; it never
// schedules or iterates pages itself.
type SyncService struct {
	conns  ports.ConnectionRepository
	jobs   ports.SyncJobRepository
	logger zerolog.Logger
}

// NewSyncService creates a sync-job tracker.
func NewSyncService(conns ports.ConnectionRepository, jobs ports.SyncJobRepository, logger zerolog.Logger) *SyncService {
	return &SyncService{conns: conns, jobs: jobs, logger: logger}
}

// Start records a new pending job for a connection.
func (s *SyncService) Start(ctx context.Context, connectionID string, kind domain.SyncKind) (*domain.SyncJob, error) {
	conn, err := s.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectionNotFound, connectionID)
	}

	if kind == "" {
		kind = domain.SyncIncremental
	}

	job := &domain.SyncJob{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		Kind:         kind,
		Status:       domain.SyncPending,
		StartedAt:    time.Now(),
	}
	if err := s.jobs.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist sync job: %w", err)
	}

	s.logger.Info().
		Str("jobId", job.ID).
		Str("connectionId", connectionID).
		Str("kind", string(kind)).
		Msg("Started sync job")

	return job, nil
}

// Get retrieves a job by id.
func (s *SyncService) Get(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncJobNotFound, jobID)
	}
	return job, nil
}

// ListByConnection retrieves the jobs recorded for a connection.
func (s *SyncService) ListByConnection(ctx context.Context, connectionID string) ([]*domain.SyncJob, error) {
	jobs, err := s.jobs.ListByConnection(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	return jobs, nil
}

// MarkRunning moves a job to running. Called by the adapter once it begins
// pulling pages.
func (s *SyncService) MarkRunning(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	job.Status = domain.SyncRunning
	if err := s.jobs.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist sync job: %w", err)
	}
	return job, nil
}

// Complete finishes a job with its counts and stamps the connection's last
// successful sync time.
func (s *SyncService) Complete(ctx context.Context, jobID string, processed, failed int) (*domain.SyncJob, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job.Status = domain.SyncCompleted
	job.CompletedAt = &now
	job.RecordsProcessed = processed
	job.RecordsFailed = failed
	if err := s.jobs.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist sync job: %w", err)
	}

	// Re-fetch the connection rather than trusting any earlier snapshot.
	conn, err := s.conns.Get(ctx, job.ConnectionID)
	if err == nil && conn != nil {
		conn.LastSyncAt = &now
		conn.UpdatedAt = now
		if putErr := s.conns.Put(ctx, conn); putErr != nil {
			s.logger.Warn().Err(putErr).Str("connectionId", conn.ID).Msg("Failed to stamp last sync time")
		}
	}

	metrics.SyncJobsTotal.WithLabelValues(string(job.Kind), string(domain.SyncCompleted)).Inc()
	s.logger.Info().
		Str("jobId", jobID).
		Int("processed", processed).
		Int("failed", failed).
		Msg("Completed sync job")

	return job, nil
}

// Fail finishes a job with an error message.
func (s *SyncService) Fail(ctx context.Context, jobID, errorMessage string) (*domain.SyncJob, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job.Status = domain.SyncFailed
	job.CompletedAt = &now
	job.ErrorMessage = errorMessage
	if err := s.jobs.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist sync job: %w", err)
	}

	metrics.SyncJobsTotal.WithLabelValues(string(job.Kind), string(domain.SyncFailed)).Inc()
	s.logger.Warn().Str("jobId", jobID).Str("error", errorMessage).Msg("Sync job failed")

	return job, nil
}
