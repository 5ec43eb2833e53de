package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/univ-erp-api/pkg/config"
	"github.com/noah-isme/univ-erp-api/pkg/jobs"
)

const jobTypeEnrollmentDelete = "enrollment_delete"

type enrollmentDeleter interface {
	DeleteByID(ctx context.Context, id int64) error
}

// DropRepairWorker finishes drops whose grades were removed but whose enrollment delete failed.
type DropRepairWorker struct {
	queue   *jobs.Queue
	repo    enrollmentDeleter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewDropRepairWorker constructs the worker. Call Start before scheduling.
func NewDropRepairWorker(repo enrollmentDeleter, cfg config.DropRepairConfig, metrics *MetricsService, logger *zap.Logger) *DropRepairWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &DropRepairWorker{repo: repo, metrics: metrics, logger: logger}
	w.queue = jobs.NewQueue("drop-repair", w.handle, jobs.QueueConfig{
		Workers:     cfg.Workers,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		Logger:      logger,
		OnExhausted: w.exhausted,
	})
	return w
}

// Start launches the queue workers.
func (w *DropRepairWorker) Start(ctx context.Context) {
	w.queue.Start(ctx)
}

// Stop halts the workers. Repairs that have not run are reported as exhausted.
func (w *DropRepairWorker) Stop() {
	w.queue.Stop()
}

// Drain waits for every scheduled repair to finish or exhaust its retries, or for ctx.
func (w *DropRepairWorker) Drain(ctx context.Context) error {
	return w.queue.Drain(ctx)
}

// ScheduleEnrollmentDelete queues a retry of the enrollment delete.
func (w *DropRepairWorker) ScheduleEnrollmentDelete(enrollmentID int64) error {
	return w.queue.Enqueue(jobs.Job{Type: jobTypeEnrollmentDelete, Payload: enrollmentID})
}

func (w *DropRepairWorker) handle(ctx context.Context, job jobs.Job) error {
	enrollmentID, ok := job.Payload.(int64)
	if !ok {
		w.logger.Error("invalid repair payload", zap.String("job_id", job.ID), zap.Any("payload", job.Payload))
		return nil
	}
	if err := w.repo.DeleteByID(ctx, enrollmentID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		w.metrics.RecordDropRepair("retry")
		return fmt.Errorf("delete enrollment %d: %w", enrollmentID, err)
	}
	w.metrics.RecordDropRepair("repaired")
	w.logger.Info("half-dropped enrollment repaired", zap.Int64("enrollment_id", enrollmentID), zap.Int("attempt", job.Attempt))
	return nil
}

func (w *DropRepairWorker) exhausted(job jobs.Job, err error) {
	w.metrics.RecordDropRepair("exhausted")
	w.logger.Error("enrollment left without grades, repair abandoned", zap.Any("enrollment_id", job.Payload), zap.Int("attempt", job.Attempt), zap.Error(err))
}
