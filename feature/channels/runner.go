package channels

import (
	"context"
	"time"

	"cardstock/core/queue"
	"cardstock/feature/channels/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// staleRunningAge is how long a job may sit in running before it is assumed
// orphaned by a crashed worker and requeued.
const staleRunningAge = 10 * time.Minute

// claimBatchSize bounds how many due jobs one tick hands to the pool.
const claimBatchSize = 20

// Runner drains the durable sync job queue. Each tick it claims due queued
// jobs and dispatches them to the worker pool; claiming flips the row to
// running in a guarded UPDATE so two runners never execute the same job.
type Runner struct {
	db     *gorm.DB
	engine *SyncEngine
	pool   *queue.Pool
	logger *zap.Logger
}

// NewRunner creates a sync job runner.
func NewRunner(db *gorm.DB, engine *SyncEngine, pool *queue.Pool, logger *zap.Logger) *Runner {
	return &Runner{db: db, engine: engine, pool: pool, logger: logger}
}

// Tick claims due jobs and submits them for execution. Invoked periodically by
// the scheduler.
func (r *Runner) Tick(ctx context.Context) {
	r.requeueStale(ctx)

	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("status = ? AND next_attempt_at <= ?", models.JobQueued, time.Now()).
		Order("next_attempt_at").
		Limit(claimBatchSize).
		Pluck("id", &ids).Error
	if err != nil {
		r.logger.Error("failed to scan for due sync jobs", zap.Error(err))
		return
	}

	for _, id := range ids {
		// Guarded claim: only the runner that flips queued->running owns the job.
		res := r.db.WithContext(ctx).Model(&models.SyncJob{}).
			Where("id = ? AND status = ?", id, models.JobQueued).
			Update("status", models.JobRunning)
		if res.Error != nil {
			r.logger.Error("failed to claim sync job", zap.Uint("job_id", id), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			continue // someone else claimed it
		}

		jobID := id
		submitted := r.pool.Submit(func(taskCtx context.Context) {
			if err := r.engine.ExecuteJob(taskCtx, jobID); err != nil {
				r.logger.Error("sync job execution failed", zap.Uint("job_id", jobID), zap.Error(err))
			}
		})
		if !submitted {
			// Pool saturated: put the job back so a later tick re-claims it.
			r.release(ctx, jobID)
		}
	}
}

// requeueStale returns jobs orphaned in running (crashed worker) to the queue.
// Re-execution is safe: pushes re-read fresh state and ledger writes carry
// idempotency keys.
func (r *Runner) requeueStale(ctx context.Context) {
	cutoff := time.Now().Add(-staleRunningAge)
	res := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("status = ? AND updated_at < ?", models.JobRunning, cutoff).
		Update("status", models.JobQueued)
	if res.Error != nil {
		r.logger.Error("failed to requeue stale sync jobs", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		r.logger.Warn("requeued stale running sync jobs", zap.Int64("count", res.RowsAffected))
	}
}

func (r *Runner) release(ctx context.Context, jobID uint) {
	err := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, models.JobRunning).
		Update("status", models.JobQueued).Error
	if err != nil {
		r.logger.Error("failed to release sync job", zap.Uint("job_id", jobID), zap.Error(err))
	}
}
