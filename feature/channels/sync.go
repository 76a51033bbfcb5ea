package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cardstock/feature/channels/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SyncEngine owns the outbound sync state machine:
//
//	queued -> running -> success
//	                  -> failed -> queued (retry with backoff)
//	                            -> dead   (retry ceiling reached)
//
// A job preserves intent, not a snapshot: it re-reads the lot's quantity at
// execution time, so concurrently-queued pushes for the same listing collapse
// naturally; the last one to execute wins.
type SyncEngine struct {
	db       *gorm.DB
	registry *Registry
	cfg      Config
	logger   *zap.Logger
}

// NewSyncEngine creates the outbound sync engine.
func NewSyncEngine(db *gorm.DB, registry *Registry, cfg Config, logger *zap.Logger) *SyncEngine {
	return &SyncEngine{db: db, registry: registry, cfg: cfg, logger: logger}
}

// Backoff returns the retry delay for the given attempt:
// base * 2^attempt, so attempt 0 waits one base interval.
func Backoff(baseSeconds, attempt int) time.Duration {
	if baseSeconds <= 0 {
		baseSeconds = 2
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}
	return time.Duration(baseSeconds) * time.Second * (1 << attempt)
}

// EnqueuePush inserts a queued push_quantity job for the listing and marks it
// pending. The job stores no quantity; the fresh value is read at execution.
func (e *SyncEngine) EnqueuePush(ctx context.Context, listingID uint) (*models.SyncJob, error) {
	var listing models.ChannelListing
	err := e.db.WithContext(ctx).First(&listing, listingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrListingNotFound, listingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load listing %d: %w", listingID, err)
	}

	job := models.SyncJob{
		IntegrationID: listing.IntegrationID,
		ListingID:     &listing.ID,
		Operation:     models.OpPushQuantity,
		Direction:     models.DirectionOutbound,
		Status:        models.JobQueued,
		NextAttemptAt: time.Now(),
	}
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return fmt.Errorf("failed to enqueue sync job: %w", err)
		}
		return tx.Model(&models.ChannelListing{}).
			Where("id = ?", listing.ID).
			Update("sync_state", models.SyncStatePending).Error
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("sync job enqueued",
		zap.Uint("job_id", job.ID),
		zap.Uint("listing_id", listing.ID),
		zap.Uint("integration_id", listing.IntegrationID),
	)
	return &job, nil
}

// ExecuteJob runs one claimed push job to a terminal or retryable state.
func (e *SyncEngine) ExecuteJob(ctx context.Context, jobID uint) error {
	var job models.SyncJob
	err := e.db.WithContext(ctx).Preload("Integration").First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: id %d", ErrJobNotFound, jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to load sync job %d: %w", jobID, err)
	}
	switch job.Status {
	case models.JobSuccess, models.JobDead:
		return nil // terminal, nothing to do
	case models.JobQueued:
		if err := e.db.WithContext(ctx).Model(&job).Update("status", models.JobRunning).Error; err != nil {
			return fmt.Errorf("failed to mark job running: %w", err)
		}
	}
	if job.Operation != models.OpPushQuantity || job.ListingID == nil {
		return e.markDead(ctx, &job, nil, fmt.Errorf("job %d has no executable operation", job.ID))
	}

	// Fresh read at execution time; enqueue and execution may be arbitrarily
	// separated and a stale snapshot must never be pushed.
	var listing models.ChannelListing
	err = e.db.WithContext(ctx).Preload("Lot").First(&listing, *job.ListingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return e.markDead(ctx, &job, nil, fmt.Errorf("%w: id %d", ErrListingNotFound, *job.ListingID))
	}
	if err != nil {
		return e.retryLater(ctx, &job, &listing, fmt.Errorf("failed to load listing: %w", err))
	}
	if listing.Lot == nil {
		return e.markDead(ctx, &job, &listing, fmt.Errorf("listing %d has no lot", listing.ID))
	}
	quantity := listing.Lot.QuantityAvailable

	request, _ := json.Marshal(map[string]any{
		"external_listing_id": listing.ExternalListingID,
		"sku":                 listing.ExternalSKU,
		"quantity":            quantity,
	})
	if err := e.db.WithContext(ctx).Model(&job).Update("request_payload", json.RawMessage(request)).Error; err != nil {
		e.logger.Error("failed to record request payload", zap.Uint("job_id", job.ID), zap.Error(err))
	}

	provider, err := e.registry.For(job.Integration)
	if err != nil {
		return e.markDead(ctx, &job, &listing, err)
	}

	response, err := provider.PushQuantity(ctx, listing.ExternalListingID, listing.ExternalSKU, quantity)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			// No point retrying without valid credentials; the integration is
			// already flagged by the token source.
			return e.markDead(ctx, &job, &listing, err)
		}
		return e.retryLater(ctx, &job, &listing, err)
	}

	now := time.Now()
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ChannelListing{}).Where("id = ?", listing.ID).Updates(map[string]any{
			"listed_quantity": quantity,
			"sync_state":      models.SyncStateSynced,
			"last_synced_at":  now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.SyncJob{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":           models.JobSuccess,
			"response_payload": json.RawMessage(response),
			"completed_at":     now,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record sync success: %w", err)
	}

	e.logger.Info("quantity pushed",
		zap.Uint("job_id", job.ID),
		zap.Uint("listing_id", listing.ID),
		zap.Int("quantity", quantity),
	)
	return nil
}

// retryLater records the failure and schedules a retry with exponential
// backoff, or transitions to dead once the ceiling is reached.
func (e *SyncEngine) retryLater(ctx context.Context, job *models.SyncJob, listing *models.ChannelListing, cause error) error {
	attempt := job.Retries
	if attempt >= e.cfg.MaxRetries {
		return e.markDead(ctx, job, listing, cause)
	}

	delay := Backoff(e.cfg.BackoffBaseSeconds, attempt)
	updates := map[string]any{
		"status":          models.JobQueued,
		"retries":         attempt + 1,
		"error_message":   cause.Error(),
		"next_attempt_at": time.Now().Add(delay),
	}
	if err := e.db.WithContext(ctx).Model(&models.SyncJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	e.markListingError(ctx, listing)

	e.logger.Warn("sync job failed, retry scheduled",
		zap.Uint("job_id", job.ID),
		zap.Int("attempt", attempt+1),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	return nil
}

// markDead transitions the job to its dead terminal state. Dead jobs are never
// retried; they require manual intervention.
func (e *SyncEngine) markDead(ctx context.Context, job *models.SyncJob, listing *models.ChannelListing, cause error) error {
	now := time.Now()
	updates := map[string]any{
		"status":       models.JobDead,
		"completed_at": now,
	}
	if cause != nil {
		updates["error_message"] = cause.Error()
	}
	if err := e.db.WithContext(ctx).Model(&models.SyncJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark job dead: %w", err)
	}
	e.markListingError(ctx, listing)

	e.logger.Error("sync job dead, manual intervention required",
		zap.Uint("job_id", job.ID),
		zap.Int("retries", job.Retries),
		zap.Error(cause),
	)
	return nil
}

func (e *SyncEngine) markListingError(ctx context.Context, listing *models.ChannelListing) {
	if listing == nil || listing.ID == 0 {
		return
	}
	err := e.db.WithContext(ctx).Model(&models.ChannelListing{}).
		Where("id = ?", listing.ID).
		Update("sync_state", models.SyncStateError).Error
	if err != nil {
		e.logger.Error("failed to mark listing errored",
			zap.Uint("listing_id", listing.ID), zap.Error(err))
	}
}

// JobFilter narrows sync job listings.
type JobFilter struct {
	Status        string
	IntegrationID uint
}

// Jobs lists sync jobs for the shop, newest first.
func (e *SyncEngine) Jobs(ctx context.Context, shopID uint, filter JobFilter, limit, offset int) ([]models.SyncJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := e.db.WithContext(ctx).
		Joins("JOIN channel_integrations ON channel_integrations.id = sync_jobs.integration_id").
		Where("channel_integrations.shop_id = ?", shopID).
		Order("sync_jobs.created_at DESC").
		Limit(limit).Offset(offset)
	if filter.Status != "" {
		q = q.Where("sync_jobs.status = ?", filter.Status)
	}
	if filter.IntegrationID != 0 {
		q = q.Where("sync_jobs.integration_id = ?", filter.IntegrationID)
	}
	var jobs []models.SyncJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	return jobs, nil
}

// Listings lists the shop's channel listings.
func (e *SyncEngine) Listings(ctx context.Context, shopID uint, syncState string, limit, offset int) ([]models.ChannelListing, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := e.db.WithContext(ctx).
		Preload("Lot").
		Joins("JOIN channel_integrations ON channel_integrations.id = channel_listings.integration_id").
		Where("channel_integrations.shop_id = ?", shopID).
		Order("channel_listings.created_at DESC").
		Limit(limit).Offset(offset)
	if syncState != "" {
		q = q.Where("channel_listings.sync_state = ?", syncState)
	}
	var listings []models.ChannelListing
	if err := q.Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// SyncErrorCount counts listings currently in the error sync state, for the
// operator dashboard.
func (e *SyncEngine) SyncErrorCount(ctx context.Context, shopID uint) (int64, error) {
	var count int64
	err := e.db.WithContext(ctx).Model(&models.ChannelListing{}).
		Joins("JOIN channel_integrations ON channel_integrations.id = channel_listings.integration_id").
		Where("channel_integrations.shop_id = ? AND channel_listings.sync_state = ?", shopID, models.SyncStateError).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sync errors: %w", err)
	}
	return count, nil
}
