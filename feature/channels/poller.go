package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardstock/feature/channels/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Poller periodically pulls new orders from every active integration and
// hands them to the intake pipeline. Redelivery across overlapping poll
// windows is harmless; the ledger's idempotency keys absorb it.
type Poller struct {
	db       *gorm.DB
	registry *Registry
	intake   *Intake
	cfg      Config
	logger   *zap.Logger
}

// NewPoller creates an order poller.
func NewPoller(db *gorm.DB, registry *Registry, intake *Intake, cfg Config, logger *zap.Logger) *Poller {
	return &Poller{db: db, registry: registry, intake: intake, cfg: cfg, logger: logger}
}

// PollAll polls every active integration. Failures are isolated per
// integration.
func (p *Poller) PollAll(ctx context.Context) {
	var integrations []models.ChannelIntegration
	err := p.db.WithContext(ctx).
		Where("status = ?", models.IntegrationActive).
		Find(&integrations).Error
	if err != nil {
		p.logger.Error("failed to load active integrations", zap.Error(err))
		return
	}
	for i := range integrations {
		if _, err := p.Poll(ctx, &integrations[i]); err != nil {
			p.logger.Error("order poll failed",
				zap.Uint("integration_id", integrations[i].ID), zap.Error(err))
		}
	}
}

// PollByID polls one integration by id.
func (p *Poller) PollByID(ctx context.Context, integrationID uint) (int, error) {
	var integration models.ChannelIntegration
	err := p.db.WithContext(ctx).First(&integration, integrationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: id %d", ErrIntegrationNotFound, integrationID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load integration %d: %w", integrationID, err)
	}
	if integration.Status != models.IntegrationActive {
		return 0, fmt.Errorf("%w: id %d is %s", ErrIntegrationInactive, integration.ID, integration.Status)
	}
	return p.Poll(ctx, &integration)
}

// Poll fetches orders created since the integration's cursor and ingests them.
// The cursor only advances after a fully successful sweep, so a failed poll is
// retried from the same point on the next cycle.
func (p *Poller) Poll(ctx context.Context, integration *models.ChannelIntegration) (int, error) {
	provider, err := p.registry.For(integration)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	since := now.Add(-time.Duration(p.cfg.PollLookbackHours) * time.Hour)
	if integration.LastPollCursor != "" {
		if parsed, err := time.Parse(time.RFC3339, integration.LastPollCursor); err == nil {
			since = parsed
		}
	}

	orders, err := provider.FetchOrders(ctx, since)
	if err != nil {
		p.recordPollFailure(ctx, integration.ID, err)
		return 0, err
	}

	processed := 0
	clean := true
	for _, order := range orders {
		summary, err := p.intake.IngestOrder(ctx, integration, order)
		if err != nil {
			clean = false
			p.logger.Error("order ingest failed",
				zap.Uint("integration_id", integration.ID),
				zap.String("order_id", order.ID),
				zap.Error(err))
			continue
		}
		if summary.Failed > 0 {
			clean = false
		}
		processed += summary.Processed
	}

	// A transiently-failed line item must be redelivered: holding the cursor
	// makes the next cycle re-fetch the window, and the idempotency keys
	// absorb everything that already applied.
	if !clean {
		p.logger.Warn("poll sweep had transient failures, keeping cursor",
			zap.Uint("integration_id", integration.ID),
			zap.Int("orders", len(orders)),
			zap.Int("line_items_processed", processed))
		return processed, nil
	}

	err = p.db.WithContext(ctx).Model(&models.ChannelIntegration{}).
		Where("id = ?", integration.ID).
		Update("last_poll_cursor", now.Format(time.RFC3339)).Error
	if err != nil {
		return processed, fmt.Errorf("failed to advance poll cursor: %w", err)
	}

	p.logger.Info("order poll finished",
		zap.Uint("integration_id", integration.ID),
		zap.Int("orders", len(orders)),
		zap.Int("line_items_processed", processed),
	)
	return processed, nil
}

// recordPollFailure writes an inbound failed SyncJob so total poll failures
// stay visible to operators.
func (p *Poller) recordPollFailure(ctx context.Context, integrationID uint, cause error) {
	now := time.Now()
	job := models.SyncJob{
		IntegrationID: integrationID,
		Operation:     models.OpPollOrders,
		Direction:     models.DirectionInbound,
		Status:        models.JobFailed,
		ErrorMessage:  cause.Error(),
		NextAttemptAt: now,
		CompletedAt:   &now,
	}
	if err := p.db.WithContext(ctx).Create(&job).Error; err != nil {
		p.logger.Error("failed to record poll failure",
			zap.Uint("integration_id", integrationID), zap.Error(err))
	}
}
