package channels

import (
	"context"
	"errors"
	"fmt"

	"cardstock/feature/channels/models"
	"cardstock/feature/inventory"
	invmodels "cardstock/feature/inventory/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IngestSummary reports the outcome of processing one inbound order.
type IngestSummary struct {
	OrderID    string `json:"order_id"`
	Processed  int    `json:"processed"`
	Replayed   int    `json:"replayed"`
	Unresolved int    `json:"unresolved"`
	Failed     int    `json:"failed"`
}

// Intake is the idempotent order-intake pipeline. Each line item is processed
// independently: a failure in one never aborts its siblings, and redelivery of
// the whole order is safe because every decrement carries an idempotency key.
type Intake struct {
	db     *gorm.DB
	ledger *inventory.Ledger
	sync   *SyncEngine
	logger *zap.Logger
}

// NewIntake creates the order intake pipeline.
func NewIntake(db *gorm.DB, ledger *inventory.Ledger, sync *SyncEngine, logger *zap.Logger) *Intake {
	return &Intake{db: db, ledger: ledger, sync: sync, logger: logger}
}

// IngestOrder applies an inbound order's line items to the ledger and fans out
// quantity pushes to every listing bound to each affected lot.
func (i *Intake) IngestOrder(ctx context.Context, integration *models.ChannelIntegration, order Order) (*IngestSummary, error) {
	if order.ID == "" {
		return nil, fmt.Errorf("order without id for integration %d", integration.ID)
	}
	summary := &IngestSummary{OrderID: order.ID}

	for _, line := range order.LineItems {
		log := i.logger.With(
			zap.String("order_id", order.ID),
			zap.String("line_item_id", line.ID),
			zap.String("sku", line.SKU),
			zap.Uint("integration_id", integration.ID),
		)

		result, err := i.ingestLine(ctx, integration, order.ID, line)
		switch {
		case errors.Is(err, ErrUnresolvedLine):
			// Deliberately not retried: manual follow-up required, because
			// guessing the wrong lot corrupts the ledger irreversibly.
			summary.Unresolved++
			log.Error("order line item unresolved, skipping", zap.Error(err))
		case err != nil:
			// Transient failures are safe to drop here; the next poll cycle
			// redelivers the order and the idempotency key absorbs the replay.
			summary.Failed++
			log.Error("order line item failed", zap.Error(err))
		case result.Replayed:
			summary.Replayed++
			log.Info("order line item already processed, skipping")
		default:
			summary.Processed++
			if result.Clamped {
				log.Warn("oversell detected during order intake",
					zap.Int("applied_delta", result.AppliedDelta),
					zap.Int("requested_quantity", line.Quantity))
			}
		}
	}
	return summary, nil
}

// ingestLine resolves one line item to a lot, decrements it, and enqueues a
// push for every listing bound to the lot.
func (i *Intake) ingestLine(ctx context.Context, integration *models.ChannelIntegration, orderID string, line LineItem) (*inventory.ApplyResult, error) {
	if line.Quantity <= 0 {
		return nil, fmt.Errorf("%w: non-positive quantity %d", ErrUnresolvedLine, line.Quantity)
	}

	lotID, err := i.resolveLot(ctx, integration, line.SKU)
	if err != nil {
		return nil, err
	}

	result, err := i.ledger.Apply(ctx, inventory.ApplyInput{
		ShopID:         integration.ShopID,
		LotID:          lotID,
		Delta:          -line.Quantity,
		Kind:           invmodels.EventSale,
		IdempotencyKey: fmt.Sprintf("channel_order_%s_%s", orderID, line.ID),
		OrderRef:       orderID,
		Metadata: map[string]any{
			"integration_id": integration.ID,
			"external_sku":   line.SKU,
			"line_item_id":   line.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	// A sale on one channel must suppress availability everywhere: one push
	// per listing bound to the lot, across all integrations. Replays fan out
	// too, so a redelivery after a crash between the ledger commit and the
	// enqueue loop still gets its pushes; duplicate jobs are harmless because
	// every push reads the lot's quantity fresh at execution time.
	var listings []models.ChannelListing
	if err := i.db.WithContext(ctx).Where("lot_id = ?", lotID).Find(&listings).Error; err != nil {
		return nil, fmt.Errorf("failed to load listings for fan-out: %w", err)
	}
	for _, listing := range listings {
		if _, err := i.sync.EnqueuePush(ctx, listing.ID); err != nil {
			i.logger.Error("failed to enqueue fan-out push",
				zap.Uint("listing_id", listing.ID), zap.Error(err))
		}
	}
	return result, nil
}

// resolveLot maps an external SKU to a lot: first via the integration's
// listings, then by direct SKU match within the integration's shop.
func (i *Intake) resolveLot(ctx context.Context, integration *models.ChannelIntegration, sku string) (uint, error) {
	if sku == "" {
		return 0, fmt.Errorf("%w: empty sku", ErrUnresolvedLine)
	}

	var listing models.ChannelListing
	err := i.db.WithContext(ctx).
		Where("integration_id = ? AND external_sku = ?", integration.ID, sku).
		First(&listing).Error
	if err == nil {
		return listing.LotID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to look up listing: %w", err)
	}

	var lot invmodels.InventoryLot
	err = i.db.WithContext(ctx).
		Where("shop_id = ? AND sku = ?", integration.ShopID, sku).
		First(&lot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: sku %q", ErrUnresolvedLine, sku)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up lot by sku: %w", err)
	}
	return lot.ID, nil
}
