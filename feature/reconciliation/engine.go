package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardstock/feature/channels"
	chmodels "cardstock/feature/channels/models"
	invmodels "cardstock/feature/inventory/models"
	"cardstock/feature/reconciliation/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Report summarizes one reconciliation sweep over an integration.
type Report struct {
	IntegrationID   uint `json:"integration_id"`
	ItemsChecked    int  `json:"items_checked"`
	MismatchesFound int  `json:"mismatches_found"`
}

// Engine compares the channel's reported inventory against the internal
// ledger. Detection only writes mismatch rows; it never touches quantities.
// Corrections happen exclusively through operator resolutions.
type Engine struct {
	db       *gorm.DB
	registry *channels.Registry
	logger   *zap.Logger
}

// NewEngine creates the reconciliation engine.
func NewEngine(db *gorm.DB, registry *channels.Registry, logger *zap.Logger) *Engine {
	return &Engine{db: db, registry: registry, logger: logger}
}

// ReconcileAll sweeps every active integration. Failures are isolated per
// integration.
func (e *Engine) ReconcileAll(ctx context.Context) {
	var integrations []chmodels.ChannelIntegration
	err := e.db.WithContext(ctx).
		Where("status = ?", chmodels.IntegrationActive).
		Find(&integrations).Error
	if err != nil {
		e.logger.Error("failed to load active integrations", zap.Error(err))
		return
	}
	for i := range integrations {
		if _, err := e.Reconcile(ctx, &integrations[i]); err != nil {
			e.logger.Error("reconciliation sweep failed",
				zap.Uint("integration_id", integrations[i].ID), zap.Error(err))
		}
	}
}

// ReconcileByID runs one sweep for an integration by id.
func (e *Engine) ReconcileByID(ctx context.Context, integrationID uint) (*Report, error) {
	var integration chmodels.ChannelIntegration
	err := e.db.WithContext(ctx).First(&integration, integrationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", channels.ErrIntegrationNotFound, integrationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load integration %d: %w", integrationID, err)
	}
	if integration.Status != chmodels.IntegrationActive {
		return nil, fmt.Errorf("%w: id %d is %s", channels.ErrIntegrationInactive, integration.ID, integration.Status)
	}
	return e.Reconcile(ctx, &integration)
}

// Reconcile fetches the channel's inventory snapshot and upserts a mismatch
// row for every item whose channel quantity disagrees with the internal lot.
func (e *Engine) Reconcile(ctx context.Context, integration *chmodels.ChannelIntegration) (*Report, error) {
	provider, err := e.registry.For(integration)
	if err != nil {
		return nil, err
	}

	items, err := provider.FetchInventorySnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inventory snapshot: %w", err)
	}

	report := &Report{IntegrationID: integration.ID, ItemsChecked: len(items)}
	for _, item := range items {
		mismatched, err := e.checkItem(ctx, integration, item)
		if err != nil {
			e.logger.Error("failed to check snapshot item",
				zap.Uint("integration_id", integration.ID),
				zap.String("external_listing_id", item.ExternalListingID),
				zap.Error(err))
			continue
		}
		if mismatched {
			report.MismatchesFound++
		}
	}

	e.logger.Info("reconciliation sweep finished",
		zap.Uint("integration_id", integration.ID),
		zap.Int("items_checked", report.ItemsChecked),
		zap.Int("mismatches_found", report.MismatchesFound),
	)
	return report, nil
}

// checkItem compares one snapshot item against the internal state. Items that
// cannot be resolved to a lot still produce a mismatch row so operators see
// unknown listings.
func (e *Engine) checkItem(ctx context.Context, integration *chmodels.ChannelIntegration, item channels.SnapshotItem) (bool, error) {
	var listingID, lotID *uint
	internal := 0
	resolved := false

	var listing chmodels.ChannelListing
	err := e.db.WithContext(ctx).Preload("Lot").
		Where("integration_id = ? AND external_listing_id = ?", integration.ID, item.ExternalListingID).
		First(&listing).Error
	switch {
	case err == nil:
		listingID = &listing.ID
		lotID = &listing.LotID
		if listing.Lot != nil {
			internal = listing.Lot.QuantityAvailable
			resolved = true
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Fall back to a direct SKU match within the shop.
		if item.SKU != "" {
			var lot invmodels.InventoryLot
			lerr := e.db.WithContext(ctx).
				Where("shop_id = ? AND sku = ?", integration.ShopID, item.SKU).
				First(&lot).Error
			if lerr == nil {
				lotID = &lot.ID
				internal = lot.QuantityAvailable
				resolved = true
			} else if !errors.Is(lerr, gorm.ErrRecordNotFound) {
				return false, fmt.Errorf("failed to look up lot by sku: %w", lerr)
			}
		}
	default:
		return false, fmt.Errorf("failed to look up listing: %w", err)
	}

	if resolved && internal == item.Quantity {
		return false, nil // agreement, leave any prior row untouched
	}

	return true, e.upsertMismatch(ctx, integration.ID, item, listingID, lotID, internal)
}

// upsertMismatch keeps at most one row per (integration, external listing).
// Re-detection refreshes the quantities and reopens a previously resolved row.
func (e *Engine) upsertMismatch(ctx context.Context, integrationID uint, item channels.SnapshotItem, listingID, lotID *uint, internal int) error {
	now := time.Now()
	var existing models.Mismatch
	err := e.db.WithContext(ctx).
		Where("integration_id = ? AND external_listing_id = ?", integrationID, item.ExternalListingID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		mismatch := models.Mismatch{
			IntegrationID:     integrationID,
			ExternalListingID: item.ExternalListingID,
			ListingID:         listingID,
			LotID:             lotID,
			ExternalSKU:       item.SKU,
			ExternalTitle:     item.Title,
			InternalQuantity:  internal,
			ChannelQuantity:   item.Quantity,
			Status:            models.StatusPending,
			DetectedAt:        now,
		}
		if cerr := e.db.WithContext(ctx).Create(&mismatch).Error; cerr != nil {
			return fmt.Errorf("failed to create mismatch: %w", cerr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up mismatch: %w", err)
	}

	updates := map[string]any{
		"listing_id":        listingID,
		"lot_id":            lotID,
		"external_sku":      item.SKU,
		"external_title":    item.Title,
		"internal_quantity": internal,
		"channel_quantity":  item.Quantity,
		"status":            models.StatusPending,
		"detected_at":       now,
		"resolved_at":       nil,
	}
	if uerr := e.db.WithContext(ctx).Model(&models.Mismatch{}).Where("id = ?", existing.ID).Updates(updates).Error; uerr != nil {
		return fmt.Errorf("failed to refresh mismatch: %w", uerr)
	}
	return nil
}

// MismatchFilter narrows mismatch listings.
type MismatchFilter struct {
	Status        string
	IntegrationID uint
}

// Mismatches lists the shop's mismatches, newest detection first.
func (e *Engine) Mismatches(ctx context.Context, shopID uint, filter MismatchFilter, limit, offset int) ([]models.Mismatch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := e.db.WithContext(ctx).
		Preload("Listing").Preload("Lot").
		Joins("JOIN channel_integrations ON channel_integrations.id = mismatches.integration_id").
		Where("channel_integrations.shop_id = ?", shopID).
		Order("mismatches.detected_at DESC").
		Limit(limit).Offset(offset)
	if filter.Status != "" {
		q = q.Where("mismatches.status = ?", filter.Status)
	}
	if filter.IntegrationID != 0 {
		q = q.Where("mismatches.integration_id = ?", filter.IntegrationID)
	}
	var mismatches []models.Mismatch
	if err := q.Find(&mismatches).Error; err != nil {
		return nil, fmt.Errorf("failed to list mismatches: %w", err)
	}
	return mismatches, nil
}
