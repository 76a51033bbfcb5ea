package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cardstock/feature/channels"
	"cardstock/feature/inventory"
	invmodels "cardstock/feature/inventory/models"
	"cardstock/feature/reconciliation/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver applies an operator's decision to a pending mismatch. Every
// resolution is terminal; a later sweep reopens the row if the disagreement
// persists.
type Resolver struct {
	db     *gorm.DB
	ledger *inventory.Ledger
	sync   *channels.SyncEngine
	logger *zap.Logger
}

// NewResolver creates a mismatch resolver.
func NewResolver(db *gorm.DB, ledger *inventory.Ledger, sync *channels.SyncEngine, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, ledger: ledger, sync: sync, logger: logger}
}

// Resolve applies one resolution action:
//
//	push_internal: trust the ledger, enqueue a quantity push to the channel
//	pull_channel:  trust the channel, adjust the lot to the channel quantity
//	ignore:        record the decision, change nothing
func (r *Resolver) Resolve(ctx context.Context, shopID, mismatchID uint, action, notes string, actorID *uint) (*models.Mismatch, error) {
	mismatch, err := r.load(ctx, shopID, mismatchID)
	if err != nil {
		return nil, err
	}
	if mismatch.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: mismatch %d is %s", ErrAlreadyResolved, mismatch.ID, mismatch.Status)
	}

	switch action {
	case models.StatusPushInternal:
		err = r.pushInternal(ctx, mismatch)
	case models.StatusPullChannel:
		err = r.pullChannel(ctx, shopID, mismatch, actorID)
	case models.StatusIgnore:
		// Decision recorded, nothing else to do.
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, action)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]any{
		"status":      action,
		"resolved_at": now,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	if err := r.db.WithContext(ctx).Model(&models.Mismatch{}).Where("id = ?", mismatch.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to record resolution: %w", err)
	}
	mismatch.Status = action
	mismatch.ResolvedAt = &now
	if notes != "" {
		mismatch.Notes = notes
	}

	r.logger.Info("mismatch resolved",
		zap.Uint("mismatch_id", mismatch.ID),
		zap.String("action", action),
		zap.Int("internal_quantity", mismatch.InternalQuantity),
		zap.Int("channel_quantity", mismatch.ChannelQuantity),
	)
	return mismatch, nil
}

// pushInternal asserts the ledger's quantity onto the channel through the
// normal sync pipeline, so retries and audit records apply as usual.
func (r *Resolver) pushInternal(ctx context.Context, mismatch *models.Mismatch) error {
	if mismatch.ListingID == nil {
		return ErrMissingListing
	}
	_, err := r.sync.EnqueuePush(ctx, *mismatch.ListingID)
	return err
}

// pullChannel adopts the channel's quantity: one ledger adjustment with the
// delta between the two views, so the audit trail shows the correction.
func (r *Resolver) pullChannel(ctx context.Context, shopID uint, mismatch *models.Mismatch, actorID *uint) error {
	if mismatch.LotID == nil {
		return ErrMissingLot
	}
	delta := mismatch.ChannelQuantity - mismatch.InternalQuantity
	if delta == 0 {
		return nil
	}
	_, err := r.ledger.Apply(ctx, inventory.ApplyInput{
		ShopID:  shopID,
		LotID:   *mismatch.LotID,
		Delta:   delta,
		Kind:    invmodels.EventAdjustment,
		ActorID: actorID,
		Metadata: map[string]any{
			"reason":      "reconciliation_pull",
			"mismatch_id": mismatch.ID,
		},
	})
	return err
}

func (r *Resolver) load(ctx context.Context, shopID, mismatchID uint) (*models.Mismatch, error) {
	var mismatch models.Mismatch
	err := r.db.WithContext(ctx).
		Joins("JOIN channel_integrations ON channel_integrations.id = mismatches.integration_id").
		Where("mismatches.id = ? AND channel_integrations.shop_id = ?", mismatchID, shopID).
		First(&mismatch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrMismatchNotFound, mismatchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mismatch %d: %w", mismatchID, err)
	}
	return &mismatch, nil
}
