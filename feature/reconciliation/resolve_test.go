package reconciliation

import (
	"context"
	"testing"
	"time"

	"cardstock/feature/channels"
	chmodels "cardstock/feature/channels/models"
	"cardstock/feature/inventory"
	invmodels "cardstock/feature/inventory/models"
	"cardstock/feature/reconciliation/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newResolver(t *testing.T, db *gorm.DB) *Resolver {
	t.Helper()
	ledger := inventory.NewLedger(db, zap.NewNop(), inventory.Config{OversellPolicy: inventory.PolicyClamp})
	sync := channels.NewSyncEngine(db, registryFor(&snapshotProvider{}), channels.Config{MaxRetries: 3, BackoffBaseSeconds: 1}, zap.NewNop())
	return NewResolver(db, ledger, sync, zap.NewNop())
}

func seedMismatch(t *testing.T, db *gorm.DB, integration *chmodels.ChannelIntegration, listingID, lotID *uint, internal, channel int) *models.Mismatch {
	t.Helper()
	mismatch := models.Mismatch{
		IntegrationID:     integration.ID,
		ExternalListingID: "EXT-MM",
		ListingID:         listingID,
		LotID:             lotID,
		InternalQuantity:  internal,
		ChannelQuantity:   channel,
		Status:            models.StatusPending,
		DetectedAt:        time.Now(),
	}
	require.NoError(t, db.Create(&mismatch).Error)
	return &mismatch
}

func TestResolvePullChannelAdjustsLedger(t *testing.T) {
	db := setupTestDB(t)
	resolver := newResolver(t, db)
	integration := seedIntegration(t, db, 1)
	lot, listing := seedListedLot(t, db, integration, "SKU-1", 10)
	mismatch := seedMismatch(t, db, integration, &listing.ID, &lot.ID, 10, 7)

	resolved, err := resolver.Resolve(context.Background(), 1, mismatch.ID, models.StatusPullChannel, "channel is right", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPullChannel, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	// The lot adopts the channel quantity through one audited adjustment.
	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 7, stored.QuantityAvailable)

	var event invmodels.InventoryEvent
	require.NoError(t, db.Where("lot_id = ?", lot.ID).First(&event).Error)
	assert.Equal(t, invmodels.EventAdjustment, event.EventType)
	assert.Equal(t, -3, event.QuantityDelta)
	assert.Contains(t, string(event.Metadata), "reconciliation_pull")
}

func TestResolvePushInternalEnqueuesSync(t *testing.T) {
	db := setupTestDB(t)
	resolver := newResolver(t, db)
	integration := seedIntegration(t, db, 1)
	lot, listing := seedListedLot(t, db, integration, "SKU-1", 10)
	mismatch := seedMismatch(t, db, integration, &listing.ID, &lot.ID, 10, 7)

	_, err := resolver.Resolve(context.Background(), 1, mismatch.ID, models.StatusPushInternal, "", nil)
	require.NoError(t, err)

	var job chmodels.SyncJob
	require.NoError(t, db.Where("listing_id = ?", listing.ID).First(&job).Error)
	assert.Equal(t, chmodels.OpPushQuantity, job.Operation)
	assert.Equal(t, chmodels.JobQueued, job.Status)

	// The internal quantity is untouched.
	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 10, stored.QuantityAvailable)
}

func TestResolveIgnoreOnlyRecordsDecision(t *testing.T) {
	db := setupTestDB(t)
	resolver := newResolver(t, db)
	integration := seedIntegration(t, db, 1)
	lot, listing := seedListedLot(t, db, integration, "SKU-1", 10)
	mismatch := seedMismatch(t, db, integration, &listing.ID, &lot.ID, 10, 7)

	resolved, err := resolver.Resolve(context.Background(), 1, mismatch.ID, models.StatusIgnore, "known discrepancy", nil)
	require.NoError(t, err)
	assert.Equal(t, "known discrepancy", resolved.Notes)

	var jobs int64
	require.NoError(t, db.Model(&chmodels.SyncJob{}).Count(&jobs).Error)
	assert.Equal(t, int64(0), jobs)

	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 10, stored.QuantityAvailable)
}

func TestResolveGuards(t *testing.T) {
	db := setupTestDB(t)
	resolver := newResolver(t, db)
	integration := seedIntegration(t, db, 1)
	lot, listing := seedListedLot(t, db, integration, "SKU-1", 10)
	ctx := context.Background()

	mismatch := seedMismatch(t, db, integration, &listing.ID, &lot.ID, 10, 7)

	_, err := resolver.Resolve(ctx, 1, 999, models.StatusIgnore, "", nil)
	assert.ErrorIs(t, err, ErrMismatchNotFound)

	// Shop scope: another shop cannot resolve this mismatch.
	_, err = resolver.Resolve(ctx, 2, mismatch.ID, models.StatusIgnore, "", nil)
	assert.ErrorIs(t, err, ErrMismatchNotFound)

	_, err = resolver.Resolve(ctx, 1, mismatch.ID, "split_difference", "", nil)
	assert.ErrorIs(t, err, ErrInvalidResolution)

	_, err = resolver.Resolve(ctx, 1, mismatch.ID, models.StatusIgnore, "", nil)
	require.NoError(t, err)
	_, err = resolver.Resolve(ctx, 1, mismatch.ID, models.StatusIgnore, "", nil)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestResolveMissingBindings(t *testing.T) {
	db := setupTestDB(t)
	resolver := newResolver(t, db)
	integration := seedIntegration(t, db, 1)
	ctx := context.Background()

	unbound := seedMismatch(t, db, integration, nil, nil, 0, 2)

	_, err := resolver.Resolve(ctx, 1, unbound.ID, models.StatusPushInternal, "", nil)
	assert.ErrorIs(t, err, ErrMissingListing)

	_, err = resolver.Resolve(ctx, 1, unbound.ID, models.StatusPullChannel, "", nil)
	assert.ErrorIs(t, err, ErrMissingLot)
}
