package channels

import (
	"context"
	"testing"

	chmodels "cardstock/feature/channels/models"
	"cardstock/feature/inventory"
	invmodels "cardstock/feature/inventory/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newIntake(t *testing.T, db *gorm.DB) *Intake {
	t.Helper()
	ledger := inventory.NewLedger(db, zap.NewNop(), inventory.Config{OversellPolicy: inventory.PolicyClamp})
	engine := NewSyncEngine(db, fakeRegistry(&fakeProvider{}), Config{MaxRetries: 3, BackoffBaseSeconds: 1}, zap.NewNop())
	return NewIntake(db, ledger, engine, zap.NewNop())
}

func TestIngestOrderFansOutToAllListings(t *testing.T) {
	db := setupTestDB(t)
	intake := newIntake(t, db)

	ebayIntegration := seedIntegration(t, db, 1)
	lot, _ := seedListedLot(t, db, ebayIntegration, "SKU-1", 10)

	// Same lot listed on a second channel.
	otherIntegration := seedIntegration(t, db, 1)
	other := chmodels.ChannelListing{
		IntegrationID:     otherIntegration.ID,
		LotID:             lot.ID,
		ExternalListingID: "OTHER-1",
		ExternalSKU:       "SKU-1",
		SyncState:         chmodels.SyncStateSynced,
	}
	require.NoError(t, db.Create(&other).Error)

	summary, err := intake.IngestOrder(context.Background(), ebayIntegration, Order{
		ID: "ORD-1",
		LineItems: []LineItem{
			{ID: "LINE-1", SKU: "SKU-1", Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Failed)

	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 8, stored.QuantityAvailable)

	// One push per listing bound to the lot, across both integrations.
	var jobs int64
	require.NoError(t, db.Model(&chmodels.SyncJob{}).
		Where("operation = ?", chmodels.OpPushQuantity).
		Count(&jobs).Error)
	assert.Equal(t, int64(2), jobs)
}

func TestIngestOrderReplayIsHarmless(t *testing.T) {
	db := setupTestDB(t)
	intake := newIntake(t, db)
	integration := seedIntegration(t, db, 1)
	lot, _ := seedListedLot(t, db, integration, "SKU-1", 10)

	order := Order{ID: "ORD-1", LineItems: []LineItem{{ID: "LINE-1", SKU: "SKU-1", Quantity: 3}}}

	first, err := intake.IngestOrder(context.Background(), integration, order)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	second, err := intake.IngestOrder(context.Background(), integration, order)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, second.Replayed)

	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 7, stored.QuantityAvailable)

	// Replays still fan out: if a crash separated the ledger commit from the
	// enqueue loop, the redelivery is what gets the push queued. Duplicate
	// jobs are harmless since pushes read the quantity fresh.
	var jobs int64
	require.NoError(t, db.Model(&chmodels.SyncJob{}).Count(&jobs).Error)
	assert.Equal(t, int64(2), jobs)
}

func TestIngestOrderUnresolvedLineIsSkipped(t *testing.T) {
	db := setupTestDB(t)
	intake := newIntake(t, db)
	integration := seedIntegration(t, db, 1)
	lot, _ := seedListedLot(t, db, integration, "SKU-1", 10)

	summary, err := intake.IngestOrder(context.Background(), integration, Order{
		ID: "ORD-2",
		LineItems: []LineItem{
			{ID: "LINE-1", SKU: "NO-SUCH-SKU", Quantity: 1},
			{ID: "LINE-2", SKU: "SKU-1", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Unresolved)
	assert.Equal(t, 1, summary.Processed)

	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 9, stored.QuantityAvailable)
}

func TestIngestOrderFallsBackToShopSKU(t *testing.T) {
	db := setupTestDB(t)
	intake := newIntake(t, db)
	integration := seedIntegration(t, db, 1)

	// A lot with no listing: resolution falls back to the shop SKU match.
	card := invmodels.Card{ShopID: 1, Name: "Time Walk", SetName: "Alpha", Language: "English"}
	require.NoError(t, db.Create(&card).Error)
	lot := invmodels.InventoryLot{
		ShopID:            1,
		CardID:            card.ID,
		SKU:               "BARE-SKU",
		QuantityAvailable: 5,
		Condition:         "NM",
		Status:            invmodels.LotStatusAvailable,
	}
	require.NoError(t, db.Create(&lot).Error)

	summary, err := intake.IngestOrder(context.Background(), integration, Order{
		ID:        "ORD-3",
		LineItems: []LineItem{{ID: "LINE-1", SKU: "BARE-SKU", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 3, stored.QuantityAvailable)
}

func TestIngestOrderClampLogsOversell(t *testing.T) {
	db := setupTestDB(t)
	intake := newIntake(t, db)
	integration := seedIntegration(t, db, 1)
	lot, _ := seedListedLot(t, db, integration, "SKU-1", 1)

	summary, err := intake.IngestOrder(context.Background(), integration, Order{
		ID:        "ORD-4",
		LineItems: []LineItem{{ID: "LINE-1", SKU: "SKU-1", Quantity: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	// The sale never drives the lot negative.
	var stored invmodels.InventoryLot
	require.NoError(t, db.First(&stored, lot.ID).Error)
	assert.Equal(t, 0, stored.QuantityAvailable)
}
