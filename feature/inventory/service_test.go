package inventory

import (
	"context"
	"testing"

	"cardstock/feature/inventory/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	ledger := NewLedger(db, zap.NewNop(), Config{OversellPolicy: PolicyClamp})
	return NewService(db, ledger, zap.NewNop()), db
}

func TestCreateLotRecordsInitialQuantity(t *testing.T) {
	svc, db := newTestService(t)

	lot, err := svc.CreateLot(context.Background(), CreateLotInput{
		ShopID:          1,
		InitialQuantity: 4,
		Condition:       "LP",
	}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, lot.SKU)
	assert.Equal(t, 4, lot.QuantityAvailable)

	// The initial quantity arrives through the ledger, not the row insert.
	var event models.InventoryEvent
	require.NoError(t, db.Where("lot_id = ?", lot.ID).First(&event).Error)
	assert.Equal(t, models.EventImport, event.EventType)
	assert.Equal(t, 4, event.QuantityDelta)
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	svc, db := newTestService(t)
	lot := seedLot(t, db, 1, 2)

	_, err := svc.Adjust(context.Background(), 1, lot.ID, -5, "shrinkage", nil)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	result, err := svc.Adjust(context.Background(), 1, lot.ID, -2, "shrinkage", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewQuantity)
}

func TestGradingRoundTrip(t *testing.T) {
	svc, db := newTestService(t)
	lot := seedLot(t, db, 1, 5)

	out, err := svc.SendForGrading(context.Background(), 1, lot.ID, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NewQuantity)

	var mid models.InventoryLot
	require.NoError(t, db.First(&mid, lot.ID).Error)
	assert.Equal(t, models.LotStatusGrading, mid.Status)

	back, err := svc.ReturnFromGrading(context.Background(), 1, lot.ID, 2, "PSA 9", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, back.NewQuantity)

	var final models.InventoryLot
	require.NoError(t, db.First(&final, lot.ID).Error)
	assert.Equal(t, models.LotStatusAvailable, final.Status)
}

func TestReturnFromGradingRequiresGradingStatus(t *testing.T) {
	svc, db := newTestService(t)
	lot := seedLot(t, db, 1, 5)

	_, err := svc.ReturnFromGrading(context.Background(), 1, lot.ID, 1, "PSA 10", nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestReserveUnreserve(t *testing.T) {
	svc, db := newTestService(t)
	lot := seedLot(t, db, 1, 5)

	_, err := svc.Reserve(context.Background(), 1, lot.ID, 3, nil)
	require.NoError(t, err)

	var mid models.InventoryLot
	require.NoError(t, db.First(&mid, lot.ID).Error)
	assert.Equal(t, 2, mid.QuantityAvailable)
	assert.Equal(t, 3, mid.QuantityReserved)

	_, err = svc.Unreserve(context.Background(), 1, lot.ID, 3, nil)
	require.NoError(t, err)

	var final models.InventoryLot
	require.NoError(t, db.First(&final, lot.ID).Error)
	assert.Equal(t, 5, final.QuantityAvailable)
	assert.Equal(t, 0, final.QuantityReserved)
}

func TestGetLotScopesByShop(t *testing.T) {
	svc, db := newTestService(t)
	lot := seedLot(t, db, 1, 5)

	_, err := svc.GetLot(context.Background(), 2, lot.ID)
	assert.ErrorIs(t, err, ErrLotNotFound)

	found, err := svc.GetLot(context.Background(), 1, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, lot.SKU, found.SKU)
}
