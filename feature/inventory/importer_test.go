package inventory

import (
	"context"
	"testing"

	"cardstock/core/storage/mocks"
	"cardstock/feature/inventory/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const importCSV = "Card Name,Set,Qty,Cond,Price\n" +
	"Charizard,Base Set,3,LP,\"$1,200.00\"\n" +
	"Pikachu,Jungle,0,NM,5.00\n" +
	",Fossil,2,NM,1.00\n" +
	"Blastoise,Base Set,notanumber,NM,2.00\n" +
	"Venusaur,Base Set,1,,\n"

var importMapping = map[string]string{
	"Card Name": FieldName,
	"Set":       FieldSet,
	"Qty":       FieldQuantity,
	"Cond":      FieldCondition,
	"Price":     FieldCost,
}

func TestImportAppliesRowsAndCollectsErrors(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zap.NewNop(), Config{OversellPolicy: PolicyClamp})

	store := new(mocks.Client)
	store.On("PutObject", mock.Anything, "cardstock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, nil)

	imp := NewImporter(db, ledger, store, "cardstock", zap.NewNop())
	summary, err := imp.Import(context.Background(), 1, nil, importMapping, []byte(importCSV))
	require.NoError(t, err)

	// Zero quantity, missing name, and bad quantity rows are skipped with a
	// recorded error; the valid rows land.
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 3, summary.Skipped)
	assert.Len(t, summary.Errors, 3)
	assert.Contains(t, summary.ArchiveObject, "imports/shop_1/")
	store.AssertCalled(t, "PutObject", mock.Anything, "cardstock", summary.ArchiveObject, mock.Anything, mock.Anything, mock.Anything)

	var lots []models.InventoryLot
	require.NoError(t, db.Where("shop_id = ?", 1).Find(&lots).Error)
	require.Len(t, lots, 2)
	for _, lot := range lots {
		assert.Equal(t, lot.InitialQuantity, lot.QuantityAvailable)
	}

	// Cost basis is parsed with currency formatting stripped.
	var charizard models.InventoryLot
	require.NoError(t, db.
		Joins("JOIN cards ON cards.id = inventory_lots.card_id").
		Where("cards.name = ?", "Charizard").
		First(&charizard).Error)
	require.NotNil(t, charizard.CostBasis)
	assert.Equal(t, 1200.0, *charizard.CostBasis)
	assert.Equal(t, "LP", charizard.Condition)

	// Unmapped condition falls back to NM.
	var venusaur models.InventoryLot
	require.NoError(t, db.
		Joins("JOIN cards ON cards.id = inventory_lots.card_id").
		Where("cards.name = ?", "Venusaur").
		First(&venusaur).Error)
	assert.Equal(t, "NM", venusaur.Condition)

	// Every imported row carries an idempotent import event.
	var events int64
	require.NoError(t, db.Model(&models.InventoryEvent{}).
		Where("event_type = ?", models.EventImport).
		Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestImportRequiresMapping(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zap.NewNop(), Config{OversellPolicy: PolicyClamp})
	imp := NewImporter(db, ledger, nil, "", zap.NewNop())

	_, err := imp.Import(context.Background(), 1, nil, map[string]string{"Card Name": FieldName}, []byte(importCSV))
	assert.ErrorContains(t, err, "required field")

	_, err = imp.Import(context.Background(), 1, nil, map[string]string{}, []byte(importCSV))
	assert.ErrorContains(t, err, "no fields mapped")
}

func TestImportFailsWhenArchiveFails(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zap.NewNop(), Config{OversellPolicy: PolicyClamp})

	store := new(mocks.Client)
	store.On("PutObject", mock.Anything, "cardstock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)

	imp := NewImporter(db, ledger, store, "cardstock", zap.NewNop())
	_, err := imp.Import(context.Background(), 1, nil, importMapping, []byte(importCSV))
	assert.ErrorContains(t, err, "failed to archive import file")

	// Nothing is applied when the file cannot be archived.
	var lots int64
	require.NoError(t, db.Model(&models.InventoryLot{}).Count(&lots).Error)
	assert.Equal(t, int64(0), lots)
}
