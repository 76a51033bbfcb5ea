package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cardstock/core/database"
	chmodels "cardstock/feature/channels/models"
	invmodels "cardstock/feature/inventory/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{
		Driver: "sqlite",
		Name:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&invmodels.Card{},
		&invmodels.InventoryLot{},
		&invmodels.InventoryEvent{},
		&chmodels.ChannelIntegration{},
		&chmodels.ChannelListing{},
		&chmodels.SyncJob{},
	))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

// fakeProvider is a scripted Provider for tests.
type fakeProvider struct {
	orders   []Order
	snapshot []SnapshotItem
	pushErr  error
	fetchErr error
	pushed   []pushCall
}

type pushCall struct {
	externalListingID string
	sku               string
	quantity          int
}

func (f *fakeProvider) FetchOrders(ctx context.Context, since time.Time) ([]Order, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.orders, nil
}

func (f *fakeProvider) PushQuantity(ctx context.Context, externalListingID, sku string, quantity int) (json.RawMessage, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushed = append(f.pushed, pushCall{externalListingID, sku, quantity})
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakeProvider) FetchInventorySnapshot(ctx context.Context) ([]SnapshotItem, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.snapshot, nil
}

func fakeRegistry(provider Provider) *Registry {
	r := NewRegistry(nil)
	r.Register("fake", func(integration *chmodels.ChannelIntegration, tokens TokenSource) Provider {
		return provider
	})
	return r
}

func seedIntegration(t *testing.T, db *gorm.DB, shopID uint) *chmodels.ChannelIntegration {
	t.Helper()
	integration := chmodels.ChannelIntegration{
		ShopID:   shopID,
		Provider: "fake",
		Status:   chmodels.IntegrationActive,
	}
	require.NoError(t, db.Create(&integration).Error)
	return &integration
}

func seedListedLot(t *testing.T, db *gorm.DB, integration *chmodels.ChannelIntegration, sku string, quantity int) (*invmodels.InventoryLot, *chmodels.ChannelListing) {
	t.Helper()
	card := invmodels.Card{ShopID: integration.ShopID, Name: "Mox Emerald", SetName: "Alpha", Language: "English"}
	require.NoError(t, db.Create(&card).Error)
	lot := invmodels.InventoryLot{
		ShopID:            integration.ShopID,
		CardID:            card.ID,
		SKU:               sku,
		QuantityAvailable: quantity,
		Condition:         "NM",
		Status:            invmodels.LotStatusAvailable,
		InitialQuantity:   quantity,
	}
	require.NoError(t, db.Create(&lot).Error)
	listing := chmodels.ChannelListing{
		IntegrationID:     integration.ID,
		LotID:             lot.ID,
		ExternalListingID: "EXT-" + sku,
		ExternalSKU:       sku,
		SyncState:         chmodels.SyncStateSynced,
	}
	require.NoError(t, db.Create(&listing).Error)
	return &lot, &listing
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(2, 0))
	assert.Equal(t, 4*time.Second, Backoff(2, 1))
	assert.Equal(t, 16*time.Second, Backoff(2, 3))
	assert.Equal(t, 5*time.Second, Backoff(5, 0))
	// Negative and absurd attempts stay bounded.
	assert.Equal(t, 2*time.Second, Backoff(2, -4))
	assert.Equal(t, Backoff(2, 16), Backoff(2, 500))
}

func TestEnqueuePushMarksListingPending(t *testing.T) {
	db := setupTestDB(t)
	engine := NewSyncEngine(db, fakeRegistry(&fakeProvider{}), Config{MaxRetries: 3, BackoffBaseSeconds: 1}, zap.NewNop())
	integration := seedIntegration(t, db, 1)
	_, listing := seedListedLot(t, db, integration, "SKU-1", 7)

	job, err := engine.EnqueuePush(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, chmodels.JobQueued, job.Status)
	assert.Equal(t, chmodels.OpPushQuantity, job.Operation)
	assert.Equal(t, chmodels.DirectionOutbound, job.Direction)

	var stored chmodels.ChannelListing
	require.NoError(t, db.First(&stored, listing.ID).Error)
	assert.Equal(t, chmodels.SyncStatePending, stored.SyncState)
}

func TestEnqueuePushUnknownListing(t *testing.T) {
	db := setupTestDB(t)
	engine := NewSyncEngine(db, fakeRegistry(&fakeProvider{}), Config{}, zap.NewNop())

	_, err := engine.EnqueuePush(context.Background(), 999)
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestExecuteJobPushesFreshQuantity(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{}
	engine := NewSyncEngine(db, fakeRegistry(provider), Config{MaxRetries: 3, BackoffBaseSeconds: 1}, zap.NewNop())
	integration := seedIntegration(t, db, 1)
	lot, listing := seedListedLot(t, db, integration, "SKU-1", 7)

	job, err := engine.EnqueuePush(context.Background(), listing.ID)
	require.NoError(t, err)

	// Quantity changes between enqueue and execution; the stale value must
	// never be pushed.
	require.NoError(t, db.Model(&invmodels.InventoryLot{}).Where("id = ?", lot.ID).
		Update("quantity_available", 4).Error)

	require.NoError(t, engine.ExecuteJob(context.Background(), job.ID))

	require.Len(t, provider.pushed, 1)
	assert.Equal(t, 4, provider.pushed[0].quantity)
	assert.Equal(t, "EXT-SKU-1", provider.pushed[0].externalListingID)

	var storedJob chmodels.SyncJob
	require.NoError(t, db.First(&storedJob, job.ID).Error)
	assert.Equal(t, chmodels.JobSuccess, storedJob.Status)
	assert.NotNil(t, storedJob.CompletedAt)
	assert.JSONEq(t, `{"ok":true}`, string(storedJob.ResponsePayload))

	var storedListing chmodels.ChannelListing
	require.NoError(t, db.First(&storedListing, listing.ID).Error)
	assert.Equal(t, chmodels.SyncStateSynced, storedListing.SyncState)
	assert.Equal(t, 4, storedListing.ListedQuantity)
	assert.NotNil(t, storedListing.LastSyncedAt)
}

func TestExecuteJobSchedulesRetryWithBackoff(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{pushErr: ErrChannelFailure}
	engine := NewSyncEngine(db, fakeRegistry(provider), Config{MaxRetries: 3, BackoffBaseSeconds: 2}, zap.NewNop())
	integration := seedIntegration(t, db, 1)
	_, listing := seedListedLot(t, db, integration, "SKU-1", 7)

	job, err := engine.EnqueuePush(context.Background(), listing.ID)
	require.NoError(t, err)

	before := time.Now()
	require.NoError(t, engine.ExecuteJob(context.Background(), job.ID))

	var storedJob chmodels.SyncJob
	require.NoError(t, db.First(&storedJob, job.ID).Error)
	assert.Equal(t, chmodels.JobQueued, storedJob.Status)
	assert.Equal(t, 1, storedJob.Retries)
	assert.NotEmpty(t, storedJob.ErrorMessage)
	// First retry waits one base interval.
	assert.False(t, storedJob.NextAttemptAt.Before(before.Add(2*time.Second)))

	var storedListing chmodels.ChannelListing
	require.NoError(t, db.First(&storedListing, listing.ID).Error)
	assert.Equal(t, chmodels.SyncStateError, storedListing.SyncState)
}

func TestExecuteJobDeadAfterRetryCeiling(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{pushErr: ErrChannelFailure}
	engine := NewSyncEngine(db, fakeRegistry(provider), Config{MaxRetries: 2, BackoffBaseSeconds: 1}, zap.NewNop())
	integration := seedIntegration(t, db, 1)
	_, listing := seedListedLot(t, db, integration, "SKU-1", 7)

	job, err := engine.EnqueuePush(context.Background(), listing.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&chmodels.SyncJob{}).Where("id = ?", job.ID).
		Update("retries", 2).Error)

	require.NoError(t, engine.ExecuteJob(context.Background(), job.ID))

	var storedJob chmodels.SyncJob
	require.NoError(t, db.First(&storedJob, job.ID).Error)
	assert.Equal(t, chmodels.JobDead, storedJob.Status)
	assert.NotNil(t, storedJob.CompletedAt)
}

func TestExecuteJobAuthExpiredGoesDeadImmediately(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{pushErr: ErrAuthExpired}
	engine := NewSyncEngine(db, fakeRegistry(provider), Config{MaxRetries: 5, BackoffBaseSeconds: 1}, zap.NewNop())
	integration := seedIntegration(t, db, 1)
	_, listing := seedListedLot(t, db, integration, "SKU-1", 7)

	job, err := engine.EnqueuePush(context.Background(), listing.ID)
	require.NoError(t, err)

	require.NoError(t, engine.ExecuteJob(context.Background(), job.ID))

	var storedJob chmodels.SyncJob
	require.NoError(t, db.First(&storedJob, job.ID).Error)
	assert.Equal(t, chmodels.JobDead, storedJob.Status)
	assert.Equal(t, 0, storedJob.Retries)
}

func TestExecuteJobTerminalIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProvider{}
	engine := NewSyncEngine(db, fakeRegistry(provider), Config{MaxRetries: 3, BackoffBaseSeconds: 1}, zap.NewNop())
	integration := seedIntegration(t, db, 1)
	_, listing := seedListedLot(t, db, integration, "SKU-1", 7)

	job, err := engine.EnqueuePush(context.Background(), listing.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&chmodels.SyncJob{}).Where("id = ?", job.ID).
		Update("status", chmodels.JobSuccess).Error)

	require.NoError(t, engine.ExecuteJob(context.Background(), job.ID))
	assert.Empty(t, provider.pushed)
}

func TestSyncErrorCount(t *testing.T) {
	db, mock := setupMockDB(t)
	engine := NewSyncEngine(db, fakeRegistry(&fakeProvider{}), Config{}, zap.NewNop())

	rows := sqlmock.NewRows([]string{"count(*)"}).AddRow(3)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `channel_listings`").WillReturnRows(rows)

	count, err := engine.SyncErrorCount(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
