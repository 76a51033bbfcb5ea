package channels

import (
	"context"
	"testing"
	"time"

	chmodels "cardstock/feature/channels/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAccessTokenReturnsStoredToken(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewDBTokenSource(db, zap.NewNop())

	expiry := time.Now().Add(time.Hour)
	integration := chmodels.ChannelIntegration{
		ShopID:      1,
		Provider:    "ebay",
		Status:      chmodels.IntegrationActive,
		Credentials: `{"access_token":"tok-123","refresh_token":"ref-456"}`,
		TokenExpiry: &expiry,
	}
	require.NoError(t, db.Create(&integration).Error)

	token, err := tokens.AccessToken(context.Background(), &integration)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestAccessTokenExpiryMarksIntegrationExpired(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewDBTokenSource(db, zap.NewNop())

	expiry := time.Now().Add(-time.Minute)
	integration := chmodels.ChannelIntegration{
		ShopID:      1,
		Provider:    "ebay",
		Status:      chmodels.IntegrationActive,
		Credentials: `{"access_token":"tok-123"}`,
		TokenExpiry: &expiry,
	}
	require.NoError(t, db.Create(&integration).Error)

	_, err := tokens.AccessToken(context.Background(), &integration)
	assert.ErrorIs(t, err, ErrAuthExpired)

	var stored chmodels.ChannelIntegration
	require.NoError(t, db.First(&stored, integration.ID).Error)
	assert.Equal(t, chmodels.IntegrationExpired, stored.Status)
}

func TestAccessTokenRejectsUnusableCredentials(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewDBTokenSource(db, zap.NewNop())
	ctx := context.Background()

	inactive := &chmodels.ChannelIntegration{ID: 1, Status: chmodels.IntegrationDisconnected}
	_, err := tokens.AccessToken(ctx, inactive)
	assert.ErrorIs(t, err, ErrAuthExpired)

	empty := &chmodels.ChannelIntegration{ID: 2, Status: chmodels.IntegrationActive}
	_, err = tokens.AccessToken(ctx, empty)
	assert.ErrorIs(t, err, ErrAuthExpired)

	garbled := &chmodels.ChannelIntegration{ID: 3, Status: chmodels.IntegrationActive, Credentials: "not-json"}
	_, err = tokens.AccessToken(ctx, garbled)
	assert.ErrorIs(t, err, ErrAuthExpired)
}
