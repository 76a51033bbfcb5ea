package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cardstock/feature/channels/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// storedCredentials is the shape of the encrypted blob written by the
// authorization flow.
type storedCredentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// DBTokenSource reads tokens from the integration row. When the stored token
// is expired it marks the integration expired and fails with ErrAuthExpired;
// re-authorization happens outside this core.
type DBTokenSource struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDBTokenSource creates a token source backed by integration rows.
func NewDBTokenSource(db *gorm.DB, logger *zap.Logger) *DBTokenSource {
	return &DBTokenSource{db: db, logger: logger}
}

// AccessToken returns the stored bearer token while it is valid.
func (s *DBTokenSource) AccessToken(ctx context.Context, integration *models.ChannelIntegration) (string, error) {
	if integration.Status != models.IntegrationActive {
		return "", fmt.Errorf("%w: integration %d is %s", ErrAuthExpired, integration.ID, integration.Status)
	}
	if integration.Credentials == "" {
		return "", fmt.Errorf("%w: integration %d has no credentials", ErrAuthExpired, integration.ID)
	}
	if integration.TokenExpiry != nil && !integration.TokenExpiry.After(time.Now()) {
		s.expire(ctx, integration)
		return "", fmt.Errorf("%w: integration %d token expired at %s", ErrAuthExpired, integration.ID, integration.TokenExpiry.Format(time.RFC3339))
	}
	var creds storedCredentials
	if err := json.Unmarshal([]byte(integration.Credentials), &creds); err != nil {
		return "", fmt.Errorf("%w: integration %d credentials unreadable", ErrAuthExpired, integration.ID)
	}
	if creds.AccessToken == "" {
		return "", fmt.Errorf("%w: integration %d has no access token", ErrAuthExpired, integration.ID)
	}
	return creds.AccessToken, nil
}

// expire marks the integration non-operational until re-authorized.
func (s *DBTokenSource) expire(ctx context.Context, integration *models.ChannelIntegration) {
	err := s.db.WithContext(ctx).
		Model(&models.ChannelIntegration{}).
		Where("id = ?", integration.ID).
		Update("status", models.IntegrationExpired).Error
	if err != nil {
		s.logger.Error("failed to mark integration expired",
			zap.Uint("integration_id", integration.ID), zap.Error(err))
		return
	}
	integration.Status = models.IntegrationExpired
	s.logger.Warn("integration marked expired, re-authorization required",
		zap.Uint("integration_id", integration.ID))
}
