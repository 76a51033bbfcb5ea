package models

import (
	"encoding/json"
	"time"

	inventory "cardstock/feature/inventory/models"
)

// Integration status values.
const (
	IntegrationActive       = "active"
	IntegrationExpired      = "expired"
	IntegrationDisconnected = "disconnected"
)

// Listing sync states.
const (
	SyncStateSynced   = "synced"
	SyncStatePending  = "pending"
	SyncStateError    = "error"
	SyncStateDelisted = "delisted"
)

// Sync job statuses. Success and dead are terminal.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobSuccess = "success"
	JobFailed  = "failed"
	JobDead    = "dead"
)

// Sync job directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Sync job operations.
const (
	OpPushQuantity = "push_quantity"
	OpPollOrders   = "poll_orders"
)

// ChannelIntegration connects a shop to one external sales channel. The
// credentials blob and token expiry are managed by the authorization flow,
// which lives outside this core; the sync machinery only consumes them.
type ChannelIntegration struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ShopID         uint            `gorm:"index;not null" json:"shop_id"`
	Provider       string          `gorm:"size:50;not null;default:ebay" json:"provider"`
	Credentials    string          `gorm:"size:2000" json:"-"`
	Scopes         string          `gorm:"type:text" json:"scopes,omitempty"`
	Status         string          `gorm:"size:20;default:disconnected" json:"status"`
	TokenExpiry    *time.Time      `json:"token_expiry,omitempty"`
	LastPollCursor string          `gorm:"size:255" json:"last_poll_cursor,omitempty"`
	Metadata       json.RawMessage `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ChannelListing binds one lot to one (channel, external id) pair. Multiple
// listings may point at the same lot; a sale anywhere fans out to all of them.
type ChannelListing struct {
	ID                uint                    `gorm:"primaryKey" json:"id"`
	IntegrationID     uint                    `gorm:"index:idx_listing_external,unique;not null" json:"integration_id"`
	Integration       *ChannelIntegration     `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`
	LotID             uint                    `gorm:"index;not null" json:"lot_id"`
	Lot               *inventory.InventoryLot `gorm:"foreignKey:LotID" json:"lot,omitempty"`
	ExternalListingID string                  `gorm:"size:255;index:idx_listing_external,unique;not null" json:"external_listing_id"`
	ExternalSKU       string                  `gorm:"size:255;index" json:"external_sku"`
	ListedPrice       *float64                `json:"listed_price,omitempty"`
	ListedQuantity    int                     `gorm:"default:0" json:"listed_quantity"`
	SyncState         string                  `gorm:"size:20;default:pending" json:"sync_state"`
	LastSyncedAt      *time.Time              `json:"last_synced_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

// SyncJob is both a durable work queue row and an audit record of one
// synchronization attempt. Queued jobs with a due next_attempt_at are claimed
// by the runner; retries and next_attempt_at carry the backoff state.
type SyncJob struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	IntegrationID   uint                `gorm:"index;not null" json:"integration_id"`
	Integration     *ChannelIntegration `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`
	ListingID       *uint               `gorm:"index" json:"listing_id,omitempty"`
	Operation       string              `gorm:"size:100;not null" json:"operation"`
	Direction       string              `gorm:"size:20;not null" json:"direction"`
	Status          string              `gorm:"size:20;index;default:queued" json:"status"`
	Retries         int                 `gorm:"default:0" json:"retries"`
	NextAttemptAt   time.Time           `gorm:"index" json:"next_attempt_at"`
	RequestPayload  json.RawMessage     `gorm:"type:json" json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage     `gorm:"type:json" json:"response_payload,omitempty"`
	ErrorMessage    string              `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
}
