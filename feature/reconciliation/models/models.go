package models

import (
	"time"

	channels "cardstock/feature/channels/models"
	inventory "cardstock/feature/inventory/models"
)

// Mismatch resolution statuses. Pending awaits an operator decision; the other
// three are terminal resolutions.
const (
	StatusPending      = "pending"
	StatusPushInternal = "push_internal"
	StatusPullChannel  = "pull_channel"
	StatusIgnore       = "ignore"
)

// Mismatch records one disagreement between the internal ledger and a
// channel's reported quantity. At most one row exists per (integration,
// external listing); repeated detections update it in place and reopen it.
type Mismatch struct {
	ID                uint                          `gorm:"primaryKey" json:"id"`
	IntegrationID     uint                          `gorm:"index:idx_mismatch_external,unique;not null" json:"integration_id"`
	Integration       *channels.ChannelIntegration  `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`
	ExternalListingID string                        `gorm:"size:255;index:idx_mismatch_external,unique;not null" json:"external_listing_id"`
	ListingID         *uint                         `gorm:"index" json:"listing_id,omitempty"`
	Listing           *channels.ChannelListing      `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	LotID             *uint                         `gorm:"index" json:"lot_id,omitempty"`
	Lot               *inventory.InventoryLot       `gorm:"foreignKey:LotID" json:"lot,omitempty"`
	ExternalSKU       string                        `gorm:"size:255" json:"external_sku"`
	ExternalTitle     string                        `gorm:"size:512" json:"external_title,omitempty"`
	InternalQuantity  int                           `json:"internal_quantity"`
	ChannelQuantity   int                           `json:"channel_quantity"`
	Status            string                        `gorm:"size:20;index;default:pending" json:"status"`
	Notes             string                        `gorm:"type:text" json:"notes,omitempty"`
	DetectedAt        time.Time                     `json:"detected_at"`
	ResolvedAt        *time.Time                    `json:"resolved_at,omitempty"`
	CreatedAt         time.Time                     `json:"created_at"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}
