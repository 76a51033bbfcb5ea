package models

import (
	"encoding/json"
	"time"
)

// Lot status values.
const (
	LotStatusAvailable = "available"
	LotStatusReserved  = "reserved"
	LotStatusGrading   = "grading"
	LotStatusDamaged   = "damaged"
)

// Event types recorded in the ledger.
const (
	EventSale       = "sale"
	EventAdjustment = "adjustment"
	EventGradingOut = "grading_out"
	EventGradingIn  = "grading_in"
	EventReserve    = "reserve"
	EventUnreserve  = "unreserve"
	EventImport     = "import"
)

// Card is a catalog entry identifying a physical card. Lots reference a card;
// the same card may have many lots with different condition or cost basis.
type Card struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ShopID     uint            `gorm:"index:idx_cards_identity,unique;not null" json:"shop_id"`
	Name       string          `gorm:"size:255;index:idx_cards_identity,unique;not null" json:"name"`
	SetName    string          `gorm:"size:255;index:idx_cards_identity,unique" json:"set_name"`
	CardNumber string          `gorm:"size:100;index:idx_cards_identity,unique" json:"card_number"`
	Variant    string          `gorm:"size:100;index:idx_cards_identity,unique" json:"variant"`
	Language   string          `gorm:"size:50;index:idx_cards_identity,unique;default:English" json:"language"`
	Attributes json.RawMessage `gorm:"type:json" json:"attributes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// InventoryLot is a fungible stack of identical physical items. Its quantity
// is mutated exclusively through ledger events; the row is never deleted, only
// moved through soft status transitions.
type InventoryLot struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ShopID            uint      `gorm:"index;not null" json:"shop_id"`
	CardID            uint      `gorm:"index;not null" json:"card_id"`
	Card              *Card     `gorm:"foreignKey:CardID" json:"card,omitempty"`
	SKU               string    `gorm:"size:100;uniqueIndex;not null" json:"sku"`
	QuantityAvailable int       `gorm:"not null;default:0" json:"quantity_available"`
	QuantityReserved  int       `gorm:"not null;default:0" json:"quantity_reserved"`
	Condition         string    `gorm:"size:100" json:"condition"`
	Language          string    `gorm:"size:50;default:English" json:"language"`
	Location          string    `gorm:"size:255" json:"location"`
	CostBasis         *float64  `json:"cost_basis,omitempty"`
	Status            string    `gorm:"size:20;default:available" json:"status"`
	InitialQuantity   int       `gorm:"not null;default:0" json:"initial_quantity"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// InventoryEvent is one immutable ledger entry: a signed quantity delta, the
// quantity after applying it, and the cause. The unique idempotency key makes
// externally-triggered mutations replay-safe; the key is NULL for internal
// mutations so uniqueness only binds when a key is present.
type InventoryEvent struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	LotID             uint            `gorm:"index;not null" json:"lot_id"`
	EventType         string          `gorm:"size:20;not null" json:"event_type"`
	QuantityDelta     int             `gorm:"not null" json:"quantity_delta"`
	ResultingQuantity int             `gorm:"not null" json:"resulting_quantity"`
	IdempotencyKey    *string         `gorm:"size:255;uniqueIndex" json:"idempotency_key,omitempty"`
	OrderRef          string          `gorm:"size:255" json:"order_ref,omitempty"`
	ActorID           *uint           `json:"actor_id,omitempty"`
	Metadata          json.RawMessage `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
