package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardstock/feature/inventory/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service exposes inventory operations to handlers and CLI commands. All
// quantity mutations go through the Ledger; the service adds shop scoping,
// validation, and the read models.
type Service struct {
	db     *gorm.DB
	ledger *Ledger
	logger *zap.Logger
}

// NewService creates a new inventory service.
func NewService(db *gorm.DB, ledger *Ledger, logger *zap.Logger) *Service {
	return &Service{db: db, ledger: ledger, logger: logger}
}

// Ledger exposes the underlying ledger for collaborating features.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// CreateLotInput describes a manually entered lot.
type CreateLotInput struct {
	ShopID          uint     `json:"shop_id"`
	CardID          uint     `json:"card_id"`
	SKU             string   `json:"sku"`
	InitialQuantity int      `json:"initial_quantity"`
	Condition       string   `json:"condition"`
	Language        string   `json:"language"`
	Location        string   `json:"location"`
	CostBasis       *float64 `json:"cost_basis"`
}

// CreateLot creates a lot and records its initial quantity as an import event,
// so replaying the event stream from zero reconstructs the lot exactly.
func (s *Service) CreateLot(ctx context.Context, in CreateLotInput, actorID *uint) (*models.InventoryLot, error) {
	if in.InitialQuantity < 0 {
		return nil, fmt.Errorf("%w: initial quantity must not be negative", ErrInvalidDelta)
	}
	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		sku = generateSKU()
	}
	lot := models.InventoryLot{
		ShopID:          in.ShopID,
		CardID:          in.CardID,
		SKU:             sku,
		Condition:       in.Condition,
		Language:        in.Language,
		Location:        in.Location,
		CostBasis:       in.CostBasis,
		Status:          models.LotStatusAvailable,
		InitialQuantity: in.InitialQuantity,
	}
	if err := s.db.WithContext(ctx).Create(&lot).Error; err != nil {
		return nil, fmt.Errorf("failed to create lot: %w", err)
	}
	if in.InitialQuantity > 0 {
		if _, err := s.ledger.Apply(ctx, ApplyInput{
			ShopID:  in.ShopID,
			LotID:   lot.ID,
			Delta:   in.InitialQuantity,
			Kind:    models.EventImport,
			ActorID: actorID,
			Metadata: map[string]any{
				"source": "manual_entry",
			},
		}); err != nil {
			return nil, err
		}
		lot.QuantityAvailable = in.InitialQuantity
	}
	return &lot, nil
}

// Adjust applies a manual quantity adjustment. A result below zero is a caller
// mistake and always rejected, regardless of the sale-path oversell policy.
func (s *Service) Adjust(ctx context.Context, shopID, lotID uint, delta int, reason string, actorID *uint) (*ApplyResult, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", ErrInvalidDelta)
	}
	return s.ledger.Apply(ctx, ApplyInput{
		ShopID:         shopID,
		LotID:          lotID,
		Delta:          delta,
		Kind:           models.EventAdjustment,
		ActorID:        actorID,
		Metadata:       map[string]any{"reason": reason},
		PolicyOverride: PolicyReject,
	})
}

// SendForGrading moves quantity out of a lot and marks it as sent for grading.
func (s *Service) SendForGrading(ctx context.Context, shopID, lotID uint, quantity int, actorID *uint) (*ApplyResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: grading quantity must be positive", ErrInvalidDelta)
	}
	return s.ledger.Apply(ctx, ApplyInput{
		ShopID:         shopID,
		LotID:          lotID,
		Delta:          -quantity,
		Kind:           models.EventGradingOut,
		ActorID:        actorID,
		SetStatus:      models.LotStatusGrading,
		PolicyOverride: PolicyReject,
	})
}

// ReturnFromGrading returns quantity from grading back to availability.
func (s *Service) ReturnFromGrading(ctx context.Context, shopID, lotID uint, quantity int, grade string, actorID *uint) (*ApplyResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: grading quantity must be positive", ErrInvalidDelta)
	}
	return s.ledger.Apply(ctx, ApplyInput{
		ShopID:        shopID,
		LotID:         lotID,
		Delta:         quantity,
		Kind:          models.EventGradingIn,
		ActorID:       actorID,
		RequireStatus: models.LotStatusGrading,
		SetStatus:     models.LotStatusAvailable,
		Metadata:      map[string]any{"grade": grade},
	})
}

// Reserve moves quantity from available to reserved.
func (s *Service) Reserve(ctx context.Context, shopID, lotID uint, quantity int, actorID *uint) (*ApplyResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: reserve quantity must be positive", ErrInvalidDelta)
	}
	return s.ledger.Apply(ctx, ApplyInput{
		ShopID:         shopID,
		LotID:          lotID,
		Delta:          -quantity,
		Kind:           models.EventReserve,
		ActorID:        actorID,
		ReservedDelta:  quantity,
		PolicyOverride: PolicyReject,
	})
}

// Unreserve moves quantity from reserved back to available.
func (s *Service) Unreserve(ctx context.Context, shopID, lotID uint, quantity int, actorID *uint) (*ApplyResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: unreserve quantity must be positive", ErrInvalidDelta)
	}
	return s.ledger.Apply(ctx, ApplyInput{
		ShopID:        shopID,
		LotID:         lotID,
		Delta:         quantity,
		Kind:          models.EventUnreserve,
		ActorID:       actorID,
		ReservedDelta: -quantity,
	})
}

// GetLot returns one lot within the shop scope.
func (s *Service) GetLot(ctx context.Context, shopID, lotID uint) (*models.InventoryLot, error) {
	var lot models.InventoryLot
	err := s.db.WithContext(ctx).
		Preload("Card").
		Where("id = ? AND shop_id = ?", lotID, shopID).
		First(&lot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrLotNotFound, lotID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lot %d: %w", lotID, err)
	}
	return &lot, nil
}

// LotFilter narrows lot listings.
type LotFilter struct {
	Status    string
	Condition string
	Location  string
}

// Lots lists lots in the shop, newest first.
func (s *Service) Lots(ctx context.Context, shopID uint, filter LotFilter, limit, offset int) ([]models.InventoryLot, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).
		Preload("Card").
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Limit(limit).Offset(offset)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Condition != "" {
		q = q.Where("`condition` = ?", filter.Condition)
	}
	if filter.Location != "" {
		q = q.Where("location = ?", filter.Location)
	}
	var lots []models.InventoryLot
	if err := q.Find(&lots).Error; err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	return lots, nil
}

// Events lists a lot's ledger events, newest first. The lot must be in scope.
func (s *Service) Events(ctx context.Context, shopID, lotID uint, limit, offset int) ([]models.InventoryEvent, error) {
	if _, err := s.GetLot(ctx, shopID, lotID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.InventoryEvent
	err := s.db.WithContext(ctx).
		Where("lot_id = ?", lotID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Summary is the operator dashboard read model.
type Summary struct {
	TotalCards     int64 `json:"total_cards"`
	TotalLots      int64 `json:"total_lots"`
	RecentSales30d int64 `json:"recent_sales_30d"`
}

// Summarize counts the shop's catalog and recent sale events.
func (s *Service) Summarize(ctx context.Context, shopID uint) (*Summary, error) {
	var out Summary
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Card{}).Where("shop_id = ?", shopID).Count(&out.TotalCards).Error; err != nil {
		return nil, fmt.Errorf("failed to count cards: %w", err)
	}
	if err := db.Model(&models.InventoryLot{}).Where("shop_id = ?", shopID).Count(&out.TotalLots).Error; err != nil {
		return nil, fmt.Errorf("failed to count lots: %w", err)
	}
	cutoff := time.Now().AddDate(0, 0, -30)
	err := db.Model(&models.InventoryEvent{}).
		Joins("JOIN inventory_lots ON inventory_lots.id = inventory_events.lot_id").
		Where("inventory_lots.shop_id = ? AND inventory_events.event_type = ? AND inventory_events.created_at >= ?",
			shopID, models.EventSale, cutoff).
		Count(&out.RecentSales30d).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count recent sales: %w", err)
	}
	return &out, nil
}

func generateSKU() string {
	return "LOT-" + strings.ToUpper(uuid.NewString()[:8])
}
