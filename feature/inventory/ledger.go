package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cardstock/feature/inventory/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyInput describes one ledger mutation.
type ApplyInput struct {
	// ShopID scopes the lot lookup; zero skips the scope check (internal
	// callers that already resolved the lot within a shop).
	ShopID uint
	// LotID is the target lot.
	LotID uint
	// Delta is the signed change to quantity_available.
	Delta int
	// Kind is the event type (sale, adjustment, ...).
	Kind string
	// IdempotencyKey, when set, makes re-applying the same mutation a no-op.
	IdempotencyKey string
	// OrderRef is the external order reference, if any.
	OrderRef string
	// ActorID is the user who caused the mutation, if any.
	ActorID *uint
	// Metadata is free-form context stored on the event.
	Metadata map[string]any
	// ReservedDelta is an optional signed change to quantity_reserved,
	// applied in the same transaction (reserve/unreserve flows).
	ReservedDelta int
	// RequireStatus, when set, fails the mutation unless the lot is in this
	// status at lock time.
	RequireStatus string
	// SetStatus, when set, transitions the lot to this status with the event.
	SetStatus string
	// PolicyOverride forces an oversell policy for this call (manual
	// adjustments always reject, regardless of the sale-path policy).
	PolicyOverride string
}

// ApplyResult reports the outcome of a ledger mutation.
type ApplyResult struct {
	EventID      uint `json:"event_id"`
	NewQuantity  int  `json:"new_quantity"`
	AppliedDelta int  `json:"applied_delta"`
	// Replayed is true when the idempotency key matched an existing event and
	// nothing was written.
	Replayed bool `json:"replayed"`
	// Clamped is true when the delta was reduced to keep the quantity at zero.
	Clamped bool `json:"clamped"`
}

// Ledger enforces the quantity invariants of inventory lots. It is the only
// legitimate write path to a lot's quantities: every mutation locks the lot
// row, writes exactly one immutable event, and commits both atomically.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
	policy string
}

// NewLedger creates a ledger with the configured oversell policy.
func NewLedger(db *gorm.DB, logger *zap.Logger, cfg Config) *Ledger {
	policy := cfg.OversellPolicy
	switch policy {
	case PolicyClamp, PolicyReject, PolicyAllowNegative:
	default:
		policy = PolicyClamp
	}
	return &Ledger{db: db, logger: logger, policy: policy}
}

func validKind(kind string) bool {
	switch kind {
	case models.EventSale, models.EventAdjustment, models.EventGradingOut,
		models.EventGradingIn, models.EventReserve, models.EventUnreserve,
		models.EventImport:
		return true
	default:
		return false
	}
}

// Apply performs one ledger mutation. The lot row is locked for the duration
// of the transaction, serializing concurrent mutators of the same lot while
// different lots proceed independently.
func (l *Ledger) Apply(ctx context.Context, in ApplyInput) (*ApplyResult, error) {
	if !validKind(in.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	if in.Delta == 0 && in.ReservedDelta == 0 && in.SetStatus == "" {
		return nil, fmt.Errorf("%w: delta must be non-zero", ErrInvalidDelta)
	}

	var result ApplyResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.IdempotencyKey != "" {
			if replay, err := l.findReplay(tx, in.IdempotencyKey); err != nil {
				return err
			} else if replay != nil {
				result = *replay
				return nil
			}
		}

		lot, err := l.lockLot(tx, in.ShopID, in.LotID)
		if err != nil {
			return err
		}
		if in.RequireStatus != "" && lot.Status != in.RequireStatus {
			return fmt.Errorf("%w: lot %d is %s, need %s", ErrInvalidStatus, lot.ID, lot.Status, in.RequireStatus)
		}

		applied := in.Delta
		newQuantity := lot.QuantityAvailable + applied
		clamped := false
		if newQuantity < 0 {
			switch l.effectivePolicy(in.PolicyOverride) {
			case PolicyAllowNegative:
				// quantity goes negative, event records the full delta
			case PolicyReject:
				return fmt.Errorf("%w: lot %d has %d, delta %d", ErrInsufficientQuantity, lot.ID, lot.QuantityAvailable, in.Delta)
			default:
				applied = -lot.QuantityAvailable
				newQuantity = 0
				clamped = true
				l.logger.Warn("oversell clamped",
					zap.Uint("lot_id", lot.ID),
					zap.Int("requested_delta", in.Delta),
					zap.Int("applied_delta", applied),
				)
			}
		}

		newReserved := lot.QuantityReserved + in.ReservedDelta
		if newReserved < 0 {
			return fmt.Errorf("%w: lot %d has %d reserved, delta %d", ErrInsufficientQuantity, lot.ID, lot.QuantityReserved, in.ReservedDelta)
		}

		updates := map[string]any{
			"quantity_available": newQuantity,
			"quantity_reserved":  newReserved,
		}
		if in.SetStatus != "" {
			updates["status"] = in.SetStatus
		}
		if err := tx.Model(&models.InventoryLot{}).Where("id = ?", lot.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update lot %d: %w", lot.ID, err)
		}

		event := models.InventoryEvent{
			LotID:             lot.ID,
			EventType:         in.Kind,
			QuantityDelta:     applied,
			ResultingQuantity: newQuantity,
			OrderRef:          in.OrderRef,
			ActorID:           in.ActorID,
		}
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			event.IdempotencyKey = &key
		}
		if len(in.Metadata) > 0 {
			raw, err := json.Marshal(in.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode event metadata: %w", err)
			}
			event.Metadata = raw
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to create ledger event: %w", err)
		}

		result = ApplyResult{
			EventID:      event.ID,
			NewQuantity:  newQuantity,
			AppliedDelta: applied,
			Clamped:      clamped,
		}
		return nil
	})
	if err != nil {
		// A concurrent writer with the same key may have won the race between
		// the replay check and the event insert; the unique index settles it.
		if in.IdempotencyKey != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			if replay, rerr := l.findReplay(l.db.WithContext(ctx), in.IdempotencyKey); rerr == nil && replay != nil {
				return replay, nil
			}
		}
		return nil, err
	}
	return &result, nil
}

// findReplay returns the recorded result for an idempotency key, or nil when
// the key has not been seen.
func (l *Ledger) findReplay(tx *gorm.DB, key string) (*ApplyResult, error) {
	var existing models.InventoryEvent
	err := tx.Where("idempotency_key = ?", key).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return &ApplyResult{
		EventID:      existing.ID,
		NewQuantity:  existing.ResultingQuantity,
		AppliedDelta: existing.QuantityDelta,
		Replayed:     true,
	}, nil
}

// lockLot loads the lot under an exclusive row lock, scoped to the shop when
// one is given. SQLite has no row locks and serializes writers on its own.
func (l *Ledger) lockLot(tx *gorm.DB, shopID, lotID uint) (*models.InventoryLot, error) {
	var lot models.InventoryLot
	q := tx.Where("id = ?", lotID)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if shopID != 0 {
		q = q.Where("shop_id = ?", shopID)
	}
	if err := q.First(&lot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrLotNotFound, lotID)
		}
		return nil, fmt.Errorf("failed to lock lot %d: %w", lotID, err)
	}
	return &lot, nil
}

func (l *Ledger) effectivePolicy(override string) string {
	switch override {
	case PolicyClamp, PolicyReject, PolicyAllowNegative:
		return override
	default:
		return l.policy
	}
}
