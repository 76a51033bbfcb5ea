// Package inventory implements the quantity ledger at the heart of cardstock.
//
// A lot's quantity is only ever changed through Ledger.Apply, which locks the
// lot row, writes one immutable InventoryEvent, and commits both atomically.
// Replaying a lot's events in creation order from zero always reconstructs its
// current quantity. Externally-triggered mutations carry idempotency keys so
// duplicate delivery becomes a no-op instead of a double-decrement.
//
// The oversell policy is configurable: clamp (default, the sale already
// happened so record it and floor at zero), reject, or allow_negative.
// Manual adjustments always reject a negative result.
package inventory
