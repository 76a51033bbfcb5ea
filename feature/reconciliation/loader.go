package reconciliation

import (
	"cardstock/feature/channels"
	"cardstock/feature/inventory"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	engine   *Engine
	resolver *Resolver
	handler  *Handler
}

// NewFeature creates the reconciliation feature.
func NewFeature(db *gorm.DB, registry *channels.Registry, ledger *inventory.Ledger, sync *channels.SyncEngine, logger *zap.Logger) *Feature {
	resolver := NewResolver(db, ledger, sync, logger)
	engine := NewEngine(db, registry, logger)
	h := NewHandler(engine, resolver, logger)
	return &Feature{engine: engine, resolver: resolver, handler: h}
}

// Engine exposes the reconciliation engine for scheduling and CLI commands.
func (f *Feature) Engine() *Engine {
	return f.engine
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "reconciliation"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
