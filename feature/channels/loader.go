package channels

import (
	"cardstock/core/queue"
	"cardstock/feature/inventory"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	sync    *SyncEngine
	intake  *Intake
	poller  *Poller
	runner  *Runner
	handler *Handler
}

// NewFeature creates the channels feature.
func NewFeature(db *gorm.DB, cfg Config, registry *Registry, ledger *inventory.Ledger, pool *queue.Pool, logger *zap.Logger) *Feature {
	engine := NewSyncEngine(db, registry, cfg, logger)
	intake := NewIntake(db, ledger, engine, logger)
	poller := NewPoller(db, registry, intake, cfg, logger)
	runner := NewRunner(db, engine, pool, logger)
	h := NewHandler(db, engine, poller, logger)
	return &Feature{sync: engine, intake: intake, poller: poller, runner: runner, handler: h}
}

// SyncEngine exposes the sync engine to collaborating features.
func (f *Feature) SyncEngine() *SyncEngine {
	return f.sync
}

// Poller exposes the order poller for scheduling and CLI commands.
func (f *Feature) Poller() *Poller {
	return f.poller
}

// Runner exposes the job runner for scheduling.
func (f *Feature) Runner() *Runner {
	return f.runner
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "channels"
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
