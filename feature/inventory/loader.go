package inventory

import (
	"cardstock/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	ledger   *Ledger
	service  *Service
	importer *Importer
	handler  *Handler
}

// NewFeature creates the inventory feature.
func NewFeature(db *gorm.DB, cfg Config, store storage.Client, bucket string, logger *zap.Logger) *Feature {
	ledger := NewLedger(db, logger, cfg)
	svc := NewService(db, ledger, logger)
	imp := NewImporter(db, ledger, store, bucket, logger)
	h := NewHandler(svc, imp, logger)
	return &Feature{ledger: ledger, service: svc, importer: imp, handler: h}
}

// Ledger exposes the quantity ledger to collaborating features.
func (f *Feature) Ledger() *Ledger {
	return f.ledger
}

// Service exposes the inventory service to collaborating features.
func (f *Feature) Service() *Service {
	return f.service
}

// Importer exposes the CSV importer to CLI commands.
func (f *Feature) Importer() *Importer {
	return f.importer
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "inventory"
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
