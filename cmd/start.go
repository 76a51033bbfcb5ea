package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardstock/core/config"
	"cardstock/core/database"
	"cardstock/core/loader"
	"cardstock/core/logger"
	"cardstock/core/middleware/auth"
	"cardstock/core/middleware/rayid"
	"cardstock/core/queue"
	"cardstock/core/storage"

	"cardstock/feature/channels"
	"cardstock/feature/channels/ebay"
	chmodels "cardstock/feature/channels/models"
	"cardstock/feature/inventory"
	invmodels "cardstock/feature/inventory/models"
	"cardstock/feature/reconciliation"
	recmodels "cardstock/feature/reconciliation/models"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the cardstock server",
	Long:  `Starts the HTTP server, the sync job runner, and the background schedules.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := db.AutoMigrate(
			&invmodels.Card{},
			&invmodels.InventoryLot{},
			&invmodels.InventoryEvent{},
			&chmodels.ChannelIntegration{},
			&chmodels.ChannelListing{},
			&chmodels.SyncJob{},
			&recmodels.Mismatch{},
		); err != nil {
			logg.Fatal("Failed to migrate database schema", zap.Error(err))
		}

		// 4. Initialize Storage
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Fatal("Failed to create storage client", zap.Error(err))
		}
		if err := storage.EnsureBucket(context.Background(), store, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			logg.Fatal("Failed to ensure storage bucket", zap.Error(err))
		}

		// 5. Provider Registry
		tokens := channels.NewDBTokenSource(db, logg)
		registry := channels.NewRegistry(tokens)
		registry.Register("ebay", ebay.NewFactory(cfg.Channels.Environment))

		// 6. Worker Pool
		pool := queue.NewPool(cfg.Queue, logg)

		// 7. Features
		invFeature := inventory.NewFeature(db, cfg.Inventory, store, cfg.Storage.Bucket, logg)
		chFeature := channels.NewFeature(db, cfg.Channels, registry, invFeature.Ledger(), pool, logg)
		recFeature := reconciliation.NewFeature(db, registry, invFeature.Ledger(), chFeature.SyncEngine(), logg)

		mgr := loader.NewManager()
		mgr.Register(invFeature)
		mgr.Register(chFeature)
		mgr.Register(recFeature)

		// 8. Fiber App + Middleware
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})
		app.Use(rayid.New())
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 9. Background Schedules
		scheduler := queue.NewScheduler(logg)
		scheduler.Register(queue.PeriodicJob{
			Name:     "sync_job_claim",
			Interval: time.Duration(cfg.Queue.ClaimIntervalSeconds) * time.Second,
			Run:      chFeature.Runner().Tick,
		})
		scheduler.Register(queue.PeriodicJob{
			Name:     "order_poll",
			Interval: time.Duration(cfg.Channels.PollIntervalMinutes) * time.Minute,
			Run:      chFeature.Poller().PollAll,
		})
		scheduler.Register(queue.PeriodicJob{
			Name:     "reconciliation_sweep",
			Interval: time.Duration(cfg.Channels.ReconcileIntervalHours) * time.Hour,
			Run:      recFeature.Engine().ReconcileAll,
		})
		scheduler.Start(context.Background())

		// 10. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 11. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		scheduler.Stop()
		pool.Stop()
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
