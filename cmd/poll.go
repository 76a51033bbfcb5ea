package cmd

import (
	"context"
	"fmt"

	"cardstock/core/config"
	"cardstock/core/database"
	"cardstock/core/logger"
	"cardstock/feature/channels"
	"cardstock/feature/channels/ebay"
	"cardstock/feature/inventory"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pollIntegrationID uint

// pollCmd runs one order poll cycle without starting the server.
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll channels for new orders and apply them to the ledger",
	Long: `Fetches orders created since each integration's cursor and applies their
line items to the inventory ledger. Safe to run repeatedly; every decrement
carries an idempotency key.

Examples:
  # Poll every active integration
  cardstock poll

  # Poll a single integration
  cardstock poll --integration 3`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().UintVar(&pollIntegrationID, "integration", 0, "Only poll this integration id")
	RootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logg, err := logger.New(&logger.Config{Level: "info", Format: "console"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logg.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	registry := channels.NewRegistry(channels.NewDBTokenSource(db, logg))
	registry.Register("ebay", ebay.NewFactory(cfg.Channels.Environment))
	ledger := inventory.NewLedger(db, logg, cfg.Inventory)
	sync := channels.NewSyncEngine(db, registry, cfg.Channels, logg)
	intake := channels.NewIntake(db, ledger, sync, logg)
	poller := channels.NewPoller(db, registry, intake, cfg.Channels, logg)

	if pollIntegrationID != 0 {
		processed, err := poller.PollByID(ctx, pollIntegrationID)
		if err != nil {
			return err
		}
		logg.Info("poll finished",
			zap.Uint("integration_id", pollIntegrationID),
			zap.Int("line_items_processed", processed),
		)
		return nil
	}

	poller.PollAll(ctx)
	return nil
}
