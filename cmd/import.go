package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cardstock/core/config"
	"cardstock/core/database"
	"cardstock/core/logger"
	"cardstock/core/storage"
	"cardstock/feature/inventory"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	importFile    string
	importShopID  uint
	importMapping string
)

// importCmd loads a CSV file into a shop's inventory from the command line.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV inventory file",
	Long: `Imports a CSV file into a shop's inventory. The mapping is a JSON object
from logical field names (name, set, quantity, card_number, condition,
location, cost) to CSV column headers.

Examples:
  cardstock import --shop 1 --file cards.csv \
    --mapping '{"name":"Card Name","set":"Set","quantity":"Qty"}'`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to the CSV file (required)")
	importCmd.Flags().UintVar(&importShopID, "shop", 0, "Shop id to import into (required)")
	importCmd.Flags().StringVar(&importMapping, "mapping", "", "JSON column mapping (required)")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("shop")
	_ = importCmd.MarkFlagRequired("mapping")
	RootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
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

	var mapping map[string]string
	if err := json.Unmarshal([]byte(importMapping), &mapping); err != nil {
		return fmt.Errorf("invalid --mapping: %w", err)
	}
	content, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", importFile, err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := storage.EnsureBucket(ctx, store, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
		return fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	ledger := inventory.NewLedger(db, logg, cfg.Inventory)
	importer := inventory.NewImporter(db, ledger, store, cfg.Storage.Bucket, logg)

	summary, err := importer.Import(ctx, importShopID, nil, mapping, content)
	if err != nil {
		return err
	}

	logg.Info("import finished",
		zap.String("batch_id", summary.BatchID),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("row_errors", len(summary.Errors)),
		zap.String("archive_object", summary.ArchiveObject),
	)
	for _, rowErr := range summary.Errors {
		logg.Warn("row skipped", zap.String("error", rowErr))
	}
	return nil
}
