package inventory

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cardstock/core/storage"
	"cardstock/feature/inventory/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Importable field names a CSV column may be mapped to.
const (
	FieldName       = "name"
	FieldSet        = "set"
	FieldQuantity   = "quantity"
	FieldCardNumber = "card_number"
	FieldCondition  = "condition"
	FieldLocation   = "location"
	FieldCost       = "cost"
)

// ImportSummary reports the outcome of one CSV import batch. Per-row failures
// are collected, never silently dropped.
type ImportSummary struct {
	BatchID       string   `json:"batch_id"`
	Created       int      `json:"created"`
	Skipped       int      `json:"skipped"`
	Errors        []string `json:"errors"`
	ArchiveObject string   `json:"archive_object,omitempty"`
}

// Importer turns mapped CSV rows into cards, lots, and import ledger events.
// The raw file is archived to object storage before any row is applied, so
// every import event traces back to the file that produced it.
type Importer struct {
	db     *gorm.DB
	ledger *Ledger
	store  storage.Client
	bucket string
	logger *zap.Logger
}

// NewImporter creates a CSV importer. store may be nil to disable archiving
// (one-shot CLI usage without object storage).
func NewImporter(db *gorm.DB, ledger *Ledger, store storage.Client, bucket string, logger *zap.Logger) *Importer {
	return &Importer{db: db, ledger: ledger, store: store, bucket: bucket, logger: logger}
}

// Import parses the CSV content and applies each row. mapping is CSV column
// name to field name; name, set and quantity must be mapped.
func (imp *Importer) Import(ctx context.Context, shopID uint, actorID *uint, mapping map[string]string, content []byte) (*ImportSummary, error) {
	fieldMapping := make(map[string]string, len(mapping))
	mapped := make(map[string]bool, len(mapping))
	for col, field := range mapping {
		if field == "" {
			continue
		}
		fieldMapping[col] = field
		mapped[field] = true
	}
	if len(fieldMapping) == 0 {
		return nil, fmt.Errorf("no fields mapped for import")
	}
	for _, required := range []string{FieldName, FieldSet, FieldQuantity} {
		if !mapped[required] {
			return nil, fmt.Errorf("required field %q is not mapped", required)
		}
	}

	summary := &ImportSummary{BatchID: uuid.NewString(), Errors: []string{}}

	if imp.store != nil {
		objectName := fmt.Sprintf("imports/shop_%d/%s.csv", shopID, summary.BatchID)
		_, err := imp.store.PutObject(ctx, imp.bucket, objectName,
			bytes.NewReader(content), int64(len(content)),
			minio.PutObjectOptions{ContentType: "text/csv"})
		if err != nil {
			return nil, fmt.Errorf("failed to archive import file: %w", err)
		}
		summary.ArchiveObject = objectName
	}

	reader := csv.NewReader(bytes.NewReader(content))
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rowNum := 1 // header row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		fields := rowFields(header, record, fieldMapping)
		if err := imp.processRow(ctx, shopID, actorID, summary.BatchID, rowNum, fields); err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		summary.Created++
	}

	imp.logger.Info("csv import finished",
		zap.String("batch_id", summary.BatchID),
		zap.Uint("shop_id", shopID),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// rowFields projects one CSV record onto field names via the column mapping.
func rowFields(header, record []string, fieldMapping map[string]string) map[string]string {
	fields := make(map[string]string, len(fieldMapping))
	for i, col := range header {
		if i >= len(record) {
			break
		}
		if field, ok := fieldMapping[col]; ok {
			fields[field] = strings.TrimSpace(record[i])
		}
	}
	return fields
}

func (imp *Importer) processRow(ctx context.Context, shopID uint, actorID *uint, batchID string, rowNum int, fields map[string]string) error {
	name := fields[FieldName]
	setName := fields[FieldSet]
	if name == "" || setName == "" {
		return fmt.Errorf("name and set are required")
	}

	quantity, err := strconv.Atoi(fields[FieldQuantity])
	if err != nil {
		return fmt.Errorf("invalid quantity format")
	}
	if quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if quantity == 0 {
		return fmt.Errorf("quantity is zero, skipping")
	}

	condition := fields[FieldCondition]
	if condition == "" {
		condition = "NM"
	}

	var costBasis *float64
	if cost := fields[FieldCost]; cost != "" {
		clean := strings.NewReplacer("$", "", ",", "").Replace(cost)
		if v, err := strconv.ParseFloat(clean, 64); err == nil {
			costBasis = &v
		}
	}

	card := models.Card{
		ShopID:     shopID,
		Name:       name,
		SetName:    setName,
		CardNumber: fields[FieldCardNumber],
		Language:   "English",
	}
	if err := imp.db.WithContext(ctx).
		Where(models.Card{ShopID: shopID, Name: name, SetName: setName, CardNumber: fields[FieldCardNumber], Language: "English"}).
		FirstOrCreate(&card).Error; err != nil {
		return fmt.Errorf("failed to resolve card: %w", err)
	}

	// A new lot per row keeps cost basis and location separate.
	lot := models.InventoryLot{
		ShopID:          shopID,
		CardID:          card.ID,
		SKU:             fmt.Sprintf("IMP-%s-%d", strings.ToUpper(batchID[:8]), rowNum),
		Condition:       condition,
		Location:        fields[FieldLocation],
		CostBasis:       costBasis,
		Status:          models.LotStatusAvailable,
		InitialQuantity: quantity,
	}
	if err := imp.db.WithContext(ctx).Create(&lot).Error; err != nil {
		return fmt.Errorf("failed to create lot: %w", err)
	}

	_, err = imp.ledger.Apply(ctx, ApplyInput{
		ShopID:         shopID,
		LotID:          lot.ID,
		Delta:          quantity,
		Kind:           models.EventImport,
		IdempotencyKey: fmt.Sprintf("csv_import_%s_%d", batchID, rowNum),
		ActorID:        actorID,
		Metadata: map[string]any{
			"source":   "csv_import",
			"batch_id": batchID,
		},
	})
	return err
}
