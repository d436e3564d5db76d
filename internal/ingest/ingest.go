// Package ingest loads raw invoice CSV exports into a RecordSet.
//
// The loader reads every *.csv file in the configured input directory,
// validates the required column set, coerces field types, filters rows that
// are not in the expected currency, and stamps each record with its source
// file. Files are parsed concurrently but combined in sorted filename order
// so the resulting record set is deterministic.
//
// Coercion policy (mirrors the upstream contract):
//   - unparseable amounts become zero with a warning (the transform stage
//     treats missing amounts as zero anyway)
//   - unparseable dates become the zero time; downstream stages decide
//     whether that is tolerable
//   - an unparseable deductions flag fails the file, it is a required column
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/pkg/errors"
	"invoice-shortage-pipeline/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Loader reads invoice CSV files from the configured input directory
type Loader struct {
	settings   *config.Settings
	fileConfig *FileConfig
	logger     logger.Logger
}

// LoadStats holds statistics about an ingestion run
type LoadStats struct {
	FilesRead        int
	RowsRead         int
	RowsKept         int
	RowsFilteredCurr int
}

// String returns a human-readable summary of the load statistics
func (ls *LoadStats) String() string {
	return fmt.Sprintf("Read %d rows from %d files (%d kept, %d filtered by currency)",
		ls.RowsRead, ls.FilesRead, ls.RowsKept, ls.RowsFilteredCurr)
}

// NewLoader creates a Loader for the given settings
func NewLoader(settings *config.Settings, fileConfig *FileConfig) (*Loader, error) {
	if settings == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "settings", nil, nil)
	}

	if fileConfig == nil {
		fileConfig = DefaultFileConfig()
	}

	if err := fileConfig.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "file_config", fileConfig, err)
	}

	return &Loader{
		settings:   settings,
		fileConfig: fileConfig,
		logger:     logger.GetGlobalLogger().WithComponent("ingest"),
	}, nil
}

// LoadDirectory reads and combines all invoice CSV files from the input
// directory. Files parse concurrently; the combined set preserves sorted
// filename order, and row order within each file.
func (l *Loader) LoadDirectory(ctx context.Context) (models.RecordSet, *LoadStats, error) {
	dir := l.settings.InputDir

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, errors.IngestionError(errors.CodeInputDirMissing, dir, err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, nil, errors.IngestionError(errors.CodeFileUnreadable, dir, err)
	}
	if len(paths) == 0 {
		return nil, nil, errors.IngestionError(errors.CodeNoInputFiles, dir, nil)
	}
	sort.Strings(paths)

	l.logger.WithFields(logger.Fields{
		"input_dir":  dir,
		"file_count": len(paths),
	}).Info("Starting ingestion")

	type fileResult struct {
		records  models.RecordSet
		rowsRead int
		filtered int
	}

	results := make([]fileResult, len(paths))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return errors.InternalError(errors.CodeUnexpectedError, "ingestion", err)
			}

			records, rowsRead, filtered, err := l.loadFile(path)
			if err != nil {
				return err
			}
			results[i] = fileResult{records: records, rowsRead: rowsRead, filtered: filtered}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{FilesRead: len(paths)}
	var combined models.RecordSet
	for _, result := range results {
		combined = append(combined, result.records...)
		stats.RowsRead += result.rowsRead
		stats.RowsFilteredCurr += result.filtered
	}
	stats.RowsKept = len(combined)

	l.logger.WithFields(logger.Fields{
		"rows_read":     stats.RowsRead,
		"rows_kept":     stats.RowsKept,
		"rows_filtered": stats.RowsFilteredCurr,
		"files_read":    stats.FilesRead,
	}).Info("Ingestion completed")

	return combined, stats, nil
}

// loadFile parses a single CSV file into records
func (l *Loader) loadFile(path string) (models.RecordSet, int, int, error) {
	l.logger.WithField("file", path).Debug("Reading CSV file")

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, errors.IngestionError(errors.CodeFileUnreadable, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = l.fileConfig.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	columns, err := l.readHeader(reader, path)
	if err != nil {
		return nil, 0, 0, err
	}

	sourceFile := filepath.Base(path)
	expectedCurrency := strings.ToUpper(l.settings.CurrencyExpected)

	var records models.RecordSet
	rowsRead := 0
	filtered := 0
	line := 1

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, 0, 0, errors.ParseError(errors.CodeInvalidField, path, line, "", "", err)
		}
		if isEmptyRow(row) {
			continue
		}

		rowsRead++

		record, err := l.parseRow(row, columns, path, line)
		if err != nil {
			return nil, 0, 0, err
		}

		// Ingestion-time currency filter: drop non-compliant rows with a
		// warning. The quality gate later re-asserts compliance fail-closed.
		if !strings.EqualFold(record.InvoiceCurrency, expectedCurrency) ||
			!strings.EqualFold(record.PaidCurrency, expectedCurrency) {
			filtered++
			continue
		}

		record.SourceFile = sourceFile
		records = append(records, record)
	}

	if filtered > 0 {
		l.logger.WithFields(logger.Fields{
			"file":     sourceFile,
			"filtered": filtered,
			"expected": expectedCurrency,
		}).Warn("Skipped rows with non-compliant currency")
	}
	if rowsRead > 0 && len(records) == 0 {
		l.logger.WithField("file", sourceFile).Warn("All rows filtered out by currency checks")
	}

	return records, rowsRead, filtered, nil
}

// readHeader reads the header row and maps canonical column names to indices
func (l *Loader) readHeader(reader *csv.Reader, path string) (map[string]int, error) {
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.ParseError(errors.CodeInvalidField, path, 1, "headers", "",
				fmt.Errorf("file is empty"))
		}
		return nil, errors.ParseError(errors.CodeInvalidField, path, 1, "headers", "", err)
	}

	columns := make(map[string]int, len(headers))
	for i, header := range headers {
		canonical := l.fileConfig.Resolve(header)
		if _, exists := columns[canonical]; !exists {
			columns[canonical] = i
		}
	}

	var missing []string
	for _, required := range RequiredColumns {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, errors.ParseError(
			errors.CodeMissingColumn,
			path,
			1,
			strings.Join(missing, ", "),
			"",
			nil,
		)
	}

	return columns, nil
}

// parseRow converts one CSV row into an InvoiceRecord
func (l *Loader) parseRow(row []string, columns map[string]int, path string, line int) (*models.InvoiceRecord, error) {
	field := func(name string) string {
		index, ok := columns[name]
		if !ok || index >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[index])
	}

	record := &models.InvoiceRecord{
		InvoiceID:       field(ColInvoiceID),
		PONumber:        field(ColPONumber),
		Marketplace:     field(ColMarketplace),
		Payee:           field(ColPayee),
		InvoiceStatus:   field(ColInvoiceStatus),
		InvoiceCurrency: field(ColInvoiceCurrency),
		PaidCurrency:    field(ColPaidCurrency),
		ChildInvoiceID:  field(ColChildInvoiceID),
	}

	record.InvoiceAmount = l.coerceAmount(field(ColInvoiceAmount), ColInvoiceAmount, path, line)
	record.PaidAmount = l.coerceAmount(field(ColPaidAmount), ColPaidAmount, path, line)
	record.QuantityVariance = l.coerceAmount(field(ColQuantityVariance), ColQuantityVariance, path, line)
	record.PriceVariance = l.coerceAmount(field(ColPriceVariance), ColPriceVariance, path, line)
	record.QuickPayDiscount = l.coerceAmount(field(ColQuickPayDiscount), ColQuickPayDiscount, path, line)

	record.InvoiceDate = l.coerceDate(field(ColInvoiceDate))
	record.PaymentDueDate = l.coerceDate(field(ColPaymentDueDate))
	record.CreationDate = l.coerceDate(field(ColCreationDate))

	deductions, err := models.ParseBool(field(ColAnyDeductions))
	if err != nil {
		return nil, errors.ParseError(
			errors.CodeInvalidField,
			path,
			line,
			ColAnyDeductions,
			field(ColAnyDeductions),
			err,
		)
	}
	record.AnyDeductions = deductions

	return record, nil
}

// coerceAmount parses an amount, coercing blanks and garbage to zero.
// Transform defaults missing amounts to zero anyway, so zero is the
// ingestion-level representation of "absent".
func (l *Loader) coerceAmount(value, column, path string, line int) decimal.Decimal {
	amount, err := models.ParseOptionalAmount(value)
	if err != nil {
		l.logger.WithFields(logger.Fields{
			"file":   filepath.Base(path),
			"line":   line,
			"column": column,
			"value":  value,
		}).Warn("Unparseable amount coerced to zero")
		return decimal.Zero
	}
	return models.RoundMoney(amount, l.settings.RoundDecimals)
}

// coerceDate parses a date, coercing unparseable input to the zero time
func (l *Loader) coerceDate(value string) time.Time {
	if strings.TrimSpace(value) == "" {
		return time.Time{}
	}
	parsed, err := models.ParseDate(value, l.settings.DayFirst())
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
