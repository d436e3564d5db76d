// Package report exports pipeline outputs to the processed-data directory.
//
// Three dataset exports (clean dataset, flagged set, shortage-only subset)
// plus the four KPI tables, each written as CSV under a fixed name-to-file
// mapping. The clean dataset can be partitioned by payment year into
// year=YYYY subdirectories. Exporters only consume in-memory data; they are
// the single place the pipeline touches the output filesystem.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"invoice-shortage-pipeline/internal/analytics"
	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/pkg/errors"
	"invoice-shortage-pipeline/pkg/logger"
)

// Output file names
const (
	CleanDatasetName     = "invoices_clean"
	ShortagesFlaggedFile = "shortages_flagged.csv"
	ShortagesOnlyFile    = "shortages_only.csv"
	partitionFilename    = "part-000.csv"
	unknownYearPartition = "year=unknown"
)

// KPIFileMapping maps KPI table names to their export filenames
var KPIFileMapping = map[string]string{
	analytics.TableTotalShortage:       "total_shortage.csv",
	analytics.TableAnnualShortages:     "annual_shortages.csv",
	analytics.TableAgedShortagesByYear: "aged_shortages_by_year.csv",
	analytics.TableAgedInvoicesByYear:  "aged_invoices_by_year.csv",
}

// recordHeader is the column order of exported record datasets
var recordHeader = []string{
	"Marketplace",
	"Invoice Date",
	"Payment Due Date",
	"Invoice Status",
	"Actual Paid Amount",
	"Paid Amount Currency",
	"Payee",
	"Invoice Creation Date",
	"Randomized Invoice",
	"Invoice Amount",
	"Invoice Currency",
	"Any Deductions",
	"Quantity Variance Amount",
	"Price Variance Amount",
	"Quick Pay Discount Amount",
	"Randomized Latest Child Invoice",
	"Randomized PO",
	"Source_File",
	"Invoice_Delta",
	"Child_Invoice_Present",
	"Payment_Year",
	"Shortage_Flag",
	"Shortage_Amount_USD",
	"Days_Past_Due",
	"Age_Bucket",
}

// Exporter writes pipeline outputs as CSV files
type Exporter struct {
	settings *config.Settings
	logger   logger.Logger
}

// NewExporter creates an Exporter for the given settings
func NewExporter(settings *config.Settings) (*Exporter, error) {
	if settings == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "settings", nil, nil)
	}

	return &Exporter{
		settings: settings,
		logger:   logger.GetGlobalLogger().WithComponent("report"),
	}, nil
}

// ExportCleanDataset writes the transformed dataset, partitioned by payment
// year when configured. Returns the path written.
func (e *Exporter) ExportCleanDataset(records models.RecordSet) (string, error) {
	if e.settings.PartitionByYear {
		target := filepath.Join(e.settings.OutputDir, CleanDatasetName)
		if err := e.writePartitioned(target, records); err != nil {
			return "", err
		}
		e.logger.WithField("path", target).Info("Exported clean dataset partitioned by payment year")
		return target, nil
	}

	target := filepath.Join(e.settings.OutputDir, CleanDatasetName+".csv")
	if err := e.writeRecords(target, records); err != nil {
		return "", err
	}
	e.logger.WithField("path", target).Info("Exported clean dataset")
	return target, nil
}

// ExportShortageOutputs writes the full flagged dataset and the
// shortage-only subset. Returns a name-to-path map.
func (e *Exporter) ExportShortageOutputs(records models.RecordSet) (map[string]string, error) {
	flaggedPath := filepath.Join(e.settings.OutputDir, ShortagesFlaggedFile)
	if err := e.writeRecords(flaggedPath, records); err != nil {
		return nil, err
	}

	onlyPath := filepath.Join(e.settings.OutputDir, ShortagesOnlyFile)
	if err := e.writeRecords(onlyPath, records.Shortages()); err != nil {
		return nil, err
	}

	e.logger.WithFields(logger.Fields{
		"flagged": flaggedPath,
		"only":    onlyPath,
	}).Info("Exported shortage outputs")

	return map[string]string{
		"shortages_flagged": flaggedPath,
		"shortages_only":    onlyPath,
	}, nil
}

// ExportKPIs writes the four KPI tables under the fixed filename mapping.
// Returns a table-name-to-path map.
func (e *Exporter) ExportKPIs(tables *analytics.Tables) (map[string]string, error) {
	if tables == nil {
		return nil, errors.InternalError(errors.CodeExportFailed, "kpi tables",
			fmt.Errorf("tables is nil"))
	}

	paths := make(map[string]string, len(KPIFileMapping))

	write := func(name string, header []string, rows [][]string) error {
		path := filepath.Join(e.settings.OutputDir, KPIFileMapping[name])
		if err := e.writeCSV(path, header, rows); err != nil {
			return err
		}
		paths[name] = path
		return nil
	}

	total := [][]string{{
		strconv.Itoa(tables.TotalShortage.ShortageCount),
		tables.TotalShortage.TotalShortage.String(),
	}}
	if err := write(analytics.TableTotalShortage,
		[]string{"Shortage_Count", "Total_Shortage_USD"}, total); err != nil {
		return nil, err
	}

	annual := make([][]string, 0, len(tables.AnnualShortages))
	for _, row := range tables.AnnualShortages {
		annual = append(annual, []string{
			strconv.Itoa(row.PaymentYear),
			strconv.Itoa(row.ShortageCount),
			row.TotalShortage.String(),
			row.MeanShortage.String(),
		})
	}
	if err := write(analytics.TableAnnualShortages,
		[]string{"Payment_Year", "Shortage_Count", "Total_Shortage_USD", "Mean_Shortage_USD"}, annual); err != nil {
		return nil, err
	}

	agedShortages := make([][]string, 0, len(tables.AgedShortagesByYear))
	for _, row := range tables.AgedShortagesByYear {
		agedShortages = append(agedShortages, []string{
			strconv.Itoa(row.PaymentYear),
			strconv.Itoa(row.ShortageCount),
			row.TotalShortage.String(),
		})
	}
	if err := write(analytics.TableAgedShortagesByYear,
		[]string{"Payment_Year", "Shortage_Count", "Total_Shortage_USD"}, agedShortages); err != nil {
		return nil, err
	}

	agedInvoices := make([][]string, 0, len(tables.AgedInvoicesByYear))
	for _, row := range tables.AgedInvoicesByYear {
		agedInvoices = append(agedInvoices, []string{
			strconv.Itoa(row.PaymentYear),
			strconv.Itoa(row.InvoiceCount),
			strconv.Itoa(row.ShortageCount),
			row.TotalInvoice.String(),
			row.TotalShortage.String(),
		})
	}
	if err := write(analytics.TableAgedInvoicesByYear,
		[]string{"Payment_Year", "Invoice_Count", "Shortage_Count", "Total_Invoice_USD", "Total_Shortage_USD"}, agedInvoices); err != nil {
		return nil, err
	}

	e.logger.WithField("tables", len(paths)).Info("Exported KPI tables")
	return paths, nil
}

// writePartitioned writes records into year=YYYY subdirectories under target,
// replacing any previous export at that path
func (e *Exporter) writePartitioned(target string, records models.RecordSet) error {
	if err := os.RemoveAll(target); err != nil {
		return errors.InternalError(errors.CodeExportFailed, target, err)
	}

	groups := make(map[string]models.RecordSet)
	for _, record := range records {
		partition := unknownYearPartition
		if record.HasPaymentYear() {
			partition = fmt.Sprintf("year=%d", record.PaymentYear)
		}
		groups[partition] = append(groups[partition], record)
	}

	for partition, group := range groups {
		path := filepath.Join(target, partition, partitionFilename)
		if err := e.writeRecords(path, group); err != nil {
			return err
		}
	}

	return nil
}

// writeRecords writes a record set as CSV with the standard column order
func (e *Exporter) writeRecords(path string, records models.RecordSet) error {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, recordRow(record))
	}
	return e.writeCSV(path, recordHeader, rows)
}

// writeCSV writes a header and rows to path, creating parent directories
func (e *Exporter) writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.InternalError(errors.CodeExportFailed, path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.InternalError(errors.CodeExportFailed, path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return errors.InternalError(errors.CodeExportFailed, path, err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return errors.InternalError(errors.CodeExportFailed, path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.InternalError(errors.CodeExportFailed, path, err)
	}

	e.logger.WithField("path", path).Debug("Wrote CSV file")
	return nil
}

func recordRow(r *models.InvoiceRecord) []string {
	year := ""
	if r.HasPaymentYear() {
		year = strconv.Itoa(r.PaymentYear)
	}

	return []string{
		r.Marketplace,
		formatDate(r.InvoiceDate),
		formatDate(r.PaymentDueDate),
		r.InvoiceStatus,
		r.PaidAmount.String(),
		r.PaidCurrency,
		r.Payee,
		formatDate(r.CreationDate),
		r.InvoiceID,
		r.InvoiceAmount.String(),
		r.InvoiceCurrency,
		strconv.FormatBool(r.AnyDeductions),
		r.QuantityVariance.String(),
		r.PriceVariance.String(),
		r.QuickPayDiscount.String(),
		r.ChildInvoiceID,
		r.PONumber,
		r.SourceFile,
		r.Delta.String(),
		strconv.FormatBool(r.ChildInvoicePresent),
		year,
		strconv.FormatBool(r.ShortageFlag),
		r.ShortageAmount.String(),
		strconv.Itoa(r.DaysPastDue),
		string(r.AgeBucket),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
