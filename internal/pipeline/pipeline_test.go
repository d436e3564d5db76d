package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/pkg/errors"
)

var testToday = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func frozenClock() time.Time { return testToday }

const csvHeader = "Randomized Invoice,Randomized PO,Marketplace,Payee,Invoice Status,Invoice Amount,Actual Paid Amount,Invoice Currency,Paid Amount Currency,Any Deductions,Randomized Latest Child Invoice,Invoice Date,Payment Due Date,Invoice Creation Date\n"

func writeInputFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func newTestSettings(t *testing.T) *config.Settings {
	t.Helper()
	settings := config.DefaultSettings()
	settings.InputDir = t.TempDir()
	settings.OutputDir = t.TempDir()
	return settings
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	settings := newTestSettings(t)

	// INV-001: underpaid with deductions, overdue well past the threshold.
	// INV-002: fully paid, current.
	writeInputFile(t, settings.InputDir, "invoices.csv", csvHeader+
		"INV-001,PO-1,US,Acme,PAID,120.00,100.00,USD,USD,yes,,2024-01-15,2024-02-15,2024-01-10\n"+
		"INV-002,PO-2,US,Acme,PAID,50.00,50.00,USD,USD,no,,2024-05-01,2024-06-01,2024-04-25\n")

	runner, err := NewRunner(settings, config.DefaultRules(), WithClock(frozenClock))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.LoadStats.RowsKept != 2 {
		t.Errorf("RowsKept = %d, want 2", result.LoadStats.RowsKept)
	}

	// One shortage: delta 20.00, deductions present, eligible status
	if result.Tables.TotalShortage.ShortageCount != 1 {
		t.Errorf("ShortageCount = %d, want 1", result.Tables.TotalShortage.ShortageCount)
	}
	if result.Tables.TotalShortage.TotalShortage.String() != "20" {
		t.Errorf("TotalShortage = %s, want 20", result.Tables.TotalShortage.TotalShortage)
	}

	// 2024-02-15 due, 2024-06-30 today: 136 days past due, Aged
	flagged := result.Records[0]
	if flagged.InvoiceID != "INV-001" {
		t.Fatalf("first record = %s, want INV-001", flagged.InvoiceID)
	}
	if flagged.DaysPastDue != 136 {
		t.Errorf("DaysPastDue = %d, want 136", flagged.DaysPastDue)
	}
	if !flagged.IsAged() {
		t.Error("INV-001 should be in the Aged bucket")
	}

	// All seven outputs present on disk
	wantOutputs := []string{
		"clean_dataset", "shortages_flagged", "shortages_only",
		"total_shortage", "annual_shortages", "aged_shortages_by_year", "aged_invoices_by_year",
	}
	for _, name := range wantOutputs {
		path, ok := result.OutputPaths[name]
		if !ok {
			t.Errorf("missing output %q", name)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("output %q not written: %v", name, err)
		}
	}

	// Clean dataset is partitioned by payment year
	cleanRows := readCSVFile(t, filepath.Join(result.OutputPaths["clean_dataset"], "year=2024", "part-000.csv"))
	if len(cleanRows) != 3 {
		t.Errorf("year=2024 partition has %d rows, want header plus 2", len(cleanRows))
	}

	onlyRows := readCSVFile(t, result.OutputPaths["shortages_only"])
	if len(onlyRows) != 2 {
		t.Errorf("shortages_only has %d rows, want header plus 1", len(onlyRows))
	}
}

func TestRunFailsWhenInputDirMissing(t *testing.T) {
	settings := newTestSettings(t)
	settings.InputDir = filepath.Join(settings.InputDir, "missing")

	runner, err := NewRunner(settings, config.DefaultRules(), WithClock(frozenClock))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	_, err = runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing input directory")
	}
	if errors.ExitCodeFor(err) != 2 {
		t.Errorf("exit code = %d, want 2 (ingestion)", errors.ExitCodeFor(err))
	}
}

func TestRunFailsWhenAllRowsFiltered(t *testing.T) {
	settings := newTestSettings(t)
	writeInputFile(t, settings.InputDir, "invoices.csv", csvHeader+
		"INV-001,PO-1,DE,Acme,PAID,120.00,100.00,EUR,EUR,yes,,2024-01-15,2024-02-15,2024-01-10\n")

	runner, err := NewRunner(settings, config.DefaultRules(), WithClock(frozenClock))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	_, err = runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when the currency filter drops every row")
	}
	pipelineErr, ok := errors.AsPipelineError(err)
	if !ok || pipelineErr.Code != errors.CodeEmptyDataset {
		t.Errorf("error = %v, want %s", err, errors.CodeEmptyDataset)
	}
}

func TestRunValidationFailureAbortsBeforeExport(t *testing.T) {
	settings := newTestSettings(t)

	// Future-dated invoice relative to the frozen clock fails the quality gate
	writeInputFile(t, settings.InputDir, "invoices.csv", csvHeader+
		"INV-001,PO-1,US,Acme,PAID,120.00,100.00,USD,USD,yes,,2025-01-15,2025-02-15,2025-01-10\n")

	runner, err := NewRunner(settings, config.DefaultRules(), WithClock(frozenClock))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	_, err = runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected the quality gate to fail the run")
	}
	pipelineErr, ok := errors.AsPipelineError(err)
	if !ok || pipelineErr.Code != errors.CodeFutureDate {
		t.Errorf("error = %v, want %s", err, errors.CodeFutureDate)
	}
	if errors.ExitCodeFor(err) != 3 {
		t.Errorf("exit code = %d, want 3 (validation)", errors.ExitCodeFor(err))
	}

	// Nothing published
	entries, err := os.ReadDir(settings.OutputDir)
	if err != nil {
		t.Fatalf("failed to read output dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir should be empty after a validation failure, found %d entries", len(entries))
	}
}

func TestRunMissingDateFailsValidation(t *testing.T) {
	settings := newTestSettings(t)

	// Unparseable invoice date coerces at ingestion, then fails the date check
	writeInputFile(t, settings.InputDir, "invoices.csv", csvHeader+
		"INV-001,PO-1,US,Acme,PAID,120.00,100.00,USD,USD,yes,,garbage,2024-02-15,2024-01-10\n")

	runner, err := NewRunner(settings, config.DefaultRules(), WithClock(frozenClock))
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}

	_, err = runner.Run(context.Background())
	if err == nil {
		t.Fatal("expected the quality gate to reject the coerced date")
	}
	pipelineErr, ok := errors.AsPipelineError(err)
	if !ok || pipelineErr.Code != errors.CodeInvalidDate {
		t.Errorf("error = %v, want %s", err, errors.CodeInvalidDate)
	}
}

func TestNewRunnerValidatesConfig(t *testing.T) {
	if _, err := NewRunner(nil, config.DefaultRules()); err == nil {
		t.Error("expected error for nil settings")
	}
	if _, err := NewRunner(config.DefaultSettings(), nil); err == nil {
		t.Error("expected error for nil rules")
	}

	bad := config.DefaultSettings()
	bad.AgingDaysThreshold = -1
	if _, err := NewRunner(bad, config.DefaultRules()); err == nil {
		t.Error("expected error for invalid settings")
	}
}
