package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestPipelineErrorMessage(t *testing.T) {
	err := New(CategoryValidation, CodeSchemaViolation, "something is off")
	if err.Error() != "something is off" {
		t.Errorf("Error() = %q, want message only", err.Error())
	}

	err.WithSuggestion("check the data")
	if !strings.Contains(err.Error(), "suggestion: check the data") {
		t.Errorf("Error() = %q, want suggestion appended", err.Error())
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     int
	}{
		{CategoryIngestion, 2},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryComputation, 5},
		{CategoryInternal, 5},
		{ErrorCategory("mystery"), 1},
	}

	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "test")
		if got := err.GetExitCode(); got != tt.want {
			t.Errorf("GetExitCode() for %s = %d, want %d", tt.category, got, tt.want)
		}
	}
}

func TestExitCodeFor(t *testing.T) {
	if got := ExitCodeFor(nil); got != 0 {
		t.Errorf("ExitCodeFor(nil) = %d, want 0", got)
	}
	if got := ExitCodeFor(fmt.Errorf("plain")); got != 1 {
		t.Errorf("ExitCodeFor(plain error) = %d, want 1", got)
	}
	if got := ExitCodeFor(New(CategoryIngestion, CodeNoInputFiles, "x")); got != 2 {
		t.Errorf("ExitCodeFor(ingestion error) = %d, want 2", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(cause, CategoryInternal, CodeExportFailed, "export failed")

	if err.Unwrap() != cause {
		t.Error("Unwrap should return the original cause")
	}
	if err.StackTrace == nil {
		t.Error("wrapped error should carry a stack trace")
	}
	if Wrap(nil, CategoryInternal, CodeExportFailed, "x") != nil {
		t.Error("wrapping nil should yield nil")
	}
}

func TestAsPipelineErrorWalksChain(t *testing.T) {
	inner := IngestionError(CodeNoInputFiles, "/data/raw", nil)
	outer := fmt.Errorf("run failed: %w", inner)

	got, ok := AsPipelineError(outer)
	if !ok {
		t.Fatal("expected to find the pipeline error in the chain")
	}
	if got.Code != CodeNoInputFiles {
		t.Errorf("Code = %s, want %s", got.Code, CodeNoInputFiles)
	}

	if _, ok := AsPipelineError(fmt.Errorf("plain")); ok {
		t.Error("plain error should not be a pipeline error")
	}
	if IsPipelineError(nil) {
		t.Error("nil should not be a pipeline error")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	original := ValidationError(CodeFutureDate, "Invoice Date", "2099-01-01", nil)
	got := WrapIfNeeded(fmt.Errorf("wrapped: %w", original), CategoryInternal, CodeUnexpectedError, "fallback")
	if got != original {
		t.Error("WrapIfNeeded should return the existing pipeline error unchanged")
	}

	plain := fmt.Errorf("plain")
	got = WrapIfNeeded(plain, CategoryInternal, CodeUnexpectedError, "fallback")
	if got.Category != CategoryInternal || got.Cause != plain {
		t.Error("WrapIfNeeded should wrap a plain error with the given category")
	}
}

func TestConstructorContext(t *testing.T) {
	err := ParseError(CodeMissingColumn, "invoices.csv", 0, "Invoice Amount", "", nil)

	if err.Category != CategoryIngestion {
		t.Errorf("Category = %s, want %s", err.Category, CategoryIngestion)
	}
	if err.Context["file"] != "invoices.csv" {
		t.Errorf("context file = %v, want invoices.csv", err.Context["file"])
	}
	if err.Context["column"] != "Invoice Amount" {
		t.Errorf("context column = %v, want Invoice Amount", err.Context["column"])
	}
	if err.Suggestion == "" {
		t.Error("constructor should set a suggestion")
	}
}

func TestViolationCollector(t *testing.T) {
	collector := NewViolationCollector(2)

	if collector.HasViolations() {
		t.Error("fresh collector should have no violations")
	}
	if collector.Err() != nil {
		t.Error("Err() on an empty collector should be nil")
	}

	collector.Add(0, "INV-001", "Invoice Amount", "-5", "amount is negative")
	collector.Add(3, "INV-004", "Randomized Invoice", "", "invoice ID is empty")
	collector.Add(7, "INV-008", "Age_Bucket", "Stale", "age bucket is not a known value")

	if collector.Count() != 3 {
		t.Errorf("Count() = %d, want 3", collector.Count())
	}

	err := collector.Err()
	if err == nil {
		t.Fatal("expected an aggregate error")
	}
	if err.Code != CodeSchemaViolation {
		t.Errorf("Code = %s, want %s", err.Code, CodeSchemaViolation)
	}

	message := err.Message
	if !strings.Contains(message, "3 schema violation(s)") {
		t.Errorf("message should report the total count, got: %s", message)
	}
	if !strings.Contains(message, "amount is negative") {
		t.Errorf("message should include the first sample, got: %s", message)
	}
	// maxSamples is 2, so the third violation is summarized, not listed
	if strings.Contains(message, "age bucket") {
		t.Errorf("message should omit samples beyond the cap, got: %s", message)
	}
	if !strings.Contains(message, "and 1 more") {
		t.Errorf("message should note the truncated violations, got: %s", message)
	}
	if err.Context["violation_count"] != 3 {
		t.Errorf("context violation_count = %v, want 3", err.Context["violation_count"])
	}
}
