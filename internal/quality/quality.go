// Package quality implements the post-evaluation quality gate.
//
// The validator runs after shortage evaluation and before any publishing.
// It never mutates or filters the record set; its only effect is failing
// the run. Checks run in a fixed order with a two-tier failure policy:
//
//  1. non-empty record set (hard failure)
//  2. schema conformance - violations are collected across the whole batch
//     and reported together (lazy tier)
//  3. currency compliance - fail on first violation (fail-closed, stricter
//     than the ingestion-time filter it re-asserts)
//  4. date sanity - all three dates parsed and not in the future; fail on
//     first violation
package quality

import (
	"fmt"
	"strings"
	"time"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/pkg/errors"
	"invoice-shortage-pipeline/pkg/logger"
)

// maxViolationSamples caps how many schema violations appear in the
// aggregate error message
const maxViolationSamples = 10

// Validator runs quality assertions over an evaluated record set
type Validator struct {
	settings *config.Settings
	rules    *config.Rules
	now      func() time.Time
	logger   logger.Logger
}

// Option configures a Validator
type Option func(*Validator)

// WithClock fixes the validator's notion of "today" for the future-date check
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator creates a Validator for the given settings and rules
func NewValidator(settings *config.Settings, rules *config.Rules, opts ...Option) (*Validator, error) {
	if settings == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "settings", nil, nil)
	}
	if rules == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "rules", nil, nil)
	}

	validator := &Validator{
		settings: settings,
		rules:    rules,
		now:      time.Now,
		logger:   logger.GetGlobalLogger().WithComponent("quality"),
	}

	for _, opt := range opts {
		opt(validator)
	}

	return validator, nil
}

// Validate runs all quality checks. It returns nil if the batch passes and
// a validation error describing the first tier that failed otherwise.
func (v *Validator) Validate(records models.RecordSet) error {
	v.logger.WithField("records", len(records)).Info("Running quality checks")

	if len(records) == 0 {
		return errors.ValidationError(errors.CodeEmptyDataset, "record_set", 0, nil)
	}

	if err := v.checkSchema(records); err != nil {
		return err
	}

	if err := v.checkCurrency(records); err != nil {
		return err
	}

	if err := v.checkDates(records); err != nil {
		return err
	}

	v.logger.Info("Quality checks passed")
	return nil
}

// checkSchema collects schema violations across the batch and reports them
// together
func (v *Validator) checkSchema(records models.RecordSet) error {
	collector := errors.NewViolationCollector(maxViolationSamples)

	for i, record := range records {
		if record == nil {
			collector.Add(i, "", "record", nil, "record is nil")
			continue
		}

		if record.InvoiceID == "" {
			collector.Add(i, record.InvoiceID, "Randomized Invoice", record.InvoiceID, "invoice ID is empty")
		}
		if record.InvoiceStatus == "" {
			collector.Add(i, record.InvoiceID, "Invoice Status", record.InvoiceStatus, "invoice status is empty")
		}
		if record.PONumber == "" {
			collector.Add(i, record.InvoiceID, "Randomized PO", record.PONumber, "PO number is empty")
		}
		if record.InvoiceCurrency == "" {
			collector.Add(i, record.InvoiceID, "Invoice Currency", record.InvoiceCurrency, "invoice currency is empty")
		}
		if record.PaidCurrency == "" {
			collector.Add(i, record.InvoiceID, "Paid Amount Currency", record.PaidCurrency, "paid amount currency is empty")
		}
		if record.InvoiceAmount.IsNegative() {
			collector.Add(i, record.InvoiceID, "Invoice Amount", record.InvoiceAmount.String(), "invoice amount is negative")
		}
		if record.PaidAmount.IsNegative() {
			collector.Add(i, record.InvoiceID, "Actual Paid Amount", record.PaidAmount.String(), "actual paid amount is negative")
		}
		if record.DaysPastDue < 0 {
			collector.Add(i, record.InvoiceID, "Days_Past_Due", record.DaysPastDue, "days past due is negative")
		}
		if !record.AgeBucket.IsValid() {
			collector.Add(i, record.InvoiceID, "Age_Bucket", string(record.AgeBucket), "age bucket is not a known value")
		}

		// Shortage amount must equal the delta exactly when flagged and be
		// exactly zero otherwise.
		if record.ShortageFlag {
			if !record.ShortageAmount.Equal(record.Delta) {
				collector.Add(i, record.InvoiceID, "Shortage_Amount", record.ShortageAmount.String(),
					fmt.Sprintf("shortage amount does not equal delta %s", record.Delta.String()))
			}
		} else if !record.ShortageAmount.IsZero() {
			collector.Add(i, record.InvoiceID, "Shortage_Amount", record.ShortageAmount.String(),
				"shortage amount must be zero when not flagged")
		}
	}

	if collector.HasViolations() {
		v.logger.WithField("violations", collector.Count()).Error("Schema validation failed")
		return collector.Err()
	}

	return nil
}

// checkCurrency asserts both currency fields match the expected currency for
// every record. Any violation fails the entire batch.
func (v *Validator) checkCurrency(records models.RecordSet) error {
	expected := v.settings.CurrencyExpected

	for _, record := range records {
		if !equalsFold(record.InvoiceCurrency, expected) {
			return errors.ValidationError(errors.CodeCurrencyMismatch, "Invoice Currency", record.InvoiceCurrency, nil).
				WithContext("invoice_id", record.InvoiceID).
				WithContext("expected", expected)
		}
		if !equalsFold(record.PaidCurrency, expected) {
			return errors.ValidationError(errors.CodeCurrencyMismatch, "Paid Amount Currency", record.PaidCurrency, nil).
				WithContext("invoice_id", record.InvoiceID).
				WithContext("expected", expected)
		}
	}

	return nil
}

// checkDates asserts the three date fields parsed successfully and are not
// in the future relative to the validator's clock
func (v *Validator) checkDates(records models.RecordSet) error {
	today := models.DateOnly(v.now())

	for _, record := range records {
		dates := []struct {
			field string
			value time.Time
		}{
			{"Invoice Date", record.InvoiceDate},
			{"Payment Due Date", record.PaymentDueDate},
			{"Invoice Creation Date", record.CreationDate},
		}

		for _, date := range dates {
			if date.value.IsZero() {
				return errors.ValidationError(errors.CodeInvalidDate, date.field, nil, nil).
					WithContext("invoice_id", record.InvoiceID)
			}
			if models.DateOnly(date.value).After(today) {
				return errors.ValidationError(errors.CodeFutureDate, date.field, date.value.Format("2006-01-02"), nil).
					WithContext("invoice_id", record.InvoiceID)
			}
		}
	}

	return nil
}

func equalsFold(value, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(expected))
}
