// Package shortage implements the shortage predicate and aging
// classification, the central decision logic of the pipeline.
//
// A record is flagged as a shortage when all three hold:
//   - its delta exceeds the configured tolerance (strictly greater than;
//     a delta exactly equal to the tolerance is NOT a shortage)
//   - there is shortage evidence: a deductions flag or a child invoice
//   - its status, upper-cased, is in the configured allow-list
//
// The shortage amount equals the delta exactly when flagged and is exactly
// zero otherwise; no tolerance drift is permitted. Aging compares days past
// due strictly against the threshold. The evaluator takes an injectable
// clock so "today" can be frozen in tests and backfills.
package shortage

import (
	"fmt"
	"strings"
	"time"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/pkg/errors"
	"invoice-shortage-pipeline/pkg/logger"

	"github.com/shopspring/decimal"
)

// Evaluator applies the shortage predicate and aging bucket to a record set
type Evaluator struct {
	settings *config.Settings
	rules    *config.Rules
	statuses map[string]bool
	now      func() time.Time
	logger   logger.Logger
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithClock fixes the evaluator's notion of "today". Used by tests and by
// backfill runs that evaluate as of a past date.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator creates an Evaluator for the given settings and rules
func NewEvaluator(settings *config.Settings, rules *config.Rules, opts ...Option) (*Evaluator, error) {
	if settings == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "settings", nil, nil)
	}
	if rules == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "rules", nil, nil)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	evaluator := &Evaluator{
		settings: settings,
		rules:    rules,
		statuses: rules.EligibleStatusSet(),
		now:      time.Now,
		logger:   logger.GetGlobalLogger().WithComponent("shortage"),
	}

	for _, opt := range opts {
		opt(evaluator)
	}

	return evaluator, nil
}

// Evaluate applies the shortage predicate and aging classification to every
// record, returning a new record set. The input set is not modified.
//
// Records must have passed through the transform stage first; a nil record
// in the set indicates an upstream contract violation and surfaces as a
// computation error.
func (e *Evaluator) Evaluate(records models.RecordSet) (models.RecordSet, error) {
	e.logger.WithField("records", len(records)).Info("Applying shortage logic")

	today := models.DateOnly(e.now())
	tolerance := e.settings.ToleranceSmallDelta
	flagged := 0

	out := make(models.RecordSet, 0, len(records))
	for i, record := range records {
		if record == nil {
			return nil, errors.ComputationError(
				"shortage evaluation",
				fmt.Errorf("nil record at index %d", i),
			)
		}

		evaluated := record.Clone()
		e.evaluateRecord(evaluated, today, tolerance)
		if evaluated.ShortageFlag {
			flagged++
		}
		out = append(out, evaluated)
	}

	e.logger.WithFields(logger.Fields{
		"records": len(out),
		"flagged": flagged,
	}).Info("Shortage logic completed")

	return out, nil
}

// evaluateRecord fills the shortage and aging fields on a single record
func (e *Evaluator) evaluateRecord(record *models.InvoiceRecord, today time.Time, tolerance decimal.Decimal) {
	record.ShortageFlag = e.isShortage(record, tolerance)

	if record.ShortageFlag {
		record.ShortageAmount = record.Delta
	} else {
		record.ShortageAmount = decimal.Zero
	}

	// An unparseable due date coerces to zero days past due rather than
	// failing the stage.
	if record.PaymentDueDate.IsZero() {
		record.DaysPastDue = 0
	} else {
		days := models.DaysBetween(today, record.PaymentDueDate)
		if days < 0 {
			days = 0
		}
		record.DaysPastDue = days
	}

	if record.DaysPastDue > e.settings.AgingDaysThreshold {
		record.AgeBucket = models.AgeBucketAged
	} else {
		record.AgeBucket = models.AgeBucketCurrent
	}
}

// isShortage applies the three-part shortage predicate
func (e *Evaluator) isShortage(record *models.InvoiceRecord, tolerance decimal.Decimal) bool {
	if !record.Delta.GreaterThan(tolerance) {
		return false
	}

	if !record.AnyDeductions && !record.ChildInvoicePresent {
		return false
	}

	return e.statuses[strings.ToUpper(strings.TrimSpace(record.InvoiceStatus))]
}
