package errors

import (
	"fmt"
	"strings"
)

// Violation describes a single schema violation for one record
type Violation struct {
	Row     int         `json:"row"`
	Record  string      `json:"record"`
	Field   string      `json:"field"`
	Value   interface{} `json:"value"`
	Message string      `json:"message"`
}

func (v *Violation) String() string {
	return fmt.Sprintf("row %d (%s), field '%s': %s (value: %v)",
		v.Row, v.Record, v.Field, v.Message, v.Value)
}

// ViolationCollector accumulates schema violations so a whole batch can be
// reported at once instead of failing on the first offending record.
type ViolationCollector struct {
	violations []*Violation
	maxSamples int
}

// NewViolationCollector creates a collector. maxSamples caps how many
// violations appear in the aggregate error message (0 means all).
func NewViolationCollector(maxSamples int) *ViolationCollector {
	return &ViolationCollector{maxSamples: maxSamples}
}

// Add records a violation
func (c *ViolationCollector) Add(row int, record, field string, value interface{}, message string) {
	c.violations = append(c.violations, &Violation{
		Row:     row,
		Record:  record,
		Field:   field,
		Value:   value,
		Message: message,
	})
}

// HasViolations returns true if any violations were collected
func (c *ViolationCollector) HasViolations() bool {
	return len(c.violations) > 0
}

// Count returns the number of collected violations
func (c *ViolationCollector) Count() int {
	return len(c.violations)
}

// Violations returns all collected violations
func (c *ViolationCollector) Violations() []*Violation {
	return c.violations
}

// Err builds the aggregate validation error, or nil if nothing was collected
func (c *ViolationCollector) Err() *PipelineError {
	if len(c.violations) == 0 {
		return nil
	}

	limit := len(c.violations)
	if c.maxSamples > 0 && c.maxSamples < limit {
		limit = c.maxSamples
	}

	samples := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		samples = append(samples, c.violations[i].String())
	}

	message := fmt.Sprintf("%d schema violation(s) detected: %s",
		len(c.violations), strings.Join(samples, "; "))
	if limit < len(c.violations) {
		message += fmt.Sprintf(" (and %d more)", len(c.violations)-limit)
	}

	return New(CategoryValidation, CodeSchemaViolation, message).
		WithSuggestion("fix the offending records in the source data").
		WithContext("violation_count", len(c.violations))
}
