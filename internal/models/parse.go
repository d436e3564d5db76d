package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Token sets accepted when coercing the deductions flag from CSV text
var (
	trueValues  = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "1": true, "on": true}
	falseValues = map[string]bool{"false": true, "f": true, "no": true, "n": true, "0": true, "off": true}
)

// ParseAmount parses a decimal amount from string, tolerating currency
// symbols and thousand separators
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseOptionalAmount parses an amount that may be absent; empty input yields zero
func ParseOptionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return ParseAmount(s)
}

// ParseBool coerces a CSV value to a boolean. Missing values are an error:
// the deductions flag is a required column.
func ParseBool(s string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return false, fmt.Errorf("missing value in required boolean column")
	}
	if trueValues[normalized] {
		return true, nil
	}
	if falseValues[normalized] {
		return false, nil
	}
	return false, fmt.Errorf("cannot convert value '%s' to boolean", s)
}

// dateFormats returns the accepted date layouts honoring the configured
// day-first or month-first convention. ISO layouts are unambiguous and
// accepted either way.
func dateFormats(dayFirst bool) []string {
	if dayFirst {
		return []string{
			"2006-01-02",
			"2006-01-02T15:04:05Z07:00",
			"2006-01-02 15:04:05",
			"02/01/2006",
			"02-01-2006",
			"2/1/2006",
		}
	}
	return []string{
		"2006-01-02",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"01/02/2006",
		"01-02-2006",
		"1/2/2006",
	}
}

// ParseDate parses a date string using the configured convention. The zero
// time is returned with an error for unparseable input; callers decide
// whether that is a coercion (transform) or a failure (ingest).
func ParseDate(s string, dayFirst bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	var lastErr error
	for _, format := range dateFormats(dayFirst) {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// DateOnly truncates a timestamp to midnight UTC so day arithmetic is exact
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole days from 'from' back to 'to'
// (positive when 'to' is in the past)
func DaysBetween(from, to time.Time) int {
	diff := DateOnly(from).Sub(DateOnly(to))
	return int(diff.Hours() / 24)
}

// RoundMoney applies the pipeline's monetary rounding convention: banker's
// rounding (round half to even). Downstream equality checks depend on every
// stage rounding the same way.
func RoundMoney(d decimal.Decimal, places int) decimal.Decimal {
	return d.RoundBank(int32(places))
}
