// Package config loads and validates the two configuration structures the
// pipeline consumes: runtime settings (directories, thresholds, precision)
// and business rules (status allow-list, shortage evidence flags).
//
// Configuration lives in two YAML files, conventionally settings.yaml and
// rules.yaml. Values can be overridden through SHORTAGE_-prefixed environment
// variables. The core stages only ever see the parsed structs.
package config

import (
	"fmt"
	"strings"

	"invoice-shortage-pipeline/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "SHORTAGE"

// Settings holds the runtime settings for a pipeline run
type Settings struct {
	InputDir            string          `mapstructure:"input_raw_dir"`
	OutputDir           string          `mapstructure:"output_processed_dir"`
	DateFormat          string          `mapstructure:"date_format"`
	AgingDaysThreshold  int             `mapstructure:"aging_days_threshold"`
	CurrencyExpected    string          `mapstructure:"currency_expected"`
	RoundDecimals       int             `mapstructure:"round_decimals"`
	PartitionByYear     bool            `mapstructure:"partition_by_year"`
	ToleranceSmallDelta decimal.Decimal `mapstructure:"-"`
}

// Rules holds the business rules for shortage evaluation
type Rules struct {
	EligibleStatuses       []string `mapstructure:"eligible_statuses"`
	ShortageRequiredFlags  []string `mapstructure:"shortage_required_flags"`
	UseStrictCurrencyCheck bool     `mapstructure:"use_strict_currency_check"`
}

// DayFirst reports whether dates are parsed with the day before the month
func (s *Settings) DayFirst() bool {
	switch strings.ToLower(s.DateFormat) {
	case "dayfirst", "dd/mm/yyyy":
		return true
	default:
		return false
	}
}

// Validate checks the settings for consistency
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.InputDir) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "input_raw_dir", nil, nil)
	}
	if strings.TrimSpace(s.OutputDir) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "output_processed_dir", nil, nil)
	}

	switch strings.ToLower(s.DateFormat) {
	case "dayfirst", "dd/mm/yyyy", "monthfirst", "mm/dd/yyyy":
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "date_format", s.DateFormat, nil).
			WithSuggestion("use 'dayfirst' or 'monthfirst'")
	}

	if s.AgingDaysThreshold < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "aging_days_threshold", s.AgingDaysThreshold, nil)
	}

	if len(strings.TrimSpace(s.CurrencyExpected)) != 3 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "currency_expected", s.CurrencyExpected, nil).
			WithSuggestion("use a 3-letter currency code such as USD")
	}

	if s.RoundDecimals < 0 || s.RoundDecimals > 8 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "round_decimals", s.RoundDecimals, nil)
	}

	if s.ToleranceSmallDelta.IsNegative() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "tolerance_small_delta_usd", s.ToleranceSmallDelta.String(), nil)
	}

	return nil
}

// Validate checks the rules for consistency
func (r *Rules) Validate() error {
	if len(r.EligibleStatuses) == 0 {
		return errors.ConfigurationError(errors.CodeMissingConfig, "eligible_statuses", nil, nil).
			WithSuggestion("list at least one eligible invoice status")
	}

	for _, status := range r.EligibleStatuses {
		if strings.TrimSpace(status) == "" {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "eligible_statuses", status, nil).
				WithSuggestion("statuses cannot be blank")
		}
	}

	return nil
}

// EligibleStatusSet returns the upper-cased status allow-list as a set
func (r *Rules) EligibleStatusSet() map[string]bool {
	set := make(map[string]bool, len(r.EligibleStatuses))
	for _, status := range r.EligibleStatuses {
		set[strings.ToUpper(strings.TrimSpace(status))] = true
	}
	return set
}

// settingsKeys are the required keys in the settings file
var settingsKeys = []string{
	"input_raw_dir",
	"output_processed_dir",
	"date_format",
	"aging_days_threshold",
	"currency_expected",
	"round_decimals",
	"partition_by_year",
	"tolerance_small_delta_usd",
}

// rulesKeys are the required keys in the rules file
var rulesKeys = []string{
	"eligible_statuses",
	"shortage_required_flags",
	"use_strict_currency_check",
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, path, nil, err).
			WithSuggestion("check that the configuration file exists and is valid YAML")
	}
	return v, nil
}

func requireKeys(v *viper.Viper, path string, keys []string) error {
	for _, key := range keys {
		if !v.IsSet(key) {
			return errors.ConfigurationError(errors.CodeMissingConfig, key, nil, nil).
				WithContext("file", path)
		}
	}
	return nil
}

// LoadSettings parses the settings file into a Settings struct
func LoadSettings(path string) (*Settings, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	if err := requireKeys(v, path, settingsKeys); err != nil {
		return nil, err
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, path, nil, err)
	}

	tolerance, err := decimal.NewFromString(v.GetString("tolerance_small_delta_usd"))
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"tolerance_small_delta_usd",
			v.GetString("tolerance_small_delta_usd"),
			err,
		)
	}
	settings.ToleranceSmallDelta = tolerance

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return &settings, nil
}

// LoadRules parses the rules file into a Rules struct. Statuses are
// upper-cased at load time so evaluation compares case-insensitively.
func LoadRules(path string) (*Rules, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	if err := requireKeys(v, path, rulesKeys); err != nil {
		return nil, err
	}

	var rules Rules
	if err := v.Unmarshal(&rules); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, path, nil, err)
	}

	for i, status := range rules.EligibleStatuses {
		rules.EligibleStatuses[i] = strings.ToUpper(strings.TrimSpace(status))
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}

	return &rules, nil
}

// DefaultSettings returns settings suitable for tests and local runs
func DefaultSettings() *Settings {
	return &Settings{
		InputDir:            "data/raw",
		OutputDir:           "data/processed",
		DateFormat:          "dayfirst",
		AgingDaysThreshold:  90,
		CurrencyExpected:    "USD",
		RoundDecimals:       2,
		PartitionByYear:     true,
		ToleranceSmallDelta: decimal.RequireFromString("0.01"),
	}
}

// DefaultRules returns the default business rules
func DefaultRules() *Rules {
	return &Rules{
		EligibleStatuses: []string{
			"PAID",
			"PAID_PRICE_DISCREPANCY",
			"PROCESSING_PENDING_AMAZON_ACTION",
			"QUEUED_FOR_PAYMENT",
		},
		ShortageRequiredFlags:  []string{"Any Deductions", "Child_Invoice_Present"},
		UseStrictCurrencyCheck: true,
	}
}

// Describe returns a one-line summary for logging
func (s *Settings) Describe() string {
	return fmt.Sprintf("input=%s output=%s currency=%s aging>%dd tolerance=%s round=%d partition=%t",
		s.InputDir, s.OutputDir, s.CurrencyExpected, s.AgingDaysThreshold,
		s.ToleranceSmallDelta.String(), s.RoundDecimals, s.PartitionByYear)
}
