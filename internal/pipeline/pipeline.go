// Package pipeline orchestrates the full shortage detection workflow.
//
// A run executes the fixed stage order
//
//	ingest -> transform -> evaluate -> validate -> export -> aggregate
//
// Each stage is a pure batch transformation of the previous stage's output;
// only this global ordering is load-bearing. Errors are fail-fast: the run
// aborts on the first stage failure and propagates the error unmodified. No
// retries, cancellation handling beyond context, or partial-result recovery
// live here; a scheduler that wants retries wraps the whole run.
package pipeline

import (
	"context"
	"time"

	"invoice-shortage-pipeline/internal/analytics"
	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/ingest"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/internal/quality"
	"invoice-shortage-pipeline/internal/report"
	"invoice-shortage-pipeline/internal/shortage"
	"invoice-shortage-pipeline/internal/transform"
	"invoice-shortage-pipeline/pkg/errors"
	"invoice-shortage-pipeline/pkg/logger"
)

// Runner executes the shortage detection pipeline
type Runner struct {
	settings *config.Settings
	rules    *config.Rules
	now      func() time.Time
	logger   logger.Logger
}

// Result holds the outcome of a pipeline run
type Result struct {
	OutputPaths map[string]string `json:"output_paths"`
	LoadStats   *ingest.LoadStats `json:"load_stats"`
	Tables      *analytics.Tables `json:"-"`
	Records     models.RecordSet  `json:"-"`
	Duration    time.Duration     `json:"duration"`
}

// Option configures a Runner
type Option func(*Runner)

// WithClock fixes the evaluation date for the whole run (shortage aging and
// the quality gate's future-date check share the same clock)
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner for the given settings and rules
func NewRunner(settings *config.Settings, rules *config.Rules, opts ...Option) (*Runner, error) {
	if settings == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "settings", nil, nil)
	}
	if rules == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "rules", nil, nil)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	runner := &Runner{
		settings: settings,
		rules:    rules,
		now:      time.Now,
		logger:   logger.GetGlobalLogger().WithComponent("pipeline"),
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner, nil
}

// Run executes the full workflow and returns the output path map
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	r.logger.WithField("settings", r.settings.Describe()).Info("Pipeline started")

	loader, err := ingest.NewLoader(r.settings, nil)
	if err != nil {
		return nil, err
	}

	raw, loadStats, err := loader.LoadDirectory(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info(loadStats.String())

	if len(raw) == 0 {
		return nil, errors.ValidationError(errors.CodeEmptyDataset, "ingested_records", 0, nil).
			WithSuggestion("no invoice data available after ingestion; check the input files and currency filter")
	}

	transformed := transform.Apply(raw, r.settings)

	evaluator, err := shortage.NewEvaluator(r.settings, r.rules, shortage.WithClock(r.now))
	if err != nil {
		return nil, err
	}
	evaluated, err := evaluator.Evaluate(transformed)
	if err != nil {
		return nil, err
	}

	validator, err := quality.NewValidator(r.settings, r.rules, quality.WithClock(r.now))
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(evaluated); err != nil {
		return nil, err
	}

	exporter, err := report.NewExporter(r.settings)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]string)

	cleanPath, err := exporter.ExportCleanDataset(transformed)
	if err != nil {
		return nil, err
	}
	outputs["clean_dataset"] = cleanPath

	shortagePaths, err := exporter.ExportShortageOutputs(evaluated)
	if err != nil {
		return nil, err
	}
	for name, path := range shortagePaths {
		outputs[name] = path
	}

	tables := analytics.ComputeKPIs(evaluated, r.settings)

	kpiPaths, err := exporter.ExportKPIs(tables)
	if err != nil {
		return nil, err
	}
	for name, path := range kpiPaths {
		outputs[name] = path
	}

	duration := time.Since(start)
	r.logger.WithFields(logger.Fields{
		"outputs":  len(outputs),
		"duration": duration.String(),
	}).Info("Pipeline completed successfully")

	return &Result{
		OutputPaths: outputs,
		LoadStats:   loadStats,
		Tables:      tables,
		Records:     evaluated,
		Duration:    duration,
	}, nil
}
