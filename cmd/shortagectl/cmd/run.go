package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"invoice-shortage-pipeline/internal/config"
	"invoice-shortage-pipeline/internal/models"
	"invoice-shortage-pipeline/internal/pipeline"

	"github.com/spf13/cobra"
)

// Flags for the run command
var (
	settingsFile string
	rulesFile    string
	inputDir     string
	outputDir    string
	asOf         string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the shortage detection pipeline",
	Long: `Run ingests all invoice CSV files from the configured input directory,
derives the shortage signal per invoice, validates data quality, and exports
the clean dataset, shortage subsets, and four KPI tables.

Examples:
  # Standard daily run
  shortagectl run --settings config/settings.yaml --rules config/rules.yaml

  # Override directories from the command line
  shortagectl run --settings settings.yaml --rules rules.yaml \
    --input-dir /data/raw --output-dir /data/processed

  # Backfill as of a past date
  shortagectl run --settings settings.yaml --rules rules.yaml --as-of 2024-06-30`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&settingsFile, "settings", "config/settings.yaml", "settings configuration file")
	runCmd.Flags().StringVar(&rulesFile, "rules", "config/rules.yaml", "business rules configuration file")
	runCmd.Flags().StringVar(&inputDir, "input-dir", "", "override the configured input directory")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "override the configured output directory")
	runCmd.Flags().StringVar(&asOf, "as-of", "", "evaluate aging and date checks as of this date (YYYY-MM-DD)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	result, err := executeRun(cmd.Context())
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pipeline completed in %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", result.LoadStats.String())
	for name, path := range result.OutputPaths {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", name, path)
	}

	return nil
}

func executeRun(ctx context.Context) (*pipeline.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		return nil, err
	}
	rules, err := config.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}

	if inputDir != "" {
		settings.InputDir = inputDir
	}
	if outputDir != "" {
		settings.OutputDir = outputDir
	}

	var opts []pipeline.Option
	if asOf != "" {
		evalDate, err := models.ParseDate(asOf, false)
		if err != nil {
			return nil, fmt.Errorf("invalid --as-of date %q: %w", asOf, err)
		}
		opts = append(opts, pipeline.WithClock(func() time.Time { return evalDate }))
	}

	runner, err := pipeline.NewRunner(settings, rules, opts...)
	if err != nil {
		return nil, err
	}

	return runner.Run(ctx)
}
