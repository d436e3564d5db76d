package cmd

import (
	"fmt"

	"invoice-shortage-pipeline/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shortagectl",
	Short: "Invoice shortage detection pipeline",
	Long: `Shortagectl ingests invoice CSV batches, flags underpaid invoices,
validates data quality, and exports aggregated shortage KPI tables.

Examples:
  shortagectl run --settings config/settings.yaml --rules config/rules.yaml
  shortagectl run --settings settings.yaml --rules rules.yaml --as-of 2024-06-30
  shortagectl version`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initLogging configures the global logger from the persistent flags
func initLogging() {
	config := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		config.Level = logger.DebugLevel
	}

	log, err := logger.NewLogger(config)
	if err != nil {
		return
	}
	logger.SetGlobalLogger(log)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
