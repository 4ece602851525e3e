package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-reconciler/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Ledger reconciliation tool",
	Long: `Reconciler merges channel payment exports (wallet apps, card
statements) into a baseline ledger workbook. It detects records already in
the baseline, pairs refunds with their originals, collapses the wallet/card
double entry for a single purchase, and enriches card remarks with wallet
context.

Examples:
  reconciler reconcile --baseline ./ledger --wechat wechat.csv --output ./out
  reconciler reconcile --baseline ./ledger --alipay alipay.csv --cmb-card cmb.csv \
    --output ./out --report report.json --yes`,
	Version: getVersionString(),
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads the config file and RECONCILER_* environment variables,
// then reconfigures the global logger to match.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("RECONCILER")
	viper.AutomaticEnv()

	level := logger.InfoLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}
	log, err := logger.NewLogger(&logger.Config{
		Level:  level,
		Format: logger.TextFormat,
	})
	if err == nil {
		logger.SetGlobalLogger(log)
	}
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
