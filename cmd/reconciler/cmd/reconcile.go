package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ledger-reconciler/cmd/reconciler/config"
	"ledger-reconciler/internal/reconciler"
	"ledger-reconciler/internal/reporter"
	"ledger-reconciler/pkg/logger"
)

var flags config.ReconcileFlags

// reconcileCmd runs a reconciliation over the provided channel exports
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile channel exports against the baseline ledger",
	Long: `Reconcile loads the baseline workbook, parses the given channel
exports, runs deduplication and refund pairing, and writes the merged
workbook plus a run report.

Surviving records are confirmed one by one on the terminal unless --yes is
given. Answer Y/enter to accept, n to skip, a to accept the rest, s to skip
the rest, q to abort the run without writing anything.

Examples:
  # WeChat export against a baseline, auto-confirm everything
  reconciler reconcile --baseline ./ledger --wechat wechat.csv --output ./out --yes

  # Two channels, CSV report, incremental output
  reconciler reconcile --baseline ./ledger --wechat w.csv --cmb-card c.csv \
    --output ./out --report run.csv --incremental

  # Inspect the decisions without writing
  reconciler reconcile --baseline ./ledger --alipay a.csv --dry-run`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	fl := reconcileCmd.Flags()
	fl.StringVarP(&flags.BaselineDir, "baseline", "b", "", "baseline workbook directory (required)")
	fl.StringVarP(&flags.OutputDir, "output", "o", "", "output workbook directory (required unless --dry-run)")
	fl.StringVar(&flags.ReportPath, "report", "", "run report path (.csv/.json, default: console summary)")
	fl.StringVar(&flags.ReportDB, "report-db", "", "SQLite audit database to append the report to")
	fl.StringVar(&flags.RulesPath, "rules", "", "category rule YAML file")

	fl.StringVar(&flags.WeChatFile, "wechat", "", "WeChat Pay export CSV")
	fl.StringVar(&flags.AlipayFile, "alipay", "", "Alipay export CSV")
	fl.StringVar(&flags.CMBFile, "cmb-card", "", "CMB credit card statement CSV")
	fl.StringVar(&flags.CITICFile, "citic-card", "", "CITIC credit card statement CSV")

	fl.IntVarP(&flags.DateToleranceDays, "date-tolerance", "d", 1, "baseline duplicate date tolerance in days")
	fl.IntVar(&flags.RefundWindowDays, "refund-window", 30, "refund pairing window in days")
	fl.IntVar(&flags.ChannelDupDays, "channel-dup-window", 1, "wallet/card duplicate window in days")
	fl.IntVar(&flags.SupplementDays, "supplement-window", 3, "card remark supplement window in days")
	fl.Float64Var(&flags.SimilarityThreshold, "similarity", 0.5, "remark similarity threshold (0-1)")
	fl.BoolVar(&flags.DisableRemarkCheck, "no-remark-check", false, "match baseline duplicates on amount and date only")
	fl.BoolVar(&flags.AccountLock, "account-lock", true, "skip records older than a balance write-off")

	fl.BoolVar(&flags.IncrementalOnly, "incremental", false, "write only this run's additions")
	fl.BoolVar(&flags.DryRun, "dry-run", false, "run every stage but write nothing")
	fl.BoolVarP(&flags.AutoConfirm, "yes", "y", false, "accept every surviving record without prompting")

	for _, name := range []string{
		"baseline", "output", "report", "report-db", "rules",
		"wechat", "alipay", "cmb-card", "citic-card",
		"date-tolerance", "refund-window", "channel-dup-window", "supplement-window",
		"similarity", "no-remark-check", "account-lock",
		"incremental", "dry-run", "yes",
	} {
		viper.BindPFlag(name, fl.Lookup(name))
	}
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Viper resolution lets config file and RECONCILER_* env fill the gaps
	flags.BaselineDir = viper.GetString("baseline")
	flags.OutputDir = viper.GetString("output")
	flags.ReportPath = viper.GetString("report")
	flags.ReportDB = viper.GetString("report-db")
	flags.RulesPath = viper.GetString("rules")
	flags.WeChatFile = viper.GetString("wechat")
	flags.AlipayFile = viper.GetString("alipay")
	flags.CMBFile = viper.GetString("cmb-card")
	flags.CITICFile = viper.GetString("citic-card")
	flags.DateToleranceDays = viper.GetInt("date-tolerance")
	flags.RefundWindowDays = viper.GetInt("refund-window")
	flags.ChannelDupDays = viper.GetInt("channel-dup-window")
	flags.SupplementDays = viper.GetInt("supplement-window")
	flags.SimilarityThreshold = viper.GetFloat64("similarity")
	flags.DisableRemarkCheck = viper.GetBool("no-remark-check")
	flags.AccountLock = viper.GetBool("account-lock")
	flags.IncrementalOnly = viper.GetBool("incremental")
	flags.DryRun = viper.GetBool("dry-run")
	flags.AutoConfirm = viper.GetBool("yes")

	if flags.BaselineDir == "" {
		return fmt.Errorf("--baseline is required")
	}
	if info, err := os.Stat(flags.BaselineDir); err != nil || !info.IsDir() {
		return fmt.Errorf("baseline directory does not exist: %s", flags.BaselineDir)
	}
	inputs := flags.Inputs()
	if len(inputs) == 0 {
		return fmt.Errorf("at least one channel export is required (--wechat, --alipay, --cmb-card, --citic-card)")
	}
	for _, input := range inputs {
		info, err := os.Stat(input.Path)
		if err != nil {
			return fmt.Errorf("export file does not exist: %s", input.Path)
		}
		if info.IsDir() {
			return fmt.Errorf("export path is a directory, expected a file: %s", input.Path)
		}
	}
	if flags.OutputDir == "" && !flags.DryRun {
		return fmt.Errorf("--output is required unless --dry-run is set")
	}
	if flags.SimilarityThreshold < 0 || flags.SimilarityThreshold > 1 {
		return fmt.Errorf("--similarity must be between 0 and 1")
	}
	for name, value := range map[string]int{
		"--date-tolerance":     flags.DateToleranceDays,
		"--refund-window":      flags.RefundWindowDays,
		"--channel-dup-window": flags.ChannelDupDays,
		"--supplement-window":  flags.SupplementDays,
	} {
		if value < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger()

	opts := flags.Options()
	if !opts.AutoConfirm {
		opts.Confirm = reconciler.ConsoleConfirm(os.Stdin, os.Stderr)
	}

	rec, err := reconciler.New(opts, log)
	if err != nil {
		return err
	}
	result, err := rec.Run()
	if err != nil {
		return err
	}

	if result.Aborted {
		fmt.Fprintln(os.Stderr, "Run aborted, nothing written.")
	}
	summary := &reporter.Report{RunID: result.RunID, Counts: result.Counts}
	if err := reporter.NewReporter(log).Write(os.Stdout, reporter.FormatConsole, summary); err != nil {
		return err
	}
	if result.DryRun {
		fmt.Fprintln(os.Stderr, "Dry run, nothing written.")
	}
	return nil
}
