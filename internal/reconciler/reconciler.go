// Package reconciler orchestrates a full reconciliation run: load the
// baseline workbook, parse the channel exports, run the engine stages, gate
// acceptance through the confirmation hook, then build and write the merged
// workbook and the run report.
//
// Output is all-or-nothing. Nothing is written until every stage and the
// confirmation gate have completed, so an aborted or failed run leaves the
// output directory untouched.
package reconciler

import (
	"github.com/google/uuid"

	"ledger-reconciler/internal/baseline"
	"ledger-reconciler/internal/categorize"
	"ledger-reconciler/internal/engine"
	"ledger-reconciler/internal/merge"
	"ledger-reconciler/internal/models"
	"ledger-reconciler/internal/parsers"
	"ledger-reconciler/internal/reporter"
	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// InputFile pairs a channel export with its parser configuration
type InputFile struct {
	Path   string
	Config *parsers.ChannelConfig
}

// Options configures a reconciliation run
type Options struct {
	// BaselineDir is the baseline workbook directory (required)
	BaselineDir string

	// Inputs are the channel exports to reconcile (at least one required)
	Inputs []InputFile

	// OutputDir receives the merged workbook (required unless DryRun)
	OutputDir string

	// ReportPath receives the run report; empty means no report file
	ReportPath string

	// ReportDBPath appends the report to a SQLite audit database when set
	ReportDBPath string

	// RulesPath is the category rule file; empty disables categorization
	RulesPath string

	// IncrementalOnly writes only this run's additions instead of the full
	// merged workbook
	IncrementalOnly bool

	// DryRun runs every stage but writes nothing
	DryRun bool

	// AutoConfirm accepts every surviving record without consulting Confirm
	AutoConfirm bool

	// Confirm is the per-record acceptance gate. Nil behaves like AutoConfirm.
	Confirm ConfirmFunc

	// Engine holds the matching tolerances; nil means defaults
	Engine *engine.Config
}

// Validate checks the options before any work starts
func (o *Options) Validate() error {
	if o.BaselineDir == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingOption, "baseline_dir", "")
	}
	if len(o.Inputs) == 0 {
		return apperrors.ConfigurationError(apperrors.CodeMissingOption, "inputs", "at least one channel export required")
	}
	if o.OutputDir == "" && !o.DryRun {
		return apperrors.ConfigurationError(apperrors.CodeMissingOption, "output_dir", "")
	}
	cfg := o.Engine
	if cfg == nil {
		cfg = engine.DefaultConfig()
	}
	return cfg.Validate()
}

// Result summarizes a completed run
type Result struct {
	RunID       string             `json:"run_id"`
	Counts      merge.Counts       `json:"summary"`
	Stats       *engine.StageStats `json:"stages"`
	Categorized int                `json:"categorized"`
	Aborted     bool               `json:"aborted"`
	DryRun      bool               `json:"dry_run"`
}

// Reconciler runs the pipeline
type Reconciler struct {
	opts  *Options
	log   logger.Logger
	store *baseline.Store
}

// New validates options and creates a reconciler
func New(opts *Options, log logger.Logger) (*Reconciler, error) {
	if opts == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingOption, "options", nil)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Reconciler{
		opts:  opts,
		log:   log.WithComponent("reconciler"),
		store: baseline.NewStore(log),
	}, nil
}

// Run executes the full pipeline and returns the run summary
func (r *Reconciler) Run() (*Result, error) {
	runID := uuid.NewString()
	log := r.log.WithField("run_id", runID)
	log.Info("Reconciliation run starting")

	baselineSet, err := r.store.Load(r.opts.BaselineDir)
	if err != nil {
		return nil, err
	}

	records, err := r.parseInputs()
	if err != nil {
		return nil, err
	}
	log.WithField("records", len(records)).Info("Channel exports parsed")

	eng, err := engine.NewEngine(r.opts.Engine, r.log)
	if err != nil {
		return nil, err
	}
	stats, err := eng.Run(records, baselineSet)
	if err != nil {
		return nil, err
	}

	aborted := r.confirmRecords(eng, records)

	categorized := 0
	if r.opts.RulesPath != "" && !aborted {
		rules, err := categorize.LoadRules(r.opts.RulesPath, r.log)
		if err != nil {
			return nil, err
		}
		categorized = categorize.Apply(records, rules, r.log)
	}

	result := &Result{
		RunID:       runID,
		Counts:      merge.Tally(records),
		Stats:       stats,
		Categorized: categorized,
		Aborted:     aborted,
		DryRun:      r.opts.DryRun,
	}

	if aborted {
		log.Warn("Run aborted at the confirmation gate, nothing written")
		return result, nil
	}
	if r.opts.DryRun {
		log.Info("Dry run, nothing written")
		return result, nil
	}

	if err := r.writeOutputs(runID, baselineSet, records, result); err != nil {
		return nil, err
	}
	log.WithFields(logger.Fields{
		"accepted": result.Counts.Accepted,
		"skipped":  result.Counts.Skipped,
		"canceled": result.Counts.Canceled,
	}).Info("Reconciliation run complete")
	return result, nil
}

func (r *Reconciler) parseInputs() ([]*models.StandardRecord, error) {
	var records []*models.StandardRecord
	for _, input := range r.opts.Inputs {
		parser, err := parsers.NewParser(input.Config, r.log)
		if err != nil {
			return nil, err
		}
		parsed, err := parser.ParseFile(input.Path)
		if err != nil {
			return nil, err
		}
		records = append(records, parsed...)
	}
	return records, nil
}

// confirmRecords walks the engine's accept candidates through the
// confirmation gate. Returns true when the user quit mid-run; the remaining
// candidates are then marked user-abort.
func (r *Reconciler) confirmRecords(eng *engine.Engine, records []*models.StandardRecord) bool {
	var candidates []*models.StandardRecord
	for _, record := range records {
		if eng.Evaluate(record) == models.StatusAccepted {
			candidates = append(candidates, record)
		}
	}

	acceptAll := r.opts.AutoConfirm || r.opts.Confirm == nil
	skipAll := false
	for i, record := range candidates {
		switch {
		case acceptAll:
			r.mustAccept(record)
		case skipAll:
			record.MarkSkipped(models.ReasonUserSkip)
		default:
			decision, err := r.opts.Confirm(record, i+1, len(candidates))
			if err != nil {
				decision = DecisionQuit
			}
			switch decision {
			case DecisionAccept:
				r.mustAccept(record)
			case DecisionSkip:
				record.MarkSkipped(models.ReasonUserSkip)
			case DecisionAcceptAll:
				acceptAll = true
				r.mustAccept(record)
			case DecisionSkipAll:
				skipAll = true
				record.MarkSkipped(models.ReasonUserSkip)
			case DecisionQuit:
				for _, remaining := range candidates[i:] {
					remaining.MarkSkipped(models.ReasonUserAbort)
				}
				return true
			}
		}
	}
	return false
}

// mustAccept promotes a pending candidate. Candidates are actionable by
// construction, so a transition failure indicates engine state corruption.
func (r *Reconciler) mustAccept(record *models.StandardRecord) {
	if err := record.MarkAccepted(); err != nil {
		r.log.WithError(err).Error("Accept transition refused for actionable record")
	}
}

func (r *Reconciler) writeOutputs(
	runID string,
	baselineSet models.BaselineSet,
	records []*models.StandardRecord,
	result *Result,
) error {
	frames, err := merge.NewBuilder(r.log).BuildFrames(baselineSet, records, r.opts.IncrementalOnly)
	if err != nil {
		return err
	}
	if err := r.store.Save(frames, r.opts.OutputDir); err != nil {
		return err
	}

	report := &reporter.Report{
		RunID:  runID,
		Counts: result.Counts,
		Rows:   merge.BuildReport(runID, records),
	}
	if r.opts.ReportPath != "" {
		if err := reporter.NewReporter(r.log).WriteFile(r.opts.ReportPath, report); err != nil {
			return err
		}
	}
	if r.opts.ReportDBPath != "" {
		sink, err := reporter.OpenDBSink(r.opts.ReportDBPath, r.log)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.Store(report); err != nil {
			return err
		}
	}
	return nil
}
