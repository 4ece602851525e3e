package engine

import (
	"ledger-reconciler/internal/models"
	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// Engine sequences the reconciliation stages over one batch of records and
// one baseline snapshot. The account lock map and baseline index live for a
// single Run and are never mutated after construction, so repeated runs over
// the same inputs reproduce the same decisions.
type Engine struct {
	cfg *Config
	log logger.Logger

	locks AccountLocks
	index *BaselineIndex
}

// StageStats summarizes what each stage decided, for the run log and the
// result summary.
type StageStats struct {
	TotalRecords      int `json:"total_records"`
	AccountLocked     int `json:"account_locked"`
	RefundPairs       int `json:"refund_pairs"`
	ChannelDuplicates int `json:"channel_duplicates"`
	BaselineDupes     int `json:"baseline_duplicates"`
	Supplemented      int `json:"supplemented"`
}

// NewEngine validates the configuration and creates an engine
func NewEngine(cfg *Config, log logger.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{
		cfg: cfg,
		log: log.WithComponent("engine"),
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() *Config {
	return e.cfg
}

// Run executes all stages in order over the records. Each stage runs to
// completion before the next begins and only reads prior-stage outputs plus
// the immutable baseline:
//
//	locks -> refund pairing -> channel dedup -> baseline dedup -> supplement
//
// Records failing the parser contract (zero timestamp, negative magnitude)
// abort the run: they indicate a broken collaborator, not bad input data.
func (e *Engine) Run(records []*models.StandardRecord, baseline models.BaselineSet) (*StageStats, error) {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, apperrors.MalformedRecordError(
				apperrors.CodeMalformedRecord,
				string(record.Channel),
				err.Error(),
			)
		}
	}
	baseline.Ensure()

	stats := &StageStats{TotalRecords: len(records)}

	e.locks = BuildAccountLocks(baseline, e.cfg, e.log)
	stats.AccountLocked = ApplyAccountLocks(records, e.locks)
	e.log.WithField("skipped", stats.AccountLocked).Info("Account lock stage complete")

	pairs := PairRefunds(records, e.cfg)
	stats.RefundPairs = len(pairs)
	e.log.WithField("pairs", stats.RefundPairs).Info("Refund pairing stage complete")

	stats.ChannelDuplicates = ApplyChannelDedup(records, e.cfg)
	e.log.WithField("skipped", stats.ChannelDuplicates).Info("Channel dedup stage complete")

	e.index = BuildBaselineIndex(baseline, e.log)
	stats.BaselineDupes = ApplyBaselineDedup(records, e.index, e.cfg)
	e.log.WithField("skipped", stats.BaselineDupes).Info("Baseline dedup stage complete")

	stats.Supplemented = SupplementCardRemarks(records, e.cfg)
	e.log.WithField("supplemented", stats.Supplemented).Info("Remark supplement stage complete")

	return stats, nil
}

// Evaluate is the pure per-record decision the orchestrator consults after
// Run: records untouched by every stage are accepted; resolved records keep
// their stage decision. Evaluate never mutates the record, so the
// orchestrator may gate the actual acceptance behind a confirmation prompt.
func (e *Engine) Evaluate(record *models.StandardRecord) models.Status {
	if record.IsActionable() && !record.SupplementOnly {
		return models.StatusAccepted
	}
	return record.Status
}

// Locks exposes the lock map computed by the last Run, for reporting
func (e *Engine) Locks() AccountLocks {
	return e.locks
}
