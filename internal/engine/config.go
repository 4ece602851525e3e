// Package engine implements the reconciliation engine: account lock
// resolution, refund pairing, cross-channel and baseline deduplication, and
// card remark supplementation.
//
// The engine runs single-threaded, stage by stage, over fully materialized
// inputs. Stage order is a correctness requirement: locks are applied before
// any matching (locked records never join candidate pools), refund pairing
// precedes baseline dedup (a refunded pair must not also compete for
// duplicate-baseline), and channel dedup precedes baseline dedup so channel
// overlap is labeled distinctly from prior-run duplicates. The account lock
// map and baseline index are built once per run and read-only afterwards.
package engine

import (
	"time"

	apperrors "ledger-reconciler/pkg/errors"
)

// Config holds the tolerances, windows, and markers driving the engine.
//
// Durations are validated at orchestration start; a negative tolerance or
// window rejects the whole run before any stage executes.
type Config struct {
	// DateTolerance is the window for baseline duplicate detection
	DateTolerance time.Duration `json:"date_tolerance"`

	// RefundWindow is the maximum spacing of a refund pair
	RefundWindow time.Duration `json:"refund_window"`

	// ChannelDupWindow is the settlement-date spread still considered the
	// same physical purchase across a wallet and a card channel
	ChannelDupWindow time.Duration `json:"channel_dup_window"`

	// SupplementWindow is the posting lag allowed between a card record and
	// the wallet record that explains it
	SupplementWindow time.Duration `json:"supplement_window"`

	// AccountLockEnabled toggles the account lock stage
	AccountLockEnabled bool `json:"account_lock_enabled"`

	// LockRemarks are baseline remarks marking a balance-adjustment
	// write-off; rows carrying one freeze the account's history
	LockRemarks []string `json:"lock_remarks"`

	// MissedIncomeCategories are baseline categories that also qualify as
	// lock markers
	MissedIncomeCategories []string `json:"missed_income_categories"`

	// RefundMarkers are remark tokens identifying refunds/reversals
	RefundMarkers []string `json:"refund_markers"`

	// SimilarityThreshold is the minimum remark overlap for fuzzy matches
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// DisableRemarkCheck drops the remark comparison from baseline dedup,
	// leaving only the amount/date window
	DisableRemarkCheck bool `json:"disable_remark_check"`

	// Similarity decides whether two normalized remarks describe the same
	// transaction. Defaults to bigram overlap at SimilarityThreshold.
	// Swappable so matching semantics can change without touching the engine.
	Similarity SimilarityFunc `json:"-"`
}

// DefaultConfig returns the engine configuration with production defaults
func DefaultConfig() *Config {
	cfg := &Config{
		DateTolerance:          24 * time.Hour,
		RefundWindow:           30 * 24 * time.Hour,
		ChannelDupWindow:       24 * time.Hour,
		SupplementWindow:       72 * time.Hour,
		AccountLockEnabled:     true,
		LockRemarks:            []string{"余额调整产生的烂账"},
		MissedIncomeCategories: []string{"漏记收入"},
		RefundMarkers:          []string{"退款", "退回", "关闭"},
		SimilarityThreshold:    0.5,
	}
	cfg.Similarity = BigramOverlap(cfg.SimilarityThreshold)
	return cfg
}

// StrictConfig returns a configuration with tight windows and exact remark
// matching, for runs where false positives are worse than manual review.
func StrictConfig() *Config {
	cfg := DefaultConfig()
	cfg.DateTolerance = 0
	cfg.ChannelDupWindow = 0
	cfg.SimilarityThreshold = 1.0
	cfg.Similarity = BigramOverlap(1.0)
	return cfg
}

// Validate checks every duration and threshold. Violations surface as
// configuration errors before the pipeline starts.
func (c *Config) Validate() error {
	if c.DateTolerance < 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidTolerance, "date_tolerance", c.DateTolerance)
	}
	if c.RefundWindow < 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidWindow, "refund_window", c.RefundWindow)
	}
	if c.ChannelDupWindow < 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidWindow, "channel_dup_window", c.ChannelDupWindow)
	}
	if c.SupplementWindow < 0 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidWindow, "supplement_window", c.SupplementWindow)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return apperrors.ConfigurationError(apperrors.CodeInvalidOption, "similarity_threshold", c.SimilarityThreshold)
	}
	return nil
}

// similarity returns the configured similarity function, falling back to the
// default when callers built a Config by hand.
func (c *Config) similarity() SimilarityFunc {
	if c.Similarity != nil {
		return c.Similarity
	}
	return BigramOverlap(c.SimilarityThreshold)
}
