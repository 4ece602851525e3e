// Package config translates CLI flag values into the option structs the
// pipeline components consume.
package config

import (
	"time"

	"ledger-reconciler/internal/engine"
	"ledger-reconciler/internal/parsers"
	"ledger-reconciler/internal/reconciler"
)

// ReconcileFlags holds every reconcile-command flag after viper resolution
type ReconcileFlags struct {
	BaselineDir string
	OutputDir   string
	ReportPath  string
	ReportDB    string
	RulesPath   string

	WeChatFile string
	AlipayFile string
	CMBFile    string
	CITICFile  string

	DateToleranceDays int
	RefundWindowDays  int
	ChannelDupDays    int
	SupplementDays    int

	SimilarityThreshold float64
	DisableRemarkCheck  bool
	AccountLock         bool

	IncrementalOnly bool
	DryRun          bool
	AutoConfirm     bool
}

// EngineConfig builds the engine configuration from the tolerance flags
func (f *ReconcileFlags) EngineConfig() *engine.Config {
	cfg := engine.DefaultConfig()
	cfg.DateTolerance = time.Duration(f.DateToleranceDays) * 24 * time.Hour
	cfg.RefundWindow = time.Duration(f.RefundWindowDays) * 24 * time.Hour
	cfg.ChannelDupWindow = time.Duration(f.ChannelDupDays) * 24 * time.Hour
	cfg.SupplementWindow = time.Duration(f.SupplementDays) * 24 * time.Hour
	cfg.AccountLockEnabled = f.AccountLock
	cfg.DisableRemarkCheck = f.DisableRemarkCheck
	cfg.SimilarityThreshold = f.SimilarityThreshold
	cfg.Similarity = engine.BigramOverlap(f.SimilarityThreshold)
	return cfg
}

// Inputs pairs each provided export file with its channel parser config
func (f *ReconcileFlags) Inputs() []reconciler.InputFile {
	var inputs []reconciler.InputFile
	add := func(path string, cfg *parsers.ChannelConfig) {
		if path != "" {
			inputs = append(inputs, reconciler.InputFile{Path: path, Config: cfg})
		}
	}
	add(f.WeChatFile, parsers.WeChatConfig())
	add(f.AlipayFile, parsers.AlipayConfig())
	add(f.CMBFile, parsers.CMBCardConfig())
	add(f.CITICFile, parsers.CITICCardConfig())
	return inputs
}

// Options assembles the orchestrator options. The confirmation gate is left
// nil; the command wires it up based on AutoConfirm and the terminal.
func (f *ReconcileFlags) Options() *reconciler.Options {
	return &reconciler.Options{
		BaselineDir:     f.BaselineDir,
		Inputs:          f.Inputs(),
		OutputDir:       f.OutputDir,
		ReportPath:      f.ReportPath,
		ReportDBPath:    f.ReportDB,
		RulesPath:       f.RulesPath,
		IncrementalOnly: f.IncrementalOnly,
		DryRun:          f.DryRun,
		AutoConfirm:     f.AutoConfirm,
		Engine:          f.EngineConfig(),
	}
}
