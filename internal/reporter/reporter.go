// Package reporter renders the run report to console, CSV, or JSON, and
// optionally persists it to a SQLite audit database.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ledger-reconciler/internal/merge"
	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// Format selects the report rendering
type Format string

const (
	FormatConsole Format = "console"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
)

// Report bundles everything one run produced for rendering
type Report struct {
	RunID  string            `json:"run_id"`
	Counts merge.Counts      `json:"summary"`
	Rows   []merge.ReportRow `json:"records"`
}

// Reporter renders run reports
type Reporter struct {
	log logger.Logger
}

// NewReporter creates a reporter
func NewReporter(log logger.Logger) *Reporter {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Reporter{log: log.WithComponent("reporter")}
}

// Write renders the report to a writer in the given format
func (r *Reporter) Write(w io.Writer, format Format, report *Report) error {
	switch format {
	case FormatCSV:
		return r.writeCSV(w, report)
	case FormatJSON:
		return r.writeJSON(w, report)
	case FormatConsole, "":
		return r.writeConsole(w, report)
	default:
		return apperrors.ConfigurationError(apperrors.CodeInvalidOption, "report_format", string(format))
	}
}

// WriteFile renders the report to a file, picking the format from the
// extension (.csv, .json, anything else gets the console rendering).
func (r *Reporter) WriteFile(path string, report *Report) error {
	file, err := os.Create(path)
	if err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, path, err)
	}
	defer file.Close()

	if err := r.Write(file, FormatForPath(path), report); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, path, err)
	}
	r.log.WithFields(logger.Fields{
		"path": path,
		"rows": len(report.Rows),
	}).Info("Report written")
	return nil
}

// FormatForPath maps a file extension to a report format
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatConsole
	}
}

func (r *Reporter) writeCSV(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(merge.ReportColumns); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, "csv", err)
	}
	for _, row := range report.Rows {
		if err := writer.Write(row.Values()); err != nil {
			return apperrors.ReportError(apperrors.CodeReportWrite, "csv", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, "csv", err)
	}
	return nil
}

func (r *Reporter) writeJSON(w io.Writer, report *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, "json", err)
	}
	return nil
}

func (r *Reporter) writeConsole(w io.Writer, report *Report) error {
	c := report.Counts
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run %s\n", report.RunID)
	fmt.Fprintf(&b, "  total:    %d\n", c.Total)
	fmt.Fprintf(&b, "  accepted: %d\n", c.Accepted)
	fmt.Fprintf(&b, "  skipped:  %d\n", c.Skipped)
	fmt.Fprintf(&b, "  canceled: %d\n", c.Canceled)
	fmt.Fprintf(&b, "  pending:  %d\n", c.Pending)

	skips := make(map[string]int)
	for _, row := range report.Rows {
		if row.SkipReason != "" {
			skips[row.SkipReason]++
		}
	}
	if len(skips) > 0 {
		b.WriteString("  by reason:\n")
		for _, reason := range orderedKeys(skips) {
			fmt.Fprintf(&b, "    %-20s %d\n", reason, skips[reason])
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, "console", err)
	}
	return nil
}

func orderedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
