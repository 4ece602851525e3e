package reporter

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// DBSink persists run reports to a SQLite database so runs can be audited
// after the CSV reports are gone. One row per processed record.
type DBSink struct {
	db  *sql.DB
	log logger.Logger
}

const reportSchema = `
CREATE TABLE IF NOT EXISTS report_entries (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL,
	sheet          TEXT NOT NULL,
	account        TEXT NOT NULL,
	amount         TEXT NOT NULL,
	date           TEXT NOT NULL,
	channel        TEXT NOT NULL,
	status         TEXT NOT NULL,
	skip_reason    TEXT,
	duplicate_with TEXT,
	remark         TEXT,
	created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_report_entries_run ON report_entries(run_id);
`

// OpenDBSink opens (creating if needed) the audit database
func OpenDBSink(path string, log logger.Logger) (*DBSink, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.ReportError(apperrors.CodeReportStore, path, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, apperrors.ReportError(apperrors.CodeReportStore, path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.ReportError(apperrors.CodeReportStore, path, err)
	}
	if _, err := db.Exec(reportSchema); err != nil {
		db.Close()
		return nil, apperrors.ReportError(apperrors.CodeReportStore, path, err)
	}

	return &DBSink{
		db:  db,
		log: log.WithComponent("report_db"),
	}, nil
}

// Store writes every report row in one transaction
func (s *DBSink) Store(report *Report) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.ReportError(apperrors.CodeReportStore, "report_entries", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO report_entries
		(run_id, sheet, account, amount, date, channel, status, skip_reason, duplicate_with, remark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return apperrors.ReportError(apperrors.CodeReportStore, "report_entries", err)
	}
	defer stmt.Close()

	for _, row := range report.Rows {
		if _, err := stmt.Exec(
			row.RunID, row.Sheet, row.Account, row.Amount, row.Date,
			row.Channel, row.Status, row.SkipReason, row.Duplicate, row.Remark,
		); err != nil {
			tx.Rollback()
			return apperrors.ReportError(apperrors.CodeReportStore, "report_entries", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.ReportError(apperrors.CodeReportStore, "report_entries", err)
	}
	s.log.WithFields(logger.Fields{
		"run_id": report.RunID,
		"rows":   len(report.Rows),
	}).Info("Report stored")
	return nil
}

// CountRows returns the number of stored entries for a run
func (s *DBSink) CountRows(runID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM report_entries WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return 0, apperrors.ReportError(apperrors.CodeReportStore, "report_entries", err)
	}
	return count, nil
}

// Close closes the database
func (s *DBSink) Close() error {
	return s.db.Close()
}
