// Package baseline loads and stores the baseline ledger workbook: one CSV
// file per sheet in a directory, named after the sheet. A missing sheet file
// materializes as an empty frame with the canonical column set, so callers
// always see all five sheets.
package baseline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ledger-reconciler/internal/models"
	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// Store reads and writes baseline workbooks
type Store struct {
	log logger.Logger
}

// NewStore creates a baseline store
func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Store{log: log.WithComponent("baseline")}
}

// SheetPath returns the CSV file path for a sheet inside a workbook directory
func SheetPath(dir string, sheet models.Sheet) string {
	return filepath.Join(dir, string(sheet)+".csv")
}

// Load reads the workbook directory into a BaselineSet. The directory must
// exist; individual sheet files may be absent. Column order is preserved as
// observed in each file.
func (s *Store) Load(dir string) (models.BaselineSet, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.BaselineError(apperrors.CodeBaselineNotFound, dir, err)
	}

	set := make(models.BaselineSet, len(models.AllSheets))
	for _, sheet := range models.AllSheets {
		frame, err := s.loadSheet(dir, sheet)
		if err != nil {
			return nil, err
		}
		set[sheet] = frame
	}

	s.log.WithFields(logger.Fields{
		"dir":        dir,
		"total_rows": set.TotalRows(),
	}).Info("Baseline workbook loaded")
	return set, nil
}

func (s *Store) loadSheet(dir string, sheet models.Sheet) (*models.BaselineFrame, error) {
	path := SheetPath(dir, sheet)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.WithField("sheet", string(sheet)).Debug("Sheet file absent, using empty frame")
			return models.NewBaselineFrame(sheet), nil
		}
		return nil, apperrors.BaselineError(apperrors.CodeBaselineCorrupted, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return models.NewBaselineFrame(sheet), nil
	}
	if err != nil {
		return nil, apperrors.BaselineError(apperrors.CodeBaselineCorrupted, path, err)
	}
	columns := make([]string, len(header))
	for i, column := range header {
		columns[i] = strings.TrimSpace(column)
	}

	frame := models.NewBaselineFrameWithColumns(sheet, columns)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.BaselineError(apperrors.CodeBaselineCorrupted, path, err)
		}
		frame.AppendRow(row)
	}

	s.log.WithFields(logger.Fields{
		"sheet": string(sheet),
		"rows":  frame.Len(),
	}).Debug("Sheet loaded")
	return frame, nil
}

// Save writes the workbook to the directory, one CSV per sheet, creating the
// directory if needed. All five sheets are written even when empty, so the
// output is always a complete workbook.
func (s *Store) Save(set models.BaselineSet, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, dir, err)
	}
	set.Ensure()

	for _, sheet := range models.AllSheets {
		if err := s.saveSheet(set[sheet], SheetPath(dir, sheet)); err != nil {
			return err
		}
	}

	s.log.WithFields(logger.Fields{
		"dir":        dir,
		"total_rows": set.TotalRows(),
	}).Info("Workbook written")
	return nil
}

func (s *Store) saveSheet(frame *models.BaselineFrame, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(frame.Columns); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, path, err)
	}
	for _, row := range frame.Rows {
		if err := writer.Write(row); err != nil {
			return apperrors.ReportError(apperrors.CodeReportWrite, path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.ReportError(apperrors.CodeReportWrite, path, err)
	}
	return file.Close()
}
