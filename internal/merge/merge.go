// Package merge assembles the output workbook frames and the flat run report
// from a processed record batch.
package merge

import (
	"sort"
	"time"

	"ledger-reconciler/internal/models"
	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// Builder produces output frames from the baseline and the processed records.
// The input baseline is never mutated; full merges work on a deep copy.
type Builder struct {
	log logger.Logger
}

// NewBuilder creates a merge builder
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Builder{log: log.WithComponent("merge")}
}

// BuildFrames returns the output workbook. A full merge starts from a clone
// of the baseline and appends every accepted record; an incremental-only
// merge starts from empty frames, so the output holds just this run's
// additions. Either way the column schema of the source frames is preserved
// and every sheet is sorted ascending by timestamp.
//
// Supplement-only records never reach the output frames, whatever their
// status ended up as.
func (b *Builder) BuildFrames(
	baseline models.BaselineSet,
	records []*models.StandardRecord,
	incrementalOnly bool,
) (models.BaselineSet, error) {
	var out models.BaselineSet
	if incrementalOnly {
		out = make(models.BaselineSet, len(models.AllSheets))
		for sheet, frame := range baseline {
			out[sheet] = models.NewBaselineFrameWithColumns(sheet, frame.Columns)
		}
		out.Ensure()
	} else {
		out = baseline.Clone()
		out.Ensure()
	}

	appended := 0
	for _, record := range records {
		if record.Status != models.StatusAccepted || record.SupplementOnly {
			continue
		}
		frame, ok := out[record.Sheet]
		if !ok {
			return nil, apperrors.New(
				apperrors.CategoryInternal,
				apperrors.CodeUnexpected,
				"no output frame for sheet "+string(record.Sheet),
			)
		}
		if err := frame.AppendRecord(record); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryInternal, apperrors.CodeUnexpected,
				"failed to append accepted record")
		}
		appended++
	}

	for _, sheet := range models.AllSheets {
		sortFrameByDate(out[sheet])
	}

	b.log.WithFields(logger.Fields{
		"appended":    appended,
		"incremental": incrementalOnly,
		"total_rows":  out.TotalRows(),
	}).Info("Output frames built")
	return out, nil
}

// sortFrameByDate orders rows ascending by the sheet's date column. Rows
// whose timestamp does not parse sort first, keeping their relative order.
func sortFrameByDate(frame *models.BaselineFrame) {
	dateCol := models.DateColumn[frame.Sheet]
	times := make([]time.Time, len(frame.Rows))
	for i := range frame.Rows {
		ts, err := models.ParseTime(frame.Value(i, dateCol), models.DefaultTimezone())
		if err == nil {
			times[i] = ts
		}
	}
	order := make([]int, len(frame.Rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return times[order[a]].Before(times[order[b]])
	})

	sorted := make([][]string, len(frame.Rows))
	for pos, idx := range order {
		sorted[pos] = frame.Rows[idx]
	}
	frame.Rows = sorted
}
