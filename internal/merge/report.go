package merge

import (
	"sort"

	"ledger-reconciler/internal/models"
)

// reportTimeLayout matches the workbook timestamp format
const reportTimeLayout = "2006-01-02 15:04:05"

// ReportRow is one record's outcome in the flat run report. Every input
// record produces exactly one row, supplement-only records included.
type ReportRow struct {
	RunID      string `json:"run_id" csv:"run_id"`
	Sheet      string `json:"sheet" csv:"sheet"`
	Account    string `json:"account" csv:"account"`
	Amount     string `json:"amount" csv:"amount"`
	Date       string `json:"date" csv:"date"`
	Channel    string `json:"channel" csv:"channel"`
	Status     string `json:"status" csv:"status"`
	SkipReason string `json:"skip_reason,omitempty" csv:"skip_reason"`
	Duplicate  string `json:"duplicate_with,omitempty" csv:"duplicate_with"`
	Remark     string `json:"remark,omitempty" csv:"remark"`
}

// ReportColumns is the CSV header order for report output
var ReportColumns = []string{
	"run_id", "sheet", "account", "amount", "date",
	"channel", "status", "skip_reason", "duplicate_with", "remark",
}

// Values renders the row in ReportColumns order
func (r ReportRow) Values() []string {
	return []string{
		r.RunID, r.Sheet, r.Account, r.Amount, r.Date,
		r.Channel, r.Status, r.SkipReason, r.Duplicate, r.Remark,
	}
}

// BuildReport produces one row per record, stamped with the run ID, ordered
// by timestamp then sheet so repeated runs emit identical reports.
func BuildReport(runID string, records []*models.StandardRecord) []ReportRow {
	ordered := make([]*models.StandardRecord, len(records))
	copy(ordered, records)
	sortRecordsForReport(ordered)

	rows := make([]ReportRow, 0, len(ordered))
	for _, record := range ordered {
		rows = append(rows, ReportRow{
			RunID:      runID,
			Sheet:      string(record.Sheet),
			Account:    record.Account,
			Amount:     record.Amount.StringFixed(2),
			Date:       record.Timestamp.Format(reportTimeLayout),
			Channel:    string(record.Channel),
			Status:     string(record.Status),
			SkipReason: string(record.SkipReason),
			Duplicate:  record.DuplicateWith,
			Remark:     record.Remark,
		})
	}
	return rows
}

// Counts tallies record outcomes for the run summary
type Counts struct {
	Total    int `json:"total"`
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
	Canceled int `json:"canceled"`
	Pending  int `json:"pending"`
}

// Tally counts records by final status
func Tally(records []*models.StandardRecord) Counts {
	c := Counts{Total: len(records)}
	for _, record := range records {
		switch record.Status {
		case models.StatusAccepted:
			c.Accepted++
		case models.StatusSkipped:
			c.Skipped++
		case models.StatusCanceled:
			c.Canceled++
		default:
			c.Pending++
		}
	}
	return c
}

func sortRecordsForReport(records []*models.StandardRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Sheet != b.Sheet {
			return a.Sheet < b.Sheet
		}
		return a.Remark < b.Remark
	})
}
