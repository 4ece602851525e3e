package engine

import (
	"sort"
	"time"

	"ledger-reconciler/internal/models"
	"ledger-reconciler/pkg/logger"
)

// baselineEntry is one baseline row reduced to what duplicate detection
// needs: the timestamp and the normalized remark.
type baselineEntry struct {
	Timestamp time.Time
	Remark    string
}

// BaselineIndex is a lookup over baseline rows keyed by
// (sheet, account, amount). Built once per run and read-only during
// matching: new records join only the output, never the index used for this
// run's dedup decisions.
//
// Amount-based keying with a date window can over-match unrelated same-amount
// same-day transactions. That is an accepted, user-visible limitation: every
// skipped record surfaces in the report so a human can recover false
// positives. Do not quietly add heuristics here.
type BaselineIndex struct {
	entries map[string][]baselineEntry
}

func indexKey(sheet models.Sheet, account, amount string) string {
	return string(sheet) + "\x00" + models.NormalizeAccount(account) + "\x00" + amount
}

// BuildBaselineIndex indexes every baseline row. Rows with malformed
// timestamps or amounts are logged and skipped; index construction never
// fails.
func BuildBaselineIndex(baseline models.BaselineSet, log logger.Logger) *BaselineIndex {
	index := &BaselineIndex{entries: make(map[string][]baselineEntry)}
	loc := models.DefaultTimezone()

	for _, sheet := range models.AllSheets {
		frame := baseline[sheet]
		if frame == nil || frame.Len() == 0 {
			continue
		}
		dateColumn := models.DateColumn[sheet]
		accountColumn := models.AccountColumn[sheet]

		for i := 0; i < frame.Len(); i++ {
			ts, err := models.ParseTime(frame.Value(i, dateColumn), loc)
			if err != nil {
				log.WithFields(logger.Fields{
					"sheet": sheet,
					"row":   i,
					"value": frame.Value(i, dateColumn),
				}).Warn("Skipping baseline row with malformed timestamp")
				continue
			}
			remark := models.NormalizeText(frame.Value(i, models.RemarkColumn))
			account := frame.Value(i, accountColumn)

			for _, amountColumn := range models.AmountColumns[sheet] {
				raw := frame.Value(i, amountColumn)
				if raw == "" {
					continue
				}
				amount, err := models.ParseAmount(raw)
				if err != nil {
					log.WithFields(logger.Fields{
						"sheet": sheet,
						"row":   i,
						"value": raw,
					}).Warn("Skipping baseline amount cell that does not parse")
					continue
				}
				key := indexKey(sheet, account, amount.Abs().StringFixed(2))
				index.entries[key] = append(index.entries[key], baselineEntry{
					Timestamp: ts,
					Remark:    remark,
				})
			}
		}
	}

	for _, bucket := range index.entries {
		sort.Slice(bucket, func(i, j int) bool {
			return bucket[i].Timestamp.Before(bucket[j].Timestamp)
		})
	}

	log.WithField("buckets", len(index.entries)).Debug("Baseline index built")
	return index
}

// Contains reports whether the baseline holds a row matching the record
// within the date tolerance. When both remarks are non-empty the similarity
// test must also pass (unless remark comparison is disabled); an empty remark
// on either side never blocks a match.
func (bi *BaselineIndex) Contains(record *models.StandardRecord, cfg *Config) bool {
	key := indexKey(record.Sheet, record.Account, record.Amount.StringFixed(2))
	bucket := bi.entries[key]
	if len(bucket) == 0 {
		return false
	}

	similarity := cfg.similarity()
	remark := record.NormalizedRemark()
	for _, entry := range bucket {
		if absDuration(entry.Timestamp.Sub(record.Timestamp)) > cfg.DateTolerance {
			continue
		}
		if cfg.DisableRemarkCheck || remark == "" || entry.Remark == "" {
			return true
		}
		if similarity(remark, entry.Remark) {
			return true
		}
	}
	return false
}

// ApplyBaselineDedup marks every pending record already represented in the
// baseline as skipped with the duplicate-baseline reason.
func ApplyBaselineDedup(records []*models.StandardRecord, index *BaselineIndex, cfg *Config) int {
	skipped := 0
	for _, record := range records {
		if !record.IsActionable() {
			continue
		}
		if index.Contains(record, cfg) {
			record.MarkSkipped(models.ReasonDuplicateBase)
			record.DuplicateWith = "baseline"
			skipped++
		}
	}
	return skipped
}
