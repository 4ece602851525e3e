package engine

import (
	"time"

	"ledger-reconciler/internal/models"
	"ledger-reconciler/pkg/logger"
)

// AccountLocks maps a normalized account name to the latest timestamp at
// which a reconciliation correction was recorded for it. Records at or before
// the lock are already represented in the baseline and must not re-import.
// Built once per run from the baseline; read-only afterwards.
type AccountLocks map[string]time.Time

// LockedAt returns the lock timestamp for the account, if any
func (l AccountLocks) LockedAt(account string) (time.Time, bool) {
	ts, ok := l[models.NormalizeAccount(account)]
	return ts, ok
}

// BuildAccountLocks scans every baseline row for lock markers: a remark
// matching a configured balance-adjustment write-off, or a category equal to
// a configured missed-income category. The latest qualifying timestamp wins
// per account, so the result is independent of scan order.
//
// Rows with malformed timestamps are logged and skipped; lock computation
// never fails. The worst case is an empty map.
func BuildAccountLocks(baseline models.BaselineSet, cfg *Config, log logger.Logger) AccountLocks {
	locks := make(AccountLocks)
	if !cfg.AccountLockEnabled {
		return locks
	}

	lockRemarks := make(map[string]bool, len(cfg.LockRemarks))
	for _, remark := range cfg.LockRemarks {
		lockRemarks[models.NormalizeText(remark)] = true
	}
	lockCategories := make(map[string]bool, len(cfg.MissedIncomeCategories))
	for _, category := range cfg.MissedIncomeCategories {
		lockCategories[models.NormalizeText(category)] = true
	}

	loc := models.DefaultTimezone()
	for _, sheet := range models.AllSheets {
		frame := baseline[sheet]
		if frame == nil || frame.Len() == 0 {
			continue
		}
		dateColumn := models.DateColumn[sheet]
		categoryColumn := models.CategoryColumn[sheet]

		for i := 0; i < frame.Len(); i++ {
			remark := models.NormalizeText(frame.Value(i, models.RemarkColumn))
			qualifies := lockRemarks[remark]
			if !qualifies && categoryColumn != "" {
				category := models.NormalizeText(frame.Value(i, categoryColumn))
				qualifies = category != "" && lockCategories[category]
			}
			if !qualifies {
				continue
			}

			ts, err := models.ParseTime(frame.Value(i, dateColumn), loc)
			if err != nil {
				log.WithFields(logger.Fields{
					"sheet": sheet,
					"row":   i,
					"value": frame.Value(i, dateColumn),
				}).Warn("Skipping lock marker row with malformed timestamp")
				continue
			}

			account := models.NormalizeAccount(frame.Value(i, models.AccountColumn[sheet]))
			if account == "" {
				continue
			}
			if current, ok := locks[account]; !ok || ts.After(current) {
				locks[account] = ts
			}
		}
	}

	log.WithField("locked_accounts", len(locks)).Debug("Account locks computed")
	return locks
}

// ApplyAccountLocks marks every pending record at or before its account's
// lock timestamp as skipped. Runs before refund pairing and dedup so locked
// records never participate in matching pools. Idempotent for a fixed
// baseline.
func ApplyAccountLocks(records []*models.StandardRecord, locks AccountLocks) int {
	skipped := 0
	for _, record := range records {
		if !record.IsActionable() {
			continue
		}
		lock, ok := locks.LockedAt(record.Account)
		if !ok {
			continue
		}
		if !record.Timestamp.After(lock) {
			record.MarkSkipped(models.ReasonAccountLocked)
			skipped++
		}
	}
	return skipped
}
