package engine

import (
	"testing"
	"time"

	"ledger-reconciler/internal/models"
	"ledger-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

func testLog() logger.Logger {
	return logger.GetGlobalLogger()
}

func tz() *time.Location {
	return models.DefaultTimezone()
}

func makeRecord(sheet models.Sheet, account string, amount float64, ts time.Time, remark string, channel models.Channel) *models.StandardRecord {
	return models.NewStandardRecord(sheet, account, decimal.NewFromFloat(amount), ts, remark, channel)
}

func baselineWithLockRow(account, remark, date string) models.BaselineSet {
	set := models.NewBaselineSet()
	set[models.SheetExpense].AppendRowMap(map[string]string{
		"account": account,
		"amount":  "10.00",
		"date":    date,
		"remark":  remark,
	})
	return set
}

func TestBuildAccountLocksFromWriteOffRemark(t *testing.T) {
	baseline := baselineWithLockRow("微信", "余额调整产生的烂账", "2024-01-10 00:00:00")

	locks := BuildAccountLocks(baseline, DefaultConfig(), testLog())

	ts, ok := locks.LockedAt("微信")
	if !ok {
		t.Fatal("Expected lock for account")
	}
	expected := time.Date(2024, 1, 10, 0, 0, 0, 0, tz())
	if !ts.Equal(expected) {
		t.Errorf("Expected lock at %v, got %v", expected, ts)
	}
}

func TestBuildAccountLocksKeepsLatestTimestamp(t *testing.T) {
	baseline := baselineWithLockRow("微信", "余额调整产生的烂账", "2024-01-10 00:00:00")
	baseline[models.SheetExpense].AppendRowMap(map[string]string{
		"account": "微信",
		"amount":  "5.00",
		"date":    "2024-03-01 00:00:00",
		"remark":  "余额调整产生的烂账",
	})
	baseline[models.SheetExpense].AppendRowMap(map[string]string{
		"account": "微信",
		"amount":  "5.00",
		"date":    "2023-12-01 00:00:00",
		"remark":  "余额调整产生的烂账",
	})

	locks := BuildAccountLocks(baseline, DefaultConfig(), testLog())

	ts, _ := locks.LockedAt("微信")
	if !ts.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, tz())) {
		t.Errorf("Expected latest lock to win, got %v", ts)
	}
}

func TestBuildAccountLocksFromMissedIncomeCategory(t *testing.T) {
	baseline := models.NewBaselineSet()
	baseline[models.SheetIncome].AppendRowMap(map[string]string{
		"category": "漏记收入",
		"account":  "支付宝",
		"amount":   "200.00",
		"date":     "2024-02-20 12:00:00",
		"remark":   "",
	})

	locks := BuildAccountLocks(baseline, DefaultConfig(), testLog())

	if _, ok := locks.LockedAt("支付宝"); !ok {
		t.Error("Expected missed-income category to create a lock")
	}
}

func TestBuildAccountLocksNormalizesCardSuffix(t *testing.T) {
	baseline := baselineWithLockRow("招商银行信用卡(1129)", "余额调整产生的烂账", "2024-01-10 00:00:00")

	locks := BuildAccountLocks(baseline, DefaultConfig(), testLog())

	if _, ok := locks.LockedAt("招商银行信用卡"); !ok {
		t.Error("Expected lock keyed by suffix-free account name")
	}
	if _, ok := locks.LockedAt("招商银行信用卡(5678)"); !ok {
		t.Error("Expected lookup to normalize the probe account too")
	}
}

func TestBuildAccountLocksSkipsMalformedTimestamp(t *testing.T) {
	baseline := baselineWithLockRow("微信", "余额调整产生的烂账", "not a date")

	locks := BuildAccountLocks(baseline, DefaultConfig(), testLog())

	if len(locks) != 0 {
		t.Errorf("Expected no locks from malformed rows, got %d", len(locks))
	}
}

func TestBuildAccountLocksDisabled(t *testing.T) {
	baseline := baselineWithLockRow("微信", "余额调整产生的烂账", "2024-01-10 00:00:00")
	cfg := DefaultConfig()
	cfg.AccountLockEnabled = false

	locks := BuildAccountLocks(baseline, cfg, testLog())

	if len(locks) != 0 {
		t.Errorf("Expected empty lock map when disabled, got %d", len(locks))
	}
}

func TestApplyAccountLocks(t *testing.T) {
	locks := AccountLocks{"微信": time.Date(2024, 1, 10, 0, 0, 0, 0, tz())}

	before := makeRecord(models.SheetExpense, "微信", 20, time.Date(2024, 1, 5, 0, 0, 0, 0, tz()), "old", models.ChannelWeChat)
	boundary := makeRecord(models.SheetExpense, "微信", 20, time.Date(2024, 1, 10, 0, 0, 0, 0, tz()), "boundary", models.ChannelWeChat)
	after := makeRecord(models.SheetExpense, "微信", 20, time.Date(2024, 1, 15, 0, 0, 0, 0, tz()), "new", models.ChannelWeChat)
	other := makeRecord(models.SheetExpense, "支付宝", 20, time.Date(2024, 1, 5, 0, 0, 0, 0, tz()), "unlocked account", models.ChannelAlipay)

	skipped := ApplyAccountLocks([]*models.StandardRecord{before, boundary, after, other}, locks)

	if skipped != 2 {
		t.Errorf("Expected 2 skipped, got %d", skipped)
	}
	if before.SkipReason != models.ReasonAccountLocked {
		t.Errorf("Expected before-lock record skipped, got %s", before.SkipReason)
	}
	if boundary.SkipReason != models.ReasonAccountLocked {
		t.Errorf("Expected boundary record skipped (lock is inclusive), got %s", boundary.SkipReason)
	}
	if !after.IsActionable() {
		t.Error("Expected after-lock record to stay pending")
	}
	if !other.IsActionable() {
		t.Error("Expected unlocked account to stay pending")
	}
}

func TestApplyAccountLocksLeavesTerminalRecordsAlone(t *testing.T) {
	locks := AccountLocks{"微信": time.Date(2024, 1, 10, 0, 0, 0, 0, tz())}
	record := makeRecord(models.SheetExpense, "微信", 20, time.Date(2024, 1, 5, 0, 0, 0, 0, tz()), "", models.ChannelWeChat)
	record.MarkCanceled(models.ReasonRefundMatched)

	ApplyAccountLocks([]*models.StandardRecord{record}, locks)

	if record.SkipReason != models.ReasonRefundMatched {
		t.Errorf("Expected terminal reason preserved, got %s", record.SkipReason)
	}
}
