package engine

import (
	"testing"
	"time"

	"ledger-reconciler/internal/models"
)

func baselineWithExpense(account, amount, date, remark string) models.BaselineSet {
	set := models.NewBaselineSet()
	set[models.SheetExpense].AppendRowMap(map[string]string{
		"account": account,
		"amount":  amount,
		"date":    date,
		"remark":  remark,
	})
	return set
}

func TestBaselineDedupWithinTolerance(t *testing.T) {
	baseline := baselineWithExpense("acc1", "50.00", "2024-02-01 00:00:00", "taxi")
	index := BuildBaselineIndex(baseline, testLog())

	incoming := makeRecord(models.SheetExpense, "acc1", 50.00,
		time.Date(2024, 2, 1, 23, 0, 0, 0, tz()), "taxi ride", models.ChannelWeChat)

	skipped := ApplyBaselineDedup([]*models.StandardRecord{incoming}, index, DefaultConfig())

	if skipped != 1 {
		t.Fatalf("Expected 1 duplicate, got %d", skipped)
	}
	if incoming.SkipReason != models.ReasonDuplicateBase {
		t.Errorf("Expected duplicate-baseline, got %s", incoming.SkipReason)
	}
	if incoming.DuplicateWith != "baseline" {
		t.Errorf("Expected DuplicateWith=baseline, got %q", incoming.DuplicateWith)
	}
}

func TestBaselineDedupOutsideDateWindow(t *testing.T) {
	baseline := baselineWithExpense("acc1", "50.00", "2024-02-01 00:00:00", "taxi")
	index := BuildBaselineIndex(baseline, testLog())

	incoming := makeRecord(models.SheetExpense, "acc1", 50.00,
		time.Date(2024, 2, 5, 0, 0, 0, 0, tz()), "taxi", models.ChannelWeChat)

	if skipped := ApplyBaselineDedup([]*models.StandardRecord{incoming}, index, DefaultConfig()); skipped != 0 {
		t.Fatalf("Expected no duplicate outside window, got %d", skipped)
	}
	if !incoming.IsActionable() {
		t.Error("Expected record to remain pending")
	}
}

func TestBaselineDedupRemarkMismatchBlocks(t *testing.T) {
	baseline := baselineWithExpense("acc1", "50.00", "2024-02-01 00:00:00", "grocery run downtown")
	index := BuildBaselineIndex(baseline, testLog())

	incoming := makeRecord(models.SheetExpense, "acc1", 50.00,
		time.Date(2024, 2, 1, 12, 0, 0, 0, tz()), "cinema tickets", models.ChannelWeChat)

	if skipped := ApplyBaselineDedup([]*models.StandardRecord{incoming}, index, DefaultConfig()); skipped != 0 {
		t.Error("Expected dissimilar remarks to block the match")
	}
}

func TestBaselineDedupEmptyRemarkNeverBlocks(t *testing.T) {
	baseline := baselineWithExpense("acc1", "50.00", "2024-02-01 00:00:00", "")
	index := BuildBaselineIndex(baseline, testLog())

	incoming := makeRecord(models.SheetExpense, "acc1", 50.00,
		time.Date(2024, 2, 1, 12, 0, 0, 0, tz()), "anything at all", models.ChannelWeChat)

	if skipped := ApplyBaselineDedup([]*models.StandardRecord{incoming}, index, DefaultConfig()); skipped != 1 {
		t.Error("Expected empty baseline remark to pass the remark check")
	}
}

func TestBaselineDedupRemarkCheckDisabled(t *testing.T) {
	baseline := baselineWithExpense("acc1", "50.00", "2024-02-01 00:00:00", "grocery run downtown")
	index := BuildBaselineIndex(baseline, testLog())
	cfg := DefaultConfig()
	cfg.DisableRemarkCheck = true

	incoming := makeRecord(models.SheetExpense, "acc1", 50.00,
		time.Date(2024, 2, 1, 12, 0, 0, 0, tz()), "cinema tickets", models.ChannelWeChat)

	if skipped := ApplyBaselineDedup([]*models.StandardRecord{incoming}, index, cfg); skipped != 1 {
		t.Error("Expected amount/date match with remark check disabled")
	}
}

func TestBaselineDedupDifferentAccountOrSheet(t *testing.T) {
	baseline := baselineWithExpense("acc1", "50.00", "2024-02-01 00:00:00", "taxi")
	index := BuildBaselineIndex(baseline, testLog())

	otherAccount := makeRecord(models.SheetExpense, "acc2", 50.00,
		time.Date(2024, 2, 1, 12, 0, 0, 0, tz()), "taxi", models.ChannelWeChat)
	otherSheet := makeRecord(models.SheetIncome, "acc1", 50.00,
		time.Date(2024, 2, 1, 12, 0, 0, 0, tz()), "taxi", models.ChannelWeChat)

	if skipped := ApplyBaselineDedup([]*models.StandardRecord{otherAccount, otherSheet}, index, DefaultConfig()); skipped != 0 {
		t.Errorf("Expected bucket isolation by account and sheet, got %d", skipped)
	}
}

func TestBuildBaselineIndexSkipsMalformedRows(t *testing.T) {
	baseline := baselineWithExpense("acc1", "50.00", "not a date", "taxi")
	baseline[models.SheetExpense].AppendRowMap(map[string]string{
		"account": "acc1",
		"amount":  "not-a-number",
		"date":    "2024-02-01 00:00:00",
		"remark":  "taxi",
	})

	index := BuildBaselineIndex(baseline, testLog())

	incoming := makeRecord(models.SheetExpense, "acc1", 50.00,
		time.Date(2024, 2, 1, 12, 0, 0, 0, tz()), "taxi", models.ChannelWeChat)
	if index.Contains(incoming, DefaultConfig()) {
		t.Error("Expected malformed baseline rows to be excluded from the index")
	}
}

func TestBaselineIndexCoversTransferAmountColumns(t *testing.T) {
	baseline := models.NewBaselineSet()
	baseline[models.SheetTransfer].AppendRowMap(map[string]string{
		"from_account": "微信",
		"out_amount":   "500.00",
		"in_amount":    "500.00",
		"date":         "2024-02-10 09:00:00",
		"remark":       "to savings",
	})
	index := BuildBaselineIndex(baseline, testLog())

	incoming := makeRecord(models.SheetTransfer, "微信", 500.00,
		time.Date(2024, 2, 10, 10, 0, 0, 0, tz()), "to savings", models.ChannelWeChat)
	if !index.Contains(incoming, DefaultConfig()) {
		t.Error("Expected transfer out_amount column to be indexed")
	}
}
