package engine

import (
	"testing"
	"time"

	"ledger-reconciler/internal/models"
)

func TestChannelDedupMarksExactlyOneSide(t *testing.T) {
	// Same 30.00 purchase visible in both the wallet export and the card
	// statement on the same day.
	wallet := makeRecord(models.SheetExpense, "微信", 30.00,
		time.Date(2024, 3, 1, 10, 0, 0, 0, tz()), "午餐 商户A", models.ChannelWeChat)
	card := makeRecord(models.SheetExpense, "招商银行信用卡", 30.00,
		time.Date(2024, 3, 1, 10, 0, 0, 0, tz()), "商户A", models.ChannelCMBCard)

	marked := ApplyChannelDedup([]*models.StandardRecord{wallet, card}, DefaultConfig())

	if marked != 1 {
		t.Fatalf("Expected exactly one record marked, got %d", marked)
	}
	// Date tie goes against the card record; the wallet remark is richer.
	if card.SkipReason != models.ReasonChannelDuplicate {
		t.Errorf("Expected card marked channel-duplicate, got %s", card.SkipReason)
	}
	if card.DuplicateWith != string(models.ChannelWeChat) {
		t.Errorf("Expected DuplicateWith=wechat, got %q", card.DuplicateWith)
	}
	if !wallet.IsActionable() {
		t.Error("Expected wallet record to survive")
	}
}

func TestChannelDedupMarksLaterDatedRecord(t *testing.T) {
	card := makeRecord(models.SheetExpense, "招商银行信用卡", 88.00,
		time.Date(2024, 3, 1, 9, 0, 0, 0, tz()), "商户B", models.ChannelCMBCard)
	wallet := makeRecord(models.SheetExpense, "微信", 88.00,
		time.Date(2024, 3, 1, 20, 0, 0, 0, tz()), "晚餐 商户B", models.ChannelWeChat)

	ApplyChannelDedup([]*models.StandardRecord{card, wallet}, DefaultConfig())

	if wallet.SkipReason != models.ReasonChannelDuplicate {
		t.Errorf("Expected later-dated wallet marked, got %s", wallet.SkipReason)
	}
	if !card.IsActionable() {
		t.Error("Expected earlier card record to survive")
	}
}

func TestChannelDedupRespectsWindow(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 30,
		time.Date(2024, 3, 1, 0, 0, 0, 0, tz()), "lunch", models.ChannelWeChat)
	card := makeRecord(models.SheetExpense, "招商银行信用卡", 30,
		time.Date(2024, 3, 3, 0, 0, 0, 0, tz()), "lunch", models.ChannelCMBCard)

	if marked := ApplyChannelDedup([]*models.StandardRecord{wallet, card}, DefaultConfig()); marked != 0 {
		t.Errorf("Expected no match outside the window, got %d", marked)
	}
}

func TestChannelDedupIgnoresSameKindPairs(t *testing.T) {
	a := makeRecord(models.SheetExpense, "微信", 30, day(1), "lunch", models.ChannelWeChat)
	b := makeRecord(models.SheetExpense, "支付宝", 30, day(1), "lunch", models.ChannelAlipay)

	if marked := ApplyChannelDedup([]*models.StandardRecord{a, b}, DefaultConfig()); marked != 0 {
		t.Errorf("Expected two wallet records to never pair, got %d", marked)
	}
}

func TestChannelDedupSeparatesSheets(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 30, day(1), "lunch", models.ChannelWeChat)
	card := makeRecord(models.SheetIncome, "招商银行信用卡", 30, day(1), "lunch", models.ChannelCMBCard)

	if marked := ApplyChannelDedup([]*models.StandardRecord{wallet, card}, DefaultConfig()); marked != 0 {
		t.Errorf("Expected sheet isolation, got %d marked", marked)
	}
}

func TestChannelDedupSingleUse(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 30,
		time.Date(2024, 3, 1, 12, 0, 0, 0, tz()), "lunch", models.ChannelWeChat)
	cardA := makeRecord(models.SheetExpense, "招商银行信用卡", 30,
		time.Date(2024, 3, 1, 13, 0, 0, 0, tz()), "merchant a", models.ChannelCMBCard)
	cardB := makeRecord(models.SheetExpense, "中信银行信用卡", 30,
		time.Date(2024, 3, 1, 14, 0, 0, 0, tz()), "merchant b", models.ChannelCITICCard)

	marked := ApplyChannelDedup([]*models.StandardRecord{wallet, cardA, cardB}, DefaultConfig())

	if marked != 1 {
		t.Fatalf("Expected a wallet record to pair at most once, got %d marked", marked)
	}
	if !cardB.IsActionable() {
		t.Error("Expected second card record to remain pending")
	}
}

func TestChannelDedupSkipsResolvedAndSupplementOnly(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 30, day(1), "lunch", models.ChannelWeChat)
	wallet.SupplementOnly = true
	card := makeRecord(models.SheetExpense, "招商银行信用卡", 30, day(1), "lunch", models.ChannelCMBCard)

	if marked := ApplyChannelDedup([]*models.StandardRecord{wallet, card}, DefaultConfig()); marked != 0 {
		t.Errorf("Expected supplement-only records outside the pool, got %d", marked)
	}

	locked := makeRecord(models.SheetExpense, "支付宝", 40, day(1), "dinner", models.ChannelAlipay)
	locked.MarkSkipped(models.ReasonAccountLocked)
	card2 := makeRecord(models.SheetExpense, "招商银行信用卡", 40, day(1), "dinner", models.ChannelCMBCard)

	if marked := ApplyChannelDedup([]*models.StandardRecord{locked, card2}, DefaultConfig()); marked != 0 {
		t.Errorf("Expected resolved records outside the pool, got %d", marked)
	}
}
