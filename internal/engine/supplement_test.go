package engine

import (
	"strings"
	"testing"
	"time"

	"ledger-reconciler/internal/models"
)

func TestSupplementViaFundingAccount(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 128.00,
		time.Date(2024, 5, 1, 12, 0, 0, 0, tz()), "京东 洗发水两瓶", models.ChannelWeChat)
	wallet.SourceExtras[paymentMethodKey] = "招商银行信用卡(1129)"
	wallet.SupplementOnly = true
	wallet.MarkSkipped(models.ReasonNonWalletPayment)

	card := makeRecord(models.SheetExpense, "招商银行信用卡(1129)", 128.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "财付通", models.ChannelCMBCard)

	n := SupplementCardRemarks([]*models.StandardRecord{wallet, card}, DefaultConfig())

	if n != 1 {
		t.Fatalf("Expected 1 supplemented record, got %d", n)
	}
	if !strings.Contains(card.Remark, "supplement(wechat): 京东 洗发水两瓶") {
		t.Errorf("Expected annotation on card remark, got %q", card.Remark)
	}
	if !strings.Contains(card.Remark, "财付通") {
		t.Errorf("Expected original remark preserved, got %q", card.Remark)
	}
	if card.SupplementedFrom != models.ChannelWeChat {
		t.Errorf("Expected SupplementedFrom=wechat, got %s", card.SupplementedFrom)
	}
	if !card.IsActionable() {
		t.Error("Expected supplementation to never change status")
	}
}

func TestSupplementViaMerchantText(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "支付宝", 58.00,
		time.Date(2024, 5, 3, 19, 0, 0, 0, tz()), "肯德基宅急送 全家桶", models.ChannelAlipay)
	card := makeRecord(models.SheetExpense, "中信银行信用卡", 58.00,
		time.Date(2024, 5, 4, 0, 0, 0, 0, tz()), "肯德基宅急送", models.ChannelCITICCard)

	if n := SupplementCardRemarks([]*models.StandardRecord{wallet, card}, DefaultConfig()); n != 1 {
		t.Fatalf("Expected merchant-text match, got %d", n)
	}
}

func TestSupplementIncludesStatusText(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 99.00,
		time.Date(2024, 5, 1, 12, 0, 0, 0, tz()), "网购订单", models.ChannelWeChat)
	wallet.SourceExtras[paymentMethodKey] = "招商银行信用卡"
	wallet.SourceExtras[statusKey] = "已全额退款"

	card := makeRecord(models.SheetIncome, "招商银行信用卡", 99.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "退货入账", models.ChannelCMBCard)

	// Card-side income explained by a wallet expense with refund state.
	if n := SupplementCardRemarks([]*models.StandardRecord{wallet, card}, DefaultConfig()); n != 1 {
		t.Fatalf("Expected refund-shaped match, got %d", n)
	}
	if !strings.Contains(card.Remark, "status: 已全额退款") {
		t.Errorf("Expected status text in annotation, got %q", card.Remark)
	}
}

func TestSupplementCrossSheetWithoutRefundMarker(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 99.00,
		time.Date(2024, 5, 1, 12, 0, 0, 0, tz()), "网购订单", models.ChannelWeChat)
	wallet.SourceExtras[paymentMethodKey] = "招商银行信用卡"

	card := makeRecord(models.SheetIncome, "招商银行信用卡", 99.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "入账", models.ChannelCMBCard)

	if n := SupplementCardRemarks([]*models.StandardRecord{wallet, card}, DefaultConfig()); n != 0 {
		t.Errorf("Expected opposite flows without refund state to stay apart, got %d", n)
	}
}

func TestSupplementIdempotent(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 128.00,
		time.Date(2024, 5, 1, 12, 0, 0, 0, tz()), "京东 洗发水两瓶", models.ChannelWeChat)
	wallet.SourceExtras[paymentMethodKey] = "招商银行信用卡"
	card := makeRecord(models.SheetExpense, "招商银行信用卡", 128.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "财付通", models.ChannelCMBCard)

	records := []*models.StandardRecord{wallet, card}
	SupplementCardRemarks(records, DefaultConfig())
	first := card.Remark

	if n := SupplementCardRemarks(records, DefaultConfig()); n != 0 {
		t.Errorf("Expected second pass to be a no-op, got %d", n)
	}
	if card.Remark != first {
		t.Errorf("Expected annotation not to stack, got %q", card.Remark)
	}
}

func TestSupplementExcludesCanceledWallets(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 128.00,
		time.Date(2024, 5, 1, 12, 0, 0, 0, tz()), "京东", models.ChannelWeChat)
	wallet.SourceExtras[paymentMethodKey] = "招商银行信用卡"
	wallet.MarkCanceled(models.ReasonRefundMatched)

	card := makeRecord(models.SheetExpense, "招商银行信用卡", 128.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "财付通", models.ChannelCMBCard)

	if n := SupplementCardRemarks([]*models.StandardRecord{wallet, card}, DefaultConfig()); n != 0 {
		t.Errorf("Expected canceled wallet outside the pool, got %d", n)
	}
}

func TestSupplementTargetsChannelDuplicateCards(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 128.00,
		time.Date(2024, 5, 1, 12, 0, 0, 0, tz()), "京东", models.ChannelWeChat)
	wallet.SourceExtras[paymentMethodKey] = "招商银行信用卡"

	dup := makeRecord(models.SheetExpense, "招商银行信用卡", 128.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "财付通", models.ChannelCMBCard)
	dup.MarkSkipped(models.ReasonChannelDuplicate)

	locked := makeRecord(models.SheetExpense, "招商银行信用卡", 128.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "财付通", models.ChannelCMBCard)
	locked.MarkSkipped(models.ReasonAccountLocked)

	if n := SupplementCardRemarks([]*models.StandardRecord{wallet, dup, locked}, DefaultConfig()); n != 1 {
		t.Fatalf("Expected only the channel-duplicate card enriched, got %d", n)
	}
	if !strings.Contains(dup.Remark, "supplement(") {
		t.Errorf("Expected annotation on the duplicate card, got %q", dup.Remark)
	}
	if strings.Contains(locked.Remark, "supplement(") {
		t.Errorf("Expected locked card untouched, got %q", locked.Remark)
	}
}

func TestSupplementRespectsWindow(t *testing.T) {
	wallet := makeRecord(models.SheetExpense, "微信", 128.00,
		time.Date(2024, 5, 1, 0, 0, 0, 0, tz()), "京东", models.ChannelWeChat)
	wallet.SourceExtras[paymentMethodKey] = "招商银行信用卡"
	card := makeRecord(models.SheetExpense, "招商银行信用卡", 128.00,
		time.Date(2024, 5, 6, 0, 0, 0, 0, tz()), "财付通", models.ChannelCMBCard)

	if n := SupplementCardRemarks([]*models.StandardRecord{wallet, card}, DefaultConfig()); n != 0 {
		t.Errorf("Expected no match beyond the posting-lag window, got %d", n)
	}
	if card.Remark != "财付通" {
		t.Errorf("Expected remark unchanged without a match, got %q", card.Remark)
	}
}

func TestSupplementPrefersClosestDate(t *testing.T) {
	near := makeRecord(models.SheetExpense, "微信", 128.00,
		time.Date(2024, 5, 1, 20, 0, 0, 0, tz()), "京东 近", models.ChannelWeChat)
	near.SourceExtras[paymentMethodKey] = "招商银行信用卡"
	far := makeRecord(models.SheetExpense, "微信", 128.00,
		time.Date(2024, 4, 30, 8, 0, 0, 0, tz()), "京东 远", models.ChannelWeChat)
	far.SourceExtras[paymentMethodKey] = "招商银行信用卡"

	card := makeRecord(models.SheetExpense, "招商银行信用卡", 128.00,
		time.Date(2024, 5, 2, 0, 0, 0, 0, tz()), "财付通", models.ChannelCMBCard)

	SupplementCardRemarks([]*models.StandardRecord{near, far, card}, DefaultConfig())

	if !strings.Contains(card.Remark, "京东 近") {
		t.Errorf("Expected closest-dated wallet to win, got %q", card.Remark)
	}
}
