package engine

import (
	"sort"
	"time"

	"ledger-reconciler/internal/models"
)

// ApplyChannelDedup detects the wallet/credit-card double entry for a single
// physical purchase: equal amount, same sheet, settlement dates within the
// channel-dup window, one record from a wallet channel and one from a
// credit-card channel.
//
// The later-dated record of the pair is marked channel-duplicate (card
// posting lags the wallet debit); on a date tie the card record is marked,
// since the wallet record carries the richer remark. Exactly one side of a
// pair is ever dropped, and each record is consumed by at most one pair.
//
// Runs before baseline dedup so channel overlap is labeled channel-duplicate
// rather than duplicate-baseline.
func ApplyChannelDedup(records []*models.StandardRecord, cfg *Config) int {
	type bucket struct {
		wallet []*models.StandardRecord
		card   []*models.StandardRecord
	}

	buckets := make(map[string]*bucket)
	var keys []string
	for _, record := range records {
		if !record.IsActionable() || record.SupplementOnly {
			continue
		}
		key := string(record.Sheet) + "\x00" + record.Amount.StringFixed(2)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			keys = append(keys, key)
		}
		switch {
		case record.Channel.IsWallet():
			b.wallet = append(b.wallet, record)
		case record.Channel.IsCreditCard():
			b.card = append(b.card, record)
		}
	}
	sort.Strings(keys)

	marked := 0
	for _, key := range keys {
		b := buckets[key]
		if len(b.wallet) == 0 || len(b.card) == 0 {
			continue
		}
		sortCandidates(b.wallet)
		sortCandidates(b.card)

		consumed := make(map[*models.StandardRecord]bool)
		for _, card := range b.card {
			wallet := pickNearestWallet(card, b.wallet, consumed, cfg)
			if wallet == nil {
				continue
			}
			consumed[wallet] = true
			consumed[card] = true

			later, survivor := card, wallet
			if wallet.Timestamp.After(card.Timestamp) {
				later, survivor = wallet, card
			}
			later.MarkSkipped(models.ReasonChannelDuplicate)
			later.DuplicateWith = string(survivor.Channel)
			marked++
		}
	}
	return marked
}

// pickNearestWallet selects the closest-dated unconsumed wallet record within
// the window, breaking timestamp ties on the smaller raw remark.
func pickNearestWallet(
	card *models.StandardRecord,
	wallets []*models.StandardRecord,
	consumed map[*models.StandardRecord]bool,
	cfg *Config,
) *models.StandardRecord {
	var best *models.StandardRecord
	var bestDelta time.Duration

	for _, wallet := range wallets {
		if consumed[wallet] || !wallet.IsActionable() {
			continue
		}
		delta := absDuration(card.Timestamp.Sub(wallet.Timestamp))
		if delta > cfg.ChannelDupWindow {
			continue
		}
		switch {
		case best == nil,
			delta < bestDelta,
			delta == bestDelta && wallet.Remark < best.Remark:
			best = wallet
			bestDelta = delta
		}
	}
	return best
}
