package engine

import (
	"sort"
	"time"

	"ledger-reconciler/internal/models"
)

// RefundPair records the two sides of a matched refund for reporting
type RefundPair struct {
	Expense *models.StandardRecord
	Income  *models.StandardRecord
}

// PairRefunds finds expense/income pairs that cancel each other out and
// marks both sides canceled with the refund-matched reason.
//
// Two pending records pair when they sit on opposite flow sheets (expense vs
// income, the signed +A/-A condition on magnitude records), carry exactly
// equal magnitudes, fall within the refund window, and their remarks either
// pass the similarity test or both carry a configured refund marker.
//
// The assignment is greedy, not globally optimal: records are visited in
// deterministic order and each is consumed by at most one pair. When several
// candidates qualify, the smallest timestamp distance wins, then the
// lexicographically smaller raw remark. Determinism and linear-ish cost over
// per-bucket candidates are preferred over optimal matching; upgrading to an
// optimal assignment would change which records get reported as canceled.
//
// Transfer, loan, and repayment sheets never participate: their amount sign
// conventions do not follow the expense/income inflow-outflow symmetry.
func PairRefunds(records []*models.StandardRecord, cfg *Config) []RefundPair {
	type bucket struct {
		expenses []*models.StandardRecord
		incomes  []*models.StandardRecord
	}

	buckets := make(map[string]*bucket)
	var keys []string
	for _, record := range records {
		if !record.IsActionable() {
			continue
		}
		if record.Sheet != models.SheetExpense && record.Sheet != models.SheetIncome {
			continue
		}
		key := record.Account + "\x00" + record.Amount.StringFixed(2)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			keys = append(keys, key)
		}
		if record.Sheet == models.SheetExpense {
			b.expenses = append(b.expenses, record)
		} else {
			b.incomes = append(b.incomes, record)
		}
	}
	sort.Strings(keys)

	similarity := cfg.similarity()
	var pairs []RefundPair

	for _, key := range keys {
		b := buckets[key]
		if len(b.expenses) == 0 || len(b.incomes) == 0 {
			continue
		}
		sortCandidates(b.expenses)
		sortCandidates(b.incomes)

		consumed := make(map[*models.StandardRecord]bool)
		for _, expense := range b.expenses {
			best := pickRefundCandidate(expense, b.incomes, consumed, similarity, cfg)
			if best == nil {
				continue
			}
			expense.MarkCanceled(models.ReasonRefundMatched)
			best.MarkCanceled(models.ReasonRefundMatched)
			consumed[best] = true
			pairs = append(pairs, RefundPair{Expense: expense, Income: best})
		}
	}
	return pairs
}

// pickRefundCandidate selects the income record pairing with the expense, or
// nil. Ties on timestamp distance break on the smaller raw remark.
func pickRefundCandidate(
	expense *models.StandardRecord,
	incomes []*models.StandardRecord,
	consumed map[*models.StandardRecord]bool,
	similarity SimilarityFunc,
	cfg *Config,
) *models.StandardRecord {
	var best *models.StandardRecord
	var bestDelta time.Duration

	for _, income := range incomes {
		if consumed[income] || !income.IsActionable() {
			continue
		}
		delta := absDuration(expense.Timestamp.Sub(income.Timestamp))
		if delta > cfg.RefundWindow {
			continue
		}
		if !refundRemarkCompatible(expense, income, similarity, cfg) {
			continue
		}
		switch {
		case best == nil,
			delta < bestDelta,
			delta == bestDelta && income.Remark < best.Remark:
			best = income
			bestDelta = delta
		}
	}
	return best
}

// refundRemarkCompatible applies the configurable remark rule: a similarity
// pass, or a shared refund marker on both raw remarks.
func refundRemarkCompatible(a, b *models.StandardRecord, similarity SimilarityFunc, cfg *Config) bool {
	if similarity(a.NormalizedRemark(), b.NormalizedRemark()) {
		return true
	}
	return containsAnyMarker(a.Remark, cfg.RefundMarkers) &&
		containsAnyMarker(b.Remark, cfg.RefundMarkers)
}

// sortCandidates orders records by timestamp, then raw remark, then channel,
// making the greedy scan reproducible regardless of input order.
func sortCandidates(records []*models.StandardRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		if records[i].Remark != records[j].Remark {
			return records[i].Remark < records[j].Remark
		}
		return records[i].Channel < records[j].Channel
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
