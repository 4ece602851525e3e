package engine

import (
	"fmt"
	"strings"
	"time"

	"ledger-reconciler/internal/models"
)

// paymentMethodKey is the source-extras field naming the funding instrument
// of a wallet transaction, when the channel export provides one.
const paymentMethodKey = "payment_method"

// statusKey is the source-extras field carrying the channel's own status
// text ("payment closed", refund state), when provided.
const statusKey = "status"

// SupplementCardRemarks enriches credit-card records with context from the
// wallet record describing the same purchase. Card statements carry terse
// merchant strings; the wallet side knows the product, the counterparty, and
// any refund state.
//
// The search pool includes skipped wallet records, since a non-wallet-payment
// entry is exactly the card-funded wallet transaction whose provenance the
// card record needs, but never canceled ones. Enrichment applies to
// still-pending card records and to channel-duplicate ones (the annotation
// helps a reviewer confirm the duplicate), and it never changes status.
//
// Among multiple candidates the closest date wins. No match leaves the
// remark unchanged. Re-running does not stack annotations.
func SupplementCardRemarks(records []*models.StandardRecord, cfg *Config) int {
	var wallets []*models.StandardRecord
	for _, record := range records {
		if record.Status == models.StatusCanceled {
			continue
		}
		if record.Channel.IsWallet() {
			wallets = append(wallets, record)
		}
	}
	if len(wallets) == 0 {
		return 0
	}
	sortCandidates(wallets)

	similarity := cfg.similarity()
	supplemented := 0
	for _, card := range records {
		if !card.Channel.IsCreditCard() {
			continue
		}
		if card.Status == models.StatusCanceled {
			continue
		}
		if card.SkipReason != models.ReasonNone && card.SkipReason != models.ReasonChannelDuplicate {
			continue
		}

		wallet := pickSupplementSource(card, wallets, similarity, cfg)
		if wallet == nil {
			continue
		}
		if applySupplement(card, wallet) {
			supplemented++
		}
	}
	return supplemented
}

// pickSupplementSource finds the wallet record explaining the card record:
// equal amount, date within the posting-lag window, compatible funding
// account or merchant text, and compatible flow direction.
func pickSupplementSource(
	card *models.StandardRecord,
	wallets []*models.StandardRecord,
	similarity SimilarityFunc,
	cfg *Config,
) *models.StandardRecord {
	var best *models.StandardRecord
	var bestDelta time.Duration

	for _, wallet := range wallets {
		if !wallet.Amount.Equal(card.Amount) {
			continue
		}
		delta := absDuration(wallet.Timestamp.Sub(card.Timestamp))
		if delta > cfg.SupplementWindow {
			continue
		}
		if !fundingCompatible(card, wallet) && !merchantCompatible(card, wallet, similarity) {
			continue
		}
		if !directionCompatible(card, wallet, cfg) {
			continue
		}
		if best == nil || delta < bestDelta {
			best = wallet
			bestDelta = delta
		}
	}
	return best
}

// fundingCompatible checks whether the wallet transaction names the card
// account as its funding instrument.
func fundingCompatible(card, wallet *models.StandardRecord) bool {
	method := wallet.SourceExtras[paymentMethodKey]
	if method == "" || card.Account == "" {
		return false
	}
	return strings.Contains(method, card.Account) ||
		strings.Contains(models.NormalizeText(method), models.NormalizeText(card.Account))
}

// merchantCompatible falls back to remark/merchant text overlap
func merchantCompatible(card, wallet *models.StandardRecord, similarity SimilarityFunc) bool {
	cardText := card.NormalizedRemark()
	if cardText == "" {
		return false
	}
	if similarity(cardText, wallet.NormalizedRemark()) {
		return true
	}
	if wallet.Merchant != "" && similarity(cardText, models.NormalizeText(wallet.Merchant)) {
		return true
	}
	return false
}

// directionCompatible accepts same-sheet matches, plus the refund shape: a
// card-side income explained by a wallet expense whose status text carries a
// refund marker.
func directionCompatible(card, wallet *models.StandardRecord, cfg *Config) bool {
	if card.Sheet == wallet.Sheet {
		return true
	}
	if card.Sheet == models.SheetIncome && wallet.Sheet == models.SheetExpense {
		text := wallet.Remark + wallet.SourceExtras[statusKey]
		return containsAnyMarker(text, cfg.RefundMarkers)
	}
	return false
}

// applySupplement appends the structured annotation once. Returns false when
// the annotation is already present or nothing useful can be added.
func applySupplement(card, wallet *models.StandardRecord) bool {
	parts := make([]string, 0, 2)
	if wallet.Remark != "" {
		parts = append(parts, wallet.Remark)
	}
	if status := wallet.SourceExtras[statusKey]; status != "" {
		parts = append(parts, fmt.Sprintf("status: %s", status))
	}
	if len(parts) == 0 {
		return false
	}

	annotation := fmt.Sprintf("supplement(%s): %s", wallet.Channel, strings.Join(parts, "; "))
	existing := card.Remark
	if strings.Contains(existing, annotation) {
		return false
	}
	if existing != "" {
		card.SetRemark(existing + "; " + annotation)
	} else {
		card.SetRemark(annotation)
	}
	card.SupplementedFrom = wallet.Channel
	return true
}
