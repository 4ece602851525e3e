// Package models defines the normalized transaction representation shared by
// the parsers, the reconciliation engine, and the merge/report builders.
//
// A StandardRecord is channel-agnostic: every payment export is reduced to a
// sheet, an account, an exact decimal amount, a zoned timestamp, and free-text
// remark before the engine sees it. The engine is the only component allowed
// to move a record's status, and terminal statuses are never reverted.
package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Sheet identifies which ledger table a record belongs to
type Sheet string

const (
	SheetExpense   Sheet = "expense"
	SheetIncome    Sheet = "income"
	SheetTransfer  Sheet = "transfer"
	SheetLoan      Sheet = "loan"
	SheetRepayment Sheet = "repayment"
)

// AllSheets lists the five ledger sheets in canonical order
var AllSheets = []Sheet{SheetExpense, SheetIncome, SheetTransfer, SheetLoan, SheetRepayment}

// String returns the string representation of the sheet
func (s Sheet) String() string {
	return string(s)
}

// IsValid checks if the sheet is one of the five ledger tables
func (s Sheet) IsValid() bool {
	switch s {
	case SheetExpense, SheetIncome, SheetTransfer, SheetLoan, SheetRepayment:
		return true
	default:
		return false
	}
}

// ChannelKind classifies a channel as wallet-side or card-side.
// The cross-channel duplicate rule and the remark supplementer both depend on
// this distinction.
type ChannelKind int

const (
	KindUnknown ChannelKind = iota
	KindWallet
	KindCreditCard
)

// Channel identifies the originating payment or statement source of a record
type Channel string

const (
	ChannelWeChat    Channel = "wechat"
	ChannelAlipay    Channel = "alipay"
	ChannelCMBCard   Channel = "cmb-card"
	ChannelCITICCard Channel = "citic-card"
)

// channelKinds maps known channels to their kind. RegisterChannel extends it.
var channelKinds = map[Channel]ChannelKind{
	ChannelWeChat:    KindWallet,
	ChannelAlipay:    KindWallet,
	ChannelCMBCard:   KindCreditCard,
	ChannelCITICCard: KindCreditCard,
}

// RegisterChannel registers a new channel with its kind. Registration is
// expected at startup, before any reconciliation run begins.
func RegisterChannel(c Channel, kind ChannelKind) {
	channelKinds[c] = kind
}

// Kind returns the registered kind of the channel
func (c Channel) Kind() ChannelKind {
	return channelKinds[c]
}

// IsWallet reports whether the channel is a wallet app
func (c Channel) IsWallet() bool {
	return c.Kind() == KindWallet
}

// IsCreditCard reports whether the channel is a credit-card statement source
func (c Channel) IsCreditCard() bool {
	return c.Kind() == KindCreditCard
}

// Status is the engine-owned lifecycle state of a record
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusSkipped  Status = "skipped"
	StatusCanceled Status = "canceled"
)

// IsTerminal reports whether the status can no longer change
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusSkipped || s == StatusCanceled
}

// SkipReason explains why a record was skipped or canceled
type SkipReason string

const (
	ReasonNone             SkipReason = ""
	ReasonNonWalletPayment SkipReason = "non-wallet-payment"
	ReasonAccountLocked    SkipReason = "account-locked"
	ReasonDuplicateBase    SkipReason = "duplicate-baseline"
	ReasonChannelDuplicate SkipReason = "channel-duplicate"
	ReasonRefundMatched    SkipReason = "refund-matched"
	ReasonUserSkip         SkipReason = "user-skip"
	ReasonUserAbort        SkipReason = "user-abort"
)

// StandardRecord is one normalized transaction ready for reconciliation
type StandardRecord struct {
	Sheet     Sheet
	Account   string
	Amount    decimal.Decimal // positive magnitude, two decimal places
	Timestamp time.Time
	Remark    string
	Channel   Channel

	// RawID is the channel-native transaction identifier, when available
	RawID string
	// Merchant is the normalized counterparty name
	Merchant string
	// MatchingKey is the key used for refund/dedup grouping. Defaults to the
	// merchant, falling back to the normalized remark.
	MatchingKey string
	// SourceExtras carries channel-specific supplementary fields (payment
	// method, card suffix, original status text). Opaque to the engine.
	SourceExtras map[string]string

	// Category and Subcategory are assigned by the categorizer before output.
	// Empty values fall back to the sheet defaults at render time.
	Category    string
	Subcategory string

	// SupplementOnly marks records retained only to enrich card remarks.
	// They never enter the ledger output but stay visible in the report.
	SupplementOnly bool
	// SupplementedFrom names the wallet channel that enriched this remark
	SupplementedFrom Channel
	// DuplicateWith points at the record or channel matched during dedup
	DuplicateWith string

	Status     Status
	SkipReason SkipReason

	normalizedRemark string
	normalizedSet    bool
}

// NewStandardRecord creates a pending record with a normalized amount.
// Signed amounts are folded to their magnitude: flow direction is carried by
// the sheet, not the sign.
func NewStandardRecord(sheet Sheet, account string, amount decimal.Decimal, ts time.Time, remark string, channel Channel) *StandardRecord {
	r := &StandardRecord{
		Sheet:        sheet,
		Account:      NormalizeAccount(account),
		Amount:       amount.Abs().Round(2),
		Timestamp:    ts,
		Remark:       remark,
		Channel:      channel,
		SourceExtras: make(map[string]string),
		Status:       StatusPending,
	}
	r.MatchingKey = NormalizeText(remark)
	return r
}

// Validate checks the engine's contract with the parsers. A violation is a
// structural error and aborts the whole run.
func (r *StandardRecord) Validate() error {
	if !r.Sheet.IsValid() {
		return fmt.Errorf("invalid sheet: %q", r.Sheet)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("record timestamp cannot be zero")
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("record amount must be a magnitude, got %s", r.Amount)
	}
	if r.Status == "" {
		return fmt.Errorf("record status cannot be empty")
	}
	return nil
}

// NormalizedRemark returns the whitespace/punctuation-insensitive form of the
// remark, computed once and cached.
func (r *StandardRecord) NormalizedRemark() string {
	if !r.normalizedSet {
		r.normalizedRemark = NormalizeText(r.Remark)
		r.normalizedSet = true
	}
	return r.normalizedRemark
}

// SetRemark replaces the remark and invalidates the cached normalized form
func (r *StandardRecord) SetRemark(remark string) {
	r.Remark = remark
	r.normalizedSet = false
}

// IsActionable reports whether the record is still pending a decision
func (r *StandardRecord) IsActionable() bool {
	return r.Status == StatusPending
}

// MarkSkipped transitions a pending record to skipped with the given reason.
// Terminal statuses are monotonic: marking an already-resolved record is a
// no-op so earlier stage decisions always win.
func (r *StandardRecord) MarkSkipped(reason SkipReason) {
	if r.Status.IsTerminal() {
		return
	}
	r.Status = StatusSkipped
	r.SkipReason = reason
}

// MarkCanceled transitions a pending record to canceled with the given reason
func (r *StandardRecord) MarkCanceled(reason SkipReason) {
	if r.Status.IsTerminal() {
		return
	}
	r.Status = StatusCanceled
	r.SkipReason = reason
}

// MarkAccepted transitions a pending record to accepted. Returns an error if
// the record was already skipped or canceled, since acceptance must never
// overwrite a skip decision.
func (r *StandardRecord) MarkAccepted() error {
	if r.Status == StatusAccepted {
		return nil
	}
	if r.Status.IsTerminal() {
		return fmt.Errorf("cannot accept record with terminal status %s (%s)", r.Status, r.SkipReason)
	}
	r.Status = StatusAccepted
	r.SkipReason = ReasonNone
	return nil
}

// String returns a short representation for logs and prompts
func (r *StandardRecord) String() string {
	return fmt.Sprintf("%s | %s | %s | %s | %s",
		r.Sheet, r.Account, r.Amount.StringFixed(2),
		r.Timestamp.Format("2006-01-02 15:04:05"), r.Channel)
}

// NormalizeText produces the canonical fuzzy-matching form of free text:
// NFKC-folded, lowercased, with whitespace and punctuation removed.
func NormalizeText(s string) string {
	folded := norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NormalizeAccount strips a trailing parenthesized card suffix so that
// "CMB Credit Card(1129)" and "CMB Credit Card" bucket together.
func NormalizeAccount(account string) string {
	account = strings.TrimSpace(norm.NFKC.String(account))
	if idx := strings.IndexRune(account, '('); idx > 0 {
		return strings.TrimSpace(account[:idx])
	}
	return account
}

// ParseAmount parses a decimal amount from text, tolerating currency symbols
// and thousand separators, and rounds to two decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}
	replacer := strings.NewReplacer("¥", "", "￥", "", "$", "", ",", "", " ", "")
	s = replacer.Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format %q: %w", s, err)
	}
	return d.Round(2), nil
}

// timeFormats are the layouts accepted for timestamps in channel exports and
// baseline sheets.
var timeFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// ParseTime parses a timestamp in the given location, trying the accepted
// layouts in order.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}
	var lastErr error
	for _, format := range timeFormats {
		if t, err := time.ParseInLocation(format, s, loc); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q: %w", s, lastErr)
}

// DefaultTimezone returns the canonical timezone all records are normalized
// to. Falls back to a fixed UTC+8 zone when the tz database is unavailable.
func DefaultTimezone() *time.Location {
	if loc, err := time.LoadLocation("Asia/Shanghai"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}
