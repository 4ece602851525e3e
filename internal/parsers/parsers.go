// Package parsers turns channel export CSV files into standard records.
//
// Each channel (wallet app or card statement) ships a different column
// layout, so the parser is driven by a per-channel configuration naming the
// columns to read. Unparseable amounts and timestamps fail the whole file:
// a silent drop here would surface later as a missed duplicate.
package parsers

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"ledger-reconciler/internal/models"
	apperrors "ledger-reconciler/pkg/errors"
	"ledger-reconciler/pkg/logger"
)

// ColumnMap names the export columns by role. Time and Amount are required;
// everything else degrades gracefully when absent.
type ColumnMap struct {
	Time          string
	Direction     string
	Amount        string
	Counterparty  string
	Product       string
	PaymentMethod string
	Status        string
	Remark        string
	TxID          string
}

// ChannelConfig drives parsing for one channel's export format
type ChannelConfig struct {
	// Channel tags every parsed record
	Channel models.Channel

	// Account is the ledger account name records are booked to
	Account string

	// Columns maps roles to the export's header names
	Columns ColumnMap

	// DirectionValues maps the direction column's values to sheets. Rows
	// whose direction maps to no sheet (transfers between own accounts,
	// neutral rows) are dropped.
	DirectionValues map[string]models.Sheet

	// SignedAmounts derives the sheet from the amount sign instead of a
	// direction column: negative means money coming back (income). Card
	// statements use this.
	SignedAmounts bool

	// WalletMethods lists payment-method values that mean the wallet balance
	// itself paid. Wallet records funded any other way are tagged
	// supplement-only: the money actually left a card account, and the card
	// statement carries the authoritative record.
	WalletMethods []string

	// SkipLines is the number of preamble lines before the CSV header
	SkipLines int
}

// Validate checks that the required column roles are configured
func (c *ChannelConfig) Validate() error {
	if c.Channel == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingOption, "channel", "")
	}
	if c.Account == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingOption, "account", "")
	}
	if c.Columns.Time == "" || c.Columns.Amount == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingOption, "columns", "time and amount are required")
	}
	if !c.SignedAmounts && c.Columns.Direction == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingOption, "columns.direction",
			"required unless amounts are signed")
	}
	return nil
}

// WeChatConfig returns the parser configuration for WeChat Pay exports
func WeChatConfig() *ChannelConfig {
	return &ChannelConfig{
		Channel: models.ChannelWeChat,
		Account: "微信",
		Columns: ColumnMap{
			Time:          "交易时间",
			Direction:     "收/支",
			Amount:        "金额(元)",
			Counterparty:  "交易对方",
			Product:       "商品",
			PaymentMethod: "支付方式",
			Status:        "当前状态",
			Remark:        "备注",
			TxID:          "交易单号",
		},
		DirectionValues: map[string]models.Sheet{
			"支出": models.SheetExpense,
			"收入": models.SheetIncome,
		},
		WalletMethods: []string{"零钱", "零钱通"},
		SkipLines:     16,
	}
}

// AlipayConfig returns the parser configuration for Alipay exports
func AlipayConfig() *ChannelConfig {
	return &ChannelConfig{
		Channel: models.ChannelAlipay,
		Account: "支付宝",
		Columns: ColumnMap{
			Time:          "交易时间",
			Direction:     "收/支",
			Amount:        "金额",
			Counterparty:  "交易对方",
			Product:       "商品说明",
			PaymentMethod: "收/付款方式",
			Status:        "交易状态",
			Remark:        "备注",
			TxID:          "交易订单号",
		},
		DirectionValues: map[string]models.Sheet{
			"支出": models.SheetExpense,
			"收入": models.SheetIncome,
		},
		WalletMethods: []string{"余额", "余额宝"},
		SkipLines:     4,
	}
}

// CMBCardConfig returns the parser configuration for CMB credit card
// statements. Statement amounts are signed: a negative entry is a refund
// posting back to the card.
func CMBCardConfig() *ChannelConfig {
	return &ChannelConfig{
		Channel: models.ChannelCMBCard,
		Account: "招商银行信用卡",
		Columns: ColumnMap{
			Time:         "交易日期",
			Amount:       "人民币金额",
			Counterparty: "交易摘要",
			Remark:       "交易摘要",
		},
		SignedAmounts: true,
	}
}

// CITICCardConfig returns the parser configuration for CITIC credit card
// statements.
func CITICCardConfig() *ChannelConfig {
	return &ChannelConfig{
		Channel: models.ChannelCITICCard,
		Account: "中信银行信用卡",
		Columns: ColumnMap{
			Time:         "交易日期",
			Amount:       "交易金额",
			Counterparty: "交易描述",
			Remark:       "交易描述",
		},
		SignedAmounts: true,
	}
}

// Parser reads one channel's export files
type Parser struct {
	cfg *ChannelConfig
	log logger.Logger
}

// NewParser validates the configuration and creates a parser
func NewParser(cfg *ChannelConfig, log logger.Logger) (*Parser, error) {
	if cfg == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingOption, "channel_config", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Parser{
		cfg: cfg,
		log: log.WithComponent("parser").WithField("channel", string(cfg.Channel)),
	}, nil
}

// ParseFile parses a channel export file
func (p *Parser) ParseFile(path string) ([]*models.StandardRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ParseError(apperrors.CodeFileNotFound, path, 0, "file not found", err)
		}
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, path, 0, "cannot open file", err)
	}
	defer file.Close()
	return p.Parse(file, path)
}

// Parse parses a channel export stream. The name is used in error messages.
func (p *Parser) Parse(r io.Reader, name string) ([]*models.StandardRecord, error) {
	buffered := bufio.NewReader(r)
	for i := 0; i < p.cfg.SkipLines; i++ {
		if _, err := buffered.ReadString('\n'); err != nil {
			if err == io.EOF {
				break
			}
			return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, name, i+1, "cannot skip preamble", err)
		}
	}

	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, name, p.cfg.SkipLines+1, "missing header row", err)
	}
	columns, err := p.resolveColumns(header, name)
	if err != nil {
		return nil, err
	}

	tz := models.DefaultTimezone()
	var records []*models.StandardRecord
	line := p.cfg.SkipLines + 1
	dropped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, name, line, "unreadable row", err)
		}
		if isBlank(row) {
			continue
		}

		record, err := p.parseRow(row, columns, tz, name, line)
		if err != nil {
			return nil, err
		}
		if record == nil {
			dropped++
			continue
		}
		records = append(records, record)
	}

	p.log.WithFields(logger.Fields{
		"file":    name,
		"records": len(records),
		"dropped": dropped,
	}).Info("Channel export parsed")
	return records, nil
}

// columnIndexes holds resolved header positions, -1 for absent optional roles
type columnIndexes struct {
	time, direction, amount, counterparty  int
	product, paymentMethod, status, remark int
	txID                                   int
}

func (p *Parser) resolveColumns(header []string, name string) (*columnIndexes, error) {
	find := func(column string) int {
		if column == "" {
			return -1
		}
		for i, h := range header {
			if strings.TrimSpace(h) == column {
				return i
			}
		}
		return -1
	}

	cols := &columnIndexes{
		time:          find(p.cfg.Columns.Time),
		direction:     find(p.cfg.Columns.Direction),
		amount:        find(p.cfg.Columns.Amount),
		counterparty:  find(p.cfg.Columns.Counterparty),
		product:       find(p.cfg.Columns.Product),
		paymentMethod: find(p.cfg.Columns.PaymentMethod),
		status:        find(p.cfg.Columns.Status),
		remark:        find(p.cfg.Columns.Remark),
		txID:          find(p.cfg.Columns.TxID),
	}
	if cols.time == -1 {
		return nil, apperrors.ParseError(apperrors.CodeMissingColumn, name, p.cfg.SkipLines+1,
			"time column "+p.cfg.Columns.Time+" not found", nil)
	}
	if cols.amount == -1 {
		return nil, apperrors.ParseError(apperrors.CodeMissingColumn, name, p.cfg.SkipLines+1,
			"amount column "+p.cfg.Columns.Amount+" not found", nil)
	}
	if !p.cfg.SignedAmounts && cols.direction == -1 {
		return nil, apperrors.ParseError(apperrors.CodeMissingColumn, name, p.cfg.SkipLines+1,
			"direction column "+p.cfg.Columns.Direction+" not found", nil)
	}
	return cols, nil
}

// parseRow builds one record, or returns nil for rows outside the ledger
// (directions mapping to no sheet).
func (p *Parser) parseRow(row []string, cols *columnIndexes, tz *time.Location, name string, line int) (*models.StandardRecord, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	rawAmount := field(cols.amount)
	amount, err := models.ParseAmount(rawAmount)
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, name, line,
			"unparseable amount "+rawAmount, err)
	}

	var sheet models.Sheet
	if p.cfg.SignedAmounts {
		sheet = models.SheetExpense
		if amount.IsNegative() {
			sheet = models.SheetIncome
		}
	} else {
		direction := field(cols.direction)
		mapped, ok := p.cfg.DirectionValues[direction]
		if !ok {
			p.log.WithFields(logger.Fields{
				"line":      line,
				"direction": direction,
			}).Debug("Dropping row with unmapped direction")
			return nil, nil
		}
		sheet = mapped
	}

	rawTime := field(cols.time)
	ts, err := models.ParseTime(rawTime, tz)
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, name, line,
			"unparseable timestamp "+rawTime, err)
	}

	remark := field(cols.remark)
	if remark == "" || remark == "/" {
		remark = field(cols.product)
	}
	if remark == "/" {
		remark = ""
	}

	record := models.NewStandardRecord(sheet, p.cfg.Account, amount, ts, remark, p.cfg.Channel)
	record.Merchant = field(cols.counterparty)
	record.RawID = field(cols.txID)
	if method := field(cols.paymentMethod); method != "" {
		record.SourceExtras["payment_method"] = method
	}
	if status := field(cols.status); status != "" {
		record.SourceExtras["status"] = status
	}

	if p.cfg.Channel.IsWallet() {
		p.classifyFunding(record)
	}
	return record, nil
}

// classifyFunding tags wallet records whose money actually came from a card.
// They are excluded from acceptance but stay available as supplement sources.
func (p *Parser) classifyFunding(record *models.StandardRecord) {
	if record.Sheet != models.SheetExpense {
		return
	}
	method := record.SourceExtras["payment_method"]
	if method == "" {
		return
	}
	for _, wallet := range p.cfg.WalletMethods {
		if strings.Contains(method, wallet) {
			return
		}
	}
	record.SupplementOnly = true
	record.MarkSkipped(models.ReasonNonWalletPayment)
}

func isBlank(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
