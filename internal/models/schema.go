package models

// SheetColumns defines the canonical column set for each ledger sheet,
// mirroring the baseline workbook template. Merged output must reproduce
// these columns in this exact order.
var SheetColumns = map[Sheet][]string{
	SheetExpense: {
		"category", "subcategory", "account", "currency", "project",
		"merchant", "reimbursable", "date", "amount", "member_amount",
		"remark", "ledger",
	},
	SheetIncome: {
		"category", "account", "currency", "project", "payer",
		"date", "amount", "member_amount", "remark", "ledger",
	},
	SheetTransfer: {
		"from_account", "from_currency", "out_amount",
		"to_account", "to_currency", "in_amount",
		"date", "remark", "ledger",
	},
	SheetLoan: {
		"loan_type", "date", "loan_account", "account",
		"amount", "remark", "ledger",
	},
	SheetRepayment: {
		"loan_type", "date", "loan_account", "account",
		"amount", "interest", "remark", "ledger",
	},
}

// DateColumn names the timestamp column per sheet
var DateColumn = map[Sheet]string{
	SheetExpense:   "date",
	SheetIncome:    "date",
	SheetTransfer:  "date",
	SheetLoan:      "date",
	SheetRepayment: "date",
}

// AmountColumns names the money columns per sheet. Transfers carry two.
var AmountColumns = map[Sheet][]string{
	SheetExpense:   {"amount"},
	SheetIncome:    {"amount"},
	SheetTransfer:  {"out_amount", "in_amount"},
	SheetLoan:      {"amount"},
	SheetRepayment: {"amount"},
}

// AccountColumn names the primary account column per sheet
var AccountColumn = map[Sheet]string{
	SheetExpense:   "account",
	SheetIncome:    "account",
	SheetTransfer:  "from_account",
	SheetLoan:      "account",
	SheetRepayment: "account",
}

// CategoryColumn names the category column for sheets that have one
var CategoryColumn = map[Sheet]string{
	SheetExpense: "category",
	SheetIncome:  "category",
}

// RemarkColumn is shared by every sheet
const RemarkColumn = "remark"

// DefaultValues are filled into template columns the record model does not
// populate itself.
var DefaultValues = map[Sheet]map[string]string{
	SheetExpense: {
		"category":     "uncategorized",
		"subcategory":  "uncategorized",
		"currency":     "CNY",
		"project":      "daily",
		"reimbursable": "no",
		"ledger":       "default",
	},
	SheetIncome: {
		"category": "uncategorized",
		"currency": "CNY",
		"project":  "daily",
		"ledger":   "default",
	},
	SheetTransfer: {
		"from_currency": "CNY",
		"to_currency":   "CNY",
		"ledger":        "default",
	},
	SheetLoan: {
		"loan_type": "lend",
		"ledger":    "default",
	},
	SheetRepayment: {
		"loan_type": "lend",
		"interest":  "0",
		"ledger":    "default",
	},
}

// timestampLayout is the workbook-facing timestamp format
const timestampLayout = "2006-01-02 15:04:05"

// ToRow renders the record as a baseline-schema row: one value per canonical
// column, defaults applied, template column order preserved.
func (r *StandardRecord) ToRow() map[string]string {
	row := map[string]string{
		DateColumn[r.Sheet]:    r.Timestamp.Format(timestampLayout),
		AccountColumn[r.Sheet]: r.Account,
		RemarkColumn:           r.Remark,
	}
	switch r.Sheet {
	case SheetTransfer:
		row["out_amount"] = r.Amount.StringFixed(2)
		row["in_amount"] = r.Amount.StringFixed(2)
	default:
		row["amount"] = r.Amount.StringFixed(2)
	}
	if r.Category != "" {
		if column, ok := CategoryColumn[r.Sheet]; ok {
			row[column] = r.Category
		}
	}
	if r.Subcategory != "" && r.Sheet == SheetExpense {
		row["subcategory"] = r.Subcategory
	}
	if r.Merchant != "" {
		switch r.Sheet {
		case SheetExpense:
			row["merchant"] = r.Merchant
		case SheetIncome:
			row["payer"] = r.Merchant
		}
	}
	for column, value := range DefaultValues[r.Sheet] {
		if _, ok := row[column]; !ok {
			row[column] = value
		}
	}

	ordered := make(map[string]string, len(SheetColumns[r.Sheet]))
	for _, column := range SheetColumns[r.Sheet] {
		ordered[column] = row[column]
	}
	return ordered
}
