package reports

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders a decimal with thousands separators for report
// payloads ("1,234.50").
func FormatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%v", number.Decimal(d.InexactFloat64(), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// TrialBalanceView is the outward JSON shape of a trial balance.
type TrialBalanceView struct {
	AsOf        string                `json:"as_of"`
	Rows        []TrialBalanceRowView `json:"rows"`
	TotalDebit  string                `json:"total_debit"`
	TotalCredit string                `json:"total_credit"`
	Balanced    bool                  `json:"balanced"`
}

// TrialBalanceRowView is one formatted row.
type TrialBalanceRowView struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
}

// NewTrialBalanceView formats a trial balance for presentation.
func NewTrialBalanceView(tb TrialBalance) TrialBalanceView {
	rows := make([]TrialBalanceRowView, 0, len(tb.Rows))
	for _, row := range tb.Rows {
		rows = append(rows, TrialBalanceRowView{
			Code:   row.Code,
			Name:   row.Name,
			Type:   row.Type,
			Debit:  FormatAmount(row.Debit),
			Credit: FormatAmount(row.Credit),
		})
	}
	return TrialBalanceView{
		AsOf:        tb.AsOf.Format("2006-01-02"),
		Rows:        rows,
		TotalDebit:  FormatAmount(tb.TotalDebit),
		TotalCredit: FormatAmount(tb.TotalCredit),
		Balanced:    tb.Balanced(),
	}
}

// UnreconciledView is the outward shape of the unreconciled projection.
type UnreconciledView struct {
	AccountID   int64   `json:"account_id"`
	Count       int     `json:"count"`
	TotalDebit  string  `json:"total_debit"`
	TotalCredit string  `json:"total_credit"`
	EntryIDs    []int64 `json:"entry_ids"`
}

// NewUnreconciledView summarizes unreconciled entries.
func NewUnreconciledView(u Unreconciled) UnreconciledView {
	debit, credit := entriesTotal(u.Entries)
	ids := make([]int64, 0, len(u.Entries))
	for _, e := range u.Entries {
		ids = append(ids, e.ID)
	}
	return UnreconciledView{
		AccountID:   u.AccountID,
		Count:       len(u.Entries),
		TotalDebit:  FormatAmount(debit),
		TotalCredit: FormatAmount(credit),
		EntryIDs:    ids,
	}
}
