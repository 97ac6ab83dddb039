package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
)

// TrialBalanceRow aggregates one account's unvoided debits and credits.
type TrialBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Type      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// TrialBalance is the global debits-equal-credits check as of a date.
type TrialBalance struct {
	AsOf        time.Time
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether total debits equal total credits.
func (tb TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// AgingBucket is one age band of open balance on a control account.
type AgingBucket struct {
	Label  string
	Amount decimal.Decimal
}

// Aging is a receivables or payables aging projection.
type Aging struct {
	AccountID int64
	AsOf      time.Time
	Buckets   []AgingBucket
	Total     decimal.Decimal
}

// Unreconciled lists entries on an account no statement line has claimed.
type Unreconciled struct {
	AccountID int64
	Entries   []entries.Entry
}
