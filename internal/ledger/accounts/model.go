package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates the five fundamental account classes.
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
)

// NormalBalance indicates which side naturally increases an account.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Account is one node in the chart of accounts. Only leaf accounts
// (no children) accept ledger entries.
type Account struct {
	ID            int64
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	ParentID      *int64
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Balance is a signed as-of balance oriented by the account's normal side.
type Balance struct {
	AccountID int64
	Code      string
	Name      string
	Amount    decimal.Decimal
}

// Orient converts raw debit/credit sums into the account's signed balance:
// debit-normal accounts report debits minus credits, credit-normal the inverse.
func Orient(normal NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == NormalCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// DefaultNormalBalance returns the conventional normal side for a type.
func DefaultNormalBalance(t AccountType) NormalBalance {
	switch t {
	case TypeLiability, TypeEquity, TypeRevenue:
		return NormalCredit
	default:
		return NormalDebit
	}
}
