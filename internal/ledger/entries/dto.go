package entries

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// LineInput describes one side of a journal line to be posted.
type LineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostingInput groups everything required to create one balanced entry set.
type PostingInput struct {
	Date     time.Time
	Source   SourceRef
	Memo     string
	PostedBy string
	Lines    []LineInput
}

// Validate enforces the composition invariants: at least two lines, every
// line on exactly one side with a positive amount, and total debits equal
// to total credits.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("ledger: entry date required")
	}
	if !in.Source.Kind.Known() {
		return fmt.Errorf("ledger: unknown source kind %q", in.Source.Kind)
	}
	if in.Source.ID == uuid.Nil {
		return fmt.Errorf("ledger: source id required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d: %w", idx, shared.ErrAmountNotPositive)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("ledger: line %d must have exactly one non-zero side", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("debits %s, credits %s: %w", debit, credit, shared.ErrUnbalanced)
	}
	return nil
}

// Totals returns the summed debit and credit sides.
func (in PostingInput) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// VoidInput wraps parameters for voiding an entry set.
type VoidInput struct {
	EntryNumber int64
	Actor       string
	Reason      string
}
