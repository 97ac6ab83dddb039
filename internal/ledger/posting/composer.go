package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/ledger/mappings"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// Composer translates business events into balanced line sets using the
// account-mapping configuration.
type Composer struct {
	mappings mappings.Repository
}

// NewComposer constructs a Composer.
func NewComposer(repo mappings.Repository) *Composer {
	return &Composer{mappings: repo}
}

func (c *Composer) account(ctx context.Context, key string) (int64, error) {
	m, err := c.mappings.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return m.AccountID, nil
}

// memoRef prefers the allocated document number over the raw UUID so
// ledger memos read like the paperwork they came from.
func memoRef(documentNo string, id uuid.UUID) string {
	if documentNo != "" {
		return documentNo
	}
	return id.String()
}

// ComposeInvoice builds AR debit / revenue + tax credit lines.
func (c *Composer) ComposeInvoice(ctx context.Context, f InvoiceFacts, actor string) (entries.PostingInput, error) {
	if !f.Subtotal.IsPositive() {
		return entries.PostingInput{}, fmt.Errorf("invoice subtotal: %w", shared.ErrAmountNotPositive)
	}
	if f.Tax.IsNegative() {
		return entries.PostingInput{}, fmt.Errorf("invoice tax: %w", shared.ErrAmountNotPositive)
	}
	ar, err := c.account(ctx, mappings.KeyAccountsReceivable)
	if err != nil {
		return entries.PostingInput{}, err
	}
	revenue, err := c.account(ctx, mappings.KeyRevenue)
	if err != nil {
		return entries.PostingInput{}, err
	}
	lines := []entries.LineInput{
		{AccountID: ar, Debit: f.Total()},
		{AccountID: revenue, Credit: f.Subtotal},
	}
	if f.Tax.IsPositive() {
		tax, err := c.account(ctx, mappings.KeySalesTaxPayable)
		if err != nil {
			return entries.PostingInput{}, err
		}
		lines = append(lines, entries.LineInput{AccountID: tax, Credit: f.Tax})
	}
	return entries.PostingInput{
		Date:     f.Date,
		Source:   entries.SourceRef{Kind: entries.SourceInvoice, ID: f.ID},
		Memo:     fmt.Sprintf("Invoice %s", memoRef(f.DocumentNo, f.ID)),
		PostedBy: actor,
		Lines:    lines,
	}, nil
}

// ComposePayment builds bank debit / AR credit lines, splitting out the
// bank fee when the processor withheld one.
func (c *Composer) ComposePayment(ctx context.Context, f PaymentFacts, actor string) (entries.PostingInput, error) {
	if !f.Amount.IsPositive() {
		return entries.PostingInput{}, fmt.Errorf("payment amount: %w", shared.ErrAmountNotPositive)
	}
	if f.BankFee.IsNegative() || f.BankFee.GreaterThanOrEqual(f.Amount) {
		return entries.PostingInput{}, fmt.Errorf("payment bank fee %s out of range", f.BankFee)
	}
	bank, err := c.account(ctx, mappings.KeyBank)
	if err != nil {
		return entries.PostingInput{}, err
	}
	ar, err := c.account(ctx, mappings.KeyAccountsReceivable)
	if err != nil {
		return entries.PostingInput{}, err
	}
	lines := []entries.LineInput{
		{AccountID: bank, Debit: f.Amount.Sub(f.BankFee)},
	}
	if f.BankFee.IsPositive() {
		fees, err := c.account(ctx, mappings.KeyBankFees)
		if err != nil {
			return entries.PostingInput{}, err
		}
		lines = append(lines, entries.LineInput{AccountID: fees, Debit: f.BankFee})
	}
	lines = append(lines, entries.LineInput{AccountID: ar, Credit: f.Amount})
	return entries.PostingInput{
		Date:     f.Date,
		Source:   entries.SourceRef{Kind: entries.SourcePayment, ID: f.ID},
		Memo:     fmt.Sprintf("Payment %s", memoRef(f.DocumentNo, f.ID)),
		PostedBy: actor,
		Lines:    lines,
	}, nil
}

// ComposePayrollRun builds gross expense against withholding and net pay.
func (c *Composer) ComposePayrollRun(ctx context.Context, f PayrollRunFacts, actor string) (entries.PostingInput, error) {
	if !f.Gross.IsPositive() {
		return entries.PostingInput{}, fmt.Errorf("payroll gross: %w", shared.ErrAmountNotPositive)
	}
	if f.Withholding.IsNegative() || f.Withholding.GreaterThanOrEqual(f.Gross) {
		return entries.PostingInput{}, fmt.Errorf("payroll withholding %s out of range", f.Withholding)
	}
	expense, err := c.account(ctx, mappings.KeyPayrollExpense)
	if err != nil {
		return entries.PostingInput{}, err
	}
	bank, err := c.account(ctx, mappings.KeyBank)
	if err != nil {
		return entries.PostingInput{}, err
	}
	lines := []entries.LineInput{
		{AccountID: expense, Debit: f.Gross},
	}
	if f.Withholding.IsPositive() {
		taxes, err := c.account(ctx, mappings.KeyPayrollTaxPayable)
		if err != nil {
			return entries.PostingInput{}, err
		}
		lines = append(lines, entries.LineInput{AccountID: taxes, Credit: f.Withholding})
	}
	lines = append(lines, entries.LineInput{AccountID: bank, Credit: f.Net()})
	return entries.PostingInput{
		Date:     f.Date,
		Source:   entries.SourceRef{Kind: entries.SourcePayrollRun, ID: f.ID},
		Memo:     fmt.Sprintf("Payroll run %s", memoRef(f.DocumentNo, f.ID)),
		PostedBy: actor,
		Lines:    lines,
	}, nil
}

// ComposeDepositRelease moves a held customer deposit into revenue.
func (c *Composer) ComposeDepositRelease(ctx context.Context, f DepositReleaseFacts, actor string) (entries.PostingInput, error) {
	if !f.Amount.IsPositive() {
		return entries.PostingInput{}, fmt.Errorf("deposit release amount: %w", shared.ErrAmountNotPositive)
	}
	deposits, err := c.account(ctx, mappings.KeyCustomerDeposits)
	if err != nil {
		return entries.PostingInput{}, err
	}
	revenue, err := c.account(ctx, mappings.KeyRevenue)
	if err != nil {
		return entries.PostingInput{}, err
	}
	return entries.PostingInput{
		Date:     f.Date,
		Source:   entries.SourceRef{Kind: entries.SourceDepositRelease, ID: f.ID},
		Memo:     fmt.Sprintf("Deposit release %s", memoRef(f.DocumentNo, f.ID)),
		PostedBy: actor,
		Lines: []entries.LineInput{
			{AccountID: deposits, Debit: f.Amount},
			{AccountID: revenue, Credit: f.Amount},
		},
	}, nil
}

// ComposeAdjustment builds the balanced pair for a reconciliation
// adjustment against a configured offset account.
func (c *Composer) ComposeAdjustment(ctx context.Context, ref entries.SourceRef, date time.Time, memo string, amount decimal.Decimal, debitAccount, creditAccount int64, actor string) (entries.PostingInput, error) {
	if !amount.IsPositive() {
		return entries.PostingInput{}, fmt.Errorf("adjustment amount: %w", shared.ErrAmountNotPositive)
	}
	return entries.PostingInput{
		Date:     date,
		Source:   ref,
		Memo:     memo,
		PostedBy: actor,
		Lines: []entries.LineInput{
			{AccountID: debitAccount, Debit: amount},
			{AccountID: creditAccount, Credit: amount},
		},
	}, nil
}
