package posting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/ledger/mappings"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

type memoryMappingRepo struct {
	byKey map[string]int64
}

func (r *memoryMappingRepo) Get(ctx context.Context, key string) (mappings.AccountMapping, error) {
	id, ok := r.byKey[key]
	if !ok {
		return mappings.AccountMapping{}, fmt.Errorf("%s: %w", key, shared.ErrMappingNotFound)
	}
	return mappings.AccountMapping{Key: key, AccountID: id}, nil
}

func (r *memoryMappingRepo) Set(ctx context.Context, key string, accountID int64) error {
	r.byKey[key] = accountID
	return nil
}

func fullMappings() *memoryMappingRepo {
	return &memoryMappingRepo{byKey: map[string]int64{
		mappings.KeyAccountsReceivable: 1,
		mappings.KeyRevenue:            2,
		mappings.KeySalesTaxPayable:    3,
		mappings.KeyBank:               4,
		mappings.KeyBankFees:           5,
		mappings.KeyPayrollExpense:     6,
		mappings.KeyPayrollTaxPayable:  7,
		mappings.KeyCustomerDeposits:   8,
	}}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComposeInvoice(t *testing.T) {
	composer := NewComposer(fullMappings())
	facts := InvoiceFacts{
		ID:         uuid.New(),
		DocumentNo: "INV-000042",
		Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Subtotal:   dec("1000.00"),
		Tax:        dec("80.00"),
	}

	input, err := composer.ComposeInvoice(context.Background(), facts, "billing")
	require.NoError(t, err)
	require.NoError(t, input.Validate())
	require.Equal(t, entries.SourceInvoice, input.Source.Kind)
	require.Equal(t, facts.ID, input.Source.ID)
	require.Equal(t, "Invoice INV-000042", input.Memo)

	require.Len(t, input.Lines, 3)
	require.Equal(t, int64(1), input.Lines[0].AccountID)
	require.True(t, input.Lines[0].Debit.Equal(dec("1080.00")))
	require.Equal(t, int64(2), input.Lines[1].AccountID)
	require.True(t, input.Lines[1].Credit.Equal(dec("1000.00")))
	require.Equal(t, int64(3), input.Lines[2].AccountID)
	require.True(t, input.Lines[2].Credit.Equal(dec("80.00")))
}

func TestComposeInvoiceZeroTaxDropsTaxLine(t *testing.T) {
	composer := NewComposer(fullMappings())
	facts := InvoiceFacts{
		ID:       uuid.New(),
		Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Subtotal: dec("500.00"),
	}

	input, err := composer.ComposeInvoice(context.Background(), facts, "billing")
	require.NoError(t, err)
	require.NoError(t, input.Validate())
	require.Len(t, input.Lines, 2)
	require.True(t, input.Lines[0].Debit.Equal(dec("500.00")))

	// Documents created before numbering fall back to the UUID.
	require.Equal(t, "Invoice "+facts.ID.String(), input.Memo)
}

func TestComposeInvoiceRejectsBadAmounts(t *testing.T) {
	composer := NewComposer(fullMappings())

	_, err := composer.ComposeInvoice(context.Background(), InvoiceFacts{
		ID: uuid.New(), Date: time.Now(), Subtotal: decimal.Zero,
	}, "billing")
	require.ErrorIs(t, err, shared.ErrAmountNotPositive)

	_, err = composer.ComposeInvoice(context.Background(), InvoiceFacts{
		ID: uuid.New(), Date: time.Now(), Subtotal: dec("100"), Tax: dec("-5"),
	}, "billing")
	require.ErrorIs(t, err, shared.ErrAmountNotPositive)
}

func TestComposeInvoiceSurfacesMissingMapping(t *testing.T) {
	repo := fullMappings()
	delete(repo.byKey, mappings.KeyRevenue)
	composer := NewComposer(repo)

	_, err := composer.ComposeInvoice(context.Background(), InvoiceFacts{
		ID: uuid.New(), Date: time.Now(), Subtotal: dec("100"),
	}, "billing")
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
}

func TestComposePaymentWithFee(t *testing.T) {
	composer := NewComposer(fullMappings())
	facts := PaymentFacts{
		ID:      uuid.New(),
		Date:    time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		Amount:  dec("250.00"),
		BankFee: dec("7.50"),
	}

	input, err := composer.ComposePayment(context.Background(), facts, "billing")
	require.NoError(t, err)
	require.NoError(t, input.Validate())
	require.Equal(t, entries.SourcePayment, input.Source.Kind)

	require.Len(t, input.Lines, 3)
	require.Equal(t, int64(4), input.Lines[0].AccountID)
	require.True(t, input.Lines[0].Debit.Equal(dec("242.50")))
	require.Equal(t, int64(5), input.Lines[1].AccountID)
	require.True(t, input.Lines[1].Debit.Equal(dec("7.50")))
	require.Equal(t, int64(1), input.Lines[2].AccountID)
	require.True(t, input.Lines[2].Credit.Equal(dec("250.00")))
}

func TestComposePaymentWithoutFee(t *testing.T) {
	composer := NewComposer(fullMappings())
	input, err := composer.ComposePayment(context.Background(), PaymentFacts{
		ID: uuid.New(), Date: time.Now(), Amount: dec("90.00"),
	}, "billing")
	require.NoError(t, err)
	require.NoError(t, input.Validate())
	require.Len(t, input.Lines, 2)
}

func TestComposePaymentRejectsFeeSwallowingPayment(t *testing.T) {
	composer := NewComposer(fullMappings())
	_, err := composer.ComposePayment(context.Background(), PaymentFacts{
		ID: uuid.New(), Date: time.Now(), Amount: dec("10.00"), BankFee: dec("10.00"),
	}, "billing")
	require.Error(t, err)
}

func TestComposePayrollRun(t *testing.T) {
	composer := NewComposer(fullMappings())
	facts := PayrollRunFacts{
		ID:          uuid.New(),
		Date:        time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Gross:       dec("10000.00"),
		Withholding: dec("2200.00"),
	}

	input, err := composer.ComposePayrollRun(context.Background(), facts, "payroll")
	require.NoError(t, err)
	require.NoError(t, input.Validate())
	require.Equal(t, entries.SourcePayrollRun, input.Source.Kind)

	require.Len(t, input.Lines, 3)
	require.Equal(t, int64(6), input.Lines[0].AccountID)
	require.True(t, input.Lines[0].Debit.Equal(dec("10000.00")))
	require.Equal(t, int64(7), input.Lines[1].AccountID)
	require.True(t, input.Lines[1].Credit.Equal(dec("2200.00")))
	require.Equal(t, int64(4), input.Lines[2].AccountID)
	require.True(t, input.Lines[2].Credit.Equal(dec("7800.00")))
}

func TestComposePayrollRunZeroWithholding(t *testing.T) {
	composer := NewComposer(fullMappings())
	input, err := composer.ComposePayrollRun(context.Background(), PayrollRunFacts{
		ID: uuid.New(), Date: time.Now(), Gross: dec("3000.00"),
	}, "payroll")
	require.NoError(t, err)
	require.NoError(t, input.Validate())
	require.Len(t, input.Lines, 2)
	require.True(t, input.Lines[1].Credit.Equal(dec("3000.00")))
}

func TestComposeDepositRelease(t *testing.T) {
	composer := NewComposer(fullMappings())
	facts := DepositReleaseFacts{
		ID:     uuid.New(),
		Date:   time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		Amount: dec("1500.00"),
	}

	input, err := composer.ComposeDepositRelease(context.Background(), facts, "billing")
	require.NoError(t, err)
	require.NoError(t, input.Validate())
	require.Equal(t, entries.SourceDepositRelease, input.Source.Kind)

	require.Len(t, input.Lines, 2)
	require.Equal(t, int64(8), input.Lines[0].AccountID)
	require.True(t, input.Lines[0].Debit.Equal(dec("1500.00")))
	require.Equal(t, int64(2), input.Lines[1].AccountID)
	require.True(t, input.Lines[1].Credit.Equal(dec("1500.00")))
}
