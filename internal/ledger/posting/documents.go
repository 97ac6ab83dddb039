package posting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// InvoiceFacts carries the amounts a posted invoice contributes to the
// ledger. Tax is already computed by the producer.
type InvoiceFacts struct {
	ID         uuid.UUID
	DocumentNo string
	Date       time.Time
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
}

// Total is the receivable amount.
func (f InvoiceFacts) Total() decimal.Decimal {
	return f.Subtotal.Add(f.Tax)
}

// PaymentFacts carries a received customer payment. BankFee may be zero.
type PaymentFacts struct {
	ID         uuid.UUID
	DocumentNo string
	Date       time.Time
	Amount     decimal.Decimal
	BankFee    decimal.Decimal
}

// PayrollRunFacts carries a payroll run with gross-to-net already computed.
type PayrollRunFacts struct {
	ID          uuid.UUID
	DocumentNo  string
	Date        time.Time
	Gross       decimal.Decimal
	Withholding decimal.Decimal
}

// Net is the take-home amount paid out of the bank account.
func (f PayrollRunFacts) Net() decimal.Decimal {
	return f.Gross.Sub(f.Withholding)
}

// DepositReleaseFacts carries a customer deposit being released to revenue.
type DepositReleaseFacts struct {
	ID         uuid.UUID
	DocumentNo string
	Date       time.Time
	Amount     decimal.Decimal
}

// DocumentReader fetches business-event facts from the producer
// subsystems' tables. Reads only; producers own those rows.
type DocumentReader interface {
	Invoice(ctx context.Context, id uuid.UUID) (InvoiceFacts, error)
	Payment(ctx context.Context, id uuid.UUID) (PaymentFacts, error)
	PayrollRun(ctx context.Context, id uuid.UUID) (PayrollRunFacts, error)
	DepositRelease(ctx context.Context, id uuid.UUID) (DepositReleaseFacts, error)
}

type documentReader struct {
	db *pgxpool.Pool
}

// NewDocumentReader returns a Postgres-backed document reader.
func NewDocumentReader(db *pgxpool.Pool) DocumentReader {
	return &documentReader{db: db}
}

func (r *documentReader) Invoice(ctx context.Context, id uuid.UUID) (InvoiceFacts, error) {
	f := InvoiceFacts{ID: id}
	err := r.db.QueryRow(ctx, `SELECT document_no, invoice_date, subtotal, tax_amount FROM invoices WHERE id=$1`, id).
		Scan(&f.DocumentNo, &f.Date, &f.Subtotal, &f.Tax)
	return f, mapNoRows(err)
}

func (r *documentReader) Payment(ctx context.Context, id uuid.UUID) (PaymentFacts, error) {
	f := PaymentFacts{ID: id}
	err := r.db.QueryRow(ctx, `SELECT document_no, payment_date, amount, COALESCE(bank_fee,0) FROM payments WHERE id=$1`, id).
		Scan(&f.DocumentNo, &f.Date, &f.Amount, &f.BankFee)
	return f, mapNoRows(err)
}

func (r *documentReader) PayrollRun(ctx context.Context, id uuid.UUID) (PayrollRunFacts, error) {
	f := PayrollRunFacts{ID: id}
	err := r.db.QueryRow(ctx, `SELECT document_no, run_date, gross_amount, withholding_amount FROM payroll_runs WHERE id=$1`, id).
		Scan(&f.DocumentNo, &f.Date, &f.Gross, &f.Withholding)
	return f, mapNoRows(err)
}

func (r *documentReader) DepositRelease(ctx context.Context, id uuid.UUID) (DepositReleaseFacts, error) {
	f := DepositReleaseFacts{ID: id}
	err := r.db.QueryRow(ctx, `SELECT document_no, release_date, amount FROM deposit_releases WHERE id=$1`, id).
		Scan(&f.DocumentNo, &f.Date, &f.Amount)
	return f, mapNoRows(err)
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}
