package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/shared"
	"github.com/meridianbooks/meridian/internal/platform/db"
)

// Repository encapsulates DB operations for periods.
type Repository interface {
	Get(ctx context.Context, id int64) (Period, error)
	List(ctx context.Context) ([]Period, error)
	FindByDate(ctx context.Context, date time.Time) (Period, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes period operations inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Period, error)
	UpdateStatus(ctx context.Context, id int64, status Status, lock LockMeta) error
	// TrialBalanceTotals sums debits and credits over all unvoided entries.
	TrialBalanceTotals(ctx context.Context) (debit, credit decimal.Decimal, err error)
}

// LockMeta carries lock bookkeeping written alongside a status change.
type LockMeta struct {
	At     *time.Time
	By     *string
	Reason *string
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed period repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, fiscal_year, period_no, code, start_date, end_date, status, locked_at, locked_by, lock_reason, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.FiscalYear, &p.PeriodNo, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.LockedAt, &p.LockedBy, &p.LockReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM accounting_periods ORDER BY start_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) FindByDate(ctx context.Context, date time.Time) (Period, error) {
	return scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, date))
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, lock LockMeta) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounting_periods
SET status=$2, locked_at=$3, locked_by=$4, lock_reason=$5, updated_at=NOW() WHERE id=$1`,
		id, status, lock.At, lock.By, lock.Reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) TrialBalanceTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM ledger_entries WHERE NOT is_voided`).Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}
