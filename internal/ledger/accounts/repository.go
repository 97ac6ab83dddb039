package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// Repository provides DB access to the chart of accounts.
type Repository interface {
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	ListActive(ctx context.Context) ([]Account, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	Insert(ctx context.Context, in CreateAccountInput) (Account, error)
	Deactivate(ctx context.Context, id int64) error
	// SumSides returns total unvoided debits and credits for an account
	// dated on or before asOf.
	SumSides(ctx context.Context, accountID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
	// SumSidesAll returns the same aggregation for every active account.
	SumSidesAll(ctx context.Context, asOf time.Time) (map[int64][2]decimal.Decimal, error)
}

// CreateAccountInput captures fields for a new account.
type CreateAccountInput struct {
	Code          string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance
	ParentID      *int64
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed account repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, code, name, type, normal_balance, parent_id, active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.ParentID, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *repository) ListActive(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE active ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE parent_id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *repository) Insert(ctx context.Context, in CreateAccountInput) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, type, normal_balance, parent_id, active)
VALUES ($1,$2,$3,$4,$5,TRUE) RETURNING `+accountColumns, in.Code, in.Name, in.Type, in.NormalBalance, in.ParentID)
	a, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, shared.ErrSourceConflict
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE accounts SET active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SumSides(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM ledger_entries WHERE account_id=$1 AND entry_date <= $2 AND NOT is_voided`, accountID, asOf).
		Scan(&debit, &credit)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

func (r *repository) SumSidesAll(ctx context.Context, asOf time.Time) (map[int64][2]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `SELECT account_id, COALESCE(SUM(debit),0), COALESCE(SUM(credit),0)
FROM ledger_entries WHERE entry_date <= $1 AND NOT is_voided GROUP BY account_id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][2]decimal.Decimal)
	for rows.Next() {
		var id int64
		var debit, credit decimal.Decimal
		if err := rows.Scan(&id, &debit, &credit); err != nil {
			return nil, err
		}
		out[id] = [2]decimal.Decimal{debit, credit}
	}
	return out, rows.Err()
}
