package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
)

// Repository runs the read-only projection queries. Nothing in this
// package writes; the projections are recomputable at any time.
type Repository interface {
	TrialBalanceRows(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error)
	AgedNet(ctx context.Context, accountID int64, asOf, from, to time.Time) (decimal.Decimal, error)
	AgedNetOlder(ctx context.Context, accountID int64, asOf, before time.Time) (decimal.Decimal, error)
	UnreconciledEntries(ctx context.Context, accountID int64) ([]entries.Entry, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed report repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) TrialBalanceRows(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error) {
	rows, err := r.db.Query(ctx, `SELECT a.id, a.code, a.name, a.type,
COALESCE(SUM(e.debit),0), COALESCE(SUM(e.credit),0)
FROM accounts a
LEFT JOIN ledger_entries e ON e.account_id = a.id AND e.entry_date <= $1 AND NOT e.is_voided
WHERE a.active
GROUP BY a.id, a.code, a.name, a.type
ORDER BY a.code ASC`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccountID, &row.Code, &row.Name, &row.Type, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repository) AgedNet(ctx context.Context, accountID int64, asOf, from, to time.Time) (decimal.Decimal, error) {
	var net decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit),0)
FROM ledger_entries
WHERE account_id=$1 AND NOT is_voided AND entry_date <= $2 AND entry_date > $3 AND entry_date <= $4`,
		accountID, asOf, from, to).Scan(&net)
	return net, err
}

func (r *repository) AgedNetOlder(ctx context.Context, accountID int64, asOf, before time.Time) (decimal.Decimal, error) {
	var net decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit),0)
FROM ledger_entries
WHERE account_id=$1 AND NOT is_voided AND entry_date <= $2 AND entry_date <= $3`,
		accountID, asOf, before).Scan(&net)
	return net, err
}

func (r *repository) UnreconciledEntries(ctx context.Context, accountID int64) ([]entries.Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.entry_number, e.account_id, e.entry_date, e.period_id, p.code,
e.debit, e.credit, e.memo, e.source_kind, e.source_id, e.is_posted, e.is_voided,
e.reversing_entry_id, e.posted_by, e.posted_at, e.created_at
FROM ledger_entries e JOIN accounting_periods p ON p.id = e.period_id
WHERE e.account_id=$1 AND NOT e.is_voided
  AND NOT EXISTS (SELECT 1 FROM bank_statement_lines l WHERE l.matched_entry_id = e.id)
ORDER BY e.entry_date ASC, e.id ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entries.Entry
	for rows.Next() {
		var e entries.Entry
		if err := rows.Scan(&e.ID, &e.EntryNumber, &e.AccountID, &e.Date, &e.PeriodID, &e.PeriodCode,
			&e.Debit, &e.Credit, &e.Memo, &e.Source.Kind, &e.Source.ID, &e.IsPosted, &e.IsVoided,
			&e.ReversingEntryID, &e.PostedBy, &e.PostedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
