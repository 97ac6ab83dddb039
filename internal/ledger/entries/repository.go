package entries

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianbooks/meridian/internal/ledger/periods"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
	"github.com/meridianbooks/meridian/internal/platform/db"
)

// Repository encapsulates DB operations for ledger entries.
type Repository interface {
	GetSet(ctx context.Context, entryNumber int64) ([]Entry, error)
	ListBySource(ctx context.Context, src SourceRef) ([]Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations available within a posting transaction.
// Period reads live here too so the lock is taken in the same transaction.
type TxRepository interface {
	NextEntryNumber(ctx context.Context) (int64, error)
	InsertSet(ctx context.Context, entryNumber int64, period periods.Period, in PostingInput) ([]Entry, error)
	LinkSource(ctx context.Context, src SourceRef, entryNumber int64) error
	GetSetForUpdate(ctx context.Context, entryNumber int64) ([]Entry, error)
	MarkVoided(ctx context.Context, originalID, reversingID int64) error

	GetPeriodForUpdate(ctx context.Context, periodID int64) (periods.Period, error)
	FindPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error)
	FindEarliestOpenPeriod(ctx context.Context) (periods.Period, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed entry repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `e.id, e.entry_number, e.account_id, e.entry_date, e.period_id, p.code,
e.debit, e.credit, e.memo, e.source_kind, e.source_id, e.is_posted, e.is_voided,
e.reversing_entry_id, e.posted_by, e.posted_at, e.created_at`

const entrySelect = `SELECT ` + entryColumns + ` FROM ledger_entries e JOIN accounting_periods p ON p.id = e.period_id`

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EntryNumber, &e.AccountID, &e.Date, &e.PeriodID, &e.PeriodCode,
			&e.Debit, &e.Credit, &e.Memo, &e.Source.Kind, &e.Source.ID, &e.IsPosted, &e.IsVoided,
			&e.ReversingEntryID, &e.PostedBy, &e.PostedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) GetSet(ctx context.Context, entryNumber int64) ([]Entry, error) {
	rows, err := r.db.Query(ctx, entrySelect+` WHERE e.entry_number=$1 ORDER BY e.id ASC`, entryNumber)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *repository) ListBySource(ctx context.Context, src SourceRef) ([]Entry, error) {
	rows, err := r.db.Query(ctx, entrySelect+`
JOIN source_links l ON l.entry_number = e.entry_number
WHERE l.source_kind=$1 AND l.source_id=$2 ORDER BY e.id ASC`, src.Kind, src.ID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	return mapConflict(err)
}

// mapConflict surfaces snapshot-isolation serialization failures as a
// retryable sentinel.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return shared.ErrConcurrencyConflict
	}
	return err
}

type txRepository struct {
	tx pgx.Tx
}

// NextEntryNumber pulls the next value from a database sequence. The
// allocator is the store's atomic counter; MAX()+1 is never used.
func (r *txRepository) NextEntryNumber(ctx context.Context) (int64, error) {
	var number int64
	err := r.tx.QueryRow(ctx, `SELECT nextval('ledger_entry_number_seq')`).Scan(&number)
	return number, err
}

func (r *txRepository) InsertSet(ctx context.Context, entryNumber int64, period periods.Period, in PostingInput) ([]Entry, error) {
	out := make([]Entry, 0, len(in.Lines))
	for _, line := range in.Lines {
		row := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries
(entry_number, account_id, entry_date, period_id, debit, credit, memo, source_kind, source_id, is_posted, posted_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE,$10)
RETURNING id, posted_at, created_at`,
			entryNumber, line.AccountID, in.Date, period.ID, line.Debit, line.Credit, in.Memo,
			in.Source.Kind, in.Source.ID, in.PostedBy)
		e := Entry{
			EntryNumber: entryNumber,
			AccountID:   line.AccountID,
			Date:        in.Date,
			PeriodID:    period.ID,
			PeriodCode:  period.Code,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Memo:        in.Memo,
			Source:      in.Source,
			IsPosted:    true,
			PostedBy:    in.PostedBy,
		}
		if err := row.Scan(&e.ID, &e.PostedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *txRepository) LinkSource(ctx context.Context, src SourceRef, entryNumber int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (source_kind, source_id, entry_number, posted_at)
VALUES ($1,$2,$3,NOW())`, src.Kind, src.ID, entryNumber)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrSourceConflict
		}
		return err
	}
	return nil
}

func (r *txRepository) GetSetForUpdate(ctx context.Context, entryNumber int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, entrySelect+` WHERE e.entry_number=$1 ORDER BY e.id ASC FOR UPDATE OF e`, entryNumber)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *txRepository) MarkVoided(ctx context.Context, originalID, reversingID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledger_entries
SET is_voided=TRUE, reversing_entry_id=$2 WHERE id=$1 AND NOT is_voided`, originalID, reversingID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyVoided
	}
	return nil
}

const periodColumns = `id, fiscal_year, period_no, code, start_date, end_date, status, locked_at, locked_by, lock_reason, created_at, updated_at`

func scanPeriod(row pgx.Row) (periods.Period, error) {
	var p periods.Period
	err := row.Scan(&p.ID, &p.FiscalYear, &p.PeriodNo, &p.Code, &p.StartDate, &p.EndDate, &p.Status,
		&p.LockedAt, &p.LockedBy, &p.LockReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, shared.ErrPeriodNotFound
		}
		return periods.Period{}, err
	}
	return p, nil
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, periodID int64) (periods.Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM accounting_periods WHERE id=$1 FOR UPDATE`, periodID))
}

func (r *txRepository) FindPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE $1 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR UPDATE`, date))
}

func (r *txRepository) FindEarliestOpenPeriod(ctx context.Context) (periods.Period, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+`
FROM accounting_periods WHERE status='OPEN' ORDER BY start_date ASC LIMIT 1 FOR UPDATE`))
}
