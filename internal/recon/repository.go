package recon

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/ledger/shared"
	"github.com/meridianbooks/meridian/internal/platform/db"
)

// Repository encapsulates DB operations for reconciliations.
type Repository interface {
	Get(ctx context.Context, id int64) (Reconciliation, error)
	List(ctx context.Context, accountID int64) ([]Reconciliation, error)
	Create(ctx context.Context, in CreateInput) (Reconciliation, error)
	Lines(ctx context.Context, reconID int64) ([]StatementLine, error)
	// UnmatchedLinesAfter pages unmatched lines by ascending id so a bulk
	// match run can resume from a cursor.
	UnmatchedLinesAfter(ctx context.Context, reconID, afterID int64, limit int) ([]StatementLine, error)
	// Candidates returns unvoided, unmatched entries on the account inside
	// the statement window, cash-signed.
	Candidates(ctx context.Context, accountID int64, start, end time.Time) ([]CandidateEntry, error)
	Adjustments(ctx context.Context, reconID int64) ([]Adjustment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes operations inside a reconciliation transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Reconciliation, error)
	// InsertLines appends a statement batch. Callers run it inside WithTx
	// so a failed import leaves no partial statement behind.
	InsertLines(ctx context.Context, reconID int64, lines []LineInput) (int, error)
	UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time, rollbackReason *string) error
	UpdateBalances(ctx context.Context, id int64, book, cleared, difference decimal.Decimal) error
	AssignMatch(ctx context.Context, lineID, entryID int64, status MatchStatus) error
	ClearMatches(ctx context.Context, reconID int64) error
	LineForUpdate(ctx context.Context, lineID int64) (StatementLine, error)
	SetLineStatus(ctx context.Context, lineID int64, status MatchStatus) error
	InsertAdjustment(ctx context.Context, a Adjustment) (Adjustment, error)
	ClearedSum(ctx context.Context, reconID int64) (decimal.Decimal, error)
	BookBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error)
}

// CreateInput starts a reconciliation for one account and statement window.
type CreateInput struct {
	AccountID        int64
	StatementStart   time.Time
	StatementEnd     time.Time
	StatementBalance decimal.Decimal
	CreatedBy        string
}

// LineInput is one imported statement row.
type LineInput struct {
	LineDate    time.Time
	Amount      decimal.Decimal
	Description string
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed reconciliation repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const reconColumns = `id, account_id, statement_start, statement_end, statement_balance, book_balance,
cleared_balance, difference, status, created_by, completed_at, rollback_reason, created_at, updated_at`

func scanRecon(row pgx.Row) (Reconciliation, error) {
	var r Reconciliation
	err := row.Scan(&r.ID, &r.AccountID, &r.StatementStart, &r.StatementEnd, &r.StatementBalance,
		&r.BookBalance, &r.ClearedBalance, &r.Difference, &r.Status, &r.CreatedBy,
		&r.CompletedAt, &r.RollbackReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reconciliation{}, shared.ErrNotFound
		}
		return Reconciliation{}, err
	}
	return r, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Reconciliation, error) {
	return scanRecon(r.db.QueryRow(ctx, `SELECT `+reconColumns+` FROM bank_reconciliations WHERE id=$1`, id))
}

func (r *repository) List(ctx context.Context, accountID int64) ([]Reconciliation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reconColumns+`
FROM bank_reconciliations WHERE account_id=$1 ORDER BY statement_start DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Reconciliation
	for rows.Next() {
		rec, err := scanRecon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Reconciliation, error) {
	return scanRecon(r.db.QueryRow(ctx, `INSERT INTO bank_reconciliations
(account_id, statement_start, statement_end, statement_balance, book_balance, cleared_balance, difference, status, created_by)
VALUES ($1,$2,$3,$4,0,0,$4,'IN_PROGRESS',$5) RETURNING `+reconColumns,
		in.AccountID, in.StatementStart, in.StatementEnd, in.StatementBalance, in.CreatedBy))
}

const lineColumns = `id, reconciliation_id, line_date, amount, description, match_status, matched_entry_id, created_at`

func scanLines(rows pgx.Rows) ([]StatementLine, error) {
	defer rows.Close()
	var out []StatementLine
	for rows.Next() {
		var l StatementLine
		if err := rows.Scan(&l.ID, &l.ReconciliationID, &l.LineDate, &l.Amount, &l.Description,
			&l.MatchStatus, &l.MatchedEntryID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) Lines(ctx context.Context, reconID int64) ([]StatementLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+`
FROM bank_statement_lines WHERE reconciliation_id=$1 ORDER BY line_date ASC, id ASC`, reconID)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *repository) UnmatchedLinesAfter(ctx context.Context, reconID, afterID int64, limit int) ([]StatementLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+`
FROM bank_statement_lines
WHERE reconciliation_id=$1 AND match_status='UNMATCHED' AND id > $2
ORDER BY id ASC LIMIT $3`, reconID, afterID, limit)
	if err != nil {
		return nil, err
	}
	return scanLines(rows)
}

func (r *repository) Candidates(ctx context.Context, accountID int64, start, end time.Time) ([]CandidateEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.entry_date, e.debit - e.credit
FROM ledger_entries e
WHERE e.account_id=$1 AND e.entry_date BETWEEN $2 AND $3 AND NOT e.is_voided
  AND NOT EXISTS (SELECT 1 FROM bank_statement_lines l WHERE l.matched_entry_id = e.id)
ORDER BY e.entry_date ASC, e.id ASC`, accountID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CandidateEntry
	for rows.Next() {
		var c CandidateEntry
		if err := rows.Scan(&c.EntryID, &c.Date, &c.Amount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Adjustments(ctx context.Context, reconID int64) ([]Adjustment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, reconciliation_id, amount, debit_account_id, credit_account_id, memo, entry_number, created_at
FROM reconciliation_adjustments WHERE reconciliation_id=$1 ORDER BY id ASC`, reconID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Adjustment
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(&a.ID, &a.ReconciliationID, &a.Amount, &a.DebitAccountID, &a.CreditAccountID,
			&a.Memo, &a.EntryNumber, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Reconciliation, error) {
	return scanRecon(r.tx.QueryRow(ctx, `SELECT `+reconColumns+` FROM bank_reconciliations WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) InsertLines(ctx context.Context, reconID int64, lines []LineInput) (int, error) {
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO bank_statement_lines
(reconciliation_id, line_date, amount, description, match_status)
VALUES ($1,$2,$3,$4,'UNMATCHED')`, reconID, line.LineDate, line.Amount, line.Description)
		if err != nil {
			return 0, err
		}
	}
	return len(lines), nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time, rollbackReason *string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bank_reconciliations
SET status=$2, completed_at=$3, rollback_reason=COALESCE($4, rollback_reason), updated_at=NOW() WHERE id=$1`,
		id, status, completedAt, rollbackReason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateBalances(ctx context.Context, id int64, book, cleared, difference decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_reconciliations
SET book_balance=$2, cleared_balance=$3, difference=$4, updated_at=NOW() WHERE id=$1`, id, book, cleared, difference)
	return err
}

// AssignMatch binds one line to one entry. The partial unique index on
// matched_entry_id makes double assignment impossible even across
// concurrent runs; the status predicate keeps the line single-use too.
func (r *txRepository) AssignMatch(ctx context.Context, lineID, entryID int64, status MatchStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bank_statement_lines
SET match_status=$2, matched_entry_id=$3 WHERE id=$1 AND match_status='UNMATCHED'`, lineID, status, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrState
	}
	return nil
}

func (r *txRepository) ClearMatches(ctx context.Context, reconID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE bank_statement_lines
SET match_status='UNMATCHED', matched_entry_id=NULL
WHERE reconciliation_id=$1 AND match_status IN ('AUTO_MATCHED','MANUALLY_MATCHED')`, reconID)
	return err
}

func (r *txRepository) LineForUpdate(ctx context.Context, lineID int64) (StatementLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM bank_statement_lines WHERE id=$1 FOR UPDATE`, lineID)
	if err != nil {
		return StatementLine{}, err
	}
	lines, err := scanLines(rows)
	if err != nil {
		return StatementLine{}, err
	}
	if len(lines) == 0 {
		return StatementLine{}, shared.ErrNotFound
	}
	return lines[0], nil
}

func (r *txRepository) SetLineStatus(ctx context.Context, lineID int64, status MatchStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bank_statement_lines
SET match_status=$2, matched_entry_id=CASE WHEN $2='UNMATCHED' OR $2='EXCLUDED' THEN NULL ELSE matched_entry_id END
WHERE id=$1`, lineID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertAdjustment(ctx context.Context, a Adjustment) (Adjustment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO reconciliation_adjustments
(reconciliation_id, amount, debit_account_id, credit_account_id, memo, entry_number)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		a.ReconciliationID, a.Amount, a.DebitAccountID, a.CreditAccountID, a.Memo, a.EntryNumber).
		Scan(&a.ID, &a.CreatedAt)
	return a, err
}

func (r *txRepository) ClearedSum(ctx context.Context, reconID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(e.debit - e.credit),0)
FROM bank_statement_lines l JOIN ledger_entries e ON e.id = l.matched_entry_id
WHERE l.reconciliation_id=$1 AND l.match_status IN ('AUTO_MATCHED','MANUALLY_MATCHED')`, reconID).Scan(&sum)
	return sum, err
}

func (r *txRepository) BookBalance(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit),0)
FROM ledger_entries WHERE account_id=$1 AND entry_date <= $2 AND NOT is_voided`, accountID, asOf).Scan(&sum)
	return sum, err
}
