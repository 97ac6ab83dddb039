package recon

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// AuditPort records reconciliation actions.
type AuditPort interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Poster posts adjustment entries through the ledger's write gate.
type Poster interface {
	Post(ctx context.Context, in entries.PostingInput) (entries.PostResult, error)
}

// MetricsPort increments reconciliation counters.
type MetricsPort interface {
	ReconciliationCompleted()
}

// DefaultMatchBatchSize bounds how many statement lines one auto-match
// transaction touches.
const DefaultMatchBatchSize = 200

// Service drives the reconciliation state machine.
type Service struct {
	repo      Repository
	audit     AuditPort
	poster    Poster
	progress  *ProgressTracker
	metrics   MetricsPort
	batchSize int
	now       func() time.Time
}

// NewService constructs a reconciliation Service.
func NewService(repo Repository, auditPort AuditPort, poster Poster, progress *ProgressTracker, metrics MetricsPort) *Service {
	return &Service{
		repo:      repo,
		audit:     auditPort,
		poster:    poster,
		progress:  progress,
		metrics:   metrics,
		batchSize: DefaultMatchBatchSize,
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithBatchSize overrides the auto-match batch bound.
func (s *Service) WithBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// Get returns one reconciliation.
func (s *Service) Get(ctx context.Context, id int64) (Reconciliation, error) {
	return s.repo.Get(ctx, id)
}

// List returns reconciliations for an account, newest first.
func (s *Service) List(ctx context.Context, accountID int64) ([]Reconciliation, error) {
	return s.repo.List(ctx, accountID)
}

// Lines returns the statement lines of a reconciliation.
func (s *Service) Lines(ctx context.Context, reconID int64) ([]StatementLine, error) {
	return s.repo.Lines(ctx, reconID)
}

// Start opens a reconciliation for one account and statement window.
func (s *Service) Start(ctx context.Context, in CreateInput) (Reconciliation, error) {
	if in.AccountID == 0 {
		return Reconciliation{}, fmt.Errorf("recon: account required")
	}
	if in.StatementStart.IsZero() || in.StatementEnd.IsZero() || in.StatementStart.After(in.StatementEnd) {
		return Reconciliation{}, fmt.Errorf("recon: invalid statement window")
	}
	rec, err := s.repo.Create(ctx, in)
	if err != nil {
		return Reconciliation{}, err
	}
	s.recordTransition(ctx, rec, in.CreatedBy, "", StatusInProgress, "")
	return rec, nil
}

// ImportLines appends statement lines to an in-progress reconciliation.
// The whole batch lands in one transaction; a failed import inserts
// nothing, so a retry never duplicates the head of the statement.
// An empty statement is legal; it simply leaves nothing to match.
func (s *Service) ImportLines(ctx context.Context, reconID int64, lines []LineInput, actor string) (int, error) {
	rec, err := s.repo.Get(ctx, reconID)
	if err != nil {
		return 0, err
	}
	if rec.Status != StatusInProgress {
		return 0, fmt.Errorf("reconciliation is %s: %w", rec.Status, ErrState)
	}
	count := 0
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		count, err = tx.InsertLines(ctx, reconID, lines)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AutoMatch pairs unmatched statement lines against unmatched ledger
// entries by amount, walking the statement in bounded batches. Every
// batch commits independently and advances a Redis cursor, so an
// interrupted run resumes where it stopped. Matching is deterministic;
// identical inputs yield identical pairings.
func (s *Service) AutoMatch(ctx context.Context, reconID int64, actor string) (int, error) {
	rec, err := s.repo.Get(ctx, reconID)
	if err != nil {
		return 0, err
	}
	if rec.Status != StatusInProgress {
		return 0, fmt.Errorf("reconciliation is %s: %w", rec.Status, ErrState)
	}

	cursor, err := s.progress.Cursor(ctx, reconID)
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		lines, err := s.repo.UnmatchedLinesAfter(ctx, reconID, cursor, s.batchSize)
		if err != nil {
			return total, err
		}
		if len(lines) == 0 {
			break
		}
		candidates, err := s.repo.Candidates(ctx, rec.AccountID, rec.StatementStart, rec.StatementEnd)
		if err != nil {
			return total, err
		}
		matches := matchLines(lines, candidates)

		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			for _, m := range matches {
				if err := tx.AssignMatch(ctx, m.LineID, m.EntryID, MatchAuto); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, err
		}
		total += len(matches)

		cursor = lines[len(lines)-1].ID
		if err := s.progress.Advance(ctx, reconID, cursor); err != nil {
			return total, err
		}
	}

	if err := s.progress.Reset(ctx, reconID); err != nil {
		return total, err
	}
	if _, err := s.RefreshBalances(ctx, reconID); err != nil {
		return total, err
	}
	if s.audit != nil && total > 0 {
		_ = s.audit.Record(ctx, audit.Entry{
			Actor:      actor,
			Action:     audit.ActionReconMatched,
			Entity:     "bank_reconciliation",
			EntityID:   strconv.FormatInt(reconID, 10),
			Payload:    audit.ReconMatchedPayload{ReconciliationID: reconID, Matched: total},
			OccurredAt: s.now(),
		})
	}
	return total, nil
}

// MatchManually binds one statement line to one ledger entry by operator
// decision.
func (s *Service) MatchManually(ctx context.Context, reconID, lineID, entryID int64, actor string) error {
	rec, err := s.repo.Get(ctx, reconID)
	if err != nil {
		return err
	}
	if rec.Status != StatusInProgress {
		return fmt.Errorf("reconciliation is %s: %w", rec.Status, ErrState)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.LineForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if line.ReconciliationID != reconID {
			return shared.ErrNotFound
		}
		if line.MatchStatus != MatchUnmatched {
			return fmt.Errorf("line already %s: %w", line.MatchStatus, ErrState)
		}
		return tx.AssignMatch(ctx, lineID, entryID, MatchManual)
	})
	if err != nil {
		return err
	}
	if _, err := s.RefreshBalances(ctx, reconID); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			Actor:      actor,
			Action:     audit.ActionReconMatched,
			Entity:     "bank_reconciliation",
			EntityID:   strconv.FormatInt(reconID, 10),
			Payload:    audit.ReconMatchedPayload{ReconciliationID: reconID, Matched: 1, Manual: true},
			OccurredAt: s.now(),
		})
	}
	return nil
}

// ExcludeLine marks a statement line as not-ours (bank errors, duplicate
// feeds). Excluded lines don't block completion.
func (s *Service) ExcludeLine(ctx context.Context, reconID, lineID int64, actor string) error {
	rec, err := s.repo.Get(ctx, reconID)
	if err != nil {
		return err
	}
	if rec.Status != StatusInProgress {
		return fmt.Errorf("reconciliation is %s: %w", rec.Status, ErrState)
	}
	var excluded StatementLine
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		line, err := tx.LineForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if line.ReconciliationID != reconID {
			return shared.ErrNotFound
		}
		excluded = line
		return tx.SetLineStatus(ctx, lineID, MatchExcluded)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionReconLineExcluded,
			Entity:   "bank_reconciliation",
			EntityID: strconv.FormatInt(reconID, 10),
			Payload: audit.ReconLineExcludedPayload{
				ReconciliationID: reconID,
				LineID:           lineID,
				Description:      excluded.Description,
			},
			OccurredAt: s.now(),
		})
	}
	return nil
}

// RefreshBalances recomputes cleared balance (matched entries), book
// balance (account as of statement end) and the difference
// (statement balance minus cleared balance).
func (s *Service) RefreshBalances(ctx context.Context, reconID int64) (Reconciliation, error) {
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		cleared, err := tx.ClearedSum(ctx, reconID)
		if err != nil {
			return err
		}
		book, err := tx.BookBalance(ctx, current.AccountID, current.StatementEnd)
		if err != nil {
			return err
		}
		difference := current.StatementBalance.Sub(cleared)
		if err := tx.UpdateBalances(ctx, reconID, book, cleared, difference); err != nil {
			return err
		}
		rec = current
		rec.BookBalance = book
		rec.ClearedBalance = cleared
		rec.Difference = difference
		return nil
	})
	return rec, err
}

// ClearedBalance returns the current cleared sum for a reconciliation.
func (s *Service) ClearedBalance(ctx context.Context, reconID int64) (decimal.Decimal, error) {
	rec, err := s.RefreshBalances(ctx, reconID)
	if err != nil {
		return decimal.Zero, err
	}
	return rec.ClearedBalance, nil
}

// MarkReconciled moves an in-progress reconciliation to RECONCILED. The
// transition requires a zero difference, reached naturally or through
// adjustments.
func (s *Service) MarkReconciled(ctx context.Context, reconID int64, actor string) (Reconciliation, error) {
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		if current.Status != StatusInProgress {
			return fmt.Errorf("reconciliation is %s: %w", current.Status, ErrState)
		}
		cleared, err := tx.ClearedSum(ctx, reconID)
		if err != nil {
			return err
		}
		difference := current.StatementBalance.Sub(cleared)
		if !difference.IsZero() {
			return fmt.Errorf("unresolved difference %s: %w", difference, ErrState)
		}
		book, err := tx.BookBalance(ctx, current.AccountID, current.StatementEnd)
		if err != nil {
			return err
		}
		if err := tx.UpdateBalances(ctx, reconID, book, cleared, difference); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, reconID, StatusReconciled, nil, nil); err != nil {
			return err
		}
		rec = current
		rec.Status = StatusReconciled
		rec.BookBalance = book
		rec.ClearedBalance = cleared
		rec.Difference = difference
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.recordTransition(ctx, rec, actor, StatusInProgress, StatusReconciled, "")
	return rec, nil
}

// Complete finalizes a RECONCILED reconciliation. Completion is a
// commitment; undoing it afterwards takes the explicit rollback path.
func (s *Service) Complete(ctx context.Context, reconID int64, actor string) (Reconciliation, error) {
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		if current.Status != StatusReconciled {
			return fmt.Errorf("reconciliation is %s: %w", current.Status, ErrState)
		}
		if !current.Difference.IsZero() {
			return fmt.Errorf("unresolved difference %s: %w", current.Difference, ErrState)
		}
		completedAt := s.now()
		if err := tx.UpdateStatus(ctx, reconID, StatusCompleted, &completedAt, nil); err != nil {
			return err
		}
		rec = current
		rec.Status = StatusCompleted
		rec.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.recordTransition(ctx, rec, actor, StatusReconciled, StatusCompleted, "")
	if s.metrics != nil {
		s.metrics.ReconciliationCompleted()
	}
	return rec, nil
}

// Cancel abandons an in-progress reconciliation, releasing every match
// back to unmatched. Ledger entries are untouched.
func (s *Service) Cancel(ctx context.Context, reconID int64, actor string) (Reconciliation, error) {
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		if current.Status != StatusInProgress {
			return fmt.Errorf("reconciliation is %s: %w", current.Status, ErrState)
		}
		if err := tx.ClearMatches(ctx, reconID); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, reconID, StatusCancelled, nil, nil); err != nil {
			return err
		}
		rec = current
		rec.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	_ = s.progress.Reset(ctx, reconID)
	s.recordTransition(ctx, rec, actor, StatusInProgress, StatusCancelled, "")
	return rec, nil
}

// Rollback unwinds a completed reconciliation. It is privileged, audited,
// requires a reason, and leaves the underlying postings alone.
func (s *Service) Rollback(ctx context.Context, reconID int64, actor, reason string) (Reconciliation, error) {
	if strings.TrimSpace(reason) == "" {
		return Reconciliation{}, shared.ErrReasonRequired
	}
	var rec Reconciliation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, reconID)
		if err != nil {
			return err
		}
		if current.Status != StatusCompleted {
			return fmt.Errorf("reconciliation is %s: %w", current.Status, ErrState)
		}
		if err := tx.UpdateStatus(ctx, reconID, StatusRolledBack, current.CompletedAt, &reason); err != nil {
			return err
		}
		rec = current
		rec.Status = StatusRolledBack
		rec.RollbackReason = &reason
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	s.recordTransition(ctx, rec, actor, StatusCompleted, StatusRolledBack, reason)
	return rec, nil
}

// AdjustmentInput describes a residual-difference adjustment.
type AdjustmentInput struct {
	ReconciliationID int64
	Amount           decimal.Decimal
	DebitAccountID   int64
	CreditAccountID  int64
	Memo             string
	Actor            string
}

// PostAdjustment posts a balanced entry pair for a residual difference
// (bank fee, interest, NSF, correction) and records it against the
// reconciliation, then refreshes balances.
func (s *Service) PostAdjustment(ctx context.Context, in AdjustmentInput) (Adjustment, error) {
	if !in.Amount.IsPositive() {
		return Adjustment{}, fmt.Errorf("adjustment amount: %w", shared.ErrAmountNotPositive)
	}
	if in.DebitAccountID == 0 || in.CreditAccountID == 0 {
		return Adjustment{}, fmt.Errorf("recon: debit and credit accounts required")
	}
	rec, err := s.repo.Get(ctx, in.ReconciliationID)
	if err != nil {
		return Adjustment{}, err
	}
	if rec.Status != StatusInProgress {
		return Adjustment{}, fmt.Errorf("reconciliation is %s: %w", rec.Status, ErrState)
	}

	memo := in.Memo
	if memo == "" {
		memo = fmt.Sprintf("Reconciliation %d adjustment", rec.ID)
	}
	result, err := s.poster.Post(ctx, entries.PostingInput{
		Date:     rec.StatementEnd,
		Source:   entries.SourceRef{Kind: entries.SourceAdjustment, ID: uuid.New()},
		Memo:     memo,
		PostedBy: in.Actor,
		Lines: []entries.LineInput{
			{AccountID: in.DebitAccountID, Debit: in.Amount},
			{AccountID: in.CreditAccountID, Credit: in.Amount},
		},
	})
	if err != nil {
		return Adjustment{}, err
	}

	var adjustment Adjustment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		adjustment, err = tx.InsertAdjustment(ctx, Adjustment{
			ReconciliationID: rec.ID,
			Amount:           in.Amount,
			DebitAccountID:   in.DebitAccountID,
			CreditAccountID:  in.CreditAccountID,
			Memo:             memo,
			EntryNumber:      result.EntryNumber,
		})
		return err
	})
	if err != nil {
		return Adjustment{}, err
	}
	if _, err := s.RefreshBalances(ctx, rec.ID); err != nil {
		return Adjustment{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			Actor:    in.Actor,
			Action:   audit.ActionAdjustmentPosted,
			Entity:   "bank_reconciliation",
			EntityID: strconv.FormatInt(rec.ID, 10),
			Payload: audit.AdjustmentPostedPayload{
				ReconciliationID: rec.ID,
				EntryNumber:      result.EntryNumber,
				Amount:           in.Amount.String(),
				Memo:             memo,
			},
			OccurredAt: s.now(),
		})
	}
	return adjustment, nil
}

func (s *Service) recordTransition(ctx context.Context, rec Reconciliation, actor string, from, to Status, reason string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionReconTransition,
		Entity:   "bank_reconciliation",
		EntityID: strconv.FormatInt(rec.ID, 10),
		Payload: audit.ReconTransitionPayload{
			ReconciliationID: rec.ID,
			OldStatus:        string(from),
			NewStatus:        string(to),
			Difference:       rec.Difference.String(),
			Reason:           reason,
		},
		OccurredAt: s.now(),
	})
}
