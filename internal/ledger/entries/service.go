package entries

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/accounts"
	"github.com/meridianbooks/meridian/internal/ledger/periods"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// AuditPort records posting and void actions.
type AuditPort interface {
	Record(ctx context.Context, e audit.Entry) error
}

// AccountGuard verifies an account may receive entries.
type AccountGuard interface {
	EnsurePostable(ctx context.Context, id int64) (accounts.Account, error)
}

// MetricsPort increments posting counters.
type MetricsPort interface {
	EntryPosted()
	EntryVoided()
}

// Service is the single write gate to the ledger. Every entry set goes
// through Post; Void produces offsetting sets and never mutates amounts.
type Service struct {
	repo     Repository
	accounts AccountGuard
	audit    AuditPort
	metrics  MetricsPort
	now      func() time.Time
}

// NewService constructs the posting service.
func NewService(repo Repository, accountGuard AccountGuard, auditPort AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, accounts: accountGuard, audit: auditPort, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetSet returns all lines sharing an entry number.
func (s *Service) GetSet(ctx context.Context, entryNumber int64) ([]Entry, error) {
	set, err := s.repo.GetSet(ctx, entryNumber)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, shared.ErrNotFound
	}
	return set, nil
}

// ListBySource returns the entries previously posted for a document, if any.
func (s *Service) ListBySource(ctx context.Context, src SourceRef) ([]Entry, error) {
	return s.repo.ListBySource(ctx, src)
}

// Post validates and persists one balanced entry set atomically:
// period check, balance check, sequence-allocated entry number, source
// link, audit row. Posting the same source twice returns the first
// result instead of creating duplicates.
func (s *Service) Post(ctx context.Context, in PostingInput) (PostResult, error) {
	if err := in.Validate(); err != nil {
		return PostResult{}, err
	}
	if s.accounts != nil {
		for _, line := range in.Lines {
			if _, err := s.accounts.EnsurePostable(ctx, line.AccountID); err != nil {
				return PostResult{}, fmt.Errorf("account %d: %w", line.AccountID, err)
			}
		}
	}

	prior, err := s.repo.ListBySource(ctx, in.Source)
	if err != nil {
		return PostResult{}, err
	}
	if len(prior) > 0 {
		return priorResult(prior), nil
	}

	var result PostResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.FindPeriodByDate(ctx, in.Date)
		if err != nil {
			return err
		}
		if period.Status != periods.StatusOpen {
			return fmt.Errorf("period %s is %s: %w", period.Code, strings.ToLower(string(period.Status)), shared.ErrPeriodLocked)
		}
		number, err := tx.NextEntryNumber(ctx)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertSet(ctx, number, period, in)
		if err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, in.Source, number); err != nil {
			return err
		}
		result = PostResult{EntryNumber: number, EntryIDs: ids(inserted)}
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrSourceConflict) {
			// Lost the race to a concurrent poster; their set is ours.
			prior, readErr := s.repo.ListBySource(ctx, in.Source)
			if readErr == nil && len(prior) > 0 {
				return priorResult(prior), nil
			}
		}
		return PostResult{}, err
	}

	s.recordPosted(ctx, in, result)
	if s.metrics != nil {
		s.metrics.EntryPosted()
	}
	return result, nil
}

// Void creates the offsetting entry set for a posted entry, links every
// original line to its reversing line, and marks the set voided. The
// reversal posts into the original period while it is open, otherwise
// into the earliest open period; with no open period the void fails.
func (s *Service) Void(ctx context.Context, in VoidInput) (VoidResult, error) {
	if in.EntryNumber == 0 {
		return VoidResult{}, fmt.Errorf("ledger: entry number required")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return VoidResult{}, shared.ErrReasonRequired
	}

	var result VoidResult
	var reversalInput PostingInput
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetSetForUpdate(ctx, in.EntryNumber)
		if err != nil {
			return err
		}
		if len(original) == 0 {
			return shared.ErrNotFound
		}
		for _, line := range original {
			if line.IsVoided {
				return shared.ErrAlreadyVoided
			}
		}

		originalPeriod, err := tx.GetPeriodForUpdate(ctx, original[0].PeriodID)
		if err != nil {
			return err
		}
		targetPeriod := originalPeriod
		targetDate := original[0].Date
		if originalPeriod.Status != periods.StatusOpen {
			open, err := tx.FindEarliestOpenPeriod(ctx)
			if err != nil {
				if errors.Is(err, shared.ErrPeriodNotFound) {
					return fmt.Errorf("period %s is closed and no open period can host the reversal: %w",
						originalPeriod.Code, shared.ErrPeriodLocked)
				}
				return err
			}
			targetPeriod = open
			targetDate = open.StartDate
		}

		reversalInput = reversalOf(original, targetDate, in)
		if err := reversalInput.Validate(); err != nil {
			return fmt.Errorf("ledger: reversal does not balance: %w", err)
		}
		number, err := tx.NextEntryNumber(ctx)
		if err != nil {
			return err
		}
		reversal, err := tx.InsertSet(ctx, number, targetPeriod, reversalInput)
		if err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, reversalInput.Source, number); err != nil {
			return err
		}
		// Reversal lines are inserted in original line order, so the two
		// sets pair index-for-index.
		for i, line := range original {
			if err := tx.MarkVoided(ctx, line.ID, reversal[i].ID); err != nil {
				return err
			}
		}
		result = VoidResult{
			EntryNumber:    in.EntryNumber,
			ReversalNumber: number,
			ReversalIDs:    ids(reversal),
		}
		return nil
	})
	if err != nil {
		return VoidResult{}, err
	}

	s.recordPosted(ctx, reversalInput, PostResult{EntryNumber: result.ReversalNumber, EntryIDs: result.ReversalIDs})
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			Actor:    in.Actor,
			Action:   audit.ActionEntryVoided,
			Entity:   "ledger_entry",
			EntityID: strconv.FormatInt(in.EntryNumber, 10),
			Payload: audit.EntryVoidedPayload{
				EntryNumber:    in.EntryNumber,
				ReversalNumber: result.ReversalNumber,
				Reason:         in.Reason,
			},
			OccurredAt: s.now(),
		})
	}
	if s.metrics != nil {
		s.metrics.EntryVoided()
	}
	return result, nil
}

// reversalOf swaps the debit and credit role of every original line.
func reversalOf(original []Entry, date time.Time, in VoidInput) PostingInput {
	lines := make([]LineInput, 0, len(original))
	for _, line := range original {
		lines = append(lines, LineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
		})
	}
	return PostingInput{
		Date:     date,
		Source:   SourceRef{Kind: SourceReversal, ID: uuid.New()},
		Memo:     fmt.Sprintf("Reversal of entry %d: %s", original[0].EntryNumber, in.Reason),
		PostedBy: in.Actor,
		Lines:    lines,
	}
}

func (s *Service) recordPosted(ctx context.Context, in PostingInput, result PostResult) {
	if s.audit == nil {
		return
	}
	debit, credit := in.Totals()
	accountIDs := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		accountIDs = append(accountIDs, line.AccountID)
	}
	_ = s.audit.Record(ctx, audit.Entry{
		Actor:    in.PostedBy,
		Action:   audit.ActionEntryPosted,
		Entity:   "ledger_entry",
		EntityID: strconv.FormatInt(result.EntryNumber, 10),
		Payload: audit.EntryPostedPayload{
			EntryNumber: result.EntryNumber,
			EntryIDs:    result.EntryIDs,
			SourceKind:  string(in.Source.Kind),
			SourceID:    in.Source.ID.String(),
			TotalDebit:  debit.String(),
			TotalCredit: credit.String(),
			Accounts:    accountIDs,
		},
		OccurredAt: s.now(),
	})
}

func priorResult(prior []Entry) PostResult {
	return PostResult{EntryNumber: prior[0].EntryNumber, EntryIDs: ids(prior), AlreadyPosted: true}
}

func ids(set []Entry) []int64 {
	out := make([]int64, 0, len(set))
	for _, e := range set {
		out = append(out, e.ID)
	}
	return out
}
