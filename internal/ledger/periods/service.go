package periods

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// AuditPort records period lifecycle actions.
type AuditPort interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Service drives the period lifecycle and enforces the posting lock
// contract for the rest of the ledger.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs a period Service.
func NewService(repo Repository, auditPort AuditPort) *Service {
	return &Service{repo: repo, audit: auditPort, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns a period by id.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.Get(ctx, id)
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// EnsureOpenForPosting resolves the period covering date and verifies it
// accepts postings. A period that exists but is not OPEN yields
// ErrPeriodLocked with its code so callers can surface an actionable reason.
func (s *Service) EnsureOpenForPosting(ctx context.Context, date time.Time) (Period, error) {
	period, err := s.repo.FindByDate(ctx, date)
	if err != nil {
		return Period{}, err
	}
	if period.Status != StatusOpen {
		return Period{}, fmt.Errorf("period %s is %s: %w", period.Code, strings.ToLower(string(period.Status)), shared.ErrPeriodLocked)
	}
	return period, nil
}

// BeginClose moves an OPEN period to CLOSING.
func (s *Service) BeginClose(ctx context.Context, periodID int64, actor string) (Period, error) {
	return s.transition(ctx, periodID, actor, "", StatusOpen, StatusClosing)
}

// CompleteClose moves a CLOSING period to CLOSED. The transition is gated
// on the global trial balance: if total debits and credits disagree the
// period stays CLOSING and the mismatch is surfaced, never forced through.
func (s *Service) CompleteClose(ctx context.Context, periodID int64, actor string) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.Status != StatusClosing {
			return shared.ErrInvalidPeriodTransition
		}
		debit, credit, err := tx.TrialBalanceTotals(ctx)
		if err != nil {
			return err
		}
		if !debit.Equal(credit) {
			return fmt.Errorf("debits %s != credits %s: %w", debit, credit, shared.ErrTrialBalanceMismatch)
		}
		now := s.now()
		lock := LockMeta{At: &now, By: &actor}
		if err := tx.UpdateStatus(ctx, periodID, StatusClosed, lock); err != nil {
			return err
		}
		period = current
		period.Status = StatusClosed
		period.LockedAt = lock.At
		period.LockedBy = lock.By
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordTransition(ctx, period, actor, StatusClosing, StatusClosed, "")
	return period, nil
}

// Reopen unlocks a CLOSED period. The reason is mandatory and lands in the
// audit trail as an explicit unlock action.
func (s *Service) Reopen(ctx context.Context, periodID int64, actor, reason string) (Period, error) {
	if strings.TrimSpace(reason) == "" {
		return Period{}, shared.ErrReasonRequired
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.Status != StatusClosed {
			return shared.ErrInvalidPeriodTransition
		}
		if err := tx.UpdateStatus(ctx, periodID, StatusOpen, LockMeta{Reason: &reason}); err != nil {
			return err
		}
		period = current
		period.Status = StatusOpen
		period.LockedAt = nil
		period.LockedBy = nil
		period.LockReason = &reason
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionPeriodUnlocked,
			Entity:   "accounting_period",
			EntityID: period.Code,
			Payload: audit.PeriodTransitionPayload{
				PeriodCode: period.Code,
				OldStatus:  string(StatusClosed),
				NewStatus:  string(StatusOpen),
				Reason:     reason,
			},
			OccurredAt: s.now(),
		})
	}
	return period, nil
}

func (s *Service) transition(ctx context.Context, periodID int64, actor, reason string, from, to Status) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.Status != from {
			return shared.ErrInvalidPeriodTransition
		}
		if err := tx.UpdateStatus(ctx, periodID, to, LockMeta{}); err != nil {
			return err
		}
		period = current
		period.Status = to
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	s.recordTransition(ctx, period, actor, from, to, reason)
	return period, nil
}

func (s *Service) recordTransition(ctx context.Context, period Period, actor string, from, to Status, reason string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionPeriodTransition,
		Entity:   "accounting_period",
		EntityID: period.Code,
		Payload: audit.PeriodTransitionPayload{
			PeriodCode: period.Code,
			OldStatus:  string(from),
			NewStatus:  string(to),
			Reason:     reason,
		},
		OccurredAt: s.now(),
	})
}
