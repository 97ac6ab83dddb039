package periods

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

type memoryPeriodRepo struct {
	periods map[int64]*Period
	debit   decimal.Decimal
	credit  decimal.Decimal
}

func newMemoryPeriodRepo(ps ...Period) *memoryPeriodRepo {
	r := &memoryPeriodRepo{periods: make(map[int64]*Period)}
	for i := range ps {
		p := ps[i]
		r.periods[p.ID] = &p
	}
	return r
}

func (r *memoryPeriodRepo) Get(ctx context.Context, id int64) (Period, error) {
	p, ok := r.periods[id]
	if !ok {
		return Period{}, shared.ErrPeriodNotFound
	}
	return *p, nil
}

func (r *memoryPeriodRepo) List(ctx context.Context) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryPeriodRepo) FindByDate(ctx context.Context, date time.Time) (Period, error) {
	for _, p := range r.periods {
		if p.Contains(date) {
			return *p, nil
		}
	}
	return Period{}, shared.ErrPeriodNotFound
}

func (r *memoryPeriodRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryPeriodRepo) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	return r.Get(ctx, id)
}

func (r *memoryPeriodRepo) UpdateStatus(ctx context.Context, id int64, status Status, lock LockMeta) error {
	p, ok := r.periods[id]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	p.Status = status
	p.LockedAt = lock.At
	p.LockedBy = lock.By
	p.LockReason = lock.Reason
	return nil
}

func (r *memoryPeriodRepo) TrialBalanceTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return r.debit, r.credit, nil
}

type auditRecorder struct {
	entries []audit.Entry
}

func (a *auditRecorder) Record(ctx context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

func monthPeriod(id int64, month time.Month, status Status) Period {
	start := time.Date(2026, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{
		ID:         id,
		FiscalYear: 2026,
		PeriodNo:   int(month),
		Code:       start.Format("2006-01"),
		StartDate:  start,
		EndDate:    start.AddDate(0, 1, -1),
		Status:     status,
	}
}

func TestEnsureOpenForPosting(t *testing.T) {
	repo := newMemoryPeriodRepo(
		monthPeriod(1, time.March, StatusOpen),
		monthPeriod(2, time.February, StatusClosed),
	)
	svc := NewService(repo, nil)

	period, err := svc.EnsureOpenForPosting(context.Background(), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(1), period.ID)

	_, err = svc.EnsureOpenForPosting(context.Background(), time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	_, err = svc.EnsureOpenForPosting(context.Background(), time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, shared.ErrPeriodNotFound)
}

func TestBeginClose(t *testing.T) {
	repo := newMemoryPeriodRepo(monthPeriod(1, time.March, StatusOpen))
	auditLog := &auditRecorder{}
	svc := NewService(repo, auditLog)

	period, err := svc.BeginClose(context.Background(), 1, "controller")
	require.NoError(t, err)
	require.Equal(t, StatusClosing, period.Status)

	require.Len(t, auditLog.entries, 1)
	require.Equal(t, audit.ActionPeriodTransition, auditLog.entries[0].Action)
	payload, ok := auditLog.entries[0].Payload.(audit.PeriodTransitionPayload)
	require.True(t, ok)
	require.Equal(t, string(StatusOpen), payload.OldStatus)
	require.Equal(t, string(StatusClosing), payload.NewStatus)
}

func TestBeginCloseRejectsWrongState(t *testing.T) {
	repo := newMemoryPeriodRepo(monthPeriod(1, time.March, StatusClosed))
	svc := NewService(repo, nil)

	_, err := svc.BeginClose(context.Background(), 1, "controller")
	require.ErrorIs(t, err, shared.ErrInvalidPeriodTransition)
}

func TestCompleteCloseBalanced(t *testing.T) {
	repo := newMemoryPeriodRepo(monthPeriod(1, time.March, StatusClosing))
	repo.debit = decimal.NewFromInt(5000)
	repo.credit = decimal.NewFromInt(5000)
	svc := NewService(repo, nil)

	frozen := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return frozen })

	period, err := svc.CompleteClose(context.Background(), 1, "controller")
	require.NoError(t, err)
	require.Equal(t, StatusClosed, period.Status)
	require.NotNil(t, period.LockedAt)
	require.True(t, period.LockedAt.Equal(frozen))
	require.NotNil(t, period.LockedBy)
	require.Equal(t, "controller", *period.LockedBy)
}

func TestCompleteCloseRefusesImbalance(t *testing.T) {
	repo := newMemoryPeriodRepo(monthPeriod(1, time.March, StatusClosing))
	repo.debit = decimal.NewFromInt(5000)
	repo.credit = decimal.NewFromInt(4990)
	svc := NewService(repo, nil)

	_, err := svc.CompleteClose(context.Background(), 1, "controller")
	require.ErrorIs(t, err, shared.ErrTrialBalanceMismatch)

	// Period must stay CLOSING so the imbalance can be fixed and the
	// close retried.
	current, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusClosing, current.Status)
}

func TestCompleteCloseRequiresClosingState(t *testing.T) {
	repo := newMemoryPeriodRepo(monthPeriod(1, time.March, StatusOpen))
	repo.debit = decimal.Zero
	repo.credit = decimal.Zero
	svc := NewService(repo, nil)

	_, err := svc.CompleteClose(context.Background(), 1, "controller")
	require.ErrorIs(t, err, shared.ErrInvalidPeriodTransition)
}

func TestReopen(t *testing.T) {
	closed := monthPeriod(1, time.March, StatusClosed)
	lockedAt := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	by := "controller"
	closed.LockedAt = &lockedAt
	closed.LockedBy = &by

	repo := newMemoryPeriodRepo(closed)
	auditLog := &auditRecorder{}
	svc := NewService(repo, auditLog)

	period, err := svc.Reopen(context.Background(), 1, "cfo", "late vendor invoice")
	require.NoError(t, err)
	require.Equal(t, StatusOpen, period.Status)
	require.Nil(t, period.LockedAt)
	require.Nil(t, period.LockedBy)
	require.NotNil(t, period.LockReason)
	require.Equal(t, "late vendor invoice", *period.LockReason)

	require.Len(t, auditLog.entries, 1)
	require.Equal(t, audit.ActionPeriodUnlocked, auditLog.entries[0].Action)
	payload, ok := auditLog.entries[0].Payload.(audit.PeriodTransitionPayload)
	require.True(t, ok)
	require.Equal(t, "late vendor invoice", payload.Reason)
}

func TestReopenRequiresReason(t *testing.T) {
	repo := newMemoryPeriodRepo(monthPeriod(1, time.March, StatusClosed))
	svc := NewService(repo, nil)

	_, err := svc.Reopen(context.Background(), 1, "cfo", "   ")
	require.ErrorIs(t, err, shared.ErrReasonRequired)
}

func TestReopenRequiresClosedState(t *testing.T) {
	repo := newMemoryPeriodRepo(monthPeriod(1, time.March, StatusOpen))
	svc := NewService(repo, nil)

	_, err := svc.Reopen(context.Background(), 1, "cfo", "reason")
	require.ErrorIs(t, err, shared.ErrInvalidPeriodTransition)
}
