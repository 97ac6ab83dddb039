package entries

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/accounts"
	"github.com/meridianbooks/meridian/internal/ledger/periods"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

type memoryLedgerRepo struct {
	periods     []periods.Period
	entries     []Entry
	sourceLinks map[SourceRef]int64
	nextNumber  int64
	nextID      int64

	// When positive, ListBySource pretends the link is not there yet.
	// Simulates a concurrent poster committing between the prior check
	// and the insert transaction.
	suppressPriorLookups int
}

func newMemoryLedgerRepo(ps ...periods.Period) *memoryLedgerRepo {
	return &memoryLedgerRepo{periods: ps, sourceLinks: make(map[SourceRef]int64)}
}

func (r *memoryLedgerRepo) GetSet(ctx context.Context, entryNumber int64) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.EntryNumber == entryNumber {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryLedgerRepo) ListBySource(ctx context.Context, src SourceRef) ([]Entry, error) {
	if r.suppressPriorLookups > 0 {
		r.suppressPriorLookups--
		return nil, nil
	}
	number, ok := r.sourceLinks[src]
	if !ok {
		return nil, nil
	}
	return r.GetSet(ctx, number)
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapEntries := append([]Entry(nil), r.entries...)
	snapLinks := make(map[SourceRef]int64, len(r.sourceLinks))
	for k, v := range r.sourceLinks {
		snapLinks[k] = v
	}
	snapNumber, snapID := r.nextNumber, r.nextID
	if err := fn(ctx, r); err != nil {
		r.entries = snapEntries
		r.sourceLinks = snapLinks
		r.nextNumber, r.nextID = snapNumber, snapID
		return err
	}
	return nil
}

func (r *memoryLedgerRepo) NextEntryNumber(ctx context.Context) (int64, error) {
	r.nextNumber++
	return r.nextNumber, nil
}

func (r *memoryLedgerRepo) InsertSet(ctx context.Context, entryNumber int64, period periods.Period, in PostingInput) ([]Entry, error) {
	out := make([]Entry, 0, len(in.Lines))
	for _, line := range in.Lines {
		r.nextID++
		e := Entry{
			ID:          r.nextID,
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
			PostedAt:    time.Now(),
			CreatedAt:   time.Now(),
		}
		r.entries = append(r.entries, e)
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryLedgerRepo) LinkSource(ctx context.Context, src SourceRef, entryNumber int64) error {
	if _, exists := r.sourceLinks[src]; exists {
		return shared.ErrSourceConflict
	}
	r.sourceLinks[src] = entryNumber
	return nil
}

func (r *memoryLedgerRepo) GetSetForUpdate(ctx context.Context, entryNumber int64) ([]Entry, error) {
	return r.GetSet(ctx, entryNumber)
}

func (r *memoryLedgerRepo) MarkVoided(ctx context.Context, originalID, reversingID int64) error {
	for i := range r.entries {
		if r.entries[i].ID == originalID {
			if r.entries[i].IsVoided {
				return shared.ErrAlreadyVoided
			}
			r.entries[i].IsVoided = true
			id := reversingID
			r.entries[i].ReversingEntryID = &id
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryLedgerRepo) GetPeriodForUpdate(ctx context.Context, periodID int64) (periods.Period, error) {
	for _, p := range r.periods {
		if p.ID == periodID {
			return p, nil
		}
	}
	return periods.Period{}, shared.ErrPeriodNotFound
}

func (r *memoryLedgerRepo) FindPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error) {
	for _, p := range r.periods {
		if p.Contains(date) {
			return p, nil
		}
	}
	return periods.Period{}, shared.ErrPeriodNotFound
}

func (r *memoryLedgerRepo) FindEarliestOpenPeriod(ctx context.Context) (periods.Period, error) {
	for _, p := range r.periods {
		if p.Status == periods.StatusOpen {
			return p, nil
		}
	}
	return periods.Period{}, shared.ErrPeriodNotFound
}

func (r *memoryLedgerRepo) setPeriodStatus(id int64, status periods.Status) {
	for i := range r.periods {
		if r.periods[i].ID == id {
			r.periods[i].Status = status
		}
	}
}

type allowAllGuard struct{}

func (allowAllGuard) EnsurePostable(ctx context.Context, id int64) (accounts.Account, error) {
	return accounts.Account{ID: id, Active: true}, nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (a *recordingAudit) Record(ctx context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

type countingMetrics struct {
	posted int
	voided int
}

func (m *countingMetrics) EntryPosted() { m.posted++ }
func (m *countingMetrics) EntryVoided() { m.voided++ }

func testPeriod(id int64, year int, month time.Month, status periods.Status) periods.Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return periods.Period{
		ID:         id,
		FiscalYear: year,
		PeriodNo:   int(month),
		Code:       start.Format("2006-01"),
		StartDate:  start,
		EndDate:    start.AddDate(0, 1, -1),
		Status:     status,
	}
}

func balancedInput(src SourceRef, date time.Time) PostingInput {
	return PostingInput{
		Date:     date,
		Source:   src,
		Memo:     "Invoice posting",
		PostedBy: "tester",
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(100)},
			{AccountID: 2, Credit: decimal.NewFromInt(100)},
		},
	}
}

func TestPostBalancedSet(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	auditLog := &recordingAudit{}
	metrics := &countingMetrics{}
	svc := NewService(repo, allowAllGuard{}, auditLog, metrics)

	src := SourceRef{Kind: SourceInvoice, ID: uuid.New()}
	result, err := svc.Post(context.Background(), balancedInput(src, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, int64(1), result.EntryNumber)
	require.Len(t, result.EntryIDs, 2)
	require.False(t, result.AlreadyPosted)

	set, err := svc.GetSet(context.Background(), result.EntryNumber)
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.True(t, set[0].Debit.Equal(decimal.NewFromInt(100)))
	require.True(t, set[1].Credit.Equal(decimal.NewFromInt(100)))

	require.Len(t, auditLog.entries, 1)
	require.Equal(t, audit.ActionEntryPosted, auditLog.entries[0].Action)
	require.Equal(t, 1, metrics.posted)
}

func TestPostRejectsUnbalancedSet(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	svc := NewService(repo, allowAllGuard{}, nil, nil)

	in := balancedInput(SourceRef{Kind: SourceInvoice, ID: uuid.New()}, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	in.Lines[1].Credit = decimal.NewFromInt(90)

	_, err := svc.Post(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Empty(t, repo.entries)
}

func TestPostRejectsLineOnBothSides(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	svc := NewService(repo, allowAllGuard{}, nil, nil)

	in := balancedInput(SourceRef{Kind: SourceInvoice, ID: uuid.New()}, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	in.Lines[0].Credit = decimal.NewFromInt(100)

	_, err := svc.Post(context.Background(), in)
	require.Error(t, err)
}

func TestPostRejectsLockedPeriod(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusClosed))
	svc := NewService(repo, allowAllGuard{}, nil, nil)

	_, err := svc.Post(context.Background(),
		balancedInput(SourceRef{Kind: SourceInvoice, ID: uuid.New()}, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	require.Empty(t, repo.entries)
}

func TestPostSameSourceTwiceReturnsFirstResult(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	metrics := &countingMetrics{}
	svc := NewService(repo, allowAllGuard{}, nil, metrics)

	src := SourceRef{Kind: SourceInvoice, ID: uuid.New()}
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := svc.Post(context.Background(), balancedInput(src, date))
	require.NoError(t, err)

	second, err := svc.Post(context.Background(), balancedInput(src, date))
	require.NoError(t, err)
	require.True(t, second.AlreadyPosted)
	require.Equal(t, first.EntryNumber, second.EntryNumber)
	require.ElementsMatch(t, first.EntryIDs, second.EntryIDs)
	require.Len(t, repo.entries, 2)
	require.Equal(t, 1, metrics.posted)
}

func TestPostRaceLoserAdoptsWinnerResult(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	metrics := &countingMetrics{}
	svc := NewService(repo, allowAllGuard{}, nil, metrics)

	src := SourceRef{Kind: SourceInvoice, ID: uuid.New()}
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	winner, err := svc.Post(context.Background(), balancedInput(src, date))
	require.NoError(t, err)

	// The loser's prior check misses, its insert hits the unique source
	// link, and it must adopt the winner's set.
	repo.suppressPriorLookups = 1
	loser, err := svc.Post(context.Background(), balancedInput(src, date))
	require.NoError(t, err)
	require.True(t, loser.AlreadyPosted)
	require.Equal(t, winner.EntryNumber, loser.EntryNumber)
	require.ElementsMatch(t, winner.EntryIDs, loser.EntryIDs)
	require.Len(t, repo.entries, 2)
	require.Equal(t, 1, metrics.posted)
}

func TestVoidSwapsSidesAndLinksReversal(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	auditLog := &recordingAudit{}
	metrics := &countingMetrics{}
	svc := NewService(repo, allowAllGuard{}, auditLog, metrics)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	posted, err := svc.Post(context.Background(), balancedInput(SourceRef{Kind: SourceInvoice, ID: uuid.New()}, date))
	require.NoError(t, err)

	result, err := svc.Void(context.Background(), VoidInput{
		EntryNumber: posted.EntryNumber,
		Actor:       "tester",
		Reason:      "duplicate billing",
	})
	require.NoError(t, err)
	require.Equal(t, posted.EntryNumber, result.EntryNumber)
	require.NotEqual(t, posted.EntryNumber, result.ReversalNumber)

	original, err := svc.GetSet(context.Background(), posted.EntryNumber)
	require.NoError(t, err)
	reversal, err := svc.GetSet(context.Background(), result.ReversalNumber)
	require.NoError(t, err)
	require.Len(t, reversal, len(original))

	for i, line := range original {
		require.True(t, line.IsVoided)
		require.NotNil(t, line.ReversingEntryID)
		require.Equal(t, reversal[i].ID, *line.ReversingEntryID)
		require.True(t, line.Debit.Equal(reversal[i].Credit), "line %d debit should become credit", i)
		require.True(t, line.Credit.Equal(reversal[i].Debit), "line %d credit should become debit", i)
		require.False(t, reversal[i].IsVoided)
	}

	// One audit row for the reversal posting, one for the void itself.
	require.Len(t, auditLog.entries, 3)
	require.Equal(t, audit.ActionEntryVoided, auditLog.entries[2].Action)
	require.Equal(t, 1, metrics.voided)
}

func TestVoidTwiceFails(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	svc := NewService(repo, allowAllGuard{}, nil, nil)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	posted, err := svc.Post(context.Background(), balancedInput(SourceRef{Kind: SourceInvoice, ID: uuid.New()}, date))
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{EntryNumber: posted.EntryNumber, Actor: "tester", Reason: "first"})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{EntryNumber: posted.EntryNumber, Actor: "tester", Reason: "second"})
	require.ErrorIs(t, err, shared.ErrAlreadyVoided)
}

func TestVoidRequiresReason(t *testing.T) {
	repo := newMemoryLedgerRepo(testPeriod(1, 2026, time.March, periods.StatusOpen))
	svc := NewService(repo, allowAllGuard{}, nil, nil)

	_, err := svc.Void(context.Background(), VoidInput{EntryNumber: 1, Actor: "tester", Reason: "  "})
	require.ErrorIs(t, err, shared.ErrReasonRequired)
}

func TestVoidClosedPeriodPostsIntoEarliestOpen(t *testing.T) {
	march := testPeriod(1, 2026, time.March, periods.StatusOpen)
	april := testPeriod(2, 2026, time.April, periods.StatusOpen)
	repo := newMemoryLedgerRepo(march, april)
	svc := NewService(repo, allowAllGuard{}, nil, nil)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	posted, err := svc.Post(context.Background(), balancedInput(SourceRef{Kind: SourceInvoice, ID: uuid.New()}, date))
	require.NoError(t, err)

	repo.setPeriodStatus(march.ID, periods.StatusClosed)

	result, err := svc.Void(context.Background(), VoidInput{EntryNumber: posted.EntryNumber, Actor: "tester", Reason: "late fix"})
	require.NoError(t, err)

	reversal, err := svc.GetSet(context.Background(), result.ReversalNumber)
	require.NoError(t, err)
	for _, line := range reversal {
		require.Equal(t, april.ID, line.PeriodID)
		require.True(t, line.Date.Equal(april.StartDate))
	}

	// Original lines keep their period and amounts.
	original, err := svc.GetSet(context.Background(), posted.EntryNumber)
	require.NoError(t, err)
	for _, line := range original {
		require.Equal(t, march.ID, line.PeriodID)
	}
}

func TestVoidFailsWithNoOpenPeriod(t *testing.T) {
	march := testPeriod(1, 2026, time.March, periods.StatusOpen)
	repo := newMemoryLedgerRepo(march)
	svc := NewService(repo, allowAllGuard{}, nil, nil)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	posted, err := svc.Post(context.Background(), balancedInput(SourceRef{Kind: SourceInvoice, ID: uuid.New()}, date))
	require.NoError(t, err)

	repo.setPeriodStatus(march.ID, periods.StatusClosed)

	_, err = svc.Void(context.Background(), VoidInput{EntryNumber: posted.EntryNumber, Actor: "tester", Reason: "too late"})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestValidateRequiresTwoLines(t *testing.T) {
	in := PostingInput{
		Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Source:   SourceRef{Kind: SourceInvoice, ID: uuid.New()},
		PostedBy: "tester",
		Lines:    []LineInput{{AccountID: 1, Debit: decimal.NewFromInt(50)}},
	}
	require.ErrorIs(t, in.Validate(), shared.ErrTooFewLines)
}

func TestValidateRejectsNegativeAmounts(t *testing.T) {
	in := PostingInput{
		Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Source:   SourceRef{Kind: SourceInvoice, ID: uuid.New()},
		PostedBy: "tester",
		Lines: []LineInput{
			{AccountID: 1, Debit: decimal.NewFromInt(-50)},
			{AccountID: 2, Credit: decimal.NewFromInt(-50)},
		},
	}
	require.ErrorIs(t, in.Validate(), shared.ErrAmountNotPositive)
}
