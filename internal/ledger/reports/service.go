package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
)

// Standard aging bands, in days overdue.
var agingBands = []struct {
	label string
	from  int
	to    int
}{
	{"current", 0, 30},
	{"31-60", 31, 60},
	{"61-90", 61, 90},
}

const agingOldest = "90+"

// Service produces read-only ledger projections. None of these methods
// write; everything here is derived from posted entries.
type Service struct {
	repo Repository
}

// NewService constructs a report Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// TrialBalance aggregates unvoided debits and credits per active account
// as of a date.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	rows, err := s.repo.TrialBalanceRows(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{AsOf: asOf, Rows: rows, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, row := range rows {
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
	}
	return tb, nil
}

// Aging buckets the net open balance on a control account (AR or AP) by
// entry age. Bands run concurrently; each is an independent read.
func (s *Service) Aging(ctx context.Context, accountID int64, asOf time.Time) (Aging, error) {
	buckets := make([]AgingBucket, len(agingBands)+1)
	g, gctx := errgroup.WithContext(ctx)
	for i, band := range agingBands {
		i, band := i, band
		g.Go(func() error {
			from := asOf.AddDate(0, 0, -band.to-1)
			to := asOf.AddDate(0, 0, -band.from)
			net, err := s.repo.AgedNet(gctx, accountID, asOf, from, to)
			if err != nil {
				return err
			}
			buckets[i] = AgingBucket{Label: band.label, Amount: net}
			return nil
		})
	}
	g.Go(func() error {
		before := asOf.AddDate(0, 0, -91)
		net, err := s.repo.AgedNetOlder(gctx, accountID, asOf, before)
		if err != nil {
			return err
		}
		buckets[len(agingBands)] = AgingBucket{Label: agingOldest, Amount: net}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Aging{}, err
	}
	aging := Aging{AccountID: accountID, AsOf: asOf, Buckets: buckets, Total: decimal.Zero}
	for _, b := range buckets {
		aging.Total = aging.Total.Add(b.Amount)
	}
	return aging, nil
}

// Unreconciled lists entries on an account that no statement line has
// claimed yet.
func (s *Service) Unreconciled(ctx context.Context, accountID int64) (Unreconciled, error) {
	rows, err := s.repo.UnreconciledEntries(ctx, accountID)
	if err != nil {
		return Unreconciled{}, err
	}
	return Unreconciled{AccountID: accountID, Entries: rows}, nil
}

// entriesTotal is a small helper for view models.
func entriesTotal(set []entries.Entry) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range set {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}
