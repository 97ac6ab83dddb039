package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
)

type memoryReportRepo struct {
	rows         []TrialBalanceRow
	agedEntries  []agedEntry
	unreconciled []entries.Entry
}

type agedEntry struct {
	accountID int64
	date      time.Time
	net       decimal.Decimal
}

func (r *memoryReportRepo) TrialBalanceRows(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error) {
	return r.rows, nil
}

func (r *memoryReportRepo) AgedNet(ctx context.Context, accountID int64, asOf, from, to time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.agedEntries {
		if e.accountID != accountID || e.date.After(asOf) {
			continue
		}
		if e.date.After(from) && !e.date.After(to) {
			sum = sum.Add(e.net)
		}
	}
	return sum, nil
}

func (r *memoryReportRepo) AgedNetOlder(ctx context.Context, accountID int64, asOf, before time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range r.agedEntries {
		if e.accountID != accountID || e.date.After(asOf) {
			continue
		}
		if !e.date.After(before) {
			sum = sum.Add(e.net)
		}
	}
	return sum, nil
}

func (r *memoryReportRepo) UnreconciledEntries(ctx context.Context, accountID int64) ([]entries.Entry, error) {
	return r.unreconciled, nil
}

func TestTrialBalanceTotals(t *testing.T) {
	repo := &memoryReportRepo{rows: []TrialBalanceRow{
		{AccountID: 1, Code: "1010", Name: "Cash", Type: "ASSET", Debit: decimal.NewFromInt(900), Credit: decimal.NewFromInt(100)},
		{AccountID: 2, Code: "4000", Name: "Revenue", Type: "REVENUE", Debit: decimal.Zero, Credit: decimal.NewFromInt(800)},
	}}
	svc := NewService(repo)

	tb, err := svc.TrialBalance(context.Background(), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, tb.TotalDebit.Equal(decimal.NewFromInt(900)))
	require.True(t, tb.TotalCredit.Equal(decimal.NewFromInt(900)))
	require.True(t, tb.Balanced())
}

func TestTrialBalanceDetectsImbalance(t *testing.T) {
	repo := &memoryReportRepo{rows: []TrialBalanceRow{
		{AccountID: 1, Code: "1010", Name: "Cash", Type: "ASSET", Debit: decimal.NewFromInt(500), Credit: decimal.Zero},
		{AccountID: 2, Code: "4000", Name: "Revenue", Type: "REVENUE", Debit: decimal.Zero, Credit: decimal.NewFromInt(450)},
	}}
	svc := NewService(repo)

	tb, err := svc.TrialBalance(context.Background(), time.Now())
	require.NoError(t, err)
	require.False(t, tb.Balanced())
}

func TestAgingBucketsSumToTotal(t *testing.T) {
	asOf := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	repo := &memoryReportRepo{agedEntries: []agedEntry{
		{accountID: 1, date: asOf.AddDate(0, 0, -10), net: decimal.NewFromInt(100)},
		{accountID: 1, date: asOf.AddDate(0, 0, -45), net: decimal.NewFromInt(200)},
		{accountID: 1, date: asOf.AddDate(0, 0, -75), net: decimal.NewFromInt(300)},
		{accountID: 1, date: asOf.AddDate(0, 0, -120), net: decimal.NewFromInt(400)},
		{accountID: 2, date: asOf.AddDate(0, 0, -10), net: decimal.NewFromInt(999)},
	}}
	svc := NewService(repo)

	aging, err := svc.Aging(context.Background(), 1, asOf)
	require.NoError(t, err)
	require.Len(t, aging.Buckets, 4)

	byLabel := make(map[string]decimal.Decimal)
	for _, b := range aging.Buckets {
		byLabel[b.Label] = b.Amount
	}
	require.True(t, byLabel["current"].Equal(decimal.NewFromInt(100)))
	require.True(t, byLabel["31-60"].Equal(decimal.NewFromInt(200)))
	require.True(t, byLabel["61-90"].Equal(decimal.NewFromInt(300)))
	require.True(t, byLabel["90+"].Equal(decimal.NewFromInt(400)))
	require.True(t, aging.Total.Equal(decimal.NewFromInt(1000)))
}

func TestUnreconciledProjection(t *testing.T) {
	repo := &memoryReportRepo{unreconciled: []entries.Entry{
		{ID: 5, Debit: decimal.NewFromInt(120)},
		{ID: 9, Credit: decimal.NewFromInt(30)},
	}}
	svc := NewService(repo)

	u, err := svc.Unreconciled(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, int64(4), u.AccountID)
	require.Len(t, u.Entries, 2)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1,234.50", FormatAmount(decimal.RequireFromString("1234.5")))
	require.Equal(t, "0.00", FormatAmount(decimal.Zero))
	require.Equal(t, "-42.00", FormatAmount(decimal.NewFromInt(-42)))
}

func TestNewTrialBalanceView(t *testing.T) {
	tb := TrialBalance{
		AsOf: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Rows: []TrialBalanceRow{
			{Code: "1010", Name: "Cash", Type: "ASSET", Debit: decimal.RequireFromString("12500.75"), Credit: decimal.Zero},
		},
		TotalDebit:  decimal.RequireFromString("12500.75"),
		TotalCredit: decimal.RequireFromString("12500.75"),
	}

	view := NewTrialBalanceView(tb)
	require.Equal(t, "2026-03-31", view.AsOf)
	require.True(t, view.Balanced)
	require.Equal(t, "12,500.75", view.TotalDebit)
	require.Len(t, view.Rows, 1)
	require.Equal(t, "12,500.75", view.Rows[0].Debit)
	require.Equal(t, "0.00", view.Rows[0].Credit)
}

func TestNewUnreconciledView(t *testing.T) {
	view := NewUnreconciledView(Unreconciled{
		AccountID: 4,
		Entries: []entries.Entry{
			{ID: 5, Debit: decimal.NewFromInt(1200)},
			{ID: 9, Credit: decimal.NewFromInt(300)},
		},
	})
	require.Equal(t, int64(4), view.AccountID)
	require.Equal(t, 2, view.Count)
	require.Equal(t, "1,200.00", view.TotalDebit)
	require.Equal(t, "300.00", view.TotalCredit)
	require.Equal(t, []int64{5, 9}, view.EntryIDs)
}
