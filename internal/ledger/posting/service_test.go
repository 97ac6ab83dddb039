package posting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

type memoryDocs struct {
	invoices map[uuid.UUID]InvoiceFacts
	payments map[uuid.UUID]PaymentFacts
}

func (d *memoryDocs) Invoice(ctx context.Context, id uuid.UUID) (InvoiceFacts, error) {
	f, ok := d.invoices[id]
	if !ok {
		return InvoiceFacts{}, shared.ErrNotFound
	}
	return f, nil
}

func (d *memoryDocs) Payment(ctx context.Context, id uuid.UUID) (PaymentFacts, error) {
	f, ok := d.payments[id]
	if !ok {
		return PaymentFacts{}, shared.ErrNotFound
	}
	return f, nil
}

func (d *memoryDocs) PayrollRun(ctx context.Context, id uuid.UUID) (PayrollRunFacts, error) {
	return PayrollRunFacts{}, shared.ErrNotFound
}

func (d *memoryDocs) DepositRelease(ctx context.Context, id uuid.UUID) (DepositReleaseFacts, error) {
	return DepositReleaseFacts{}, shared.ErrNotFound
}

type recordingPoster struct {
	posted     []entries.PostingInput
	voided     []entries.VoidInput
	bySource   map[entries.SourceRef][]entries.Entry
	nextNumber int64
}

func newRecordingPoster() *recordingPoster {
	return &recordingPoster{bySource: make(map[entries.SourceRef][]entries.Entry)}
}

func (p *recordingPoster) Post(ctx context.Context, in entries.PostingInput) (entries.PostResult, error) {
	if err := in.Validate(); err != nil {
		return entries.PostResult{}, err
	}
	p.posted = append(p.posted, in)
	p.nextNumber++
	p.bySource[in.Source] = []entries.Entry{{ID: p.nextNumber * 10, EntryNumber: p.nextNumber}}
	return entries.PostResult{EntryNumber: p.nextNumber, EntryIDs: []int64{p.nextNumber * 10}}, nil
}

func (p *recordingPoster) Void(ctx context.Context, in entries.VoidInput) (entries.VoidResult, error) {
	p.voided = append(p.voided, in)
	p.nextNumber++
	return entries.VoidResult{EntryNumber: in.EntryNumber, ReversalNumber: p.nextNumber}, nil
}

func (p *recordingPoster) ListBySource(ctx context.Context, src entries.SourceRef) ([]entries.Entry, error) {
	return p.bySource[src], nil
}

func TestPostInvoiceComposesAndPosts(t *testing.T) {
	invoiceID := uuid.New()
	docs := &memoryDocs{invoices: map[uuid.UUID]InvoiceFacts{
		invoiceID: {
			ID:       invoiceID,
			Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Subtotal: dec("400.00"),
			Tax:      dec("32.00"),
		},
	}}
	poster := newRecordingPoster()
	svc := NewService(docs, NewComposer(fullMappings()), poster)

	result, err := svc.PostInvoice(context.Background(), invoiceID, "billing")
	require.NoError(t, err)
	require.Equal(t, int64(1), result.EntryNumber)

	require.Len(t, poster.posted, 1)
	require.Equal(t, entries.SourceRef{Kind: entries.SourceInvoice, ID: invoiceID}, poster.posted[0].Source)
	require.Equal(t, "billing", poster.posted[0].PostedBy)
}

func TestPostInvoiceUnknownDocument(t *testing.T) {
	docs := &memoryDocs{invoices: map[uuid.UUID]InvoiceFacts{}}
	svc := NewService(docs, NewComposer(fullMappings()), newRecordingPoster())

	_, err := svc.PostInvoice(context.Background(), uuid.New(), "billing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReverseInvoicePosting(t *testing.T) {
	invoiceID := uuid.New()
	docs := &memoryDocs{invoices: map[uuid.UUID]InvoiceFacts{
		invoiceID: {
			ID:       invoiceID,
			Date:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Subtotal: dec("400.00"),
		},
	}}
	poster := newRecordingPoster()
	svc := NewService(docs, NewComposer(fullMappings()), poster)

	_, err := svc.PostInvoice(context.Background(), invoiceID, "billing")
	require.NoError(t, err)

	result, err := svc.ReverseInvoicePosting(context.Background(), invoiceID, "billing", "customer credit")
	require.NoError(t, err)
	require.Equal(t, int64(1), result.EntryNumber)

	require.Len(t, poster.voided, 1)
	require.Equal(t, "customer credit", poster.voided[0].Reason)
}

func TestReverseInvoicePostingWithoutPriorPosting(t *testing.T) {
	docs := &memoryDocs{invoices: map[uuid.UUID]InvoiceFacts{}}
	svc := NewService(docs, NewComposer(fullMappings()), newRecordingPoster())

	_, err := svc.ReverseInvoicePosting(context.Background(), uuid.New(), "billing", "reason")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
