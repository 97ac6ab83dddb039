package posting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianbooks/meridian/internal/ledger/entries"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// Poster is the narrow slice of the posting engine this facade needs.
type Poster interface {
	Post(ctx context.Context, in entries.PostingInput) (entries.PostResult, error)
	Void(ctx context.Context, in entries.VoidInput) (entries.VoidResult, error)
	ListBySource(ctx context.Context, src entries.SourceRef) ([]entries.Entry, error)
}

// Service exposes the entry points producer subsystems call into the
// ledger. Each maps one document to one balanced posting.
type Service struct {
	docs     DocumentReader
	composer *Composer
	poster   Poster
}

// NewService constructs the posting facade.
func NewService(docs DocumentReader, composer *Composer, poster Poster) *Service {
	return &Service{docs: docs, composer: composer, poster: poster}
}

// PostInvoice posts an invoice: AR debit against revenue and tax credits.
func (s *Service) PostInvoice(ctx context.Context, invoiceID uuid.UUID, actor string) (entries.PostResult, error) {
	facts, err := s.docs.Invoice(ctx, invoiceID)
	if err != nil {
		return entries.PostResult{}, fmt.Errorf("invoice %s: %w", invoiceID, err)
	}
	input, err := s.composer.ComposeInvoice(ctx, facts, actor)
	if err != nil {
		return entries.PostResult{}, err
	}
	return s.poster.Post(ctx, input)
}

// PostPayment posts a received payment against the bank and AR accounts.
func (s *Service) PostPayment(ctx context.Context, paymentID uuid.UUID, actor string) (entries.PostResult, error) {
	facts, err := s.docs.Payment(ctx, paymentID)
	if err != nil {
		return entries.PostResult{}, fmt.Errorf("payment %s: %w", paymentID, err)
	}
	input, err := s.composer.ComposePayment(ctx, facts, actor)
	if err != nil {
		return entries.PostResult{}, err
	}
	return s.poster.Post(ctx, input)
}

// PostPayrollRun posts a payroll run with caller-computed gross-to-net.
func (s *Service) PostPayrollRun(ctx context.Context, runID uuid.UUID, actor string) (entries.PostResult, error) {
	facts, err := s.docs.PayrollRun(ctx, runID)
	if err != nil {
		return entries.PostResult{}, fmt.Errorf("payroll run %s: %w", runID, err)
	}
	input, err := s.composer.ComposePayrollRun(ctx, facts, actor)
	if err != nil {
		return entries.PostResult{}, err
	}
	return s.poster.Post(ctx, input)
}

// PostDepositRelease posts the release of a held customer deposit.
func (s *Service) PostDepositRelease(ctx context.Context, releaseID uuid.UUID, actor string) (entries.PostResult, error) {
	facts, err := s.docs.DepositRelease(ctx, releaseID)
	if err != nil {
		return entries.PostResult{}, fmt.Errorf("deposit release %s: %w", releaseID, err)
	}
	input, err := s.composer.ComposeDepositRelease(ctx, facts, actor)
	if err != nil {
		return entries.PostResult{}, err
	}
	return s.poster.Post(ctx, input)
}

// ReverseInvoicePosting voids the entry set previously posted for an
// invoice. The invoice itself stays with its producer; only the ledger
// side is offset.
func (s *Service) ReverseInvoicePosting(ctx context.Context, invoiceID uuid.UUID, actor, reason string) (entries.VoidResult, error) {
	prior, err := s.poster.ListBySource(ctx, entries.SourceRef{Kind: entries.SourceInvoice, ID: invoiceID})
	if err != nil {
		return entries.VoidResult{}, err
	}
	if len(prior) == 0 {
		return entries.VoidResult{}, fmt.Errorf("invoice %s has no posted entries: %w", invoiceID, shared.ErrNotFound)
	}
	return s.poster.Void(ctx, entries.VoidInput{
		EntryNumber: prior[0].EntryNumber,
		Actor:       actor,
		Reason:      reason,
	})
}

// VoidEntry voids an arbitrary posted entry set by number.
func (s *Service) VoidEntry(ctx context.Context, entryNumber int64, actor, reason string) (entries.VoidResult, error) {
	return s.poster.Void(ctx, entries.VoidInput{EntryNumber: entryNumber, Actor: actor, Reason: reason})
}

// EntriesBySource returns the entry set posted for a source document.
func (s *Service) EntriesBySource(ctx context.Context, src entries.SourceRef) ([]entries.Entry, error) {
	return s.poster.ListBySource(ctx, src)
}
