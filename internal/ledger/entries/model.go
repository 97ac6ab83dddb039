package entries

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceKind closes the set of document types that can cause a posting.
// The composer matches exhaustively over these.
type SourceKind string

const (
	SourceInvoice        SourceKind = "INVOICE"
	SourcePayment        SourceKind = "PAYMENT"
	SourcePayrollRun     SourceKind = "PAYROLL_RUN"
	SourceDepositRelease SourceKind = "DEPOSIT_RELEASE"
	SourceAdjustment     SourceKind = "ADJUSTMENT"
	SourceReversal       SourceKind = "REVERSAL"
)

// Known reports whether the kind is a member of the closed set.
func (k SourceKind) Known() bool {
	switch k {
	case SourceInvoice, SourcePayment, SourcePayrollRun, SourceDepositRelease, SourceAdjustment, SourceReversal:
		return true
	}
	return false
}

// SourceRef links a ledger entry to the document that caused it.
type SourceRef struct {
	Kind SourceKind
	ID   uuid.UUID
}

// Entry is one debit-or-credit line of a journal entry. All lines sharing
// an EntryNumber form one balanced set. Rows are never deleted and their
// amounts never change; a void only sets IsVoided and ReversingEntryID.
type Entry struct {
	ID               int64
	EntryNumber      int64
	AccountID        int64
	Date             time.Time
	PeriodID         int64
	PeriodCode       string
	Debit            decimal.Decimal
	Credit           decimal.Decimal
	Memo             string
	Source           SourceRef
	IsPosted         bool
	IsVoided         bool
	ReversingEntryID *int64
	PostedBy         string
	PostedAt         time.Time
	CreatedAt        time.Time
}

// PostResult is returned from the posting gate.
type PostResult struct {
	EntryNumber   int64
	EntryIDs      []int64
	AlreadyPosted bool
}

// VoidResult describes the reversal produced by a void.
type VoidResult struct {
	EntryNumber    int64
	ReversalNumber int64
	ReversalIDs    []int64
}
