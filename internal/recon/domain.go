package recon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the reconciliation lifecycle.
// IN_PROGRESS -> {RECONCILED, CANCELLED}; RECONCILED -> COMPLETED;
// COMPLETED -> ROLLED_BACK via the privileged rollback path only.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusReconciled Status = "RECONCILED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusRolledBack Status = "ROLLED_BACK"
)

// MatchStatus enumerates statement line match states.
type MatchStatus string

const (
	MatchUnmatched MatchStatus = "UNMATCHED"
	MatchAuto      MatchStatus = "AUTO_MATCHED"
	MatchManual    MatchStatus = "MANUALLY_MATCHED"
	MatchExcluded  MatchStatus = "EXCLUDED"
)

// Reconciliation tracks one bank statement being reconciled against the
// ledger for a single account.
type Reconciliation struct {
	ID               int64
	AccountID        int64
	StatementStart   time.Time
	StatementEnd     time.Time
	StatementBalance decimal.Decimal
	BookBalance      decimal.Decimal
	ClearedBalance   decimal.Decimal
	Difference       decimal.Decimal
	Status           Status
	CreatedBy        string
	CompletedAt      *time.Time
	RollbackReason   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StatementLine is one row of the imported bank statement. Positive
// amounts are deposits, negative amounts withdrawals.
type StatementLine struct {
	ID               int64
	ReconciliationID int64
	LineDate         time.Time
	Amount           decimal.Decimal
	Description      string
	MatchStatus      MatchStatus
	MatchedEntryID   *int64
	CreatedAt        time.Time
}

// Adjustment closes a residual difference by posting its own balanced
// entry pair against a fee/interest/correction account.
type Adjustment struct {
	ID               int64
	ReconciliationID int64
	Amount           decimal.Decimal
	DebitAccountID   int64
	CreditAccountID  int64
	Memo             string
	EntryNumber      int64
	CreatedAt        time.Time
}

// CandidateEntry is an unvoided, not-yet-matched ledger entry on the
// reconciled account, with its cash-signed amount (debit - credit).
type CandidateEntry struct {
	EntryID int64
	Date    time.Time
	Amount  decimal.Decimal
}

// ErrState is the invalid-transition sentinel for the reconciliation
// state machine.
var ErrState = errors.New("recon: invalid state for operation")
