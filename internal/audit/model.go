package audit

import (
	"encoding/json"
	"time"
)

// Action identifies the kind of mutating operation being recorded.
type Action string

const (
	ActionEntryPosted       Action = "entry.posted"
	ActionEntryVoided       Action = "entry.voided"
	ActionPeriodTransition  Action = "period.transition"
	ActionPeriodUnlocked    Action = "period.unlocked"
	ActionReconTransition   Action = "reconciliation.transition"
	ActionReconMatched      Action = "reconciliation.matched"
	ActionReconLineExcluded Action = "reconciliation.line_excluded"
	ActionAdjustmentPosted  Action = "reconciliation.adjustment"
	ActionAccountCreated    Action = "account.created"
	ActionAccountDeactivate Action = "account.deactivated"
)

// Entry is one append-only audit row. Rows are never updated or deleted.
type Entry struct {
	ID         int64
	Actor      string
	Action     Action
	Entity     string
	EntityID   string
	Payload    Payload
	OccurredAt time.Time
}

// Payload is a closed union over the known audit detail shapes. Unknown
// kinds read back as Unrecognized so history stays loadable forever.
type Payload interface {
	payloadKind() string
}

// EntryPostedPayload records a posting.
type EntryPostedPayload struct {
	EntryNumber int64    `json:"entry_number"`
	EntryIDs    []int64  `json:"entry_ids"`
	SourceKind  string   `json:"source_kind"`
	SourceID    string   `json:"source_id"`
	TotalDebit  string   `json:"total_debit"`
	TotalCredit string   `json:"total_credit"`
	Accounts    []int64  `json:"accounts,omitempty"`
}

// EntryVoidedPayload records a void and the reversal it produced.
type EntryVoidedPayload struct {
	EntryNumber    int64  `json:"entry_number"`
	ReversalNumber int64  `json:"reversal_number"`
	Reason         string `json:"reason"`
}

// PeriodTransitionPayload snapshots a status move.
type PeriodTransitionPayload struct {
	PeriodCode string `json:"period_code"`
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
	Reason     string `json:"reason,omitempty"`
}

// ReconTransitionPayload snapshots a reconciliation status move.
type ReconTransitionPayload struct {
	ReconciliationID int64  `json:"reconciliation_id"`
	OldStatus        string `json:"old_status"`
	NewStatus        string `json:"new_status"`
	Difference       string `json:"difference,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// ReconMatchedPayload summarizes one auto/manual match batch.
type ReconMatchedPayload struct {
	ReconciliationID int64 `json:"reconciliation_id"`
	Matched          int   `json:"matched"`
	Manual           bool  `json:"manual"`
}

// ReconLineExcludedPayload records a statement line taken out of
// matching scope.
type ReconLineExcludedPayload struct {
	ReconciliationID int64  `json:"reconciliation_id"`
	LineID           int64  `json:"line_id"`
	Description      string `json:"description,omitempty"`
}

// AdjustmentPostedPayload records a reconciliation adjustment posting.
type AdjustmentPostedPayload struct {
	ReconciliationID int64  `json:"reconciliation_id"`
	EntryNumber      int64  `json:"entry_number"`
	Amount           string `json:"amount"`
	Memo             string `json:"memo,omitempty"`
}

// AccountPayload records chart-of-accounts changes.
type AccountPayload struct {
	AccountID int64  `json:"account_id"`
	Code      string `json:"code"`
	Name      string `json:"name,omitempty"`
}

// UnrecognizedPayload preserves rows written by newer code verbatim.
type UnrecognizedPayload struct {
	Kind string          `json:"kind"`
	Raw  json.RawMessage `json:"raw"`
}

func (EntryPostedPayload) payloadKind() string       { return "entry_posted" }
func (EntryVoidedPayload) payloadKind() string       { return "entry_voided" }
func (PeriodTransitionPayload) payloadKind() string  { return "period_transition" }
func (ReconTransitionPayload) payloadKind() string   { return "recon_transition" }
func (ReconMatchedPayload) payloadKind() string      { return "recon_matched" }
func (ReconLineExcludedPayload) payloadKind() string { return "recon_line_excluded" }
func (AdjustmentPostedPayload) payloadKind() string  { return "adjustment_posted" }
func (AccountPayload) payloadKind() string           { return "account" }
func (p UnrecognizedPayload) payloadKind() string    { return p.Kind }
