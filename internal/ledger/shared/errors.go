package shared

import "errors"

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrUnbalanced indicates debit != credit across a composed set.
	ErrUnbalanced = errors.New("ledger: entry lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: entry requires at least two lines")
	// ErrPeriodLocked indicates the target period no longer accepts postings.
	ErrPeriodLocked = errors.New("ledger: period locked")
	// ErrPeriodNotFound indicates no fiscal period covers the entry date.
	ErrPeriodNotFound = errors.New("ledger: no period for date")
	// ErrAlreadyPosted indicates the source document already carries entries.
	ErrAlreadyPosted = errors.New("ledger: source already posted")
	// ErrAlreadyVoided indicates a second void attempt on the same entry.
	ErrAlreadyVoided = errors.New("ledger: entry already voided")
	// ErrMappingNotFound indicates no account mapping is configured for the event type.
	ErrMappingNotFound = errors.New("ledger: account mapping not configured")
	// ErrAmountNotPositive indicates a required amount is zero or negative.
	ErrAmountNotPositive = errors.New("ledger: amount must be positive")
	// ErrNonLeafAccount indicates a posting against a parent account.
	ErrNonLeafAccount = errors.New("ledger: only leaf accounts accept entries")
	// ErrAccountInactive indicates a posting against a deactivated account.
	ErrAccountInactive = errors.New("ledger: account inactive")
	// ErrTrialBalanceMismatch blocks a period close whose debits and credits disagree.
	ErrTrialBalanceMismatch = errors.New("ledger: trial balance out of balance")
	// ErrInvalidPeriodTransition indicates a lifecycle move the state machine forbids.
	ErrInvalidPeriodTransition = errors.New("ledger: invalid period transition")
	// ErrReasonRequired indicates a privileged action missing its mandatory reason.
	ErrReasonRequired = errors.New("ledger: reason required")
	// ErrConcurrencyConflict indicates sequence or row contention; safe to retry.
	ErrConcurrencyConflict = errors.New("ledger: concurrent update conflict")
	// ErrSourceConflict indicates the source link already exists.
	ErrSourceConflict = errors.New("ledger: source link conflict")
)
