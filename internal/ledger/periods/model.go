package periods

import "time"

// Status enumerates the period lifecycle. Transitions are monotonic
// (OPEN -> CLOSING -> CLOSED) except for the audited unlock path.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusClosing Status = "CLOSING"
	StatusClosed  Status = "CLOSED"
)

// Period is one fiscal period window.
type Period struct {
	ID         int64
	FiscalYear int
	PeriodNo   int
	Code       string
	StartDate  time.Time
	EndDate    time.Time
	Status     Status
	LockedAt   *time.Time
	LockedBy   *string
	LockReason *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Contains reports whether the date falls inside the period window.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}
