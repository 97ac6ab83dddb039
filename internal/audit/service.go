package audit

import (
	"context"
	"errors"
	"time"
)

// Service coordinates audit reads and writes.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs an audit Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Record appends one audit row.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if e.Action == "" || e.Entity == "" || e.EntityID == "" {
		return errors.New("audit: action, entity and entity id required")
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	return s.repo.Insert(ctx, e)
}

// Timeline returns audit rows matching the filters, newest first.
func (s *Service) Timeline(ctx context.Context, f TimelineFilters) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return s.repo.Timeline(ctx, f)
}
