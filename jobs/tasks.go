package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianbooks/meridian/internal/ledger/reports"
	"github.com/meridianbooks/meridian/internal/recon"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAutoMatch runs one bounded auto-match pass for a reconciliation.
	TaskTypeAutoMatch = "recon:automatch"
	// TaskTypeLedgerIntegrity is the nightly debits-equal-credits sweep.
	TaskTypeLedgerIntegrity = "ledger:integrity"
)

// AutoMatchPayload identifies the reconciliation to match.
type AutoMatchPayload struct {
	ReconciliationID int64  `json:"reconciliation_id"`
	Actor            string `json:"actor"`
}

// NewAutoMatchTask constructs an Asynq task for deferred auto-matching.
func NewAutoMatchTask(payload AutoMatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAutoMatch, data), nil
}

// AutoMatchMetrics counts processed batches.
type AutoMatchMetrics interface {
	AutoMatchBatch()
}

// NewAutoMatchHandler processes TaskTypeAutoMatch tasks. The service
// resumes from its Redis cursor, so a retried task never re-matches
// lines it already consumed.
func NewAutoMatchHandler(service *recon.Service, metrics AutoMatchMetrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AutoMatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		matched, err := service.AutoMatch(ctx, payload.ReconciliationID, payload.Actor)
		if err != nil {
			logger.Error("auto match task", slog.Any("error", err),
				slog.Int64("reconciliation_id", payload.ReconciliationID))
			return err
		}
		if metrics != nil {
			metrics.AutoMatchBatch()
		}
		logger.Info("auto match task done",
			slog.Int64("reconciliation_id", payload.ReconciliationID),
			slog.Int("matched", matched))
		return nil
	}
}

// TrialBalancer is the projection slice the integrity sweep needs.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, asOf time.Time) (reports.TrialBalance, error)
}

var errImbalance = errors.New("jobs: trial balance out of balance")

// NewLedgerIntegrityHandler verifies global debits equal credits. An
// imbalance is logged loudly and returned so the task retries and stays
// visible in the queue.
func NewLedgerIntegrityHandler(balancer TrialBalancer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		asOf := time.Now().UTC()
		tb, err := balancer.TrialBalance(ctx, asOf)
		if err != nil {
			logger.Error("ledger integrity sweep", slog.Any("error", err))
			return err
		}
		if !tb.Balanced() {
			logger.Error("ledger integrity sweep found imbalance",
				slog.String("as_of", asOf.Format("2006-01-02")))
			return errImbalance
		}
		logger.Info("ledger integrity sweep clean", slog.String("as_of", asOf.Format("2006-01-02")))
		return nil
	}
}
