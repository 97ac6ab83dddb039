package recon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressTracker remembers how far a bulk auto-match run has advanced so
// an interrupted run resumes after the last committed batch instead of
// re-walking already-matched lines.
type ProgressTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressTracker constructs a tracker. Cursors expire after ttl.
func NewProgressTracker(client *redis.Client, ttl time.Duration) *ProgressTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProgressTracker{client: client, ttl: ttl}
}

func progressKey(reconID int64) string {
	return fmt.Sprintf("recon:automatch:%d:cursor", reconID)
}

// Cursor returns the id of the last statement line a previous run
// committed, or zero for a fresh run.
func (t *ProgressTracker) Cursor(ctx context.Context, reconID int64) (int64, error) {
	if t == nil || t.client == nil {
		return 0, nil
	}
	val, err := t.client.Get(ctx, progressKey(reconID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// Advance records the last committed line id.
func (t *ProgressTracker) Advance(ctx context.Context, reconID, lineID int64) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Set(ctx, progressKey(reconID), strconv.FormatInt(lineID, 10), t.ttl).Err()
}

// Reset clears the cursor once a run finishes.
func (t *ProgressTracker) Reset(ctx context.Context, reconID int64) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Del(ctx, progressKey(reconID)).Err()
}
