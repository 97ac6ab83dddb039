package recon

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) (*ProgressTracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProgressTracker(client, time.Hour), mr
}

func TestProgressCursorLifecycle(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	cursor, err := tracker.Cursor(ctx, 7)
	require.NoError(t, err)
	require.Zero(t, cursor)

	require.NoError(t, tracker.Advance(ctx, 7, 120))
	cursor, err = tracker.Cursor(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(120), cursor)

	require.NoError(t, tracker.Advance(ctx, 7, 340))
	cursor, err = tracker.Cursor(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(340), cursor)

	require.NoError(t, tracker.Reset(ctx, 7))
	cursor, err = tracker.Cursor(ctx, 7)
	require.NoError(t, err)
	require.Zero(t, cursor)
}

func TestProgressCursorsAreIndependent(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Advance(ctx, 1, 50))
	require.NoError(t, tracker.Advance(ctx, 2, 90))

	cursor, err := tracker.Cursor(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(50), cursor)

	require.NoError(t, tracker.Reset(ctx, 1))
	cursor, err = tracker.Cursor(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(90), cursor)
}

func TestProgressCursorExpires(t *testing.T) {
	tracker, mr := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Advance(ctx, 3, 10))
	mr.FastForward(2 * time.Hour)

	cursor, err := tracker.Cursor(ctx, 3)
	require.NoError(t, err)
	require.Zero(t, cursor)
}

func TestNilTrackerIsSafe(t *testing.T) {
	var tracker *ProgressTracker
	ctx := context.Background()

	cursor, err := tracker.Cursor(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, cursor)
	require.NoError(t, tracker.Advance(ctx, 1, 5))
	require.NoError(t, tracker.Reset(ctx, 1))
}
