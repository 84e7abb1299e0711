package matching

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBounded_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 12)

	errs := RunBounded(context.Background(), items, 3, time.Second, func(ctx context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	require.Len(t, errs, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestRunBounded_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	var done atomic.Int32

	errs := RunBounded(context.Background(), []int{0, 1, 2, 3}, 2, time.Second, func(ctx context.Context, i int) error {
		if i == 1 {
			return boom
		}
		done.Add(1)
		return nil
	})

	assert.ErrorIs(t, errs[1], boom)
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[3])
	assert.Equal(t, int32(3), done.Load())
}

func TestRunBounded_PerTaskTimeout(t *testing.T) {
	errs := RunBounded(context.Background(), []time.Duration{0, time.Second}, 2, 20*time.Millisecond,
		func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], context.DeadlineExceeded)
}

func TestRunBounded_Empty(t *testing.T) {
	errs := RunBounded(context.Background(), []string(nil), 3, 0, func(context.Context, string) error {
		t.Fatal("should not run")
		return nil
	})
	assert.Empty(t, errs)
}
