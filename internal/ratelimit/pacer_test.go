package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacerBoundsConcurrency(t *testing.T) {
	const limit = 3
	pacer := NewPacer(limit, 0)

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pacer.Do(context.Background(), func(ctx context.Context) error {
				cur := atomic.AddInt64(&inFlight, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(limit))
}

func TestPacerEnforcesMinInterval(t *testing.T) {
	interval := 20 * time.Millisecond
	pacer := NewPacer(1, interval)

	var starts []time.Time
	for i := 0; i < 3; i++ {
		err := pacer.Do(context.Background(), func(ctx context.Context) error {
			starts = append(starts, time.Now())
			return nil
		})
		require.NoError(t, err)
	}

	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		require.GreaterOrEqual(t, gap, interval-2*time.Millisecond, "starts paced too close")
	}
}

func TestPacerRespectsContextCancel(t *testing.T) {
	pacer := NewPacer(1, time.Minute)

	// Consume the interval budget.
	require.NoError(t, pacer.Do(context.Background(), func(ctx context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := pacer.Do(ctx, func(ctx context.Context) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
