package goroutine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/checkout/internal/shared/logger"
)

func TestTracker_WaitsForDetachedWork(t *testing.T) {
	tracker := NewTracker(logger.NewNopLogger())

	var ran atomic.Int32
	for range 3 {
		tracker.Go("worker", func() {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
		})
	}

	require.NoError(t, tracker.Wait(context.Background()))
	assert.Equal(t, int32(3), ran.Load())
}

func TestTracker_RecoversPanics(t *testing.T) {
	tracker := NewTracker(logger.NewNopLogger())

	tracker.Go("panicky", func() { panic("vault exploded") })

	require.NoError(t, tracker.Wait(context.Background()))
}

func TestTracker_WaitHonoursContext(t *testing.T) {
	tracker := NewTracker(logger.NewNopLogger())
	release := make(chan struct{})
	defer close(release)

	tracker.Go("blocked", func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, tracker.Wait(ctx), context.DeadlineExceeded)
}

func TestSafeGo_RecoversPanics(t *testing.T) {
	done := make(chan struct{})
	SafeGo(logger.NewNopLogger(), "panicky", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}
