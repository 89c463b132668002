package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails while held", func(t *testing.T) {
		l := NewLocalLocker()
		release, ok, err := l.Acquire(ctx, "accrual:a", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = l.Acquire(ctx, "accrual:a", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, _ = l.Acquire(ctx, "accrual:b", time.Minute)
		assert.True(t, ok, "other keys are independent")

		release()
		_, ok, _ = l.Acquire(ctx, "accrual:a", time.Minute)
		assert.True(t, ok)
	})

	t.Run("expired lease can be taken over", func(t *testing.T) {
		l := NewLocalLocker()
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		staleRelease, ok, _ := l.Acquire(ctx, "k", time.Second)
		require.True(t, ok)

		now = now.Add(2 * time.Second)
		_, ok, _ = l.Acquire(ctx, "k", time.Minute)
		require.True(t, ok)

		staleRelease()
		_, ok, _ = l.Acquire(ctx, "k", time.Minute)
		assert.False(t, ok, "a stale release must not drop the new holder's lease")
	})

	t.Run("cancelled context", func(t *testing.T) {
		l := NewLocalLocker()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, ok, err := l.Acquire(cctx, "k", time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, ok)
	})

	t.Run("one winner under contention", func(t *testing.T) {
		l := NewLocalLocker()
		var winners int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok, _ := l.Acquire(ctx, "hot", time.Minute); ok {
					atomic.AddInt32(&winners, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners)
	})
}
