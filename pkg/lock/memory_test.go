package lock_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowbot-io/flowbot/pkg/lock"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	locker := lock.NewMemoryLocker()

	release, err := locker.Acquire(t.Context(), "exec-1")
	require.NoError(t, err)

	_, err = locker.Acquire(t.Context(), "exec-1")
	assert.ErrorIs(t, err, lock.ErrAlreadyLocked)

	// A different execution is unaffected.
	releaseOther, err := locker.Acquire(t.Context(), "exec-2")
	require.NoError(t, err)
	releaseOther()

	release()

	release2, err := locker.Acquire(t.Context(), "exec-1")
	require.NoError(t, err)
	release2()
}

func TestMemoryLocker_ReleaseIsIdempotent(t *testing.T) {
	locker := lock.NewMemoryLocker()

	release, err := locker.Acquire(t.Context(), "exec-1")
	require.NoError(t, err)

	release()
	release()

	release2, err := locker.Acquire(t.Context(), "exec-1")
	require.NoError(t, err)

	// The stale second release must not free the new holder's lock.
	release()

	_, err = locker.Acquire(t.Context(), "exec-1")
	assert.ErrorIs(t, err, lock.ErrAlreadyLocked)

	release2()
}

func TestMemoryLocker_ConcurrentAcquire(t *testing.T) {
	locker := lock.NewMemoryLocker()

	const attempts = 50

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)

	for range attempts {
		wg.Add(1)

		go func() {
			defer wg.Done()

			release, err := locker.Acquire(t.Context(), "exec-1")
			if err != nil {
				return
			}

			defer release()

			mu.Lock()
			acquired++
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.GreaterOrEqual(t, acquired, 1)
}
