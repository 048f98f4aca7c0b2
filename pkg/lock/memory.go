package lock

import (
	"context"
	"sync"
)

// MemoryLocker keeps one flag per execution ID in process memory. It is the
// default locker for single-instance deployments and for tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (m *MemoryLocker) Acquire(_ context.Context, executionID string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.held[executionID]; taken {
		return nil, ErrAlreadyLocked
	}

	m.held[executionID] = struct{}{}

	var once sync.Once

	release := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, executionID)
			m.mu.Unlock()
		})
	}

	return release, nil
}

func (m *MemoryLocker) Close(_ context.Context) error {
	return nil
}
