// Package lock provides mutual exclusion for workflow executions so that a
// single execution is never advanced by two requests at the same time.
package lock

import (
	"context"
	"errors"
)

// ErrAlreadyLocked is returned when an execution is currently being advanced
// elsewhere and the caller should not proceed.
var ErrAlreadyLocked = errors.New("execution is already locked")

// ExecutionLocker serializes work on a single execution. Acquire returns
// ErrAlreadyLocked when the execution is held by another caller; the returned
// release function must be called once the caller is done.
type ExecutionLocker interface {
	Acquire(ctx context.Context, executionID string) (release func(), err error)
	Close(ctx context.Context) error
}
