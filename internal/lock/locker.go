// Package lock serializes work on a single key, such as one quiz attempt.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive ownership of a key.
type Locker interface {
	// Acquire blocks until key is held or ctx is done. The returned func releases the key.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// With runs fn while holding key.
func With(ctx context.Context, locker Locker, key string, fn func() error) error {
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
