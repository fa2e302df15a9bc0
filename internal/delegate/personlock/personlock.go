// Package personlock serializes registrations of the same person identifier.
// The in-process Keyed lock covers a single instance; the Redis lock covers
// several instances sharing one database.
package personlock

import (
	"context"
	"sync"

	dErrors "quorum/pkg/domain-errors"
)

// Unlock releases a held lock. It is safe to call once.
type Unlock func()

// Locker acquires an exclusive lock on key, waiting until ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Keyed is an in-process lock with one slot per key. Entries are dropped
// when their last holder or waiter leaves.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

func (k *Keyed) Lock(ctx context.Context, key string) (Unlock, error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, timeout(ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

func (k *Keyed) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// Len reports how many keys are held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

func timeout(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "person is being registered by another request")
}
