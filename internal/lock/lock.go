// Package lock serializes work per key (a user ID) either inside one process
// or across processes through Redis.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when a lock could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker takes an exclusive lock for key. The returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker with one slot per key. Entries are dropped
// once nobody holds or waits for them.
type Local struct {
	mu    sync.Mutex
	slots map[string]*entry
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.slots[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.slots[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.slots, key)
	}
}
