package lock

import (
	"context"
	"sync"
	"time"

	"almacenpos/internal/apperr"
)

// Local is an in-process Locker for single-instance deployments and tests.
// Each key is a one-slot channel; slots are reference counted and dropped once
// nobody holds or waits on them.
type Local struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[Key]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns a Local that gives up after timeout (0 means wait for ctx only).
func NewLocal(timeout time.Duration) *Local {
	return &Local{timeout: timeout, slots: make(map[Key]*slot)}
}

func (l *Local) Acquire(ctx context.Context, keys ...Key) (Release, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	ordered := Order(keys)
	held := make([]Key, 0, len(ordered))
	for _, k := range ordered {
		s := l.ref(k)
		select {
		case s.ch <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.unref(k)
			l.release(held)
			return nil, apperr.Wrap(apperr.KindResourceConflict, "recurso ocupado: "+string(k), ctx.Err())
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *Local) ref(k Key) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[k]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[k] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(k Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[k]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, k)
	}
}

// release frees keys in reverse acquisition order.
func (l *Local) release(held []Key) {
	for i := len(held) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[held[i]]
		l.mu.Unlock()
		<-s.ch
		l.unref(held[i])
	}
}
