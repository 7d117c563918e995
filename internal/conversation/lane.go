package conversation

import (
	"context"
	"sync"
)

// laneLock serializes work per identifier. Waiters are admitted in arrival
// order; different identifiers never contend.
type laneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	waiters []chan struct{}
}

func newLaneLock() *laneLock {
	return &laneLock{lanes: make(map[string]*lane)}
}

// Lock blocks until the caller owns the lane for identifier or ctx is done.
// The returned release func must be called exactly once; extra calls are no-ops.
func (l *laneLock) Lock(ctx context.Context, identifier string) (func(), error) {
	l.mu.Lock()
	ln, busy := l.lanes[identifier]
	if !busy {
		l.lanes[identifier] = &lane{}
		l.mu.Unlock()
		return l.releaser(identifier), nil
	}
	turn := make(chan struct{})
	ln.waiters = append(ln.waiters, turn)
	l.mu.Unlock()

	select {
	case <-turn:
		return l.releaser(identifier), nil
	case <-ctx.Done():
		l.mu.Lock()
		queued := false
		for i, ch := range ln.waiters {
			if ch == turn {
				ln.waiters = append(ln.waiters[:i], ln.waiters[i+1:]...)
				queued = true
				break
			}
		}
		l.mu.Unlock()
		if !queued {
			// The lane was handed over while ctx fired; pass it on.
			l.release(identifier)
		}
		return nil, ctx.Err()
	}
}

func (l *laneLock) releaser(identifier string) func() {
	var once sync.Once
	return func() { once.Do(func() { l.release(identifier) }) }
}

func (l *laneLock) release(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[identifier]
	if !ok {
		return
	}
	if len(ln.waiters) == 0 {
		delete(l.lanes, identifier)
		return
	}
	next := ln.waiters[0]
	ln.waiters = ln.waiters[1:]
	close(next)
}

// size reports the number of active lanes.
func (l *laneLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

// waiting reports how many callers are queued behind the holder of identifier.
func (l *laneLock) waiting(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ln, ok := l.lanes[identifier]; ok {
		return len(ln.waiters)
	}
	return 0
}
