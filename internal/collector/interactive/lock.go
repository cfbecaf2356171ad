package interactive

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

// LockKey identifies a platform account. Public sessions use an empty Username.
type LockKey struct {
	Platform string
	Username string
}

// LockSet serializes sessions per platform account.
type LockSet struct {
	mu    sync.Mutex
	slots map[LockKey]chan struct{}
}

func NewLockSet() *LockSet {
	return &LockSet{slots: make(map[LockKey]chan struct{})}
}

func (l *LockSet) slot(key LockKey) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire blocks until key is free or ctx is done.
func (l *LockSet) Acquire(ctx context.Context, key LockKey) (release func(), err error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSessionBusy, key.Platform, ctx.Err())
	}
}
