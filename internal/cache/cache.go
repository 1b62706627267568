// Package cache stores per-page workflow state keyed by document and page.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thywilljoshua/fincontext/internal/layout"
)

// ErrCacheConsistency is returned when a stored entry claims to be complete
// but its page context does not hold together.
var ErrCacheConsistency = errors.New("cache entry inconsistent")

// Key identifies one page of one document.
type Key struct {
	Source string
	Page   int
}

func (k Key) String() string { return fmt.Sprintf("%s#%d", k.Source, k.Page) }

// Entry is the state recorded for a page. Summary and Output are filled in
// as the workflow progresses; an entry without Output is partial.
type Entry struct {
	PageImage []byte
	Summary   []layout.Section
	Output    *layout.ParsedPage
	UpdatedAt time.Time
}

// Done reports whether the workflow finished for this page.
func (e *Entry) Done() bool { return e != nil && e.Output != nil }

// Check validates a completed entry.
func (e *Entry) Check() error {
	if !e.Done() {
		return nil
	}
	if err := e.Output.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheConsistency, err)
	}
	return nil
}

// Store persists entries. Put replaces the whole record for a key.
type Store interface {
	Get(ctx context.Context, key Key) (*Entry, bool, error)
	Put(ctx context.Context, key Key, e *Entry) error
	Invalidate(ctx context.Context, key Key) error
	Close() error
}

// Locks hands out one mutex per key so that work on the same page is
// serialized while different pages proceed in parallel.
type Locks struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the key.
func (l *Locks) Lock(ctx context.Context, key Key) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[Key]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		kl.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return func() { l.release(key, kl) }, nil
	case <-ctx.Done():
		// The goroutine still takes the lock; hand it straight back.
		go func() {
			<-acquired
			l.release(key, kl)
		}()
		return nil, ctx.Err()
	}
}

func (l *Locks) release(key Key, kl *keyLock) {
	kl.mu.Unlock()
	l.mu.Lock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
