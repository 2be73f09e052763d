package indexer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
)

// IndexLock provides non-blocking lock semantics using atomic operations.
// It keeps two directory runs in one process from overlapping.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// pathLocks serialises work on the same path while letting different paths
// proceed concurrently. Entries are reference counted and dropped when idle.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// lock blocks until p is free and returns the matching unlock
func (p *pathLocks) lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pathLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *pathLocks) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

// FileLock is a cross-process exclusive lock stored next to the database
type FileLock struct {
	flock *flock.Flock
}

// NewFileLock creates the lock for the database at dbPath
func NewFileLock(dbPath string) *FileLock {
	return &FileLock{flock: flock.New(dbPath + ".lock")}
}

// Path returns the lock file path
func (l *FileLock) Path() string {
	return l.flock.Path()
}

// Lock waits for the lock until ctx is done
func (l *FileLock) Lock(ctx context.Context) error {
	ok, err := l.flock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire index lock %s: %w", l.flock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("acquire index lock %s: %w", l.flock.Path(), ErrIndexLocked)
	}
	return nil
}

// TryLock acquires the lock without waiting
func (l *FileLock) TryLock() (bool, error) {
	return l.flock.TryLock()
}

// Unlock releases the lock
func (l *FileLock) Unlock() error {
	return l.flock.Unlock()
}
