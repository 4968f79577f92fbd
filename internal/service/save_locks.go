package service

import (
	"context"
	"errors"
	"sync"
)

// ErrSaveInProgress is returned by TrySave when the document is already
// being saved.
var ErrSaveInProgress = errors.New("save already in progress")

// ExportedSaveLocks is an exported alias so _test packages can test the locks.
type ExportedSaveLocks = saveLocks

// ─────────────────────────────────────────────────────────────
// saveLocks: one save per document at a time
// ─────────────────────────────────────────────────────────────

// saveLocks serializes saves of the same document. Manual saves queue
// behind a running save; autosave uses TryAcquire and skips the document.
// The zero value is ready to use.
type saveLocks struct {
	mu     sync.Mutex
	slots  map[string]chan struct{}
	active sync.WaitGroup
}

func (l *saveLocks) slot(documentID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]chan struct{})
	}
	ch, ok := l.slots[documentID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[documentID] = ch
	}
	return ch
}

// Acquire waits until no other save of documentID runs, or ctx is done.
func (l *saveLocks) Acquire(ctx context.Context, documentID string) error {
	ch := l.slot(documentID)
	select {
	case ch <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the lock for documentID only if it is free.
func (l *saveLocks) TryAcquire(documentID string) bool {
	select {
	case l.slot(documentID) <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release frees documentID. Must follow a successful Acquire or TryAcquire.
func (l *saveLocks) Release(documentID string) {
	<-l.slot(documentID)
	l.active.Done()
}

// Forget drops the slot of a deleted document once it is free.
func (l *saveLocks) Forget(documentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.slots[documentID]; ok && len(ch) == 0 {
		delete(l.slots, documentID)
	}
}

// Wait blocks until every running save has finished or ctx is done.
func (l *saveLocks) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		l.active.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
