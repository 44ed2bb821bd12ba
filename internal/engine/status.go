package engine

import (
	"sync"

	"github.com/werner/examsync/internal/models"
)

// StatusTracker owns the process-wide aggregate sync status. Single
// writer (the engine), any number of subscribers. It is constructed once
// at process start and handed to whoever renders the indicator; it is
// never persisted, so a restart always recomputes from the store.
type StatusTracker struct {
	mu     sync.Mutex
	status models.SyncStatus
	subs   map[int]func(models.SyncStatus)
	nextID int
}

// NewStatusTracker creates a tracker with an initial status.
func NewStatusTracker(initial models.SyncStatus) *StatusTracker {
	return &StatusTracker{
		status: initial,
		subs:   make(map[int]func(models.SyncStatus)),
	}
}

// Status returns the current aggregate status. Readers may observe a
// value that briefly lags the true backlog; that race is benign.
func (t *StatusTracker) Status() models.SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Set updates the status and notifies subscribers on change.
func (t *StatusTracker) Set(s models.SyncStatus) {
	t.mu.Lock()
	if t.status == s {
		t.mu.Unlock()
		return
	}
	t.status = s
	notify := make([]func(models.SyncStatus), 0, len(t.subs))
	for _, fn := range t.subs {
		notify = append(notify, fn)
	}
	t.mu.Unlock()

	for _, fn := range notify {
		fn(s)
	}
}

// Subscribe registers a callback invoked on every status change. The
// returned function unsubscribes.
func (t *StatusTracker) Subscribe(fn func(models.SyncStatus)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}
