// Package netmon tracks whether the remote answer sink is reachable. It
// holds the single authoritative online/offline view, updated by an active
// probe loop and demoted directly by the sync engine when a delivery fails
// at the network level (a link can look up while the sink is unreachable).
package netmon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober reports whether the remote sink answers a health check.
// *sink.Client satisfies this.
type Prober interface {
	Health() error
}

// DefaultInterval is the probe cadence when none is configured.
const DefaultInterval = 30 * time.Second

// Monitor is the connectivity monitor. Transitions are edge-triggered:
// subscribers see at most one callback per actual state change.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

// New creates a monitor and samples the initial state synchronously.
func New(prober Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		prober:   prober,
		interval: interval,
		subs:     make(map[int]func(bool)),
	}
	m.online = prober.Health() == nil
	return m
}

// IsOnline returns the current best-known state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback invoked on every transition. The returned
// function unsubscribes; it is safe to call more than once.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// MarkOffline demotes the state after a network-level delivery failure,
// regardless of what the last probe said.
func (m *Monitor) MarkOffline() {
	m.SetOnline(false)
}

// SetOnline records an observed state. Subscribers are only notified when
// the state actually changes, and are called outside the lock.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	notify := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		notify = append(notify, fn)
	}
	m.mu.Unlock()

	slog.Debug("connectivity changed", "online", online)
	for _, fn := range notify {
		fn(online)
	}
}

// Run probes the sink on the configured interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetOnline(m.prober.Health() == nil)
		}
	}
}
