// Package engine orchestrates answer synchronization: every save is
// persisted locally first and durably, then delivered to the remote sink
// on a best-effort background path. The user is never blocked by, and
// never loses an answer to, connectivity.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/sink"
	"github.com/werner/examsync/internal/store"
)

// Sink delivers a single answer to the remote server. *sink.Client is the
// production implementation; tests inject fakes.
type Sink interface {
	PushAnswer(examID, questionID string, answer []string, ts time.Time) error
}

// Connectivity is the engine's view of the connectivity monitor.
// *netmon.Monitor satisfies this.
type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) func()
	MarkOffline()
}

// Engine is the answer sync engine.
type Engine struct {
	store  *store.Store
	sink   Sink
	net    Connectivity
	status *StatusTracker
	wake   WakeTrigger // may be nil

	// flushMu serializes drain passes so two passes never race on the
	// same record's delivery.
	flushMu sync.Mutex

	wg    sync.WaitGroup
	unsub func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithWakeTrigger attaches a background delivery trigger.
func WithWakeTrigger(w WakeTrigger) Option {
	return func(e *Engine) { e.wake = w }
}

// New wires an engine to its collaborators. The aggregate status is
// recomputed from the store's backlog, never trusted from a prior run.
// A connectivity-up edge triggers an automatic drain pass.
func New(st *store.Store, sk Sink, net Connectivity, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		sink:  sk,
		net:   net,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.status = NewStatusTracker(e.initialStatus())
	e.unsub = net.Subscribe(e.onConnectivity)
	return e
}

// Close detaches from the connectivity monitor and waits for in-flight
// flush work to finish. The store is not closed; the caller owns it.
func (e *Engine) Close() {
	if e.unsub != nil {
		e.unsub()
	}
	e.wg.Wait()
}

func (e *Engine) initialStatus() models.SyncStatus {
	if !e.net.IsOnline() {
		return models.StatusOffline
	}
	stats, err := e.store.Stats()
	if err == nil && stats.UnsyncedAnswers > 0 {
		return models.StatusSyncing
	}
	return models.StatusSynced
}

func (e *Engine) onConnectivity(online bool) {
	if !online {
		// Overrides an in-progress syncing display. Already-issued
		// deliveries complete naturally and flip records as usual.
		e.status.Set(models.StatusOffline)
		return
	}
	e.status.Set(models.StatusSyncing)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.SyncAllPendingAnswers(); err != nil {
			slog.Debug("reconnect drain", "err", err)
		}
	}()
}

// Status returns the current aggregate sync status.
func (e *Engine) Status() models.SyncStatus {
	return e.status.Status()
}

// SubscribeStatus registers a status observer; returns an unsubscribe.
func (e *Engine) SubscribeStatus(fn func(models.SyncStatus)) func() {
	return e.status.Subscribe(fn)
}

// IsOnline returns the connectivity monitor's current state.
func (e *Engine) IsOnline() bool {
	return e.net.IsOnline()
}

// SaveAnswer persists an answer locally and, when online, kicks off an
// asynchronous delivery attempt for it. The call returns as soon as local
// persistence completes: a non-nil error means the answer was NOT durably
// captured and must be surfaced to the user. Delivery failures are never
// reported here.
func (e *Engine) SaveAnswer(examID, questionID string, answer []string) error {
	rec, err := e.store.PutAnswer(examID, questionID, answer)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	if !e.net.IsOnline() {
		e.registerWake()
		return nil
	}

	e.status.Set(models.StatusSyncing)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.settleStatus(e.flushOne(*rec))
	}()
	return nil
}

// LoadExamAnswers returns the exam's answers for UI repopulation. Pure
// store read, no network. Sync state is deliberately absent: the answer
// rendering path must not care whether a record has reached the server.
func (e *Engine) LoadExamAnswers(examID string) ([]models.ExamAnswer, error) {
	records, err := e.store.ListExamAnswers(examID)
	if err != nil {
		return nil, fmt.Errorf("load exam answers: %w", err)
	}

	answers := make([]models.ExamAnswer, 0, len(records))
	for _, rec := range records {
		answers = append(answers, models.ExamAnswer{
			QuestionID: rec.QuestionID,
			Answer:     rec.Answer,
			Timestamp:  rec.Timestamp,
		})
	}
	return answers, nil
}

// flushOne attempts delivery of a single record. On acknowledgment the
// record is re-fetched by key first: if the user changed the answer while
// the request was in flight, the stale ack must not mark the newer value
// synced, so the record is left pending for its own delivery attempt.
func (e *Engine) flushOne(rec models.AnswerRecord) error {
	if err := e.sink.PushAnswer(rec.ExamID, rec.QuestionID, rec.Answer, rec.Timestamp); err != nil {
		if errors.Is(err, sink.ErrUnreachable) {
			e.net.MarkOffline()
		}
		slog.Debug("deliver answer", "exam", rec.ExamID, "question", rec.QuestionID, "err", err)
		return err
	}

	cur, err := e.store.GetAnswer(rec.ExamID, rec.QuestionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil // deleted while in flight; nothing to mark
	}
	if err != nil {
		return fmt.Errorf("refetch after ack: %w", err)
	}

	if !slices.Equal(cur.Answer, rec.Answer) {
		slog.Debug("stale ack, newer edit stays pending", "exam", rec.ExamID, "question", rec.QuestionID)
		return nil
	}

	if err := e.store.MarkSynced(cur.LocalID); err != nil {
		return err
	}
	return nil
}

// settleStatus refreshes the aggregate after a single save-triggered
// delivery attempt.
func (e *Engine) settleStatus(flushErr error) {
	if !e.net.IsOnline() {
		return // the offline display wins
	}
	stats, err := e.store.Stats()
	if err != nil {
		slog.Debug("settle status", "err", err)
		return
	}
	switch {
	case stats.UnsyncedAnswers == 0:
		e.status.Set(models.StatusSynced)
	case flushErr != nil && stats.UnsyncedAnswers == 1:
		// The failed record is the whole backlog
		e.status.Set(models.StatusError)
	default:
		e.status.Set(models.StatusSyncing)
	}
}

// SyncAllPendingAnswers drains the unsynced backlog, one record at a
// time, oldest local mutation first. Safe to invoke concurrently with
// itself: passes are serialized, and a pass that finds an empty backlog
// makes no network calls at all. Delivery failures are absorbed into the
// aggregate status; only storage failures are returned.
func (e *Engine) SyncAllPendingAnswers() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	pending, err := e.store.ListUnsynced("")
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		e.status.Set(models.StatusSynced)
		return nil
	}

	e.status.Set(models.StatusSyncing)
	wasOnline := e.net.IsOnline()

	var delivered, failed int
	for _, rec := range pending {
		if err := e.flushOne(rec); err != nil {
			failed++
		} else {
			delivered++
		}
	}
	slog.Debug("flush pass complete", "delivered", delivered, "failed", failed)

	if wasOnline && !e.net.IsOnline() {
		return nil // connectivity dropped mid-pass; the edge set the display
	}

	switch {
	case failed == 0:
		// Edits that landed mid-pass keep the status at syncing; their
		// own delivery attempts will settle it.
		stats, err := e.store.Stats()
		if err == nil && stats.UnsyncedAnswers > 0 {
			e.status.Set(models.StatusSyncing)
		} else {
			e.status.Set(models.StatusSynced)
		}
	case delivered > 0:
		e.status.Set(models.StatusSyncing) // partial progress, retry later
	default:
		e.status.Set(models.StatusError)
	}
	return nil
}

// GetSyncStats returns a read-only diagnostic snapshot.
func (e *Engine) GetSyncStats() (models.SyncStats, error) {
	stats, err := e.store.Stats()
	if err != nil {
		return models.SyncStats{}, fmt.Errorf("sync stats: %w", err)
	}
	return models.SyncStats{
		TotalAnswers:    stats.TotalAnswers,
		UnsyncedAnswers: stats.UnsyncedAnswers,
		TotalExams:      stats.TotalExams,
		IsOnline:        e.net.IsOnline(),
		Status:          e.status.Status(),
	}, nil
}

// CacheExam stores an exam definition snapshot for offline resume.
func (e *Engine) CacheExam(examID string, payload json.RawMessage) error {
	return e.store.PutExam(examID, payload)
}

// CachedExam returns the locally cached exam definition, if any.
func (e *Engine) CachedExam(examID string) (*models.ExamSnapshot, error) {
	return e.store.GetExam(examID)
}

// ClearExamData tears down an exam's local footprint: answers and cached
// snapshot. Only called after final submission is confirmed upstream.
func (e *Engine) ClearExamData(examID string) error {
	if err := e.store.DeleteExamAnswers(examID); err != nil {
		return fmt.Errorf("clear exam data: %w", err)
	}
	if err := e.store.DeleteExam(examID); err != nil {
		return fmt.Errorf("clear exam data: %w", err)
	}
	return nil
}

func (e *Engine) registerWake() {
	if e.wake == nil {
		return
	}
	if err := e.wake.RegisterWakeRequest(WakeTag); err != nil {
		slog.Debug("register wake request", "err", err)
	}
}
