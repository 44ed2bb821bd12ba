package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/sink"
	"github.com/werner/examsync/internal/store"
)

type fakeNet struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

func newFakeNet(online bool) *fakeNet {
	return &fakeNet{online: online, subs: make(map[int]func(bool))}
}

func (n *fakeNet) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *fakeNet) Subscribe(fn func(bool)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *fakeNet) MarkOffline() { n.set(false) }

func (n *fakeNet) set(online bool) {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return
	}
	n.online = online
	fns := make([]func(bool), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

type delivery struct {
	ExamID     string
	QuestionID string
	Answer     []string
}

type fakeSink struct {
	mu         sync.Mutex
	deliveries []delivery
	inflight   int
	peak       int

	// fail, when set, is consulted per push; a non-nil return rejects it.
	fail func(examID, questionID string) error
	// beforeAck, when set, runs between receiving a push and acking it.
	beforeAck func(examID, questionID string)
}

func (s *fakeSink) PushAnswer(examID, questionID string, answer []string, _ time.Time) error {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	failFn, hook := s.fail, s.beforeAck
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	if failFn != nil {
		if err := failFn(examID, questionID); err != nil {
			return err
		}
	}
	if hook != nil {
		hook(examID, questionID)
	}

	s.mu.Lock()
	s.deliveries = append(s.deliveries, delivery{examID, questionID, answer})
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) delivered() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

func newTestEngine(t *testing.T, online bool, sk Sink) (*Engine, *store.Store, *fakeNet) {
	t.Helper()
	st, err := store.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	net := newFakeNet(online)
	eng := New(st, sk, net)
	t.Cleanup(eng.Close)
	return eng, st, net
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestSaveAnswer_OfflinePersistsLocally(t *testing.T) {
	sk := &fakeSink{}
	eng, st, _ := newTestEngine(t, false, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"B"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	rec, err := st.GetAnswer("midterm", "q1")
	if err != nil {
		t.Fatalf("GetAnswer: %v", err)
	}
	if rec.Synced {
		t.Error("offline save should be pending, got synced")
	}
	if len(sk.delivered()) != 0 {
		t.Errorf("offline save must not hit the network, got %d deliveries", len(sk.delivered()))
	}
	if got := eng.Status(); got != models.StatusOffline {
		t.Errorf("status = %v, want offline", got)
	}
}

func TestSaveAnswer_OnlineDeliversAndMarksSynced(t *testing.T) {
	sk := &fakeSink{}
	eng, st, _ := newTestEngine(t, true, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A", "C"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	waitFor(t, "record to sync", func() bool {
		rec, err := st.GetAnswer("midterm", "q1")
		return err == nil && rec.Synced
	})
	waitFor(t, "status synced", func() bool {
		return eng.Status() == models.StatusSynced
	})
	if got := sk.delivered(); len(got) != 1 || got[0].QuestionID != "q1" {
		t.Errorf("deliveries = %+v, want exactly one for q1", got)
	}
}

func TestSaveAnswer_OverwriteKeepsOneRecord(t *testing.T) {
	sk := &fakeSink{}
	eng, st, _ := newTestEngine(t, false, sk)

	for _, ans := range [][]string{{"A"}, {"B"}, {"C"}} {
		if err := eng.SaveAnswer("midterm", "q1", ans); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}

	answers, err := st.ListExamAnswers("midterm")
	if err != nil {
		t.Fatalf("ListExamAnswers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("got %d records for one question, want 1", len(answers))
	}
	if got := answers[0].Answer; len(got) != 1 || got[0] != "C" {
		t.Errorf("answer = %v, want latest edit [C]", got)
	}
}

func TestSaveAnswer_DeliveryFailureKeepsPending(t *testing.T) {
	sk := &fakeSink{fail: func(_, _ string) error { return sink.ErrRejected }}
	eng, st, _ := newTestEngine(t, true, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("SaveAnswer should not surface delivery errors: %v", err)
	}

	waitFor(t, "status error", func() bool {
		return eng.Status() == models.StatusError
	})
	rec, err := st.GetAnswer("midterm", "q1")
	if err != nil {
		t.Fatalf("GetAnswer: %v", err)
	}
	if rec.Synced {
		t.Error("rejected delivery must leave the record pending")
	}
}

func TestFlush_UnreachableSinkGoesOffline(t *testing.T) {
	sk := &fakeSink{fail: func(_, _ string) error { return sink.ErrUnreachable }}
	eng, _, net := newTestEngine(t, true, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	waitFor(t, "connectivity demoted", func() bool { return !net.IsOnline() })
	waitFor(t, "status offline", func() bool {
		return eng.Status() == models.StatusOffline
	})
}

func TestFlush_StaleAckLeavesNewerEditPending(t *testing.T) {
	var st *store.Store
	sk := &fakeSink{}
	sk.beforeAck = func(examID, questionID string) {
		// Edit lands while the first delivery is in flight.
		if _, err := st.PutAnswer(examID, questionID, []string{"revised"}); err != nil {
			panic(err)
		}
		sk.beforeAck = nil
	}
	eng, s, _ := newTestEngine(t, false, sk)
	st = s

	if err := eng.SaveAnswer("midterm", "q1", []string{"original"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("SyncAllPendingAnswers: %v", err)
	}

	rec, err := st.GetAnswer("midterm", "q1")
	if err != nil {
		t.Fatalf("GetAnswer: %v", err)
	}
	if rec.Synced {
		t.Error("ack for the old answer must not mark the newer edit synced")
	}
	if len(rec.Answer) != 1 || rec.Answer[0] != "revised" {
		t.Errorf("answer = %v, want the in-flight edit preserved", rec.Answer)
	}

	// The next pass delivers the revision and settles.
	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	rec, err = st.GetAnswer("midterm", "q1")
	if err != nil {
		t.Fatalf("GetAnswer: %v", err)
	}
	if !rec.Synced {
		t.Error("revision should sync on the following pass")
	}
}

func TestSyncAllPendingAnswers_EmptyBacklogMakesNoCalls(t *testing.T) {
	sk := &fakeSink{fail: func(_, _ string) error {
		return errors.New("no calls expected")
	}}
	eng, _, _ := newTestEngine(t, true, sk)

	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("SyncAllPendingAnswers: %v", err)
	}
	if got := eng.Status(); got != models.StatusSynced {
		t.Errorf("status = %v, want synced", got)
	}
}

func TestSyncAllPendingAnswers_DrainsOldestFirst(t *testing.T) {
	sk := &fakeSink{}
	eng, _, _ := newTestEngine(t, false, sk)

	for i := 1; i <= 3; i++ {
		q := fmt.Sprintf("q%d", i)
		if err := eng.SaveAnswer("midterm", q, []string{"A"}); err != nil {
			t.Fatalf("SaveAnswer %s: %v", q, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("SyncAllPendingAnswers: %v", err)
	}

	got := sk.delivered()
	if len(got) != 3 {
		t.Fatalf("got %d deliveries, want 3", len(got))
	}
	for i, d := range got {
		if want := fmt.Sprintf("q%d", i+1); d.QuestionID != want {
			t.Errorf("delivery %d = %s, want %s", i, d.QuestionID, want)
		}
	}
	if got := eng.Status(); got != models.StatusSynced {
		t.Errorf("status = %v, want synced", got)
	}
}

func TestSyncAllPendingAnswers_PartialFailure(t *testing.T) {
	sk := &fakeSink{fail: func(_, questionID string) error {
		if questionID == "q2" {
			return sink.ErrRejected
		}
		return nil
	}}
	eng, st, _ := newTestEngine(t, false, sk)

	for _, q := range []string{"q1", "q2", "q3"} {
		if err := eng.SaveAnswer("midterm", q, []string{"A"}); err != nil {
			t.Fatalf("SaveAnswer %s: %v", q, err)
		}
	}

	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("SyncAllPendingAnswers: %v", err)
	}

	if got := eng.Status(); got != models.StatusSyncing {
		t.Errorf("status after partial drain = %v, want syncing", got)
	}
	pending, err := st.ListUnsynced("")
	if err != nil {
		t.Fatalf("ListUnsynced: %v", err)
	}
	if len(pending) != 1 || pending[0].QuestionID != "q2" {
		t.Errorf("pending = %+v, want only q2", pending)
	}
}

func TestSyncAllPendingAnswers_TotalFailure(t *testing.T) {
	sk := &fakeSink{fail: func(_, _ string) error { return sink.ErrRejected }}
	eng, _, _ := newTestEngine(t, false, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("SyncAllPendingAnswers: %v", err)
	}
	if got := eng.Status(); got != models.StatusError {
		t.Errorf("status = %v, want error", got)
	}
}

func TestSyncAllPendingAnswers_OfflineMidPassKeepsOfflineDisplay(t *testing.T) {
	sk := &fakeSink{fail: func(_, _ string) error { return sink.ErrUnreachable }}
	eng, st, net := newTestEngine(t, false, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	// Reconnect triggers a drain; the sink demotes connectivity on the
	// first push, so the pass must leave the offline display in place
	// rather than settling to error.
	net.set(true)
	waitFor(t, "connectivity demoted", func() bool { return !net.IsOnline() })
	waitFor(t, "status offline", func() bool {
		return eng.Status() == models.StatusOffline
	})

	pending, err := st.ListUnsynced("")
	if err != nil {
		t.Fatalf("ListUnsynced: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want the record still queued", len(pending))
	}
}

func TestSyncAllPendingAnswers_RetryAfterFailureDelivers(t *testing.T) {
	var attempts int
	sk := &fakeSink{fail: func(_, _ string) error {
		attempts++
		if attempts == 1 {
			return sink.ErrRejected
		}
		return nil
	}}
	eng, st, _ := newTestEngine(t, false, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"B"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if got := eng.Status(); got != models.StatusError {
		t.Errorf("status after failed pass = %v, want error", got)
	}

	if err := eng.SyncAllPendingAnswers(); err != nil {
		t.Fatalf("retry pass: %v", err)
	}
	if got := eng.Status(); got != models.StatusSynced {
		t.Errorf("status after retry pass = %v, want synced", got)
	}

	answers, err := st.ListExamAnswers("midterm")
	if err != nil {
		t.Fatalf("ListExamAnswers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want exactly one record", len(answers))
	}
	if !answers[0].Synced {
		t.Error("record not marked synced after successful retry")
	}
	if d := sk.delivered(); len(d) != 1 {
		t.Errorf("deliveries = %d, want exactly one", len(d))
	}
}

func TestSyncAllPendingAnswers_SerializedPasses(t *testing.T) {
	sk := &fakeSink{}
	sk.beforeAck = func(_, _ string) { time.Sleep(5 * time.Millisecond) }
	eng, _, _ := newTestEngine(t, false, sk)

	for i := range 5 {
		q := fmt.Sprintf("q%d", i)
		if err := eng.SaveAnswer("midterm", q, []string{"A"}); err != nil {
			t.Fatalf("SaveAnswer %s: %v", q, err)
		}
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := eng.SyncAllPendingAnswers(); err != nil {
				t.Errorf("SyncAllPendingAnswers: %v", err)
			}
		}()
	}
	wg.Wait()

	sk.mu.Lock()
	peak := sk.peak
	sk.mu.Unlock()
	if peak > 1 {
		t.Errorf("deliveries overlapped (peak %d in flight), passes must serialize", peak)
	}
	if got := sk.delivered(); len(got) != 5 {
		t.Errorf("got %d deliveries for 5 records, want exactly 5", len(got))
	}
}

func TestReconnect_DrainsBacklog(t *testing.T) {
	sk := &fakeSink{}
	eng, st, net := newTestEngine(t, false, sk)

	for _, q := range []string{"q1", "q2"} {
		if err := eng.SaveAnswer("midterm", q, []string{"A"}); err != nil {
			t.Fatalf("SaveAnswer %s: %v", q, err)
		}
	}
	if got := eng.Status(); got != models.StatusOffline {
		t.Fatalf("status = %v, want offline", got)
	}

	net.set(true)

	waitFor(t, "backlog drained", func() bool {
		pending, err := st.ListUnsynced("")
		return err == nil && len(pending) == 0
	})
	waitFor(t, "status synced", func() bool {
		return eng.Status() == models.StatusSynced
	})
	if got := sk.delivered(); len(got) != 2 {
		t.Errorf("got %d deliveries, want 2", len(got))
	}
}

func TestOfflineEdits_CollapseToSingleDelivery(t *testing.T) {
	sk := &fakeSink{}
	eng, _, net := newTestEngine(t, false, sk)

	for _, ans := range [][]string{{"A"}, {"B"}, {"D"}} {
		if err := eng.SaveAnswer("final", "q7", ans); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}

	net.set(true)

	waitFor(t, "status synced", func() bool {
		return eng.Status() == models.StatusSynced
	})
	got := sk.delivered()
	if len(got) != 1 {
		t.Fatalf("got %d deliveries, want the collapsed final edit only", len(got))
	}
	if len(got[0].Answer) != 1 || got[0].Answer[0] != "D" {
		t.Errorf("delivered %v, want [D]", got[0].Answer)
	}
}

func TestGoingOffline_SetsOfflineStatus(t *testing.T) {
	sk := &fakeSink{}
	eng, _, net := newTestEngine(t, true, sk)

	if got := eng.Status(); got != models.StatusSynced {
		t.Fatalf("initial status = %v, want synced", got)
	}
	net.set(false)
	if got := eng.Status(); got != models.StatusOffline {
		t.Errorf("status = %v, want offline", got)
	}
}

func TestNew_RecomputesInitialStatus(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Initialize(dir)
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if _, err := st.PutAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("PutAnswer: %v", err)
	}

	eng := New(st, &fakeSink{}, newFakeNet(true))
	t.Cleanup(eng.Close)
	if got := eng.Status(); got != models.StatusSyncing {
		t.Errorf("status with backlog = %v, want syncing", got)
	}
}

func TestLoadExamAnswers_RepopulatesWithoutNetwork(t *testing.T) {
	sk := &fakeSink{fail: func(_, _ string) error {
		return errors.New("no calls expected")
	}}
	eng, _, _ := newTestEngine(t, false, sk)

	if err := eng.SaveAnswer("midterm", "q2", []string{"B"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := eng.SaveAnswer("midterm", "q1", []string{"A", "C"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	answers, err := eng.LoadExamAnswers("midterm")
	if err != nil {
		t.Fatalf("LoadExamAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("got %d answers, want 2", len(answers))
	}
	if answers[0].QuestionID != "q1" || answers[1].QuestionID != "q2" {
		t.Errorf("order = %s, %s; want q1, q2", answers[0].QuestionID, answers[1].QuestionID)
	}
}

func TestGetSyncStats(t *testing.T) {
	sk := &fakeSink{}
	eng, st, _ := newTestEngine(t, false, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := eng.CacheExam("midterm", []byte(`{"title":"Midterm"}`)); err != nil {
		t.Fatalf("CacheExam: %v", err)
	}
	if _, err := st.PutAnswer("final", "q1", []string{"B"}); err != nil {
		t.Fatalf("PutAnswer: %v", err)
	}

	stats, err := eng.GetSyncStats()
	if err != nil {
		t.Fatalf("GetSyncStats: %v", err)
	}
	if stats.TotalAnswers != 2 || stats.UnsyncedAnswers != 2 || stats.TotalExams != 1 {
		t.Errorf("stats = %+v, want 2 answers, 2 unsynced, 1 exam", stats)
	}
	if stats.IsOnline {
		t.Error("IsOnline = true, want false")
	}
	if stats.Status != models.StatusOffline {
		t.Errorf("status = %v, want offline", stats.Status)
	}
}

func TestClearExamData(t *testing.T) {
	sk := &fakeSink{}
	eng, st, _ := newTestEngine(t, false, sk)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if err := eng.CacheExam("midterm", []byte(`{}`)); err != nil {
		t.Fatalf("CacheExam: %v", err)
	}
	if err := eng.SaveAnswer("final", "q1", []string{"B"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	if err := eng.ClearExamData("midterm"); err != nil {
		t.Fatalf("ClearExamData: %v", err)
	}

	if _, err := st.GetAnswer("midterm", "q1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("midterm answer err = %v, want ErrNotFound", err)
	}
	if _, err := st.GetExam("midterm"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("midterm snapshot err = %v, want ErrNotFound", err)
	}
	if _, err := st.GetAnswer("final", "q1"); err != nil {
		t.Errorf("other exam's answer should survive: %v", err)
	}
}

func TestSaveAnswer_OfflineRegistersWake(t *testing.T) {
	st, err := store.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("initialize store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	wakeDir := t.TempDir()
	trigger := NewFileWakeTrigger(wakeDir)
	eng := New(st, &fakeSink{}, newFakeNet(false), WithWakeTrigger(trigger))
	t.Cleanup(eng.Close)

	if err := eng.SaveAnswer("midterm", "q1", []string{"A"}); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if !trigger.Pending(WakeTag) {
		t.Error("offline save should leave a wake request pending")
	}
}
