package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WakeTag is the deferred-delivery tag registered when a save happens
// while offline.
const WakeTag = "sync-answers"

// WakeTrigger is the optional background delivery facility: a best-effort
// request to have the host invoke a flush pass later, even if the process
// that registered it is gone by then. Not every platform has one; the
// engine treats a nil trigger as "no background delivery", never an error.
type WakeTrigger interface {
	RegisterWakeRequest(tag string) error
}

// FileWakeTrigger implements WakeTrigger with a marker file. Any later
// examsync invocation (sync, watch) checks the marker on startup, drains
// the backlog, and clears it — the closest a CLI process gets to a
// platform waking it up.
type FileWakeTrigger struct {
	dir string
}

// NewFileWakeTrigger creates a trigger writing markers under dir.
func NewFileWakeTrigger(dir string) *FileWakeTrigger {
	return &FileWakeTrigger{dir: dir}
}

func (t *FileWakeTrigger) markerPath(tag string) string {
	return filepath.Join(t.dir, "pending-"+tag)
}

// RegisterWakeRequest drops the marker. Registering an already-registered
// tag refreshes the timestamp and is not an error.
func (t *FileWakeTrigger) RegisterWakeRequest(tag string) error {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("create wake dir: %w", err)
	}
	content := time.Now().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(t.markerPath(tag), []byte(content), 0644); err != nil {
		return fmt.Errorf("write wake marker: %w", err)
	}
	return nil
}

// Pending reports whether a wake request is outstanding.
func (t *FileWakeTrigger) Pending(tag string) bool {
	_, err := os.Stat(t.markerPath(tag))
	return err == nil
}

// Clear removes the marker. Clearing an absent marker is a no-op.
func (t *FileWakeTrigger) Clear(tag string) error {
	err := os.Remove(t.markerPath(tag))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear wake marker: %w", err)
	}
	return nil
}
