package models

import (
	"encoding/json"
	"time"
)

// SyncStatus is the aggregate sync health shown to the test-taker.
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusSyncing SyncStatus = "syncing"
	StatusOffline SyncStatus = "offline"
	StatusError   SyncStatus = "error"
)

// AnswerRecord is one durably stored answer. There is exactly one live
// record per (exam_id, question_id); saving again overwrites in place.
type AnswerRecord struct {
	LocalID    int64     `json:"local_id"`
	ExamID     string    `json:"exam_id"`
	QuestionID string    `json:"question_id"`
	Answer     []string  `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
	Synced     bool      `json:"synced"`
}

// ExamAnswer is the sync-state-free view of an answer handed back to the
// UI on exam resume.
type ExamAnswer struct {
	QuestionID string    `json:"question_id"`
	Answer     []string  `json:"answer"`
	Timestamp  time.Time `json:"timestamp"`
}

// ExamSnapshot caches an exam definition locally so the UI can resume a
// session with no network at all.
type ExamSnapshot struct {
	ExamID    string
	Payload   json.RawMessage
	Timestamp time.Time
}

// SyncStats is a read-only diagnostic snapshot.
type SyncStats struct {
	TotalAnswers    int        `json:"total_answers"`
	UnsyncedAnswers int        `json:"unsynced_answers"`
	TotalExams      int        `json:"total_exams"`
	IsOnline        bool       `json:"is_online"`
	Status          SyncStatus `json:"sync_status"`
}

// FormatSyncStatus maps a status to the line shown in the UI indicator.
func FormatSyncStatus(s SyncStatus) string {
	switch s {
	case StatusSynced:
		return "All changes saved"
	case StatusSyncing:
		return "Saving..."
	case StatusOffline:
		return "Offline - saved locally"
	case StatusError:
		return "Sync error"
	default:
		return "Unknown"
	}
}
