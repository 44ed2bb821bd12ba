package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/werner/examsync/internal/models"
)

// PutExam caches an exam definition locally, replacing any previous
// snapshot for the same exam.
func (s *Store) PutExam(examID string, payload json.RawMessage) error {
	if examID == "" {
		return fmt.Errorf("put exam: empty exam id")
	}
	if len(payload) == 0 {
		return fmt.Errorf("put exam: empty payload")
	}

	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR REPLACE INTO exams (exam_id, payload, timestamp)
			VALUES (?, ?, ?)
		`, examID, string(payload), time.Now())
		if err != nil {
			return fmt.Errorf("upsert exam: %w", err)
		}
		return nil
	})
}

// GetExam returns the cached snapshot for an exam, or ErrNotFound.
func (s *Store) GetExam(examID string) (*models.ExamSnapshot, error) {
	var snap models.ExamSnapshot
	var payload string

	err := s.conn.QueryRow(`
		SELECT exam_id, payload, timestamp FROM exams WHERE exam_id = ?
	`, examID).Scan(&snap.ExamID, &payload, &snap.Timestamp)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}

	snap.Payload = json.RawMessage(payload)
	return &snap, nil
}

// DeleteExam removes the cached snapshot for an exam.
func (s *Store) DeleteExam(examID string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM exams WHERE exam_id = ?`, examID)
		if err != nil {
			return fmt.Errorf("delete exam: %w", err)
		}
		return nil
	})
}

// ClearAll wipes answers and exam snapshots in one transaction. Used for
// device handback after all exams are confirmed submitted.
func (s *Store) ClearAll() error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM answers`); err != nil {
			return fmt.Errorf("clear answers: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM exams`); err != nil {
			return fmt.Errorf("clear exams: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// StoreStats holds record counts for diagnostics.
type StoreStats struct {
	TotalAnswers    int
	UnsyncedAnswers int
	TotalExams      int
}

// Stats returns record counts in a single query.
func (s *Store) Stats() (StoreStats, error) {
	var st StoreStats
	err := s.conn.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END), 0),
			(SELECT COUNT(*) FROM exams)
		FROM answers
	`).Scan(&st.TotalAnswers, &st.UnsyncedAnswers, &st.TotalExams)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
