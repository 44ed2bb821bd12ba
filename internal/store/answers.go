package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/werner/examsync/internal/models"
)

// PutAnswer inserts or replaces the answer for (examID, questionID). An
// existing record is overwritten in place: value and timestamp replaced,
// synced reset to false, local ID retained. Returns the stored record.
func (s *Store) PutAnswer(examID, questionID string, answer []string) (*models.AnswerRecord, error) {
	if examID == "" {
		return nil, fmt.Errorf("put answer: empty exam id")
	}
	if questionID == "" {
		return nil, fmt.Errorf("put answer: empty question id")
	}

	encoded, err := json.Marshal(answer)
	if err != nil {
		return nil, fmt.Errorf("put answer: encode value: %w", err)
	}

	now := time.Now()
	var localID int64

	err = s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO answers (exam_id, question_id, answer, timestamp, synced)
			VALUES (?, ?, ?, ?, 0)
			ON CONFLICT(exam_id, question_id) DO UPDATE SET
				answer = excluded.answer,
				timestamp = excluded.timestamp,
				synced = 0
		`, examID, questionID, string(encoded), now)
		if err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}

		// LastInsertId is meaningless on the conflict path, so look the
		// row up by key while still holding the lock.
		err = s.conn.QueryRow(
			`SELECT id FROM answers WHERE exam_id = ? AND question_id = ?`,
			examID, questionID,
		).Scan(&localID)
		if err != nil {
			return fmt.Errorf("lookup answer id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.AnswerRecord{
		LocalID:    localID,
		ExamID:     examID,
		QuestionID: questionID,
		Answer:     answer,
		Timestamp:  now,
		Synced:     false,
	}, nil
}

// GetAnswer returns the record for (examID, questionID), or ErrNotFound.
func (s *Store) GetAnswer(examID, questionID string) (*models.AnswerRecord, error) {
	row := s.conn.QueryRow(`
		SELECT id, exam_id, question_id, answer, timestamp, synced
		FROM answers WHERE exam_id = ? AND question_id = ?
	`, examID, questionID)

	rec, err := scanAnswer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return rec, nil
}

// ListExamAnswers returns all answers for an exam, ordered by question ID
// for stable output. Callers must not read meaning into the order.
func (s *Store) ListExamAnswers(examID string) ([]models.AnswerRecord, error) {
	rows, err := s.conn.Query(`
		SELECT id, exam_id, question_id, answer, timestamp, synced
		FROM answers WHERE exam_id = ? ORDER BY question_id
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam answers: %w", err)
	}
	defer rows.Close()

	return collectAnswers(rows)
}

// ListUnsynced returns records not yet confirmed delivered, oldest local
// mutation first. An empty examID means all exams.
func (s *Store) ListUnsynced(examID string) ([]models.AnswerRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if examID != "" {
		rows, err = s.conn.Query(`
			SELECT id, exam_id, question_id, answer, timestamp, synced
			FROM answers WHERE synced = 0 AND exam_id = ? ORDER BY timestamp ASC, id ASC
		`, examID)
	} else {
		rows, err = s.conn.Query(`
			SELECT id, exam_id, question_id, answer, timestamp, synced
			FROM answers WHERE synced = 0 ORDER BY timestamp ASC, id ASC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w", err)
	}
	defer rows.Close()

	return collectAnswers(rows)
}

// MarkSynced flips the synced flag for a record. Idempotent: a missing or
// already-synced record is a no-op, since the record may have been
// overwritten or deleted while a delivery was in flight.
func (s *Store) MarkSynced(localID int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`UPDATE answers SET synced = 1 WHERE id = ?`, localID)
		if err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
		return nil
	})
}

// DeleteExamAnswers removes all answers for an exam. Used only on exam
// teardown after final submission is confirmed.
func (s *Store) DeleteExamAnswers(examID string) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM answers WHERE exam_id = ?`, examID)
		if err != nil {
			return fmt.Errorf("delete exam answers: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnswer(row rowScanner) (*models.AnswerRecord, error) {
	var rec models.AnswerRecord
	var encoded string
	var synced int

	if err := row.Scan(&rec.LocalID, &rec.ExamID, &rec.QuestionID, &encoded, &rec.Timestamp, &synced); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(encoded), &rec.Answer); err != nil {
		return nil, fmt.Errorf("decode answer value: %w", err)
	}
	rec.Synced = synced != 0

	return &rec, nil
}

func collectAnswers(rows *sql.Rows) ([]models.AnswerRecord, error) {
	var records []models.AnswerRecord
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}
