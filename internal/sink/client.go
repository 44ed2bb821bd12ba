// Package sink is the HTTP client for the remote answer sink: the server
// endpoint that upserts one answer at a time, idempotently per
// (exam_id, question_id). Failures are uniform "retry later" signals; the
// engine never needs to distinguish 4xx from 5xx.
package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for delivery failure classes.
var (
	// ErrUnreachable covers network-level failures: DNS, refused
	// connections, timeouts. These also demote the connectivity monitor.
	ErrUnreachable = errors.New("sink unreachable")
	// ErrRejected covers non-2xx responses from a reachable server.
	ErrRejected = errors.New("sink rejected request")
)

// DefaultTimeout bounds each delivery attempt so one unreachable request
// cannot stall an entire flush pass.
const DefaultTimeout = 15 * time.Second

// Client talks to the remote answer sink.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a sink client. A zero timeout falls back to DefaultTimeout.
func New(baseURL, apiKey, deviceID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// answerPayload is the wire body for POST /exams/{examId}/answers.
type answerPayload struct {
	ExamID     string   `json:"examId"`
	QuestionID string   `json:"questionId"`
	Answer     []string `json:"answer"`
	Timestamp  string   `json:"timestamp"`
}

// PushAnswer delivers a single answer. Any 2xx response counts as
// acknowledged; the body is ignored. The server upserts by key, so blind
// retry after an ambiguous failure is safe.
func (c *Client) PushAnswer(examID, questionID string, answer []string, ts time.Time) error {
	if answer == nil {
		answer = []string{}
	}
	body := answerPayload{
		ExamID:     examID,
		QuestionID: questionID,
		Answer:     answer,
		Timestamp:  ts.UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	path := fmt.Sprintf("/exams/%s/answers", url.PathEscape(examID))
	req, err := http.NewRequest("POST", c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// Health probes the sink's health endpoint. Used by the connectivity
// monitor; a nil return means the sink is reachable.
func (c *Client) Health() error {
	req, err := http.NewRequest("GET", c.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
	}
	return nil
}
