// Package monitor implements the live sync dashboard TUI.
package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/werner/examsync/internal/engine"
	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/store"
)

// TickMsg drives the periodic refresh cycle.
type TickMsg time.Time

// RefreshDataMsg carries a fresh snapshot of local sync state.
type RefreshDataMsg struct {
	Stats     models.SyncStats
	Pending   []models.AnswerRecord
	ExamCount map[string]int
	Timestamp time.Time
	Err       error
}

// SyncDoneMsg reports the outcome of a manual flush.
type SyncDoneMsg struct {
	Err error
}

// Model is the Bubble Tea model for the sync dashboard.
type Model struct {
	Store  *store.Store
	Engine *engine.Engine

	Width  int
	Height int

	Stats       models.SyncStats
	Pending     []models.AnswerRecord
	ExamCount   map[string]int
	LastRefresh time.Time
	Err         error

	Interval time.Duration
	Syncing  bool
	Spinner  spinner.Model
	Version  string
}

// NewModel creates a monitor model with the given refresh interval.
func NewModel(st *store.Store, eng *engine.Engine, interval time.Duration, version string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		Store:     st,
		Engine:    eng,
		ExamCount: make(map[string]int),
		Interval:  interval,
		Spinner:   sp,
		Version:   version,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchData(), m.scheduleTick(), m.Spinner.Tick)
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.Interval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		// Reschedule first so a fetch error never breaks the poll chain.
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.Stats = msg.Stats
		m.Pending = msg.Pending
		m.ExamCount = msg.ExamCount
		m.LastRefresh = msg.Timestamp
		m.Err = msg.Err
		return m, nil

	case SyncDoneMsg:
		m.Syncing = false
		m.Err = msg.Err
		return m, m.fetchData()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetchData()
		case "s":
			if m.Syncing {
				return m, nil
			}
			m.Syncing = true
			return m, m.runSync()
		}
	}
	return m, nil
}

// fetchData loads the current snapshot off the UI goroutine.
func (m Model) fetchData() tea.Cmd {
	st, eng := m.Store, m.Engine
	return func() tea.Msg {
		msg := RefreshDataMsg{
			Timestamp: time.Now(),
			ExamCount: make(map[string]int),
		}

		stats, err := eng.GetSyncStats()
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Stats = stats

		pending, err := st.ListUnsynced("")
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Pending = pending
		for _, rec := range pending {
			msg.ExamCount[rec.ExamID]++
		}
		return msg
	}
}

func (m Model) runSync() tea.Cmd {
	eng := m.Engine
	return func() tea.Msg {
		return SyncDoneMsg{Err: eng.SyncAllPendingAnswers()}
	}
}
