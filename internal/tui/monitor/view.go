package monitor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/output"
)

const maxPendingRows = 12

// View implements tea.Model
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.renderSummary())
	sb.WriteString("\n")
	sb.WriteString(m.renderPending())
	sb.WriteString("\n")
	sb.WriteString(m.renderFooter())

	return sb.String()
}

func (m Model) renderHeader() string {
	status := m.Stats.Status
	line := headerStyle.Render("examsync monitor")
	if m.Syncing {
		line += "  " + m.Spinner.View() + styleForStatus(models.StatusSyncing).Render("flushing...")
	} else {
		line += "  " + styleForStatus(status).Render(models.FormatSyncStatus(status))
	}

	conn := "online"
	connStyle := styleForStatus(models.StatusSynced)
	if !m.Stats.IsOnline {
		conn = "offline"
		connStyle = styleForStatus(models.StatusOffline)
	}
	line += "  " + connStyle.Render(conn)
	return line
}

func (m Model) renderSummary() string {
	body := fmt.Sprintf("answers: %d   pending: %d   exams cached: %d",
		m.Stats.TotalAnswers, m.Stats.UnsyncedAnswers, m.Stats.TotalExams)
	if m.Err != nil {
		body += "\n" + errorStyle.Render("error: "+m.Err.Error())
	}
	return borderStyle.Render(body)
}

func (m Model) renderPending() string {
	if len(m.Pending) == 0 {
		return borderStyle.Render(subtleStyle.Render("nothing pending"))
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("PENDING"))
	sb.WriteString("\n")

	examIDs := make([]string, 0, len(m.ExamCount))
	for examID := range m.ExamCount {
		examIDs = append(examIDs, examID)
	}
	sort.Strings(examIDs)
	var parts []string
	for _, examID := range examIDs {
		parts = append(parts, fmt.Sprintf("%s (%d)", examID, m.ExamCount[examID]))
	}
	sb.WriteString(subtleStyle.Render(strings.Join(parts, "  ")))
	sb.WriteString("\n\n")

	rows := m.Pending
	if len(rows) > maxPendingRows {
		rows = rows[:maxPendingRows]
	}
	for i := range rows {
		sb.WriteString(fmt.Sprintf("%s/%s  %s\n",
			rows[i].ExamID, rows[i].QuestionID,
			subtleStyle.Render(output.FormatTimeAgo(rows[i].Timestamp))))
	}
	if len(m.Pending) > maxPendingRows {
		sb.WriteString(subtleStyle.Render(fmt.Sprintf("... and %d more", len(m.Pending)-maxPendingRows)))
		sb.WriteString("\n")
	}
	return borderStyle.Render(strings.TrimRight(sb.String(), "\n"))
}

func (m Model) renderFooter() string {
	refreshed := "never"
	if !m.LastRefresh.IsZero() {
		refreshed = m.LastRefresh.Format("15:04:05")
	}
	return subtleStyle.Render(fmt.Sprintf("s sync  r refresh  q quit   refreshed %s   %s", refreshed, m.Version))
}
