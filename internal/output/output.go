// Package output provides styled terminal output helpers (success, error,
// warning, sync status formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/werner/examsync/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.StatusSynced:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.StatusSyncing: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StatusOffline: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeDatabaseError = "database_error"
	ErrCodeSyncError     = "sync_error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	fmt.Printf(`{"error":{"code":"%s","message":"%s"}}`, code, message)
	fmt.Println()
}

// FormatStatus formats a sync status with color
func FormatStatus(s models.SyncStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// StatusBadge returns a sync status indicator with symbol and the
// user-facing status phrase, e.g. "✓ All changes saved".
func StatusBadge(status models.SyncStatus) string {
	symbols := map[models.SyncStatus]string{
		models.StatusSynced:  "✓",
		models.StatusSyncing: "↻",
		models.StatusOffline: "○",
		models.StatusError:   "✗",
	}
	symbol, ok := symbols[status]
	if !ok {
		symbol = "?"
	}
	text := fmt.Sprintf("%s %s", symbol, models.FormatSyncStatus(status))
	if style, hasStyle := statusStyles[status]; hasStyle {
		return style.Render(text)
	}
	return text
}

// Title renders bold text for headers.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Subtle renders dimmed text for secondary detail.
func Subtle(s string) string {
	return subtleStyle.Render(s)
}

// FormatAnswerLine formats one answer for listing output.
// e.g. "q3  [A, C]  2m ago  pending"
func FormatAnswerLine(rec *models.AnswerRecord) string {
	var parts []string
	parts = append(parts, titleStyle.Render(rec.QuestionID))
	parts = append(parts, fmt.Sprintf("[%s]", strings.Join(rec.Answer, ", ")))
	parts = append(parts, subtleStyle.Render(FormatTimeAgo(rec.Timestamp)))
	if rec.Synced {
		parts = append(parts, successStyle.Render("synced"))
	} else {
		parts = append(parts, warningStyle.Render("pending"))
	}
	return strings.Join(parts, "  ")
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPENDING:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
