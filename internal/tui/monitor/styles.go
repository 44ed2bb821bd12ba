package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/werner/examsync/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))

	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.StatusSynced:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		models.StatusSyncing: lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true),
		models.StatusOffline: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		models.StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

func styleForStatus(s models.SyncStatus) lipgloss.Style {
	if style, ok := statusStyles[s]; ok {
		return style
	}
	return subtleStyle
}
