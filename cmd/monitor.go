package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/output"
	"github.com/werner/examsync/internal/tui/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI dashboard for sync state",
	Long: `Launch a live-updating dashboard showing the aggregate sync status,
connectivity, and the pending answer backlog per exam.

Key bindings:
  s  Flush pending answers now
  r  Force refresh
  q  Quit`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer rt.Close()

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		model := monitor.NewModel(rt.Store, rt.Engine, interval, version)

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval (default 2s)")
}
