package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/output"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show sync state and local storage stats",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOut, _ := cmd.Flags().GetBool("json")

		rt, err := openRuntime(getBaseDir())
		if err != nil {
			if jsonOut {
				output.JSONError(output.ErrCodeDatabaseError, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}
		defer rt.Close()

		stats, err := rt.Engine.GetSyncStats()
		if err != nil {
			if jsonOut {
				output.JSONError(output.ErrCodeDatabaseError, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}

		if jsonOut {
			return output.JSON(stats)
		}

		fmt.Println(output.StatusBadge(stats.Status))
		fmt.Printf("answers: %d  pending: %d  exams cached: %d\n",
			stats.TotalAnswers, stats.UnsyncedAnswers, stats.TotalExams)
		if stats.IsOnline {
			fmt.Println(output.Subtle("server reachable"))
		} else {
			fmt.Println(output.Subtle("server unreachable"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "Output as JSON")
}
