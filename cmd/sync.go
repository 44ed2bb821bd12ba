package cmd

import (
	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/engine"
	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/output"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Deliver all pending answers now",
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

		before, err := rt.Store.Stats()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if !rt.Monitor.IsOnline() {
			if jsonOut {
				return output.JSON(map[string]interface{}{
					"delivered": 0,
					"remaining": before.UnsyncedAnswers,
					"status":    rt.Engine.Status(),
				})
			}
			output.Warning("server unreachable, %d answer(s) still queued", before.UnsyncedAnswers)
			return nil
		}

		if err := rt.Engine.SyncAllPendingAnswers(); err != nil {
			if jsonOut {
				output.JSONError(output.ErrCodeSyncError, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}

		after, err := rt.Store.Stats()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		delivered := before.UnsyncedAnswers - after.UnsyncedAnswers

		if after.UnsyncedAnswers == 0 {
			if err := rt.Wake.Clear(engine.WakeTag); err != nil {
				output.Warning("clear wake request: %v", err)
			}
		}

		if jsonOut {
			return output.JSON(map[string]interface{}{
				"delivered": delivered,
				"remaining": after.UnsyncedAnswers,
				"status":    rt.Engine.Status(),
			})
		}

		switch rt.Engine.Status() {
		case models.StatusSynced:
			output.Success("delivered %d answer(s), nothing pending", delivered)
		case models.StatusError:
			output.Error("server rejected pending answers, %d still queued", after.UnsyncedAnswers)
		default:
			output.Warning("delivered %d answer(s), %d still queued", delivered, after.UnsyncedAnswers)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("json", false, "Output as JSON")
}
