package cmd

import (
	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/output"
)

var saveCmd = &cobra.Command{
	Use:   "save <exam-id> <question-id> [answer...]",
	Short: "Record an answer locally and deliver it in the background",
	Long: `Persists the answer to the local store and returns immediately. When the
server is reachable the answer is delivered before the command exits;
otherwise it stays queued for the next sync.

Saving the same question again overwrites the previous answer. An empty
answer list records a cleared selection.`,
	GroupID: "core",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		examID, questionID := args[0], args[1]
		answer := args[2:]
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

		if err := rt.Engine.SaveAnswer(examID, questionID, answer); err != nil {
			if jsonOut {
				output.JSONError(output.ErrCodeDatabaseError, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}

		// Close waits for the background delivery, so the badge printed
		// afterwards reflects the real outcome.
		rt.Engine.Close()

		if jsonOut {
			rec, err := rt.Store.GetAnswer(examID, questionID)
			if err != nil {
				output.JSONError(output.ErrCodeNotFound, err.Error())
				return err
			}
			return output.JSON(rec)
		}

		output.Success("saved %s/%s", examID, questionID)
		output.Info("%s", output.StatusBadge(rt.Engine.Status()))
		if rt.Engine.Status() == models.StatusOffline {
			output.Info("the answer will sync when connectivity returns")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().Bool("json", false, "Output the stored record as JSON")
}
