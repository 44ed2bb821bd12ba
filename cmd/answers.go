package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/models"
	"github.com/werner/examsync/internal/output"
	"github.com/werner/examsync/internal/store"
)

var answersCmd = &cobra.Command{
	Use:     "answers <exam-id>",
	Short:   "List locally stored answers for an exam",
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		examID := args[0]
		pendingOnly, _ := cmd.Flags().GetBool("pending")
		jsonOut, _ := cmd.Flags().GetBool("json")

		st, err := store.Open(getBaseDir())
		if err != nil {
			if jsonOut {
				output.JSONError(output.ErrCodeDatabaseError, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}
		defer st.Close()

		var records []models.AnswerRecord
		if pendingOnly {
			records, err = st.ListUnsynced(examID)
		} else {
			records, err = st.ListExamAnswers(examID)
		}
		if err != nil {
			if jsonOut {
				output.JSONError(output.ErrCodeDatabaseError, err.Error())
			} else {
				output.Error("%v", err)
			}
			return err
		}

		if jsonOut {
			return output.JSON(records)
		}

		if len(records) == 0 {
			output.Info("no answers stored for %s", examID)
			return nil
		}
		fmt.Println(output.Title(examID))
		for i := range records {
			fmt.Println(output.FormatAnswerLine(&records[i]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(answersCmd)
	answersCmd.Flags().Bool("pending", false, "Show only answers not yet delivered")
	answersCmd.Flags().Bool("json", false, "Output as JSON")
}
