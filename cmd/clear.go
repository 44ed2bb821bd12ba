package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/output"
	"github.com/werner/examsync/internal/store"
)

var clearCmd = &cobra.Command{
	Use:   "clear [exam-id]",
	Short: "Remove an exam's local answers and cached definition",
	Long: `Deletes local data for a submitted exam. With --all, wipes every
answer and cached exam. Pending answers are deleted too, so only clear
after submission is confirmed server-side.`,
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		force, _ := cmd.Flags().GetBool("force")

		if !all && len(args) == 0 {
			return fmt.Errorf("specify an exam id or --all")
		}

		st, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		stats, err := st.Stats()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if stats.UnsyncedAnswers > 0 && !force {
			output.Warning("%d answer(s) have not been delivered yet", stats.UnsyncedAnswers)
			fmt.Print("Delete anyway? [y/N]: ")
			reader := bufio.NewReader(os.Stdin)
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				output.Info("aborted")
				return nil
			}
		}

		if all {
			if err := st.ClearAll(); err != nil {
				output.Error("%v", err)
				return err
			}
			output.Success("cleared all local exam data")
			return nil
		}

		examID := args[0]
		if err := st.DeleteExamAnswers(examID); err != nil {
			output.Error("%v", err)
			return err
		}
		if err := st.DeleteExam(examID); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("cleared local data for %s", examID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().Bool("all", false, "Clear every exam's local data")
	clearCmd.Flags().Bool("force", false, "Skip the confirmation for undelivered answers")
}
