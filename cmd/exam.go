package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/output"
	"github.com/werner/examsync/internal/store"
)

var examCmd = &cobra.Command{
	Use:     "exam",
	Short:   "Manage cached exam definitions",
	GroupID: "core",
}

var examCacheCmd = &cobra.Command{
	Use:   "cache <exam-id> [file]",
	Short: "Cache an exam definition for offline use",
	Long: `Stores the exam definition JSON locally so the exam can be resumed
without connectivity. Reads from the given file, or stdin when omitted.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		examID := args[0]

		var data []byte
		var err error
		if len(args) == 2 {
			data, err = os.ReadFile(args[1])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			output.Error("read exam definition: %v", err)
			return err
		}
		if !json.Valid(data) {
			output.Error("exam definition is not valid JSON")
			return fmt.Errorf("invalid JSON payload")
		}

		st, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		if err := st.PutExam(examID, data); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("cached exam %s (%d bytes)", examID, len(data))
		return nil
	},
}

var examShowCmd = &cobra.Command{
	Use:   "show <exam-id>",
	Short: "Print a cached exam definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer st.Close()

		snap, err := st.GetExam(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		fmt.Println(string(snap.Payload))
		return nil
	},
}

func init() {
	examCmd.AddCommand(examCacheCmd)
	examCmd.AddCommand(examShowCmd)
	rootCmd.AddCommand(examCmd)
}
