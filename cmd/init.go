package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/werner/examsync/internal/output"
	"github.com/werner/examsync/internal/store"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize local answer storage",
	Long:    `Creates the local .examsync directory and SQLite database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if _, err := os.Stat(filepath.Join(baseDir, ".examsync")); err == nil {
			output.Warning(".examsync/ already exists")
			return nil
		}

		st, err := store.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize database: %v", err)
			return err
		}
		defer st.Close()

		fmt.Println("INITIALIZED .examsync/")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
