package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/threadflow/internal/importers"
	"github.com/ziadkadry99/threadflow/internal/progress"
)

var importCmd = &cobra.Command{
	Use:   "import <glob>",
	Short: "Import JSON conversation transcripts into the thread store",
	Long: `Imports transcript files matching a glob pattern (doublestar ** is
supported), e.g.:

  threadflow import "exports/**/*.json"

Each file holds one thread: {"thread_id": "...", "user_id": "...",
"turns": [{"role": "user", "content": "..."}]}. Malformed files are
skipped and reported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		st, err := buildStack(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		imp := importers.New(st.store, progress.NewReporter())
		summary, err := imp.ImportGlob(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d thread(s), %d turn(s) from %d file(s)\n", summary.Threads, summary.Turns, summary.Files)
		for _, skipped := range summary.Skipped {
			fmt.Fprintf(os.Stderr, "Skipped %s\n", skipped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
