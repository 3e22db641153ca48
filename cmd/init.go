package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/threadflow/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize threadflow configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure providers, fallback, and memory, and generates a .threadflow.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
