package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "threadflow",
	Short: "Conversational backend with context-faithful multi-provider routing",
	Long: `Threadflow routes conversation turns to LLM providers while
guaranteeing every candidate provider sees the exact same context
window. It keeps durable per-thread history, resolves pronouns in
follow-up questions, and falls back to a secondary provider without
rebuilding context.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// .env is optional; real env vars win over file entries.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".threadflow.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
