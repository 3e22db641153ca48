package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/threadflow/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing chat and memory-search tools for AI agents.`,
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
		defer persistMemories(cfg, st.memories)

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "threadflow MCP server started on stdio (provider=%s/%s)\n", cfg.Provider, cfg.Model)

		srv := mcpserver.NewServer(st.orch, st.memories)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
