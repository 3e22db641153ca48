package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/threadflow/internal/orchestrator"
)

var (
	chatThreadID string
	chatUserID   string
	chatProvider string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively from the terminal",
	Long:  `Opens an interactive chat session. Follow-up questions resolve pronouns against earlier turns; type /quit to exit.`,
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

		threadID := chatThreadID
		if threadID == "" {
			threadID = uuid.NewString()
		}

		fmt.Printf("threadflow chat (thread %s) — /quit to exit\n\n", threadID)

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" || line == "/exit" {
				break
			}

			result, err := st.orch.ProcessTurn(cmd.Context(), orchestrator.TurnRequest{
				ThreadID:         threadID,
				UserID:           chatUserID,
				Message:          line,
				ProviderOverride: chatProvider,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}

			fmt.Printf("\n%s\n", result.Answer)
			if verbose {
				fmt.Fprintf(os.Stderr, "[%s/%s %s resolved=%q]\n", result.Provider, result.Model, result.RoutingReason, result.ResolvedQuery)
			}
			fmt.Println()
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatThreadID, "thread", "", "thread to continue (default: new thread)")
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "user ID for memory scoping")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "force a provider instead of automatic routing")
	rootCmd.AddCommand(chatCmd)
}
