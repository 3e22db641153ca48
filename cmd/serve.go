package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/threadflow/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the threadflow HTTP server",
	Long:  `Starts the threadflow server with the chat API, thread history endpoints, transcript export, and a WebSocket chat channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		st, err := buildStack(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		}, st.store, st.orch)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
			persistMemories(cfg, st.memories)
		}()

		fmt.Fprintf(os.Stderr, "threadflow v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Provider: %s/%s\n", cfg.Provider, cfg.Model)
		if cfg.Fallback.Provider != "" {
			fmt.Fprintf(os.Stderr, "  Fallback: %s/%s\n", cfg.Fallback.Provider, cfg.Fallback.Model)
		}
		if st.memories != nil {
			fmt.Fprintf(os.Stderr, "  Memories: %d loaded\n", st.memories.Count())
		}

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured port")
	rootCmd.AddCommand(serveCmd)
}
