package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/clique-kr/episodes/internal/version"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "episodectl",
		Short:         "Operator tool for the episodes index endpoint",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", envOr("EPISODES_SERVER", "http://localhost:8000"), "Base URL of the episodes server")
	rootCmd.PersistentFlags().Duration("timeout", defaultTimeout, "Request timeout")

	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(seedCmd())

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
