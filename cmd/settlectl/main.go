// Command settlectl is the operator CLI for the settlement service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var Version = "dev"

var jsonOutput bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "settlectl",
		Short:         "Operate order settlement and webhook delivery",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(failuresCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(tokenCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
