package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay [log-id]",
	Short: "Redeliver a logged webhook attempt",
	Long: `Redeliver the payload of a logged attempt to its webhook, synchronously.
A new log row is written for the replay.

Examples:
  settlectl replay 0b6f3f7e-5d3c-4c55-9d2e-4a3b7c1d9e10`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	logID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid log id: %w", err)
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	entry, err := e.dispatcher().Replay(cmd.Context(), logID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, entry)
	}
	result := "failed"
	if entry.Success {
		result = "delivered"
	}
	fmt.Fprintf(out, "Replay %s: %s (HTTP %d, attempt %d)\n", entry.ID, result, entry.StatusCode, entry.Attempt)
	return nil
}
