package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/digicheckout/server/internal/model"
)

var (
	failuresWebhook string
	failuresEvent   string
	failuresLimit   int
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List failed webhook deliveries, newest first",
	Long: `List failed outbound webhook delivery attempts.

Examples:
  settlectl failures
  settlectl failures --event order.paid --limit 20
  settlectl failures --webhook 5f0c... --json`,
	Args: cobra.NoArgs,
	RunE: runFailures,
}

func init() {
	failuresCmd.Flags().StringVar(&failuresWebhook, "webhook", "", "Filter by webhook ID")
	failuresCmd.Flags().StringVar(&failuresEvent, "event", "", "Filter by event name")
	failuresCmd.Flags().IntVarP(&failuresLimit, "limit", "n", 50, "Maximum results")
}

func runFailures(cmd *cobra.Command, args []string) error {
	filter := &model.WebhookLogFilter{
		Event:      failuresEvent,
		FailedOnly: true,
		Limit:      failuresLimit,
	}
	if failuresWebhook != "" {
		id, err := uuid.Parse(failuresWebhook)
		if err != nil {
			return fmt.Errorf("invalid webhook id: %w", err)
		}
		filter.WebhookID = &id
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	logs, err := e.dispatcher().Logs(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, model.NewListResponse(logs))
	}
	if len(logs) == 0 {
		fmt.Fprintln(out, "No failed deliveries")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWEBHOOK\tEVENT\tATTEMPT\tSTATUS\tSENT")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			l.ID, l.WebhookID, l.Event, l.Attempt, l.StatusCode, l.SentAt.Format(time.RFC3339))
	}
	return w.Flush()
}
