package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lexicon-cli/internal/model"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the enrichment queue",
	Long:  "Commands for scheduling, draining and inspecting queued re-enrichment work.",
}

// -- queue enqueue --

var queueEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Schedule a profile, a word, or every low-scoring profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		word, _ := cmd.Flags().GetString("word")
		id, _ := cmd.Flags().GetString("id")
		stale, _ := cmd.Flags().GetBool("stale")
		threshold, _ := cmd.Flags().GetInt("threshold")
		limit, _ := cmd.Flags().GetInt("limit")
		priority, _ := cmd.Flags().GetInt("priority")

		set := 0
		for _, b := range []bool{word != "", id != "", stale} {
			if b {
				set++
			}
		}
		if set != 1 {
			return eris.New("exactly one of --word, --id or --stale is required")
		}

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		if stale {
			n, err := env.Pipeline.EnqueueStale(ctx, threshold, limit)
			if err != nil {
				return eris.Wrap(err, "queue enqueue")
			}
			fmt.Fprintf(os.Stdout, "enqueued %d profiles\n", n)
			return nil
		}

		var item *model.QueueItem
		if id != "" {
			item, err = env.Pipeline.Enqueue(ctx, id, priority)
		} else {
			item, err = env.Pipeline.EnqueueWord(ctx, word, priority)
		}
		if err != nil {
			return eris.Wrap(err, "queue enqueue")
		}
		fmt.Fprintf(os.Stdout, "enqueued %s (profile %s, priority %d)\n", item.ID, item.WordProfileID, item.Priority)
		return nil
	},
}

// -- queue process --

var queueProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Drain pending queue items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		maxItems, _ := cmd.Flags().GetInt("max")

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Pipeline.ProcessQueue(ctx, maxItems)
		if err != nil {
			return eris.Wrap(err, "queue process")
		}
		formatProcessSummary(os.Stdout, summary)
		return nil
	},
}

// -- queue list --

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queue items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		qs := model.QueueStatus(status)
		if status != "" && !qs.IsValid() {
			return eris.Errorf("unknown status %q", status)
		}

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Pipeline.ListQueue(ctx, qs, limit)
		if err != nil {
			return eris.Wrap(err, "queue list")
		}
		if asJSON {
			return writeJSON(os.Stdout, items)
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No queue items found.")
			return nil
		}
		formatQueueList(os.Stdout, items)
		return nil
	},
}

// -- queue stats --

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count queue items per status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Pipeline.QueueStats(ctx)
		if err != nil {
			return eris.Wrap(err, "queue stats")
		}
		formatQueueStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	queueEnqueueCmd.Flags().String("word", "", "word to enqueue (created if unknown)")
	queueEnqueueCmd.Flags().String("id", "", "profile id to enqueue")
	queueEnqueueCmd.Flags().Bool("stale", false, "enqueue every profile scoring below --threshold")
	queueEnqueueCmd.Flags().Int("threshold", 0, "score threshold for --stale (default quality.enrich_below)")
	queueEnqueueCmd.Flags().Int("limit", 100, "maximum profiles enqueued by --stale")
	queueEnqueueCmd.Flags().Int("priority", 0, "queue priority, higher first (default queue.default_priority)")

	queueProcessCmd.Flags().Int("max", 10, "maximum items to process")

	queueListCmd.Flags().String("status", "", "filter by status (pending, processing, completed, failed)")
	queueListCmd.Flags().Int("limit", 50, "maximum items to list")
	queueListCmd.Flags().Bool("json", false, "print items as JSON")

	queueCmd.AddCommand(queueEnqueueCmd, queueProcessCmd, queueListCmd, queueStatsCmd)
	rootCmd.AddCommand(queueCmd)
}
