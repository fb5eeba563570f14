package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/queue"
)

// writeJSON pretty-prints v to out.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatEnrichResult writes a one-word enrichment summary to out.
func formatEnrichResult(out io.Writer, r *model.EnrichmentResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	status := "ok"
	if !r.Success {
		status = "failed"
	}
	_, _ = fmt.Fprintf(w, "Word:\t%s\n", r.Word)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", status)
	_, _ = fmt.Fprintf(w, "Score:\t%d -> %d\n", r.QualityScoreBefore, r.QualityScoreAfter)
	if len(r.SourcesUsed) > 0 {
		_, _ = fmt.Fprintf(w, "Sources:\t%s\n", strings.Join(r.SourcesUsed, ", "))
	}
	if len(r.FieldsEnriched) > 0 {
		_, _ = fmt.Fprintf(w, "Fields:\t%s\n", strings.Join(r.FieldsEnriched, ", "))
	}
	if len(r.Conflicts) > 0 {
		_, _ = fmt.Fprintf(w, "Conflicts:\t%d\n", len(r.Conflicts))
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", r.Error)
	}
	_ = w.Flush()
}

// formatProfiles writes a tabular list of profiles to out.
func formatProfiles(out io.Writer, profiles []model.WordProfile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWORD\tSCORE\tDEFINITION")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----------")
	for i := range profiles {
		p := &profiles[i]
		def := p.Definitions.Primary
		if len(def) > 60 {
			def = def[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", truncateID(p.ID), p.Word, p.QualityScore, def)
	}
	_ = w.Flush()
}

// formatQualityReport writes the per-check breakdown of a report to out.
func formatQualityReport(out io.Writer, r *model.QualityReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Word:\t%s\n", r.Word)
	_, _ = fmt.Fprintf(w, "Overall:\t%d (passed=%t)\n", r.OverallScore, r.Passed)
	_, _ = fmt.Fprintf(w, "Assessed:\t%s\n", r.Timestamp.Format("2006-01-02 15:04"))
	_, _ = fmt.Fprintln(w, "\nCHECK\tSCORE\tPASSED\tISSUES")
	for _, c := range r.Checks {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%t\t%d\n", c.Type, c.Score, c.Passed, len(c.Issues))
	}
	for _, rec := range r.Recommendations {
		_, _ = fmt.Fprintf(w, "  - %s\n", rec)
	}
	_ = w.Flush()
}

// formatTrends writes historical scores to out, oldest first.
func formatTrends(out io.Writer, points []model.QualityTrendPoint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ASSESSED\tSCORE")
	for _, p := range points {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", p.Timestamp.Format("2006-01-02 15:04"), p.Score)
	}
	_ = w.Flush()
}

// formatQueueList writes a tabular list of queue items to out.
func formatQueueList(out io.Writer, items []model.QueueItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROFILE\tPRIORITY\tSTATUS\tRETRIES\tCREATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t------\t-------\t-------\t-----")
	for _, it := range items {
		errMsg := it.ErrorMessage
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d/%d\t%s\t%s\n",
			truncateID(it.ID),
			truncateID(it.WordProfileID),
			it.Priority,
			it.Status,
			it.RetryCount, it.MaxRetries,
			it.CreatedAt.Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatQueueStats writes per-status queue counts to out.
func formatQueueStats(out io.Writer, s *model.QueueStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	_, _ = fmt.Fprintf(w, "Processing:\t%d\n", s.Processing)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Total)
	_ = w.Flush()
}

// formatProcessSummary writes the outcome of a queue drain to out.
func formatProcessSummary(out io.Writer, s queue.ProcessSummary) {
	_, _ = fmt.Fprintf(out, "processed=%d completed=%d retried=%d failed=%d\n",
		s.Processed, s.Completed, s.Retried, s.Failed)
}

// formatQualityStats writes the score distribution to out.
func formatQualityStats(out io.Writer, s *model.QualityStatistics) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total words:\t%d\n", s.TotalWords)
	_, _ = fmt.Fprintf(w, "  High (>=80):\t%d\n", s.HighQuality)
	_, _ = fmt.Fprintf(w, "  Medium (50-79):\t%d\n", s.MediumQuality)
	_, _ = fmt.Fprintf(w, "  Low (<50):\t%d\n", s.LowQuality)
	_, _ = fmt.Fprintf(w, "Average score:\t%.2f\n", s.AverageScore)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
