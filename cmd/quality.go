package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Inspect and refresh profile quality scores",
}

// -- quality report --

var qualityReportCmd = &cobra.Command{
	Use:   "report <profile-id>",
	Short: "Show the latest quality report of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		trendDays, _ := cmd.Flags().GetInt("trends")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		if trendDays > 0 {
			points, err := env.Pipeline.QualityTrends(ctx, args[0], trendDays)
			if err != nil {
				return eris.Wrap(err, "quality trends")
			}
			if asJSON {
				return writeJSON(os.Stdout, points)
			}
			formatTrends(os.Stdout, points)
			return nil
		}

		report, err := env.Pipeline.GetQualityReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "quality report")
		}
		if asJSON {
			return writeJSON(os.Stdout, report)
		}
		formatQualityReport(os.Stdout, report)
		return nil
	},
}

// -- quality reassess --

var qualityReassessCmd = &cobra.Command{
	Use:   "reassess <profile-id>",
	Short: "Re-score a stored profile against live source data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.Reassess(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "quality reassess")
		}
		formatQualityReport(os.Stdout, report)
		return nil
	},
}

// -- quality stats --

var qualityStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize quality scores across all profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Pipeline.QualityStatistics(ctx)
		if err != nil {
			return eris.Wrap(err, "quality stats")
		}
		if stats.TotalWords == 0 {
			fmt.Fprintln(os.Stderr, "No profiles yet.")
		}
		formatQualityStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	qualityReportCmd.Flags().Int("trends", 0, "show scores of the last N days instead of the latest report")
	qualityReportCmd.Flags().Bool("json", false, "print as JSON")

	qualityCmd.AddCommand(qualityReportCmd, qualityReassessCmd, qualityStatsCmd)
	rootCmd.AddCommand(qualityCmd)
}
