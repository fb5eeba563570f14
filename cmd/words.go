package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <word>",
	Short: "Print the stored profile of a word as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		wp, err := env.Pipeline.GetProfileByWord(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "show")
		}
		return writeJSON(os.Stdout, wp)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored profiles by word and primary definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		profiles, err := env.Pipeline.Search(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "search")
		}
		if asJSON {
			return writeJSON(os.Stdout, profiles)
		}
		if len(profiles) == 0 {
			fmt.Fprintln(os.Stderr, "No matching words.")
			return nil
		}
		formatProfiles(os.Stdout, profiles)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initPipeline(cmd.Context(), "enrich")
		if err != nil {
			return err
		}
		env.Close()
		fmt.Fprintln(os.Stdout, "schema is up to date")
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 20, "maximum results (at most 100)")
	searchCmd.Flags().Bool("json", false, "print results as JSON")

	rootCmd.AddCommand(showCmd, searchCmd, migrateCmd)
}
