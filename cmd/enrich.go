package main

import (
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lexicon-cli/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <word> [word...]",
	Short: "Enrich one or more words now",
	Long:  "Gathers source data for each word, fills gaps with the AI enhancer when configured, merges, scores and saves the profile.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		asJSON, _ := cmd.Flags().GetBool("json")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency < 1 {
			concurrency = 1
		}

		env, err := initPipeline(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		results := make([]*model.EnrichmentResult, len(args))
		var (
			mu     sync.Mutex
			failed int
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, word := range args {
			g.Go(func() error {
				res, err := env.Pipeline.EnrichWord(gctx, word)
				results[i] = res
				if err != nil {
					return eris.Wrapf(err, "enrich %q", word)
				}
				if !res.Success {
					mu.Lock()
					failed++
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, res := range results {
			if asJSON {
				if err := writeJSON(os.Stdout, res); err != nil {
					return err
				}
				continue
			}
			formatEnrichResult(os.Stdout, res)
		}

		zap.L().Info("enrichment finished",
			zap.Int("words", len(args)),
			zap.Int("unsuccessful", failed),
		)
		if failed > 0 {
			return eris.Errorf("%d of %d words could not be enriched", failed, len(args))
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().Bool("json", false, "print results as JSON")
	enrichCmd.Flags().Int("concurrency", 4, "words enriched in parallel")
	rootCmd.AddCommand(enrichCmd)
}
