package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/fusion"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/source"
	"github.com/sells-group/lexicon-cli/internal/store"
)

// Enrichment result labels used for metrics.
const (
	resultSuccess = "success"
	resultNoData  = "no_data"
	resultError   = "error"
)

// EnrichWord gathers source data for word, fills gaps with the enhancer,
// merges, assesses and persists the profile. A word no source knows yields
// Success=false and leaves the stored profile untouched. The error is
// non-nil only for store failures and cancellation; it is also recorded in
// the result. Concurrent calls for the same word run one after another.
func (p *Pipeline) EnrichWord(ctx context.Context, word string) (*model.EnrichmentResult, error) {
	w := model.NormalizeWord(word)
	result := &model.EnrichmentResult{
		Word:           w,
		FieldsEnriched: []string{},
		SourcesUsed:    []string{},
	}
	if w == "" {
		result.Error = "empty word"
		return result, nil
	}
	unlock := p.words.lock(w)
	defer unlock()

	log := p.log.With(zap.String("word", w))
	log.Info("pipeline: starting enrichment")

	existing, err := p.store.GetProfileByWord(ctx, w)
	switch {
	case store.IsNotFound(err):
		existing = model.NewWordProfile(w)
	case err != nil:
		return p.fail(result, resultError, eris.Wrap(err, "pipeline: load profile"))
	}
	result.WordProfileID = existing.ID
	result.QualityScoreBefore = existing.QualityScore
	result.QualityScoreAfter = existing.QualityScore

	var records []*model.SourceRecord
	err = trackPhase(log, "aggregate", func() error {
		var aerr error
		records, aerr = p.agg.Aggregate(ctx, w)
		return aerr
	})
	if err != nil {
		if source.IsNoSourceData(err) && ctx.Err() == nil {
			result.Error = err.Error()
			p.metrics.ObserveEnrichment(resultNoData, existing.QualityScore)
			log.Info("pipeline: no source data")
			return result, nil
		}
		return p.fail(result, resultError, eris.Wrap(err, "pipeline: aggregate"))
	}

	if p.enhancer != nil {
		_ = trackPhase(log, "enhance", func() error {
			draft, _ := p.fusion.Merge(existing, records)
			if rec := p.enhancer.Enhance(ctx, draft, fusion.MissingFields(draft)); rec != nil {
				records = append(records, rec)
			}
			return nil
		})
	}

	updated, merge := p.fusion.Merge(existing, records)

	var report *model.QualityReport
	err = trackPhase(log, "assess", func() error {
		var qerr error
		report, qerr = p.quality.Assess(ctx, updated, records, merge.Conflicts)
		return qerr
	})
	if err != nil {
		return p.fail(result, resultError, eris.Wrap(err, "pipeline: assess"))
	}

	now := p.now().UTC()
	updated.QualityScore = report.OverallScore
	updated.LastEnrichmentAt = &now
	updated.UpdatedAt = now

	if err := trackPhase(log, "persist", func() error {
		return p.persist(ctx, updated, report)
	}); err != nil {
		return p.fail(result, resultError, err)
	}

	result.Success = true
	result.WordProfileID = updated.ID
	result.QualityScoreAfter = updated.QualityScore
	result.FieldsEnriched = append(result.FieldsEnriched, merge.FieldsChanged...)
	result.SourcesUsed = append(result.SourcesUsed, merge.SourcesUsed...)
	result.Conflicts = merge.Conflicts
	p.metrics.ObserveEnrichment(resultSuccess, updated.QualityScore)

	log.Info("pipeline: enrichment complete",
		zap.Int("score_before", result.QualityScoreBefore),
		zap.Int("score_after", result.QualityScoreAfter),
		zap.Int("fields_enriched", len(result.FieldsEnriched)),
		zap.Strings("sources", result.SourcesUsed),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}

func (p *Pipeline) fail(result *model.EnrichmentResult, label string, err error) (*model.EnrichmentResult, error) {
	result.Error = err.Error()
	p.metrics.ObserveEnrichment(label, result.QualityScoreBefore)
	return result, err
}

// EnrichByID enriches the stored profile with the given id. An unsuccessful
// enrichment is an error of the form "enrich: <word>: <reason>".
func (p *Pipeline) EnrichByID(ctx context.Context, id string) error {
	wp, err := p.store.GetProfileByID(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "load: %s", id)
	}
	res, err := p.EnrichWord(ctx, wp.Word)
	if err != nil {
		return eris.Wrapf(err, "enrich: %s", wp.Word)
	}
	if !res.Success {
		return eris.Errorf("enrich: %s: %s", wp.Word, res.Error)
	}
	return nil
}

func (p *Pipeline) runQueueItem(ctx context.Context, item *model.QueueItem) error {
	return p.EnrichByID(ctx, item.WordProfileID)
}

// Reassess re-runs the quality assessment of a stored profile against live
// source data and persists the new score and audit.
func (p *Pipeline) Reassess(ctx context.Context, id string) (*model.QualityReport, error) {
	wp, err := p.store.GetProfileByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: reassess %s", id)
	}
	unlock := p.words.lock(wp.Word)
	defer unlock()
	// Reload under the lock so that a concurrent enrichment is not overwritten.
	if wp, err = p.store.GetProfileByID(ctx, id); err != nil {
		return nil, eris.Wrapf(err, "pipeline: reassess %s", id)
	}
	report, err := p.quality.Assess(ctx, wp, nil, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: reassess %s", wp.Word)
	}
	wp.QualityScore = report.OverallScore
	wp.UpdatedAt = p.now().UTC()
	if err := p.persist(ctx, wp, report); err != nil {
		return nil, err
	}
	return report, nil
}
