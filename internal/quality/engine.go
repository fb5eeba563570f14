// Package quality scores word profiles for accuracy, completeness,
// consistency and freshness, and evaluates declarative validation rules.
package quality

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

// Refetcher gathers fresh source records for a word.
type Refetcher interface {
	Aggregate(ctx context.Context, word string) ([]*model.SourceRecord, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithRefetcher lets accuracy checks fetch live data when no records are
// passed in.
func WithRefetcher(r Refetcher) Option {
	return func(e *Engine) { e.refetch = r }
}

// WithNow sets the clock.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs quality assessments. It is safe for concurrent use.
type Engine struct {
	similarity float64
	passScore  int
	staleDays  int
	agingDays  int

	rules   []Rule
	refetch Refetcher
	now     func() time.Time
	log     *zap.Logger
}

// New creates an assessment engine. When cfg.RulesFile is set the rules are
// loaded from it, unless WithRules is given.
func New(cfg config.QualityConfig, opts ...Option) (*Engine, error) {
	total := 0
	for _, w := range completenessWeights {
		total += w.weight
	}
	if total != 100 {
		return nil, eris.Errorf("quality: completeness weights sum to %d, want 100", total)
	}

	e := &Engine{
		similarity: cfg.SimilarityThreshold,
		passScore:  cfg.PassScore,
		staleDays:  cfg.StaleDays,
		agingDays:  cfg.AgingDays,
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "quality")),
	}
	if e.similarity <= 0 {
		e.similarity = 0.5
	}
	if e.passScore <= 0 {
		e.passScore = 75
	}
	if e.staleDays <= 0 {
		e.staleDays = 90
	}
	if e.agingDays <= 0 {
		e.agingDays = 30
	}

	for _, o := range opts {
		o(e)
	}

	if e.rules == nil {
		if cfg.RulesFile != "" {
			rules, err := LoadRules(cfg.RulesFile)
			if err != nil {
				return nil, err
			}
			e.rules = rules
		} else {
			e.rules = DefaultRules()
		}
	}
	return e, nil
}

// Rules returns the active rule set.
func (e *Engine) Rules() []Rule { return e.rules }

// Assess audits p. records are the source records gathered for this run (may
// be nil) and conflicts are the fusion conflicts left unresolved. The profile
// is never modified. The only error is a cancelled context.
func (e *Engine) Assess(ctx context.Context, p *model.WordProfile, records []*model.SourceRecord, conflicts []model.ConflictNote) (*model.QualityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "quality: assess")
	}
	if p == nil {
		p = model.NewWordProfile("")
	}

	if records == nil && e.refetch != nil && p.Word != "" {
		fresh, err := e.refetch.Aggregate(ctx, p.Word)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, eris.Wrap(ctxErr, "quality: assess")
			}
			e.log.Debug("refetch yielded no data", zap.String("word", p.Word), zap.Error(err))
		}
		records = fresh
	}

	sorted := make([]*model.SourceRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	now := e.now().UTC()
	checks := []model.QualityCheck{
		checkAccuracy(p, sorted, conflicts, e.similarity),
		checkCompleteness(p),
		checkConsistency(p),
		checkFreshness(p, now, e.staleDays, e.agingDays),
	}

	results := make([]model.ValidationResult, 0, len(e.rules))
	var recs []string
	passed := 0
	for i := range e.rules {
		res := e.rules[i].Evaluate(p)
		results = append(results, res)
		if res.Passed {
			passed++
		} else if res.Message != "" {
			recs = append(recs, res.Rule+": "+res.Message)
		}
	}
	for _, c := range checks {
		recs = append(recs, c.Recommendations...)
	}

	sum := 0.0
	for _, c := range checks {
		sum += float64(c.Score)
	}
	ruleScore := 0.0
	if len(results) > 0 {
		ruleScore = float64(passed) / float64(len(results)) * 100
	}
	overall := clamp(int(math.Round((sum + ruleScore) / float64(len(checks)+1))))

	report := &model.QualityReport{
		ID:                uuid.NewString(),
		WordProfileID:     p.ID,
		Word:              p.Word,
		OverallScore:      overall,
		Passed:            overall >= e.passScore,
		Checks:            checks,
		ValidationResults: results,
		Conflicts:         conflicts,
		Recommendations:   dedupe(recs),
		Timestamp:         now,
	}
	return report, nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
