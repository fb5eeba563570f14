package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/cache"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/queue"
	"github.com/sells-group/lexicon-cli/internal/store"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	defaultTrendDays   = 30
)

// GetProfile returns the profile with the given id through the read cache.
func (p *Pipeline) GetProfile(ctx context.Context, id string) (*model.WordProfile, error) {
	wp, _, err := p.profiles.GetOrCompute(ctx, cache.ProfileIDKey(id), p.profileTTL,
		func(ctx context.Context) (*model.WordProfile, error) {
			return p.store.GetProfileByID(ctx, id)
		})
	return wp, eris.Wrapf(err, "pipeline: get profile %s", id)
}

// GetProfileByWord returns the profile for word through the read cache.
func (p *Pipeline) GetProfileByWord(ctx context.Context, word string) (*model.WordProfile, error) {
	w := model.NormalizeWord(word)
	wp, _, err := p.profiles.GetOrCompute(ctx, cache.ProfileWordKey(w), p.profileTTL,
		func(ctx context.Context) (*model.WordProfile, error) {
			return p.store.GetProfileByWord(ctx, w)
		})
	return wp, eris.Wrapf(err, "pipeline: get profile %q", w)
}

// Search matches query against words and primary definitions, best score
// first, through the read cache.
func (p *Pipeline) Search(ctx context.Context, query string, limit int) ([]model.WordProfile, error) {
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}
	query = strings.TrimSpace(query)
	out, _, err := p.searches.GetOrCompute(ctx, cache.SearchKey(query, limit), p.searchTTL,
		func(ctx context.Context) ([]model.WordProfile, error) {
			found, err := p.store.SearchProfiles(ctx, query, limit)
			if found == nil {
				found = []model.WordProfile{}
			}
			return found, err
		})
	return out, eris.Wrapf(err, "pipeline: search %q", query)
}

// WarmSearch runs every configured warm query so the first real request
// hits the cache. It returns how many queries succeeded.
func (p *Pipeline) WarmSearch(ctx context.Context) int {
	warmed := 0
	for _, q := range p.cfg.Cache.WarmQueries {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.Search(ctx, q, 0); err != nil {
			p.log.Warn("pipeline: warm query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		warmed++
	}
	return warmed
}

// SweepCache drops expired cache entries.
func (p *Pipeline) SweepCache(ctx context.Context) int {
	return p.cache.Sweep(ctx)
}

// PruneAudits deletes audits older than retentionDays.
func (p *Pipeline) PruneAudits(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, eris.Errorf("pipeline: retention must be positive, got %d", retentionDays)
	}
	before := daysAgo(p.now(), retentionDays)
	n, err := p.store.PruneAudits(ctx, before)
	return n, eris.Wrap(err, "pipeline: prune audits")
}

// GetQualityReport returns the latest persisted report of a profile.
func (p *Pipeline) GetQualityReport(ctx context.Context, profileID string) (*model.QualityReport, error) {
	r, err := p.store.LatestAudit(ctx, profileID)
	return r, eris.Wrapf(err, "pipeline: quality report %s", profileID)
}

// QualityTrends returns the overall scores of a profile's audits in the
// last days days, oldest first.
func (p *Pipeline) QualityTrends(ctx context.Context, profileID string, days int) ([]model.QualityTrendPoint, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	since := daysAgo(p.now(), days)
	audits, err := p.store.ListAudits(ctx, profileID, since)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: quality trends %s", profileID)
	}
	points := make([]model.QualityTrendPoint, 0, len(audits))
	for _, a := range audits {
		points = append(points, model.QualityTrendPoint{Timestamp: a.Timestamp, Score: a.OverallScore})
	}
	return points, nil
}

// QualityStatistics summarizes scores across all profiles.
func (p *Pipeline) QualityStatistics(ctx context.Context) (*model.QualityStatistics, error) {
	s, err := p.store.QualityStatistics(ctx)
	return s, eris.Wrap(err, "pipeline: quality statistics")
}

// Enqueue schedules re-enrichment of an existing profile.
func (p *Pipeline) Enqueue(ctx context.Context, profileID string, priority int) (*model.QueueItem, error) {
	if _, err := p.store.GetProfileByID(ctx, profileID); err != nil {
		return nil, eris.Wrapf(err, "pipeline: enqueue %s", profileID)
	}
	return p.queue.Enqueue(ctx, profileID, priority)
}

// EnqueueWord schedules enrichment of word, creating an empty profile for it
// when none exists yet.
func (p *Pipeline) EnqueueWord(ctx context.Context, word string, priority int) (*model.QueueItem, error) {
	w := model.NormalizeWord(word)
	if w == "" {
		return nil, eris.New("pipeline: enqueue empty word")
	}
	unlock := p.words.lock(w)
	defer unlock()
	wp, err := p.store.GetProfileByWord(ctx, w)
	if store.IsNotFound(err) {
		wp = model.NewWordProfile(w)
		if err = p.store.UpsertProfile(ctx, wp); err == nil {
			p.invalidate(ctx, wp)
		}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: enqueue %q", w)
	}
	return p.queue.Enqueue(ctx, wp.ID, priority)
}

// EnqueueStale schedules every profile scoring below threshold, worst first.
// A non-positive threshold uses quality.enrich_below. It returns how many
// profiles were enqueued.
func (p *Pipeline) EnqueueStale(ctx context.Context, threshold, limit int) (int, error) {
	if threshold <= 0 {
		threshold = p.cfg.Quality.EnrichBelow
	}
	profiles, err := p.store.ListProfilesBelowScore(ctx, threshold, limit)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: list stale profiles")
	}
	n := 0
	for i := range profiles {
		if _, err := p.queue.Enqueue(ctx, profiles[i].ID, 0); err != nil {
			return n, err
		}
		n++
	}
	p.log.Info("pipeline: enqueued stale profiles", zap.Int("threshold", threshold), zap.Int("count", n))
	return n, nil
}

// ProcessQueue drains up to maxItems queue items.
func (p *Pipeline) ProcessQueue(ctx context.Context, maxItems int) (queue.ProcessSummary, error) {
	return p.queue.ProcessQueue(ctx, maxItems)
}

// ListQueue lists queue items, optionally filtered by status.
func (p *Pipeline) ListQueue(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueueItem, error) {
	return p.queue.List(ctx, status, limit)
}

// QueueStats counts queue items per status.
func (p *Pipeline) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	return p.queue.Stats(ctx)
}

func daysAgo(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}
