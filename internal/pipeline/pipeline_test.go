package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/source"
	"github.com/sells-group/lexicon-cli/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeAggregator struct {
	mu      sync.Mutex
	records map[string][]*model.SourceRecord
	calls   int
}

func (f *fakeAggregator) Aggregate(_ context.Context, word string) ([]*model.SourceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	recs, ok := f.records[word]
	if !ok {
		return nil, &source.NoSourceDataError{Word: word, Attempted: []string{source.NameWiktionary}}
	}
	return recs, nil
}

func (f *fakeAggregator) set(word string, recs ...*model.SourceRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[word] = recs
}

func (f *fakeAggregator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu      sync.Mutex
	updated []model.WordProfile
	closed  bool
}

func (r *recordingPublisher) PublishProfileUpdated(_ context.Context, p *model.WordProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, *p)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

type mockEnhancer struct {
	mock.Mock
}

func (m *mockEnhancer) Enhance(ctx context.Context, p *model.WordProfile, missing []string) *model.SourceRecord {
	args := m.Called(ctx, p, missing)
	if v := args.Get(0); v != nil {
		return v.(*model.SourceRecord)
	}
	return nil
}

type blockingAdapter struct{ name string }

func (b *blockingAdapter) Name() string { return b.name }

func (b *blockingAdapter) Fetch(ctx context.Context, _ string) (*model.SourceRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func testConfig() *config.Config {
	return &config.Config{
		Fusion:  config.FusionConfig{Epsilon: 0.05, ListCap: 10},
		Quality: config.QualityConfig{PassScore: 75, StaleDays: 90, AgingDays: 30, EnrichBelow: 70},
		Queue: config.QueueConfig{
			MaxRetries:      3,
			DefaultPriority: 1,
			BatchSize:       25,
			InitialBackoff:  "30s",
			MaxBackoff:      "30m",
			Multiplier:      2,
		},
		Cache: config.CacheConfig{Backend: "memory", ProfileTTL: "60m", SearchTTL: "15m"},
	}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type harness struct {
	p     *Pipeline
	store store.Store
	agg   *fakeAggregator
	pub   *recordingPublisher
	clock *fakeClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store: newTestStore(t),
		agg:   &fakeAggregator{records: map[string][]*model.SourceRecord{}},
		pub:   &recordingPublisher{},
		clock: &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	opts = append([]Option{WithPublisher(h.pub), WithNow(h.clock.Now)}, opts...)
	p, err := New(testConfig(), h.store, h.agg, opts...)
	require.NoError(t, err)
	h.p = p
	return h
}

func ephemeralRecords() []*model.SourceRecord {
	return []*model.SourceRecord{
		{
			SourceName: source.NameWiktionary,
			Confidence: 0.9,
			Word:       "ephemeral",
			Data: model.ProfileData{
				MorphemeBreakdown: model.MorphemeBreakdown{
					Prefix: &model.Morpheme{Text: "epi", Meaning: "upon"},
					Root:   model.Morpheme{Text: "hemera", Meaning: "day"},
				},
				Etymology: model.Etymology{
					LanguageOfOrigin:  "Greek",
					HistoricalOrigins: "From Greek ephemeros, lasting only a day.",
				},
				Definitions: model.Definitions{
					Primary:  "Lasting for a very short time.",
					Standard: []string{"Lasting a very short time.", "Living only one day."},
				},
				Analysis: model.Analysis{
					PartsOfSpeech: "adjective",
					UsageExamples: []string{"Fame in the digital age is often ephemeral."},
				},
			},
		},
		{
			SourceName: source.NameDatamuse,
			Confidence: 0.8,
			Word:       "ephemeral",
			Data: model.ProfileData{
				Analysis: model.Analysis{
					Synonyms: []string{"fleeting", "transient", "brief"},
					Rhymes:   []string{"femoral"},
				},
			},
		},
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, nil)
	require.Error(t, err)

	_, err = New(testConfig(), nil, &fakeAggregator{})
	require.Error(t, err)
}

func TestEnrichWord_Ephemeral(t *testing.T) {
	h := newHarness(t)
	h.agg.set("ephemeral", ephemeralRecords()...)
	ctx := context.Background()

	res, err := h.p.EnrichWord(ctx, "  Ephemeral ")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	assert.Equal(t, "ephemeral", res.Word)
	assert.NotEmpty(t, res.WordProfileID)
	assert.Zero(t, res.QualityScoreBefore)
	assert.Positive(t, res.QualityScoreAfter)
	assert.ElementsMatch(t, []string{source.NameWiktionary, source.NameDatamuse}, res.SourcesUsed)
	assert.Contains(t, res.FieldsEnriched, "definitions.primary")
	assert.Contains(t, res.FieldsEnriched, "analysis.synonyms")
	assert.Empty(t, res.Conflicts)

	stored, err := h.store.GetProfileByWord(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, res.WordProfileID, stored.ID)
	assert.Equal(t, "Lasting for a very short time.", stored.Definitions.Primary)
	assert.Equal(t, "hemera", stored.MorphemeBreakdown.Root.Text)
	assert.Equal(t, []string{"fleeting", "transient", "brief"}, stored.Analysis.Synonyms)
	assert.Equal(t, res.QualityScoreAfter, stored.QualityScore)
	require.NotNil(t, stored.LastEnrichmentAt)
	assert.True(t, h.clock.Now().Equal(*stored.LastEnrichmentAt))

	report, err := h.p.GetQualityReport(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.QualityScore, report.OverallScore)
	assert.Equal(t, "ephemeral", report.Word)
	assert.Len(t, report.Checks, 4)

	require.Len(t, h.pub.updated, 1)
	assert.Equal(t, stored.ID, h.pub.updated[0].ID)
}

func TestEnrichWord_NoSourceDataLeavesProfileUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	existing := model.NewWordProfile("zyzzyva")
	existing.Definitions.Primary = "a tropical weevil"
	existing.QualityScore = 40
	require.NoError(t, h.store.UpsertProfile(ctx, existing))
	before, err := h.store.GetProfileByWord(ctx, "zyzzyva")
	require.NoError(t, err)

	res, err := h.p.EnrichWord(ctx, "zyzzyva")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no data")
	assert.Equal(t, 40, res.QualityScoreBefore)
	assert.Equal(t, 40, res.QualityScoreAfter)

	after, err := h.store.GetProfileByWord(ctx, "zyzzyva")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = h.store.LatestAudit(ctx, existing.ID)
	assert.True(t, store.IsNotFound(err))
	assert.Empty(t, h.pub.updated)
}

func TestEnrichWord_AllAdaptersTimeOut(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	existing := model.NewWordProfile("ephemeral")
	existing.QualityScore = 55
	require.NoError(t, st.UpsertProfile(ctx, existing))
	before, err := st.GetProfileByWord(ctx, "ephemeral")
	require.NoError(t, err)

	reg := source.NewRegistry(
		&blockingAdapter{name: source.NameWiktionary},
		&blockingAdapter{name: source.NameDatamuse},
	)
	p, err := New(testConfig(), st, source.NewAggregator(reg, 20*time.Millisecond, nil))
	require.NoError(t, err)

	res, err := p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	after, err := st.GetProfileByWord(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEnrichWord_EmptyWord(t *testing.T) {
	h := newHarness(t)
	res, err := h.p.EnrichWord(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "empty word", res.Error)
	assert.Zero(t, h.agg.Calls())
}

func TestEnrichWord_CancelledContext(t *testing.T) {
	h := newHarness(t)
	h.agg.set("ephemeral", ephemeralRecords()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.p.EnrichWord(ctx, "ephemeral")
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestEnrichWord_EnhancerFillsMissingFields(t *testing.T) {
	enh := &mockEnhancer{}
	h := newHarness(t, WithEnhancer(enh))
	h.agg.set("ephemeral", ephemeralRecords()...)

	enh.On("Enhance", mock.Anything, mock.MatchedBy(func(p *model.WordProfile) bool {
		return p.Definitions.Primary == "Lasting for a very short time."
	}), mock.MatchedBy(func(missing []string) bool {
		for _, f := range missing {
			if f == "definitions.primary" || f == "analysis.synonyms" {
				return false
			}
		}
		return contains(missing, "etymology.word_evolution")
	})).Return(&model.SourceRecord{
		SourceName: "ai",
		Confidence: 0.7,
		Word:       "ephemeral",
		Data: model.ProfileData{
			Etymology: model.Etymology{WordEvolution: "Entered English in the late 16th century."},
		},
	})

	res, err := h.p.EnrichWord(context.Background(), "ephemeral")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.SourcesUsed, "ai")
	assert.Contains(t, res.FieldsEnriched, "etymology.word_evolution")

	stored, err := h.store.GetProfileByWord(context.Background(), "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, "Entered English in the late 16th century.", stored.Etymology.WordEvolution)
	assert.Equal(t, "Greek", stored.Etymology.LanguageOfOrigin)
	enh.AssertExpectations(t)
}

func TestEnrichWord_EnhancerNothingToAdd(t *testing.T) {
	enh := &mockEnhancer{}
	enh.On("Enhance", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h := newHarness(t, WithEnhancer(enh))
	h.agg.set("ephemeral", ephemeralRecords()...)

	res, err := h.p.EnrichWord(context.Background(), "ephemeral")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotContains(t, res.SourcesUsed, "ai")
}

func TestEnrichWord_SecondRunIsStable(t *testing.T) {
	h := newHarness(t)
	h.agg.set("ephemeral", ephemeralRecords()...)
	ctx := context.Background()

	first, err := h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)
	require.True(t, first.Success)

	h.clock.Advance(time.Hour)
	second, err := h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)
	require.True(t, second.Success)

	assert.Equal(t, first.WordProfileID, second.WordProfileID)
	assert.Equal(t, first.QualityScoreAfter, second.QualityScoreBefore)
	assert.Empty(t, second.FieldsEnriched)
}

func TestReadThrough_InvalidatedOnWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agg.set("ephemeral", ephemeralRecords()[1])

	_, err := h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)

	cached, err := h.p.GetProfileByWord(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Empty(t, cached.Definitions.Primary)

	hits, err := h.p.Search(ctx, "ephemeral", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	h.agg.set("ephemeral", ephemeralRecords()...)
	_, err = h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)

	fresh, err := h.p.GetProfileByWord(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, "Lasting for a very short time.", fresh.Definitions.Primary)

	byID, err := h.p.GetProfile(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.QualityScore, byID.QualityScore)

	hits, err = h.p.Search(ctx, "short time", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ephemeral", hits[0].Word)
}

func TestGetProfile_NotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.p.GetProfile(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))

	_, err = h.p.GetProfileByWord(context.Background(), "missing")
	assert.True(t, store.IsNotFound(err))
}

func TestSearch_EmptyResultIsNotNil(t *testing.T) {
	h := newHarness(t)
	out, err := h.p.Search(context.Background(), "nothing", 0)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestQueue_ProcessesEnrichment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agg.set("ephemeral", ephemeralRecords()...)

	item, err := h.p.EnqueueWord(ctx, "Ephemeral", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Priority)

	sum, err := h.p.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Completed)

	stored, err := h.store.GetProfileByWord(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Positive(t, stored.QualityScore)

	stats, err := h.p.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
}

func TestQueue_FailureMessageNamesStageAndWord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item, err := h.p.EnqueueWord(ctx, "zyzzyva", 0)
	require.NoError(t, err)

	sum, err := h.p.ProcessQueue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Retried)

	items, err := h.p.ListQueue(ctx, model.QueueStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, 1, items[0].RetryCount)
	assert.Contains(t, items[0].ErrorMessage, "enrich: zyzzyva: ")
	assert.Contains(t, items[0].ErrorMessage, "no data")
}

func TestEnqueue_UnknownProfile(t *testing.T) {
	h := newHarness(t)
	_, err := h.p.Enqueue(context.Background(), "missing", 1)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))

	_, err = h.p.EnqueueWord(context.Background(), " ", 1)
	require.Error(t, err)
}

func TestEnrichByID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agg.set("ephemeral", ephemeralRecords()...)

	p := model.NewWordProfile("ephemeral")
	require.NoError(t, h.store.UpsertProfile(ctx, p))
	require.NoError(t, h.p.EnrichByID(ctx, p.ID))

	err := h.p.EnrichByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
}

func TestEnqueueStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for word, score := range map[string]int{"alpha": 20, "beta": 65, "gamma": 90} {
		p := model.NewWordProfile(word)
		p.QualityScore = score
		require.NoError(t, h.store.UpsertProfile(ctx, p))
	}

	n, err := h.p.EnqueueStale(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := h.p.ListQueue(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	n, err = h.p.EnqueueStale(ctx, 50, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	items, err = h.p.ListQueue(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2, "pending items are reused")
}

func TestQualityTrendsAndPrune(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agg.set("ephemeral", ephemeralRecords()[1])

	first, err := h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)

	h.clock.Advance(10 * 24 * time.Hour)
	h.agg.set("ephemeral", ephemeralRecords()...)
	second, err := h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)

	points, err := h.p.QualityTrends(ctx, second.WordProfileID, 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, first.QualityScoreAfter, points[0].Score)
	assert.Equal(t, second.QualityScoreAfter, points[1].Score)
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))

	points, err = h.p.QualityTrends(ctx, second.WordProfileID, 5)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	n, err := h.p.PruneAudits(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = h.p.PruneAudits(ctx, 0)
	require.Error(t, err)
}

func TestQualityStatistics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for word, score := range map[string]int{"alpha": 20, "beta": 65, "gamma": 90} {
		p := model.NewWordProfile(word)
		p.QualityScore = score
		require.NoError(t, h.store.UpsertProfile(ctx, p))
	}

	s, err := h.p.QualityStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalWords)
	assert.Equal(t, 1, s.HighQuality)
	assert.Equal(t, 1, s.MediumQuality)
	assert.Equal(t, 1, s.LowQuality)
	assert.InDelta(t, 58.33, s.AverageScore, 0.01)
}

func TestReassess_RefetchesLiveData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agg.set("ephemeral", ephemeralRecords()...)

	res, err := h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)
	calls := h.agg.Calls()

	report, err := h.p.Reassess(ctx, res.WordProfileID)
	require.NoError(t, err)
	assert.Equal(t, calls+1, h.agg.Calls())
	assert.Equal(t, res.WordProfileID, report.WordProfileID)

	latest, err := h.p.GetQualityReport(ctx, res.WordProfileID)
	require.NoError(t, err)
	assert.Equal(t, report.ID, latest.ID)
	assert.Len(t, h.pub.updated, 2)

	_, err = h.p.Reassess(ctx, "missing")
	assert.True(t, store.IsNotFound(err))
}

func TestStartWarmsSearchCache(t *testing.T) {
	h := newHarness(t)
	h.p.cfg.Cache.WarmQueries = []string{"biology", "music"}
	require.NoError(t, h.p.Start(context.Background()))

	_, misses := h.p.searches.Stats()
	assert.Equal(t, int64(2), misses)

	_, err := h.p.Search(context.Background(), "biology", 0)
	require.NoError(t, err)
	hits, _ := h.p.searches.Stats()
	assert.Equal(t, int64(1), hits)
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.p.Close())
	assert.True(t, h.pub.closed)
}

func TestTrackPhase(t *testing.T) {
	log := newHarness(t).p.log
	assert.NoError(t, trackPhase(log, "ok", func() error { return nil }))
	boom := errors.New("boom")
	assert.ErrorIs(t, trackPhase(log, "bad", func() error { return boom }), boom)
}

func contains(items []string, want string) bool {
	for _, s := range items {
		if s == want {
			return true
		}
	}
	return false
}

// slowAggregator holds each call open until release is closed and records
// how many calls overlapped.
type slowAggregator struct {
	*fakeAggregator
	release  chan struct{}
	entered  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *slowAggregator) Aggregate(ctx context.Context, word string) ([]*model.SourceRecord, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	s.entered <- struct{}{}
	<-s.release
	return s.fakeAggregator.Aggregate(ctx, word)
}

func TestEnrichWord_ConcurrentFirstEnrichmentSharesProfile(t *testing.T) {
	st := newTestStore(t)
	agg := &slowAggregator{
		fakeAggregator: &fakeAggregator{records: map[string][]*model.SourceRecord{}},
		release:        make(chan struct{}),
		entered:        make(chan struct{}, 2),
	}
	agg.set("ephemeral", ephemeralRecords()...)
	p, err := New(testConfig(), st, agg)
	require.NoError(t, err)
	ctx := context.Background()

	results := make([]*model.EnrichmentResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.EnrichWord(ctx, "Ephemeral")
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	<-agg.entered
	select {
	case <-agg.entered:
		t.Fatal("second enrichment of the same word ran concurrently")
	case <-time.After(50 * time.Millisecond):
	}
	close(agg.release)
	wg.Wait()

	require.True(t, results[0].Success, results[0].Error)
	require.True(t, results[1].Success, results[1].Error)
	assert.Equal(t, results[0].WordProfileID, results[1].WordProfileID)
	assert.Equal(t, int32(1), agg.maxSeen.Load())

	stats, err := st.QualityStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalWords)

	audits, err := st.ListAudits(ctx, results[0].WordProfileID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, audits, 2)
	assert.Equal(t, 0, p.words.size())
}

func TestWordLocks_IndependentWords(t *testing.T) {
	l := newWordLocks()

	unlockA := l.lock("alpha")
	done := make(chan struct{})
	go func() {
		unlockB := l.lock("beta")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on beta blocked behind alpha")
	}
	assert.Equal(t, 1, l.size())
	unlockA()
	assert.Equal(t, 0, l.size())
}

func TestEnqueueWord_KeepsEnrichedProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.agg.set("ephemeral", ephemeralRecords()...)

	res, err := h.p.EnrichWord(ctx, "ephemeral")
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	item, err := h.p.EnqueueWord(ctx, "Ephemeral", 2)
	require.NoError(t, err)
	assert.Equal(t, res.WordProfileID, item.WordProfileID)

	stored, err := h.store.GetProfileByWord(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, "Lasting for a very short time.", stored.Definitions.Primary)
	assert.Equal(t, res.QualityScoreAfter, stored.QualityScore)
}
