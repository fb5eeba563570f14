package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

var baseTime = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func seedProfile(t *testing.T, s Store, word, primary string, score int) *model.WordProfile {
	t.Helper()
	p := model.NewWordProfile(word)
	p.Definitions.Primary = primary
	p.QualityScore = score
	require.NoError(t, s.UpsertProfile(context.Background(), p))
	return p
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("ProfileRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		last := baseTime.Add(-time.Hour)
		p := model.NewWordProfile("  Ephemeral ")
		p.MorphemeBreakdown.Root = model.Morpheme{Text: "ephemer", Meaning: "lasting a day", Origin: "Greek"}
		p.MorphemeBreakdown.Suffix = &model.Morpheme{Text: "al", Meaning: "relating to"}
		p.Definitions.Primary = "lasting a very short time"
		p.Definitions.Standard = []string{"lasting a very short time", "living one day"}
		p.Analysis.Synonyms = []string{"fleeting", "transient"}
		p.QualityScore = 82
		p.LastEnrichmentAt = &last
		p.DataSources = []string{"wiktionary", "datamuse"}
		p.Provenance["definitions.primary"] = model.FieldProvenance{Source: "wiktionary", Confidence: 0.9, UpdatedAt: baseTime}
		p.CreatedAt = baseTime
		p.UpdatedAt = baseTime

		require.NoError(t, s.UpsertProfile(ctx, p))
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "ephemeral", p.Word)

		got, err := s.GetProfileByWord(ctx, "EPHEMERAL")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, p.ProfileData, got.ProfileData)
		assert.Equal(t, 82, got.QualityScore)
		assert.Equal(t, []string{"wiktionary", "datamuse"}, got.DataSources)
		require.NotNil(t, got.LastEnrichmentAt)
		assert.True(t, last.Equal(*got.LastEnrichmentAt))
		assert.True(t, baseTime.Equal(got.CreatedAt))
		prov := got.Provenance["definitions.primary"]
		assert.Equal(t, "wiktionary", prov.Source)
		assert.True(t, baseTime.Equal(prov.UpdatedAt))

		byID, err := s.GetProfileByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "ephemeral", byID.Word)
	})

	t.Run("ProfileNotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetProfileByWord(ctx, "missing")
		assert.True(t, IsNotFound(err))
		_, err = s.GetProfileByID(ctx, "missing-id")
		assert.True(t, IsNotFound(err))
	})

	t.Run("UpsertUpdatesExisting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := seedProfile(t, s, "ephemeral", "", 20)
		created := p.CreatedAt

		p.Definitions.Primary = "lasting a very short time"
		p.QualityScore = 70
		p.UpdatedAt = created.Add(time.Minute)
		require.NoError(t, s.UpsertProfile(ctx, p))

		got, err := s.GetProfileByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 70, got.QualityScore)
		assert.Equal(t, "lasting a very short time", got.Definitions.Primary)
		assert.True(t, created.Equal(got.CreatedAt))
	})

	t.Run("UpsertResolvesOnWord", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := seedProfile(t, s, "ephemeral", "", 10)

		dup := model.NewWordProfile("Ephemeral")
		dup.Definitions.Primary = "lasting a very short time"
		dup.QualityScore = 75
		require.NoError(t, s.UpsertProfile(ctx, dup))
		assert.Equal(t, first.ID, dup.ID)
		assert.True(t, first.CreatedAt.Equal(dup.CreatedAt))

		got, err := s.GetProfileByWord(ctx, "ephemeral")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, 75, got.QualityScore)

		st, err := s.QualityStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.TotalWords)
	})

	t.Run("SaveEnrichment", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := model.NewWordProfile("ephemeral")
		p.QualityScore = 68
		report := &model.QualityReport{OverallScore: 68, Timestamp: baseTime}
		require.NoError(t, s.SaveEnrichment(ctx, p, report))
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, p.ID, report.WordProfileID)
		assert.Equal(t, "ephemeral", report.Word)

		latest, err := s.LatestAudit(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, report.ID, latest.ID)
		assert.Equal(t, 68, latest.OverallScore)
	})

	t.Run("SaveEnrichmentIsAtomic", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := &model.QualityReport{ID: "audit-1", OverallScore: 40, Timestamp: baseTime}
		require.NoError(t, s.SaveEnrichment(ctx, model.NewWordProfile("ephemeral"), first))

		// Reusing the audit id fails the audit insert after the profile write.
		p := model.NewWordProfile("ephemeral")
		p.QualityScore = 90
		err := s.SaveEnrichment(ctx, p, &model.QualityReport{ID: "audit-1", OverallScore: 90, Timestamp: baseTime.Add(time.Hour)})
		require.Error(t, err)

		got, err := s.GetProfileByWord(ctx, "ephemeral")
		require.NoError(t, err)
		assert.Equal(t, 0, got.QualityScore)
	})

	t.Run("SearchProfiles", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seedProfile(t, s, "ephemeral", "lasting a very short time", 60)
		seedProfile(t, s, "brief", "of short duration", 90)
		seedProfile(t, s, "shortcut", "a quicker route", 40)
		seedProfile(t, s, "eternal", "lasting forever", 95)
		seedProfile(t, s, "percent", "one part in a hundred 100%", 10)

		got, err := s.SearchProfiles(ctx, "SHORT", 10)
		require.NoError(t, err)
		words := make([]string, 0, len(got))
		for _, p := range got {
			words = append(words, p.Word)
		}
		assert.Equal(t, []string{"brief", "ephemeral", "shortcut"}, words)

		got, err = s.SearchProfiles(ctx, "short", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "brief", got[0].Word)

		got, err = s.SearchProfiles(ctx, "%", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "percent", got[0].Word)
	})

	t.Run("ListProfilesBelowScoreAndStatistics", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seedProfile(t, s, "alpha", "", 20)
		seedProfile(t, s, "beta", "", 55)
		seedProfile(t, s, "gamma", "", 85)
		seedProfile(t, s, "delta", "", 69)

		low, err := s.ListProfilesBelowScore(ctx, 70, 10)
		require.NoError(t, err)
		require.Len(t, low, 3)
		assert.Equal(t, "alpha", low[0].Word)
		assert.Equal(t, "beta", low[1].Word)
		assert.Equal(t, "delta", low[2].Word)

		st, err := s.QualityStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, st.TotalWords)
		assert.Equal(t, 1, st.HighQuality)
		assert.Equal(t, 2, st.MediumQuality)
		assert.Equal(t, 1, st.LowQuality)
		assert.InDelta(t, 57.25, st.AverageScore, 1e-9)
	})

	t.Run("EmptyStatistics", func(t *testing.T) {
		s := newStore(t)
		st, err := s.QualityStatistics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, model.QualityStatistics{}, *st)
	})

	t.Run("Audits", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p := seedProfile(t, s, "ephemeral", "", 0)

		_, err := s.LatestAudit(ctx, p.ID)
		assert.True(t, IsNotFound(err))

		for i, score := range []int{40, 60, 80} {
			r := &model.QualityReport{
				WordProfileID: p.ID,
				Word:          p.Word,
				OverallScore:  score,
				Passed:        score >= 75,
				Checks:        []model.QualityCheck{{Type: model.CheckFreshness, Score: score}},
				Timestamp:     baseTime.AddDate(0, 0, i*10),
			}
			require.NoError(t, s.InsertAudit(ctx, r))
			assert.NotEmpty(t, r.ID)
		}

		latest, err := s.LatestAudit(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 80, latest.OverallScore)
		assert.True(t, latest.Passed)
		require.Len(t, latest.Checks, 1)

		since, err := s.ListAudits(ctx, p.ID, baseTime.AddDate(0, 0, 5))
		require.NoError(t, err)
		require.Len(t, since, 2)
		assert.Equal(t, 60, since[0].OverallScore)
		assert.Equal(t, 80, since[1].OverallScore)

		n, err := s.PruneAudits(ctx, baseTime.AddDate(0, 0, 15))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		all, err := s.ListAudits(ctx, p.ID, time.Time{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("QueueClaimOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a := seedProfile(t, s, "alpha", "", 0)
		b := seedProfile(t, s, "beta", "", 0)
		c := seedProfile(t, s, "gamma", "", 0)

		items := []*model.QueueItem{
			{WordProfileID: a.ID, Priority: 1, MaxRetries: 3, CreatedAt: baseTime},
			{WordProfileID: b.ID, Priority: 5, MaxRetries: 3, CreatedAt: baseTime.Add(2 * time.Second)},
			{WordProfileID: c.ID, Priority: 5, MaxRetries: 3, CreatedAt: baseTime.Add(time.Second)},
		}
		for _, it := range items {
			require.NoError(t, s.InsertQueueItem(ctx, it))
			assert.Equal(t, model.QueueStatusPending, it.Status)
		}

		now := baseTime.Add(time.Minute)
		var order []string
		for {
			it, err := s.ClaimNextQueueItem(ctx, now)
			require.NoError(t, err)
			if it == nil {
				break
			}
			assert.Equal(t, model.QueueStatusProcessing, it.Status)
			require.NotNil(t, it.StartedAt)
			order = append(order, it.WordProfileID)
		}
		assert.Equal(t, []string{c.ID, b.ID, a.ID}, order)

		st, err := s.QueueStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, st.Processing)
		assert.Equal(t, 3, st.Total)
	})

	t.Run("QueueAvailabilityGate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p := seedProfile(t, s, "ephemeral", "", 0)

		item := &model.QueueItem{WordProfileID: p.ID, Priority: 1, MaxRetries: 3, CreatedAt: baseTime, AvailableAt: baseTime.Add(time.Hour)}
		require.NoError(t, s.InsertQueueItem(ctx, item))

		got, err := s.ClaimNextQueueItem(ctx, baseTime.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = s.ClaimNextQueueItem(ctx, baseTime.Add(time.Hour))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, item.ID, got.ID)
	})

	t.Run("ReclaimStaleQueueItems", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		a := seedProfile(t, s, "alpha", "", 0)
		b := seedProfile(t, s, "beta", "", 0)

		stale := &model.QueueItem{WordProfileID: a.ID, Priority: 1, MaxRetries: 3, CreatedAt: baseTime}
		fresh := &model.QueueItem{WordProfileID: b.ID, Priority: 1, MaxRetries: 3, CreatedAt: baseTime.Add(time.Second)}
		require.NoError(t, s.InsertQueueItem(ctx, stale))
		require.NoError(t, s.InsertQueueItem(ctx, fresh))

		claimed, err := s.ClaimNextQueueItem(ctx, baseTime.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, stale.ID, claimed.ID)
		claimed, err = s.ClaimNextQueueItem(ctx, baseTime.Add(30*time.Minute))
		require.NoError(t, err)
		require.Equal(t, fresh.ID, claimed.ID)

		now := baseTime.Add(40 * time.Minute)
		n, err := s.ReclaimStaleQueueItems(ctx, now.Add(-15*time.Minute), now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		pending, err := s.PendingItemForProfile(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Nil(t, pending.StartedAt)
		assert.True(t, now.Equal(pending.AvailableAt))

		st, err := s.QueueStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Pending)
		assert.Equal(t, 1, st.Processing)
	})

	t.Run("QueueUpdateAndList", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p := seedProfile(t, s, "ephemeral", "", 0)

		item := &model.QueueItem{WordProfileID: p.ID, Priority: 2, MaxRetries: 3}
		require.NoError(t, s.InsertQueueItem(ctx, item))

		pending, err := s.PendingItemForProfile(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, item.ID, pending.ID)

		done := baseTime.Add(time.Hour)
		item.Status = model.QueueStatusFailed
		item.RetryCount = 3
		item.ErrorMessage = "aggregate: ephemeral: no source data"
		item.CompletedAt = &done
		require.NoError(t, s.UpdateQueueItem(ctx, item))

		pending, err = s.PendingItemForProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, pending)

		failed, err := s.ListQueueItems(ctx, QueueFilter{Status: model.QueueStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, 3, failed[0].RetryCount)
		assert.Equal(t, "aggregate: ephemeral: no source data", failed[0].ErrorMessage)
		require.NotNil(t, failed[0].CompletedAt)
		assert.True(t, done.Equal(*failed[0].CompletedAt))

		none, err := s.ListQueueItems(ctx, QueueFilter{Status: model.QueueStatusPending})
		require.NoError(t, err)
		assert.Empty(t, none)

		missing := &model.QueueItem{ID: "missing", Status: model.QueueStatusPending}
		assert.True(t, IsNotFound(s.UpdateQueueItem(ctx, missing)))
	})
}
