package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lexicon-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// pgExecer is satisfied by both Pool and pgx.Tx.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool, pool.Close), nil
}

func newPostgresWithPool(pool Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn, now: time.Now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS word_profiles (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	word               TEXT NOT NULL UNIQUE,
	data               JSONB NOT NULL,
	primary_definition TEXT NOT NULL DEFAULT '',
	quality_score      INTEGER NOT NULL DEFAULT 0,
	last_enrichment_at TIMESTAMPTZ,
	data_sources       JSONB NOT NULL DEFAULT '[]',
	provenance         JSONB NOT NULL DEFAULT '{}',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS quality_audits (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	word_profile_id TEXT NOT NULL REFERENCES word_profiles(id) ON DELETE CASCADE,
	overall_score   INTEGER NOT NULL,
	passed          BOOLEAN NOT NULL,
	report          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_queue (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	word_profile_id TEXT NOT NULL REFERENCES word_profiles(id) ON DELETE CASCADE,
	priority        INTEGER NOT NULL DEFAULT 1,
	status          TEXT NOT NULL DEFAULT 'pending',
	retry_count     INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 3,
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	available_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at      TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_word_profiles_score ON word_profiles(quality_score);
CREATE INDEX IF NOT EXISTS idx_quality_audits_profile ON quality_audits(word_profile_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_quality_audits_created ON quality_audits(created_at);
CREATE INDEX IF NOT EXISTS idx_queue_claim ON enrichment_queue(status, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_queue_profile ON enrichment_queue(word_profile_id, status);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Profiles ---

const pgProfileCols = `id, word, data, quality_score, last_enrichment_at, data_sources, provenance, created_at, updated_at`

func (s *PostgresStore) GetProfileByID(ctx context.Context, id string) (*model.WordProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgProfileCols+` FROM word_profiles WHERE id = $1`, id)
	return scanPgProfile(row)
}

func (s *PostgresStore) GetProfileByWord(ctx context.Context, word string) (*model.WordProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgProfileCols+` FROM word_profiles WHERE word = $1`, model.NormalizeWord(word))
	return scanPgProfile(row)
}

// UpsertProfile inserts p or updates the row holding the same word. The
// stored id and creation time win, so p.ID may change on return.
func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.WordProfile) error {
	return s.upsertProfile(ctx, s.pool, p)
}

func (s *PostgresStore) upsertProfile(ctx context.Context, q pgExecer, p *model.WordProfile) error {
	prepareProfile(p, uuid.NewString, s.now().UTC())
	cols, err := encodeProfile(p)
	if err != nil {
		return err
	}

	err = q.QueryRow(ctx,
		`INSERT INTO word_profiles (id, word, data, primary_definition, quality_score, last_enrichment_at, data_sources, provenance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (word) DO UPDATE SET
			data = EXCLUDED.data,
			primary_definition = EXCLUDED.primary_definition,
			quality_score = EXCLUDED.quality_score,
			last_enrichment_at = EXCLUDED.last_enrichment_at,
			data_sources = EXCLUDED.data_sources,
			provenance = EXCLUDED.provenance,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		p.ID, p.Word, cols.data, p.Definitions.Primary, p.QualityScore, p.LastEnrichmentAt,
		cols.sources, cols.provenance, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	return eris.Wrapf(err, "postgres: upsert profile %s", p.Word)
}

// SaveEnrichment writes the profile and its audit in one transaction.
func (s *PostgresStore) SaveEnrichment(ctx context.Context, p *model.WordProfile, report *model.QualityReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save enrichment")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.upsertProfile(ctx, tx, p); err != nil {
		return err
	}
	report.WordProfileID = p.ID
	report.Word = p.Word
	if err := s.insertAudit(ctx, tx, report); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit save enrichment")
}

func (s *PostgresStore) SearchProfiles(ctx context.Context, query string, limit int) ([]model.WordProfile, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgProfileCols+` FROM word_profiles
		 WHERE word ILIKE $1 OR primary_definition ILIKE $1
		 ORDER BY quality_score DESC, word ASC LIMIT $2`,
		pattern, limitOr(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search profiles")
	}
	return collectPgProfiles(rows)
}

func (s *PostgresStore) ListProfilesBelowScore(ctx context.Context, threshold, limit int) ([]model.WordProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgProfileCols+` FROM word_profiles
		 WHERE quality_score < $1 ORDER BY quality_score ASC, word ASC LIMIT $2`,
		threshold, limitOr(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles below score")
	}
	return collectPgProfiles(rows)
}

func (s *PostgresStore) QualityStatistics(ctx context.Context) (*model.QualityStatistics, error) {
	var st model.QualityStatistics
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*)::int,
			COUNT(*) FILTER (WHERE quality_score >= 80)::int,
			COUNT(*) FILTER (WHERE quality_score >= 50 AND quality_score < 80)::int,
			COUNT(*) FILTER (WHERE quality_score < 50)::int,
			COALESCE(AVG(quality_score), 0)::float8
		 FROM word_profiles`,
	).Scan(&st.TotalWords, &st.HighQuality, &st.MediumQuality, &st.LowQuality, &st.AverageScore)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: quality statistics")
	}
	return &st, nil
}

// --- Audits ---

func (s *PostgresStore) InsertAudit(ctx context.Context, report *model.QualityReport) error {
	return s.insertAudit(ctx, s.pool, report)
}

func (s *PostgresStore) insertAudit(ctx context.Context, q pgExecer, report *model.QualityReport) error {
	prepareReport(report, uuid.NewString, s.now().UTC())
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx,
		`INSERT INTO quality_audits (id, word_profile_id, overall_score, passed, report, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		report.ID, report.WordProfileID, report.OverallScore, report.Passed, data, report.Timestamp,
	)
	return eris.Wrapf(err, "postgres: insert audit for %s", report.WordProfileID)
}

func (s *PostgresStore) LatestAudit(ctx context.Context, profileID string) (*model.QualityReport, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM quality_audits WHERE word_profile_id = $1 ORDER BY created_at DESC LIMIT 1`,
		profileID,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest audit")
	}
	return unmarshalReport(data)
}

func (s *PostgresStore) ListAudits(ctx context.Context, profileID string, since time.Time) ([]model.QualityReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM quality_audits WHERE word_profile_id = $1 AND created_at >= $2 ORDER BY created_at ASC`,
		profileID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audits")
	}
	defer rows.Close()

	var out []model.QualityReport
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		r, err := unmarshalReport(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audits iterate")
}

func (s *PostgresStore) PruneAudits(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quality_audits WHERE created_at < $1`, before)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune audits")
	}
	return int(tag.RowsAffected()), nil
}

// --- Queue ---

const pgQueueCols = `id, word_profile_id, priority, status, retry_count, max_retries, error_message, created_at, available_at, started_at, completed_at`

func (s *PostgresStore) InsertQueueItem(ctx context.Context, item *model.QueueItem) error {
	prepareQueueItem(item, uuid.NewString, s.now().UTC())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_queue (`+pgQueueCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.WordProfileID, item.Priority, string(item.Status), item.RetryCount, item.MaxRetries,
		item.ErrorMessage, item.CreatedAt, item.AvailableAt, item.StartedAt, item.CompletedAt,
	)
	return eris.Wrapf(err, "postgres: insert queue item for %s", item.WordProfileID)
}

func (s *PostgresStore) PendingItemForProfile(ctx context.Context, profileID string) (*model.QueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgQueueCols+` FROM enrichment_queue
		 WHERE word_profile_id = $1 AND status = $2 ORDER BY created_at ASC LIMIT 1`,
		profileID, string(model.QueueStatusPending),
	)
	item, err := scanPgQueueItem(row)
	if IsNotFound(err) {
		return nil, nil
	}
	return item, err
}

func (s *PostgresStore) UpdateQueueItem(ctx context.Context, item *model.QueueItem) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_queue SET priority = $1, status = $2, retry_count = $3, max_retries = $4, error_message = $5,
			available_at = $6, started_at = $7, completed_at = $8
		 WHERE id = $9`,
		item.Priority, string(item.Status), item.RetryCount, item.MaxRetries, item.ErrorMessage,
		item.AvailableAt, item.StartedAt, item.CompletedAt, item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update queue item %s", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimNextQueueItem atomically moves the next available pending item to
// processing. SKIP LOCKED keeps concurrent claimers from taking the same row.
func (s *PostgresStore) ClaimNextQueueItem(ctx context.Context, now time.Time) (*model.QueueItem, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE enrichment_queue SET status = $1, started_at = $2
		 WHERE id = (
			SELECT id FROM enrichment_queue
			WHERE status = $3 AND available_at <= $2
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+pgQueueCols,
		string(model.QueueStatusProcessing), now.UTC(), string(model.QueueStatusPending),
	)
	item, err := scanPgQueueItem(row)
	if IsNotFound(err) {
		return nil, nil
	}
	return item, err
}

// ReclaimStaleQueueItems returns processing items claimed before
// startedBefore to pending so that a crashed worker does not strand them.
func (s *PostgresStore) ReclaimStaleQueueItems(ctx context.Context, startedBefore, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_queue SET status = $1, started_at = NULL, available_at = $2
		 WHERE status = $3 AND started_at < $4`,
		string(model.QueueStatusPending), now.UTC(), string(model.QueueStatusProcessing), startedBefore.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reclaim stale queue items")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListQueueItems(ctx context.Context, filter QueueFilter) ([]model.QueueItem, error) {
	query := `SELECT ` + pgQueueCols + ` FROM enrichment_queue`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	args = append(args, limitOr(filter.Limit))
	query += fmt.Sprintf(` ORDER BY priority DESC, created_at ASC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queue items")
	}
	defer rows.Close()

	var out []model.QueueItem
	for rows.Next() {
		item, err := scanPgQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list queue items iterate")
}

func (s *PostgresStore) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*)::int FROM enrichment_queue GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: queue stats")
	}
	defer rows.Close()

	var st model.QueueStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan queue stats")
		}
		addQueueCount(&st, model.QueueStatus(status), n)
	}
	return &st, eris.Wrap(rows.Err(), "postgres: queue stats iterate")
}

// helpers

func scanPgProfile(row pgx.Row) (*model.WordProfile, error) {
	var p model.WordProfile
	var cols profileColumns

	err := row.Scan(&p.ID, &p.Word, &cols.data, &p.QualityScore, &p.LastEnrichmentAt,
		&cols.sources, &cols.provenance, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan profile")
	}
	if err := decodeProfile(&p, cols); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPgProfiles(rows pgx.Rows) ([]model.WordProfile, error) {
	defer rows.Close()
	var out []model.WordProfile
	for rows.Next() {
		p, err := scanPgProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: profiles iterate")
}

func scanPgQueueItem(row pgx.Row) (*model.QueueItem, error) {
	var item model.QueueItem
	var status string

	err := row.Scan(&item.ID, &item.WordProfileID, &item.Priority, &status, &item.RetryCount, &item.MaxRetries,
		&item.ErrorMessage, &item.CreatedAt, &item.AvailableAt, &item.StartedAt, &item.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan queue item")
	}
	item.Status = model.QueueStatus(status)
	return &item, nil
}
