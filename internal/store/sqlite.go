package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lexicon-cli/internal/model"
)

// sqliteTime is a fixed-width UTC layout so that text comparison orders
// timestamps correctly.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection serializes writers and keeps claims atomic.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS word_profiles (
	id                 TEXT PRIMARY KEY,
	word               TEXT NOT NULL UNIQUE,
	data               TEXT NOT NULL,
	primary_definition TEXT NOT NULL DEFAULT '',
	quality_score      INTEGER NOT NULL DEFAULT 0,
	last_enrichment_at TEXT,
	data_sources       TEXT NOT NULL DEFAULT '[]',
	provenance         TEXT NOT NULL DEFAULT '{}',
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS quality_audits (
	id              TEXT PRIMARY KEY,
	word_profile_id TEXT NOT NULL REFERENCES word_profiles(id) ON DELETE CASCADE,
	overall_score   INTEGER NOT NULL,
	passed          INTEGER NOT NULL,
	report          TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrichment_queue (
	id              TEXT PRIMARY KEY,
	word_profile_id TEXT NOT NULL REFERENCES word_profiles(id) ON DELETE CASCADE,
	priority        INTEGER NOT NULL DEFAULT 1,
	status          TEXT NOT NULL DEFAULT 'pending',
	retry_count     INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 3,
	error_message   TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	available_at    TEXT NOT NULL,
	started_at      TEXT,
	completed_at    TEXT
);

CREATE INDEX IF NOT EXISTS idx_word_profiles_score ON word_profiles(quality_score);
CREATE INDEX IF NOT EXISTS idx_quality_audits_profile ON quality_audits(word_profile_id, created_at);
CREATE INDEX IF NOT EXISTS idx_quality_audits_created ON quality_audits(created_at);
CREATE INDEX IF NOT EXISTS idx_queue_status ON enrichment_queue(status, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_queue_profile ON enrichment_queue(word_profile_id, status);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Profiles ---

const sqliteProfileCols = `id, word, data, quality_score, last_enrichment_at, data_sources, provenance, created_at, updated_at`

func (s *SQLiteStore) GetProfileByID(ctx context.Context, id string) (*model.WordProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProfileCols+` FROM word_profiles WHERE id = ?`, id)
	return scanSQLiteProfile(row)
}

func (s *SQLiteStore) GetProfileByWord(ctx context.Context, word string) (*model.WordProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProfileCols+` FROM word_profiles WHERE word = ?`, model.NormalizeWord(word))
	return scanSQLiteProfile(row)
}

// sqliteExecer is satisfied by both *sql.DB and *sql.Tx.
type sqliteExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UpsertProfile inserts p or updates the row holding the same word. The
// stored id and creation time win, so p.ID may change on return.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *model.WordProfile) error {
	return s.upsertProfile(ctx, s.db, p)
}

func (s *SQLiteStore) upsertProfile(ctx context.Context, q sqliteExecer, p *model.WordProfile) error {
	prepareProfile(p, uuid.NewString, s.now().UTC())
	cols, err := encodeProfile(p)
	if err != nil {
		return err
	}

	var id, created string
	err = q.QueryRowContext(ctx,
		`INSERT INTO word_profiles (id, word, data, primary_definition, quality_score, last_enrichment_at, data_sources, provenance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(word) DO UPDATE SET
			data = excluded.data,
			primary_definition = excluded.primary_definition,
			quality_score = excluded.quality_score,
			last_enrichment_at = excluded.last_enrichment_at,
			data_sources = excluded.data_sources,
			provenance = excluded.provenance,
			updated_at = excluded.updated_at
		 RETURNING id, created_at`,
		p.ID, p.Word, string(cols.data), p.Definitions.Primary, p.QualityScore,
		nullTime(p.LastEnrichmentAt), string(cols.sources), string(cols.provenance),
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt),
	).Scan(&id, &created)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert profile %s", p.Word)
	}
	p.ID = id
	p.CreatedAt, err = parseTime(created)
	return err
}

// SaveEnrichment writes the profile and its audit in one transaction.
func (s *SQLiteStore) SaveEnrichment(ctx context.Context, p *model.WordProfile, report *model.QualityReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save enrichment")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := s.upsertProfile(ctx, tx, p); err != nil {
		return err
	}
	report.WordProfileID = p.ID
	report.Word = p.Word
	if err := s.insertAudit(ctx, tx, report); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save enrichment")
}

func (s *SQLiteStore) SearchProfiles(ctx context.Context, query string, limit int) ([]model.WordProfile, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteProfileCols+` FROM word_profiles
		 WHERE word LIKE ? ESCAPE '\' OR lower(primary_definition) LIKE ? ESCAPE '\'
		 ORDER BY quality_score DESC, word ASC LIMIT ?`,
		pattern, pattern, limitOr(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search profiles")
	}
	return collectSQLiteProfiles(rows)
}

func (s *SQLiteStore) ListProfilesBelowScore(ctx context.Context, threshold, limit int) ([]model.WordProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteProfileCols+` FROM word_profiles
		 WHERE quality_score < ? ORDER BY quality_score ASC, word ASC LIMIT ?`,
		threshold, limitOr(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles below score")
	}
	return collectSQLiteProfiles(rows)
}

func (s *SQLiteStore) QualityStatistics(ctx context.Context) (*model.QualityStatistics, error) {
	var st model.QualityStatistics
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN quality_score >= 80 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN quality_score >= 50 AND quality_score < 80 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN quality_score < 50 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(quality_score), 0)
		 FROM word_profiles`,
	).Scan(&st.TotalWords, &st.HighQuality, &st.MediumQuality, &st.LowQuality, &st.AverageScore)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: quality statistics")
	}
	return &st, nil
}

// --- Audits ---

func (s *SQLiteStore) InsertAudit(ctx context.Context, report *model.QualityReport) error {
	return s.insertAudit(ctx, s.db, report)
}

func (s *SQLiteStore) insertAudit(ctx context.Context, q sqliteExecer, report *model.QualityReport) error {
	prepareReport(report, uuid.NewString, s.now().UTC())
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO quality_audits (id, word_profile_id, overall_score, passed, report, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID, report.WordProfileID, report.OverallScore, report.Passed, string(data), fmtTime(report.Timestamp),
	)
	return eris.Wrapf(err, "sqlite: insert audit for %s", report.WordProfileID)
}

func (s *SQLiteStore) LatestAudit(ctx context.Context, profileID string) (*model.QualityReport, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM quality_audits WHERE word_profile_id = ? ORDER BY created_at DESC LIMIT 1`,
		profileID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest audit")
	}
	return unmarshalReport([]byte(data))
}

func (s *SQLiteStore) ListAudits(ctx context.Context, profileID string, since time.Time) ([]model.QualityReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM quality_audits WHERE word_profile_id = ? AND created_at >= ? ORDER BY created_at ASC`,
		profileID, fmtTime(since),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audits")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.QualityReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		r, err := unmarshalReport([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audits iterate")
}

func (s *SQLiteStore) PruneAudits(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quality_audits WHERE created_at < ?`, fmtTime(before))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune audits")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// --- Queue ---

const sqliteQueueCols = `id, word_profile_id, priority, status, retry_count, max_retries, error_message, created_at, available_at, started_at, completed_at`

func (s *SQLiteStore) InsertQueueItem(ctx context.Context, item *model.QueueItem) error {
	prepareQueueItem(item, uuid.NewString, s.now().UTC())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_queue (`+sqliteQueueCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.WordProfileID, item.Priority, string(item.Status), item.RetryCount, item.MaxRetries,
		item.ErrorMessage, fmtTime(item.CreatedAt), fmtTime(item.AvailableAt),
		nullTime(item.StartedAt), nullTime(item.CompletedAt),
	)
	return eris.Wrapf(err, "sqlite: insert queue item for %s", item.WordProfileID)
}

func (s *SQLiteStore) PendingItemForProfile(ctx context.Context, profileID string) (*model.QueueItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteQueueCols+` FROM enrichment_queue
		 WHERE word_profile_id = ? AND status = ? ORDER BY created_at ASC LIMIT 1`,
		profileID, string(model.QueueStatusPending),
	)
	item, err := scanSQLiteQueueItem(row)
	if IsNotFound(err) {
		return nil, nil
	}
	return item, err
}

func (s *SQLiteStore) UpdateQueueItem(ctx context.Context, item *model.QueueItem) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_queue SET priority = ?, status = ?, retry_count = ?, max_retries = ?, error_message = ?,
			available_at = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		item.Priority, string(item.Status), item.RetryCount, item.MaxRetries, item.ErrorMessage,
		fmtTime(item.AvailableAt), nullTime(item.StartedAt), nullTime(item.CompletedAt), item.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update queue item %s", item.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ClaimNextQueueItem(ctx context.Context, now time.Time) (*model.QueueItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim")
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT `+sqliteQueueCols+` FROM enrichment_queue
		 WHERE status = ? AND available_at <= ?
		 ORDER BY priority DESC, created_at ASC LIMIT 1`,
		string(model.QueueStatusPending), fmtTime(now),
	)
	item, err := scanSQLiteQueueItem(row)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	started := now.UTC()
	item.Status = model.QueueStatusProcessing
	item.StartedAt = &started
	if _, err := tx.ExecContext(ctx,
		`UPDATE enrichment_queue SET status = ?, started_at = ? WHERE id = ?`,
		string(item.Status), fmtTime(started), item.ID,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: claim queue item %s", item.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit claim")
	}
	return item, nil
}

// ReclaimStaleQueueItems returns processing items claimed before
// startedBefore to pending so that a crashed worker does not strand them.
func (s *SQLiteStore) ReclaimStaleQueueItems(ctx context.Context, startedBefore, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_queue SET status = ?, started_at = NULL, available_at = ?
		 WHERE status = ? AND started_at < ?`,
		string(model.QueueStatusPending), fmtTime(now), string(model.QueueStatusProcessing), fmtTime(startedBefore),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reclaim stale queue items")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) ListQueueItems(ctx context.Context, filter QueueFilter) ([]model.QueueItem, error) {
	query := `SELECT ` + sqliteQueueCols + ` FROM enrichment_queue WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY priority DESC, created_at ASC LIMIT ?`
	args = append(args, limitOr(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queue items")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.QueueItem
	for rows.Next() {
		item, err := scanSQLiteQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list queue items iterate")
}

func (s *SQLiteStore) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM enrichment_queue GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: queue stats")
	}
	defer rows.Close() //nolint:errcheck

	var st model.QueueStats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan queue stats")
		}
		addQueueCount(&st, model.QueueStatus(status), n)
	}
	return &st, eris.Wrap(rows.Err(), "sqlite: queue stats iterate")
}

// helpers

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteProfile(row scannable) (*model.WordProfile, error) {
	var p model.WordProfile
	var data, sources, prov, created, updated string
	var last sql.NullString

	err := row.Scan(&p.ID, &p.Word, &data, &p.QualityScore, &last, &sources, &prov, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan profile")
	}

	if err := decodeProfile(&p, profileColumns{data: []byte(data), sources: []byte(sources), provenance: []byte(prov)}); err != nil {
		return nil, err
	}
	if p.LastEnrichmentAt, err = parseNullTime(last); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectSQLiteProfiles(rows *sql.Rows) ([]model.WordProfile, error) {
	defer rows.Close() //nolint:errcheck
	var out []model.WordProfile
	for rows.Next() {
		p, err := scanSQLiteProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: profiles iterate")
}

func scanSQLiteQueueItem(row scannable) (*model.QueueItem, error) {
	var item model.QueueItem
	var status, created, available string
	var started, completed sql.NullString

	err := row.Scan(&item.ID, &item.WordProfileID, &item.Priority, &status, &item.RetryCount, &item.MaxRetries,
		&item.ErrorMessage, &created, &available, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan queue item")
	}

	item.Status = model.QueueStatus(status)
	if item.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if item.AvailableAt, err = parseTime(available); err != nil {
		return nil, err
	}
	if item.StartedAt, err = parseNullTime(started); err != nil {
		return nil, err
	}
	if item.CompletedAt, err = parseNullTime(completed); err != nil {
		return nil, err
	}
	return &item, nil
}
