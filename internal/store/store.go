// Package store persists word profiles, quality audits and the enrichment
// queue in SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

// ErrNotFound is returned when a requested profile or queue item does not exist.
var ErrNotFound = errors.New("store: not found")

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// QueueFilter specifies criteria for listing queue items.
type QueueFilter struct {
	Status model.QueueStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
}

// Store defines the persistence contract of the enrichment pipeline.
type Store interface {
	// Profiles
	GetProfileByID(ctx context.Context, id string) (*model.WordProfile, error)
	GetProfileByWord(ctx context.Context, word string) (*model.WordProfile, error)
	UpsertProfile(ctx context.Context, p *model.WordProfile) error
	// SaveEnrichment upserts p and inserts report for it atomically.
	SaveEnrichment(ctx context.Context, p *model.WordProfile, report *model.QualityReport) error
	SearchProfiles(ctx context.Context, query string, limit int) ([]model.WordProfile, error)
	ListProfilesBelowScore(ctx context.Context, threshold, limit int) ([]model.WordProfile, error)
	QualityStatistics(ctx context.Context) (*model.QualityStatistics, error)

	// Audits
	InsertAudit(ctx context.Context, report *model.QualityReport) error
	LatestAudit(ctx context.Context, profileID string) (*model.QualityReport, error)
	ListAudits(ctx context.Context, profileID string, since time.Time) ([]model.QualityReport, error)
	PruneAudits(ctx context.Context, before time.Time) (int, error)

	// Queue
	InsertQueueItem(ctx context.Context, item *model.QueueItem) error
	PendingItemForProfile(ctx context.Context, profileID string) (*model.QueueItem, error)
	UpdateQueueItem(ctx context.Context, item *model.QueueItem) error
	ClaimNextQueueItem(ctx context.Context, now time.Time) (*model.QueueItem, error)
	ReclaimStaleQueueItems(ctx context.Context, startedBefore, now time.Time) (int, error)
	ListQueueItems(ctx context.Context, filter QueueFilter) ([]model.QueueItem, error)
	QueueStats(ctx context.Context) (*model.QueueStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		s, err := NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

const defaultListLimit = 100

func limitOr(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// profileColumns holds the JSON-encoded parts of a profile row.
type profileColumns struct {
	data       []byte
	sources    []byte
	provenance []byte
}

func encodeProfile(p *model.WordProfile) (profileColumns, error) {
	var c profileColumns
	var err error
	if c.data, err = json.Marshal(p.ProfileData); err != nil {
		return c, eris.Wrap(err, "store: marshal profile data")
	}
	sources := p.DataSources
	if sources == nil {
		sources = []string{}
	}
	if c.sources, err = json.Marshal(sources); err != nil {
		return c, eris.Wrap(err, "store: marshal data sources")
	}
	prov := p.Provenance
	if prov == nil {
		prov = map[string]model.FieldProvenance{}
	}
	if c.provenance, err = json.Marshal(prov); err != nil {
		return c, eris.Wrap(err, "store: marshal provenance")
	}
	return c, nil
}

func decodeProfile(p *model.WordProfile, c profileColumns) error {
	if err := json.Unmarshal(c.data, &p.ProfileData); err != nil {
		return eris.Wrap(err, "store: unmarshal profile data")
	}
	if len(c.sources) > 0 {
		if err := json.Unmarshal(c.sources, &p.DataSources); err != nil {
			return eris.Wrap(err, "store: unmarshal data sources")
		}
	}
	p.Provenance = make(map[string]model.FieldProvenance)
	if len(c.provenance) > 0 {
		if err := json.Unmarshal(c.provenance, &p.Provenance); err != nil {
			return eris.Wrap(err, "store: unmarshal provenance")
		}
	}
	return nil
}

// prepareProfile normalizes the word and fills identity and timestamps
// before a write.
func prepareProfile(p *model.WordProfile, newID func() string, now time.Time) {
	p.Word = model.NormalizeWord(p.Word)
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
}

func prepareReport(r *model.QualityReport, newID func() string, now time.Time) {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
}

func prepareQueueItem(item *model.QueueItem, newID func() string, now time.Time) {
	if item.ID == "" {
		item.ID = newID()
	}
	if item.Status == "" {
		item.Status = model.QueueStatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.AvailableAt.IsZero() {
		item.AvailableAt = item.CreatedAt
	}
}

func marshalReport(r *model.QualityReport) ([]byte, error) {
	data, err := json.Marshal(r)
	return data, eris.Wrap(err, "store: marshal report")
}

func unmarshalReport(data []byte) (*model.QualityReport, error) {
	var r model.QualityReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal report")
	}
	return &r, nil
}

func addQueueCount(st *model.QueueStats, status model.QueueStatus, n int) {
	switch status {
	case model.QueueStatusPending:
		st.Pending += n
	case model.QueueStatusProcessing:
		st.Processing += n
	case model.QueueStatusCompleted:
		st.Completed += n
	case model.QueueStatusFailed:
		st.Failed += n
	}
	st.Total += n
}
