// Package source defines lexical source adapters and the aggregator that
// fans a word out to all of them.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lexicon-cli/internal/model"
)

// Source names.
const (
	NameWiktionary = "wiktionary"
	NameWordNet    = "wordnet"
	NameFreeDict   = "freedict"
	NameDatamuse   = "datamuse"
	NameAI         = "ai"
)

// DefaultWeights is the confidence of each source when configuration does
// not override it. Neighbouring weights are at least fusion.epsilon apart so
// that two sources never tie on a field by default.
var DefaultWeights = map[string]float64{
	NameWiktionary: 0.90,
	NameWordNet:    0.85,
	NameDatamuse:   0.80,
	NameFreeDict:   0.75,
	NameAI:         0.70,
}

// Adapter fetches one source's view of a word. A nil record with a nil error
// means the source has nothing for the word.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, word string) (*model.SourceRecord, error)
}

// ErrNotFound marks a FetchError caused by the source not knowing the word.
var ErrNotFound = eris.New("source: word not found")

// ErrEmptyPayload marks a FetchError caused by a response with no usable data.
var ErrEmptyPayload = eris.New("source: empty payload")

// FetchError is a failed adapter call. The aggregator logs it and treats the
// source as absent.
type FetchError struct {
	Source string
	Word   string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("source %s: fetch %q: %v", e.Source, e.Word, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(source, word string, err error) *FetchError {
	return &FetchError{Source: source, Word: word, Err: err}
}

// NoSourceDataError is returned when no adapter yielded a record.
type NoSourceDataError struct {
	Word      string
	Attempted []string
}

func (e *NoSourceDataError) Error() string {
	return fmt.Sprintf("source: no data for %q from %s", e.Word, strings.Join(e.Attempted, ", "))
}

// IsNoSourceData reports whether err is, or wraps, a *NoSourceDataError.
func IsNoSourceData(err error) bool {
	var nsd *NoSourceDataError
	return errors.As(err, &nsd)
}

// Registry holds the adapters taking part in aggregation.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter by name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil if not found.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns the registered adapter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) all() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

func newRecord(name string, confidence float64, word string, data model.ProfileData) *model.SourceRecord {
	return &model.SourceRecord{
		SourceName: name,
		Confidence: confidence,
		Word:       word,
		Data:       data,
		FetchedAt:  time.Now().UTC(),
	}
}

// isEmpty reports whether d carries nothing fusion could use.
func isEmpty(d model.ProfileData) bool {
	return d.Definitions.Primary == "" &&
		len(d.Definitions.Standard) == 0 &&
		d.Analysis.PartsOfSpeech == "" &&
		len(d.Analysis.Synonyms) == 0 &&
		len(d.Analysis.Antonyms) == 0 &&
		len(d.Analysis.Rhymes) == 0 &&
		len(d.Analysis.UsageExamples) == 0 &&
		d.Etymology.LanguageOfOrigin == "" &&
		d.Etymology.HistoricalOrigins == "" &&
		d.MorphemeBreakdown.Root.IsZero() &&
		d.MorphemeBreakdown.Phonetic == ""
}

// maxStandardDefinitions caps the definitions a single source contributes.
const maxStandardDefinitions = 5

// splitDefinitions makes the first definition primary. The standard list
// repeats it, followed by the next senses.
func splitDefinitions(defs []string) model.Definitions {
	defs = model.CleanList(defs)
	if len(defs) == 0 {
		return model.Definitions{}
	}
	if len(defs) > maxStandardDefinitions {
		defs = defs[:maxStandardDefinitions]
	}
	return model.Definitions{Primary: defs[0], Standard: defs}
}
