package source

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/pkg/freedict"
)

// FreeDict adapts the Free Dictionary API.
type FreeDict struct {
	client     freedict.Client
	confidence float64
}

// NewFreeDict creates the freedict adapter.
func NewFreeDict(client freedict.Client, confidence float64) *FreeDict {
	return &FreeDict{client: client, confidence: confidence}
}

// Name implements Adapter.
func (a *FreeDict) Name() string { return NameFreeDict }

// Fetch implements Adapter.
func (a *FreeDict) Fetch(ctx context.Context, word string) (*model.SourceRecord, error) {
	entries, err := a.client.Entries(ctx, word)
	if err != nil {
		if errors.Is(err, freedict.ErrNotFound) {
			return nil, fetchErr(a.Name(), word, ErrNotFound)
		}
		return nil, fetchErr(a.Name(), word, err)
	}

	var (
		data     model.ProfileData
		defs     []string
		examples []string
		synonyms []string
		antonyms []string
	)
	for _, e := range entries {
		if data.MorphemeBreakdown.Phonetic == "" {
			data.MorphemeBreakdown.Phonetic = e.BestPhonetic()
		}
		if data.Etymology.HistoricalOrigins == "" && strings.TrimSpace(e.Origin) != "" {
			data.Etymology.HistoricalOrigins = e.Origin
			data.Etymology.LanguageOfOrigin = InferLanguage(e.Origin)
		}
		for _, m := range e.Meanings {
			if data.Analysis.PartsOfSpeech == "" {
				data.Analysis.PartsOfSpeech = strings.ToLower(m.PartOfSpeech)
			}
			synonyms = append(synonyms, m.Synonyms...)
			antonyms = append(antonyms, m.Antonyms...)
			for _, d := range m.Definitions {
				defs = append(defs, d.Definition)
				if d.Example != "" {
					examples = append(examples, d.Example)
				}
				synonyms = append(synonyms, d.Synonyms...)
				antonyms = append(antonyms, d.Antonyms...)
			}
		}
	}

	data.Definitions = splitDefinitions(defs)
	data.Analysis.UsageExamples = model.CleanList(examples)
	data.Analysis.Synonyms = model.CleanList(synonyms)
	data.Analysis.Antonyms = model.CleanList(antonyms)

	if isEmpty(data) {
		return nil, fetchErr(a.Name(), word, ErrEmptyPayload)
	}
	return newRecord(a.Name(), a.confidence, word, data), nil
}
