package source

import (
	"context"

	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/pkg/datamuse"
)

// WordNet reads WordNet-derived definitions through Datamuse's metadata
// flags (definitions, parts of speech, pronunciation).
type WordNet struct {
	client     datamuse.Client
	confidence float64
}

// NewWordNet creates the wordnet adapter.
func NewWordNet(client datamuse.Client, confidence float64) *WordNet {
	return &WordNet{client: client, confidence: confidence}
}

// Name implements Adapter.
func (a *WordNet) Name() string { return NameWordNet }

// Fetch implements Adapter.
func (a *WordNet) Fetch(ctx context.Context, word string) (*model.SourceRecord, error) {
	rows, err := a.client.Words(ctx, datamuse.Query{SpelledLike: word, Metadata: "d,p,r", Max: 1})
	if err != nil {
		return nil, fetchErr(a.Name(), word, err)
	}
	if len(rows) == 0 || model.FoldKey(rows[0].Word) != model.FoldKey(word) {
		return nil, fetchErr(a.Name(), word, ErrNotFound)
	}

	row := rows[0]
	var (
		defs []string
		pos  string
	)
	for _, d := range row.Definitions() {
		defs = append(defs, d.Text)
		if pos == "" {
			pos = d.PartOfSpeech
		}
	}
	if pos == "" {
		if tags := row.PartsOfSpeech(); len(tags) > 0 {
			pos = tags[0]
		}
	}

	data := model.ProfileData{
		Definitions: splitDefinitions(defs),
		Analysis:    model.Analysis{PartsOfSpeech: pos},
	}
	data.MorphemeBreakdown.Phonetic = row.Pronunciation()
	if data.Definitions.Primary == "" {
		return nil, fetchErr(a.Name(), word, ErrEmptyPayload)
	}
	return newRecord(a.Name(), a.confidence, word, data), nil
}
