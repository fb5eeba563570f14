package source

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/pkg/wiktionary"
)

// Wiktionary adapts the Wiktionary definition endpoint.
type Wiktionary struct {
	client     wiktionary.Client
	confidence float64
}

// NewWiktionary creates the wiktionary adapter.
func NewWiktionary(client wiktionary.Client, confidence float64) *Wiktionary {
	return &Wiktionary{client: client, confidence: confidence}
}

// Name implements Adapter.
func (a *Wiktionary) Name() string { return NameWiktionary }

// Fetch implements Adapter.
func (a *Wiktionary) Fetch(ctx context.Context, word string) (*model.SourceRecord, error) {
	resp, err := a.client.Definitions(ctx, word)
	if err != nil {
		if errors.Is(err, wiktionary.ErrNotFound) {
			return nil, fetchErr(a.Name(), word, ErrNotFound)
		}
		return nil, fetchErr(a.Name(), word, err)
	}

	var (
		defs     []string
		examples []string
		pos      string
	)
	for _, usage := range resp.English() {
		for _, d := range usage.Definitions {
			text := stripHTML(d.Definition)
			if text == "" {
				continue
			}
			if pos == "" {
				pos = strings.ToLower(usage.PartOfSpeech)
			}
			defs = append(defs, text)
			for _, ex := range d.Examples {
				examples = append(examples, stripHTML(ex))
			}
		}
	}

	data := model.ProfileData{
		Definitions: splitDefinitions(defs),
		Analysis: model.Analysis{
			PartsOfSpeech: pos,
			UsageExamples: model.CleanList(examples),
		},
	}
	if isEmpty(data) {
		return nil, fetchErr(a.Name(), word, ErrEmptyPayload)
	}
	return newRecord(a.Name(), a.confidence, word, data), nil
}
