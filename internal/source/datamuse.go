package source

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/pkg/datamuse"
)

// Datamuse limits per relation query.
const (
	datamuseSynonyms = 10
	datamuseRhymes   = 5
	datamuseAntonyms = 10
)

// Datamuse adapts the Datamuse relation queries: a definition lookup plus
// synonyms, rhymes and antonyms, fetched concurrently.
type Datamuse struct {
	client     datamuse.Client
	confidence float64
}

// NewDatamuse creates the datamuse adapter.
func NewDatamuse(client datamuse.Client, confidence float64) *Datamuse {
	return &Datamuse{client: client, confidence: confidence}
}

// Name implements Adapter.
func (a *Datamuse) Name() string { return NameDatamuse }

// Fetch implements Adapter.
func (a *Datamuse) Fetch(ctx context.Context, word string) (*model.SourceRecord, error) {
	var defRows, synRows, rhyRows, antRows []datamuse.Word

	g, gctx := errgroup.WithContext(ctx)
	query := func(dst *[]datamuse.Word, q datamuse.Query) {
		g.Go(func() error {
			rows, err := a.client.Words(gctx, q)
			if err != nil {
				return err
			}
			*dst = rows
			return nil
		})
	}
	query(&defRows, datamuse.Query{SpelledLike: word, Metadata: "d", Max: 1})
	query(&synRows, datamuse.Query{Synonyms: word, Max: datamuseSynonyms})
	query(&rhyRows, datamuse.Query{Rhymes: word, Max: datamuseRhymes})
	query(&antRows, datamuse.Query{Antonyms: word, Max: datamuseAntonyms})
	if err := g.Wait(); err != nil {
		return nil, fetchErr(a.Name(), word, err)
	}

	var data model.ProfileData
	if len(defRows) > 0 && model.FoldKey(defRows[0].Word) == model.FoldKey(word) {
		var defs []string
		for _, d := range defRows[0].Definitions() {
			defs = append(defs, d.Text)
			if data.Analysis.PartsOfSpeech == "" {
				data.Analysis.PartsOfSpeech = d.PartOfSpeech
			}
		}
		data.Definitions = splitDefinitions(defs)
	}
	data.Analysis.Synonyms = model.CleanList(datamuse.Words(synRows))
	data.Analysis.Rhymes = model.CleanList(datamuse.Words(rhyRows))
	data.Analysis.Antonyms = model.CleanList(datamuse.Words(antRows))

	if isEmpty(data) {
		return nil, fetchErr(a.Name(), word, ErrEmptyPayload)
	}
	return newRecord(a.Name(), a.confidence, word, data), nil
}
