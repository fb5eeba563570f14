package source

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/fetcher"
	"github.com/sells-group/lexicon-cli/pkg/datamuse"
	"github.com/sells-group/lexicon-cli/pkg/freedict"
	"github.com/sells-group/lexicon-cli/pkg/wiktionary"
)

// BuildRegistry creates the HTTP-backed adapters enabled in cfg, all sending
// requests through doer. An empty Enabled list enables every adapter. The
// "ai" source is not an adapter; it is accepted and skipped.
func BuildRegistry(cfg config.SourcesConfig, doer fetcher.Doer) (*Registry, error) {
	enabled := cfg.Enabled
	if len(enabled) == 0 {
		enabled = []string{NameWiktionary, NameWordNet, NameFreeDict, NameDatamuse}
	}

	dm := datamuse.NewClient(datamuse.WithBaseURL(cfg.DatamuseURL), datamuse.WithHTTPClient(doer))
	weight := func(name string) float64 {
		return cfg.Weight(name, DefaultWeights[name])
	}

	reg := NewRegistry()
	for _, name := range enabled {
		switch name {
		case NameWiktionary:
			c := wiktionary.NewClient(wiktionary.WithBaseURL(cfg.WiktionaryURL), wiktionary.WithHTTPClient(doer))
			reg.Register(NewWiktionary(c, weight(name)))
		case NameWordNet:
			reg.Register(NewWordNet(dm, weight(name)))
		case NameDatamuse:
			reg.Register(NewDatamuse(dm, weight(name)))
		case NameFreeDict:
			c := freedict.NewClient(freedict.WithBaseURL(cfg.FreeDictURL), freedict.WithHTTPClient(doer))
			reg.Register(NewFreeDict(c, weight(name)))
		case NameAI:
		default:
			return nil, eris.Errorf("source: unknown source %q", name)
		}
	}
	return reg, nil
}
