package fusion

import "github.com/sells-group/lexicon-cli/internal/model"

// scalarField is a single-valued profile field taking part in fusion.
type scalarField struct {
	path string
	get  func(d *model.ProfileData) string
	set  func(d *model.ProfileData, v string)
}

// listField is a multi-valued profile field merged by union.
type listField struct {
	path string
	get  func(d *model.ProfileData) []string
	set  func(d *model.ProfileData, v []string)
}

var scalarFields = []scalarField{
	{
		path: "definitions.primary",
		get:  func(d *model.ProfileData) string { return d.Definitions.Primary },
		set:  func(d *model.ProfileData, v string) { d.Definitions.Primary = v },
	},
	{
		path: "etymology.language_of_origin",
		get:  func(d *model.ProfileData) string { return d.Etymology.LanguageOfOrigin },
		set:  func(d *model.ProfileData, v string) { d.Etymology.LanguageOfOrigin = v },
	},
	{
		path: "etymology.historical_origins",
		get:  func(d *model.ProfileData) string { return d.Etymology.HistoricalOrigins },
		set:  func(d *model.ProfileData, v string) { d.Etymology.HistoricalOrigins = v },
	},
	{
		path: "etymology.word_evolution",
		get:  func(d *model.ProfileData) string { return d.Etymology.WordEvolution },
		set:  func(d *model.ProfileData, v string) { d.Etymology.WordEvolution = v },
	},
	{
		path: "etymology.cultural_regional_variations",
		get:  func(d *model.ProfileData) string { return d.Etymology.CulturalVariations },
		set:  func(d *model.ProfileData, v string) { d.Etymology.CulturalVariations = v },
	},
	{
		path: "analysis.parts_of_speech",
		get:  func(d *model.ProfileData) string { return d.Analysis.PartsOfSpeech },
		set:  func(d *model.ProfileData, v string) { d.Analysis.PartsOfSpeech = v },
	},
	{
		path: "morpheme_breakdown.phonetic",
		get:  func(d *model.ProfileData) string { return d.MorphemeBreakdown.Phonetic },
		set:  func(d *model.ProfileData, v string) { d.MorphemeBreakdown.Phonetic = v },
	},
	{
		path: "word_forms.base_form",
		get:  func(d *model.ProfileData) string { return d.WordForms.BaseForm },
		set:  func(d *model.ProfileData, v string) { d.WordForms.BaseForm = v },
	},
	{
		path: "word_forms.verb_tenses.past",
		get:  func(d *model.ProfileData) string { return d.WordForms.VerbTenses.Past },
		set:  func(d *model.ProfileData, v string) { d.WordForms.VerbTenses.Past = v },
	},
	{
		path: "word_forms.verb_tenses.present_participle",
		get:  func(d *model.ProfileData) string { return d.WordForms.VerbTenses.PresentParticiple },
		set:  func(d *model.ProfileData, v string) { d.WordForms.VerbTenses.PresentParticiple = v },
	},
	{
		path: "word_forms.verb_tenses.past_participle",
		get:  func(d *model.ProfileData) string { return d.WordForms.VerbTenses.PastParticiple },
		set:  func(d *model.ProfileData, v string) { d.WordForms.VerbTenses.PastParticiple = v },
	},
	{
		path: "word_forms.noun_forms.plural",
		get:  func(d *model.ProfileData) string { return d.WordForms.NounForms.Plural },
		set:  func(d *model.ProfileData, v string) { d.WordForms.NounForms.Plural = v },
	},
	{
		path: "word_forms.adjective_forms.comparative",
		get:  func(d *model.ProfileData) string { return d.WordForms.AdjectiveForms.Comparative },
		set:  func(d *model.ProfileData, v string) { d.WordForms.AdjectiveForms.Comparative = v },
	},
	{
		path: "word_forms.adjective_forms.superlative",
		get:  func(d *model.ProfileData) string { return d.WordForms.AdjectiveForms.Superlative },
		set:  func(d *model.ProfileData, v string) { d.WordForms.AdjectiveForms.Superlative = v },
	},
	{
		path: "word_forms.adverb_form",
		get:  func(d *model.ProfileData) string { return d.WordForms.AdverbForm },
		set:  func(d *model.ProfileData, v string) { d.WordForms.AdverbForm = v },
	},
}

var listFields = []listField{
	{
		path: "definitions.standard",
		get:  func(d *model.ProfileData) []string { return d.Definitions.Standard },
		set:  func(d *model.ProfileData, v []string) { d.Definitions.Standard = v },
	},
	{
		path: "definitions.extended",
		get:  func(d *model.ProfileData) []string { return d.Definitions.Extended },
		set:  func(d *model.ProfileData, v []string) { d.Definitions.Extended = v },
	},
	{
		path: "definitions.contextual",
		get:  func(d *model.ProfileData) []string { return d.Definitions.Contextual },
		set:  func(d *model.ProfileData, v []string) { d.Definitions.Contextual = v },
	},
	{
		path: "definitions.specialized",
		get:  func(d *model.ProfileData) []string { return d.Definitions.Specialized },
		set:  func(d *model.ProfileData, v []string) { d.Definitions.Specialized = v },
	},
	{
		path: "analysis.synonyms",
		get:  func(d *model.ProfileData) []string { return d.Analysis.Synonyms },
		set:  func(d *model.ProfileData, v []string) { d.Analysis.Synonyms = v },
	},
	{
		path: "analysis.antonyms",
		get:  func(d *model.ProfileData) []string { return d.Analysis.Antonyms },
		set:  func(d *model.ProfileData, v []string) { d.Analysis.Antonyms = v },
	},
	{
		path: "analysis.collocations",
		get:  func(d *model.ProfileData) []string { return d.Analysis.Collocations },
		set:  func(d *model.ProfileData, v []string) { d.Analysis.Collocations = v },
	},
	{
		path: "analysis.usage_examples",
		get:  func(d *model.ProfileData) []string { return d.Analysis.UsageExamples },
		set:  func(d *model.ProfileData, v []string) { d.Analysis.UsageExamples = v },
	},
	{
		path: "analysis.rhymes",
		get:  func(d *model.ProfileData) []string { return d.Analysis.Rhymes },
		set:  func(d *model.ProfileData, v []string) { d.Analysis.Rhymes = v },
	},
}

// MissingFields returns the paths of scalar and list fields that are empty
// in p, plus "morpheme_breakdown.root" when the root is still a placeholder.
// The AI enhancer is asked to fill exactly these.
func MissingFields(p *model.WordProfile) []string {
	var out []string
	if !p.HasRealRoot() {
		out = append(out, "morpheme_breakdown.root")
	}
	for _, f := range scalarFields {
		if f.get(&p.ProfileData) == "" {
			out = append(out, f.path)
		}
	}
	for _, f := range listFields {
		if len(f.get(&p.ProfileData)) == 0 {
			out = append(out, f.path)
		}
	}
	return out
}

// KeepFields returns a copy of d holding only the listed field paths.
func KeepFields(d model.ProfileData, paths []string) model.ProfileData {
	keep := make(map[string]bool, len(paths))
	for _, p := range paths {
		keep[p] = true
	}

	var out model.ProfileData
	if keep["morpheme_breakdown.root"] {
		out.MorphemeBreakdown.Root = d.MorphemeBreakdown.Root
		out.MorphemeBreakdown.Prefix = d.MorphemeBreakdown.Prefix
		out.MorphemeBreakdown.Suffix = d.MorphemeBreakdown.Suffix
	}
	for _, f := range scalarFields {
		if keep[f.path] {
			f.set(&out, f.get(&d))
		}
	}
	for _, f := range listFields {
		if keep[f.path] {
			f.set(&out, f.get(&d))
		}
	}
	return out.Clone()
}
