package model

import (
	"strings"
	"time"
)

// Morpheme is one meaningful unit of a word (prefix, root, or suffix).
type Morpheme struct {
	Text    string `json:"text"`
	Meaning string `json:"meaning"`
	Origin  string `json:"origin,omitempty"`
}

// IsZero reports whether the morpheme carries no text.
func (m Morpheme) IsZero() bool {
	return strings.TrimSpace(m.Text) == ""
}

// MorphemeBreakdown splits a word into its morphemes.
type MorphemeBreakdown struct {
	Prefix   *Morpheme `json:"prefix,omitempty"`
	Root     Morpheme  `json:"root"`
	Suffix   *Morpheme `json:"suffix,omitempty"`
	Phonetic string    `json:"phonetic,omitempty"`
}

// Etymology describes where a word came from.
type Etymology struct {
	LanguageOfOrigin   string `json:"language_of_origin,omitempty"`
	HistoricalOrigins  string `json:"historical_origins,omitempty"`
	WordEvolution      string `json:"word_evolution,omitempty"`
	CulturalVariations string `json:"cultural_regional_variations,omitempty"`
}

// Definitions groups a word's senses by register.
type Definitions struct {
	Primary     string   `json:"primary,omitempty"`
	Standard    []string `json:"standard,omitempty"`
	Extended    []string `json:"extended,omitempty"`
	Contextual  []string `json:"contextual,omitempty"`
	Specialized []string `json:"specialized,omitempty"`
}

// VerbTenses holds verb inflections.
type VerbTenses struct {
	Present           string `json:"present,omitempty"`
	Past              string `json:"past,omitempty"`
	Future            string `json:"future,omitempty"`
	PresentParticiple string `json:"present_participle,omitempty"`
	PastParticiple    string `json:"past_participle,omitempty"`
}

// NounForms holds noun inflections.
type NounForms struct {
	Singular string `json:"singular,omitempty"`
	Plural   string `json:"plural,omitempty"`
}

// AdjectiveForms holds adjective degrees.
type AdjectiveForms struct {
	Positive    string `json:"positive,omitempty"`
	Comparative string `json:"comparative,omitempty"`
	Superlative string `json:"superlative,omitempty"`
}

// WordForms holds the inflections of a word.
type WordForms struct {
	BaseForm         string         `json:"base_form,omitempty"`
	VerbTenses       VerbTenses     `json:"verb_tenses"`
	NounForms        NounForms      `json:"noun_forms"`
	AdjectiveForms   AdjectiveForms `json:"adjective_forms"`
	AdverbForm       string         `json:"adverb_form,omitempty"`
	OtherInflections string         `json:"other_inflections,omitempty"`
}

// Analysis holds grammatical and usage information.
type Analysis struct {
	PartsOfSpeech string   `json:"parts_of_speech,omitempty"`
	Synonyms      []string `json:"synonyms,omitempty"`
	Antonyms      []string `json:"antonyms,omitempty"`
	Collocations  []string `json:"collocations,omitempty"`
	UsageExamples []string `json:"usage_examples,omitempty"`
	Rhymes        []string `json:"rhymes,omitempty"`
}

// ProfileData is the lexical content of a word profile. Source adapters
// produce partial ProfileData; the canonical WordProfile embeds a full one.
type ProfileData struct {
	MorphemeBreakdown MorphemeBreakdown `json:"morpheme_breakdown"`
	Etymology         Etymology         `json:"etymology"`
	Definitions       Definitions       `json:"definitions"`
	WordForms         WordForms         `json:"word_forms"`
	Analysis          Analysis          `json:"analysis"`
}

// WordProfile is the canonical, persisted lexical record for one word.
type WordProfile struct {
	ID   string `json:"id"`
	Word string `json:"word"`
	ProfileData

	QualityScore     int                        `json:"quality_score"`
	LastEnrichmentAt *time.Time                 `json:"last_enrichment_at,omitempty"`
	DataSources      []string                   `json:"data_sources,omitempty"`
	Provenance       map[string]FieldProvenance `json:"provenance,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// NewWordProfile returns an unsaved profile whose root is a placeholder
// equal to the normalized word.
func NewWordProfile(word string) *WordProfile {
	w := NormalizeWord(word)
	return &WordProfile{
		Word: w,
		ProfileData: ProfileData{
			MorphemeBreakdown: MorphemeBreakdown{Root: Morpheme{Text: w}},
		},
		Provenance: make(map[string]FieldProvenance),
	}
}

// HasRealRoot reports whether the root morpheme holds a non-placeholder value.
// A root whose text merely repeats the word without a meaning, or whose
// meaning is a placeholder phrase, does not count.
func (p *WordProfile) HasRealRoot() bool {
	root := p.MorphemeBreakdown.Root
	if root.IsZero() {
		return false
	}
	if IsPlaceholder(root.Meaning) {
		return false
	}
	return true
}

// Clone returns a deep copy of the profile.
func (p *WordProfile) Clone() *WordProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.ProfileData = p.ProfileData.Clone()
	if p.LastEnrichmentAt != nil {
		t := *p.LastEnrichmentAt
		c.LastEnrichmentAt = &t
	}
	c.DataSources = cloneStrings(p.DataSources)
	c.Provenance = make(map[string]FieldProvenance, len(p.Provenance))
	for k, v := range p.Provenance {
		c.Provenance[k] = v
	}
	return &c
}

// Clone returns a deep copy of the profile data.
func (d ProfileData) Clone() ProfileData {
	c := d
	if d.MorphemeBreakdown.Prefix != nil {
		m := *d.MorphemeBreakdown.Prefix
		c.MorphemeBreakdown.Prefix = &m
	}
	if d.MorphemeBreakdown.Suffix != nil {
		m := *d.MorphemeBreakdown.Suffix
		c.MorphemeBreakdown.Suffix = &m
	}
	c.Definitions.Standard = cloneStrings(d.Definitions.Standard)
	c.Definitions.Extended = cloneStrings(d.Definitions.Extended)
	c.Definitions.Contextual = cloneStrings(d.Definitions.Contextual)
	c.Definitions.Specialized = cloneStrings(d.Definitions.Specialized)
	c.Analysis.Synonyms = cloneStrings(d.Analysis.Synonyms)
	c.Analysis.Antonyms = cloneStrings(d.Analysis.Antonyms)
	c.Analysis.Collocations = cloneStrings(d.Analysis.Collocations)
	c.Analysis.UsageExamples = cloneStrings(d.Analysis.UsageExamples)
	c.Analysis.Rhymes = cloneStrings(d.Analysis.Rhymes)
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// QualityBucket classifies a quality score as high, medium, or low.
func QualityBucket(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 50:
		return "medium"
	default:
		return "low"
	}
}

// QualityStatistics summarizes scores across all stored profiles.
type QualityStatistics struct {
	TotalWords    int     `json:"total_words"`
	HighQuality   int     `json:"high_quality"`
	MediumQuality int     `json:"medium_quality"`
	LowQuality    int     `json:"low_quality"`
	AverageScore  float64 `json:"average_score"`
}
