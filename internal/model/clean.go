package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// placeholders are meaning strings that carry no information.
var placeholders = []string{
	"not available",
	"n/a",
	"unknown",
	"tbd",
	"none",
	"placeholder",
}

// NormalizeWord trims, NFC-normalizes and lower-cases a headword.
func NormalizeWord(word string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(word)))
}

// FoldKey returns the case-folded, whitespace-collapsed comparison key of s.
// Two strings with equal fold keys are duplicates.
func FoldKey(s string) string {
	// Casers hold state and are not safe for concurrent use.
	return cases.Fold().String(strings.Join(strings.Fields(norm.NFC.String(s)), " "))
}

// CleanText collapses runs of whitespace and strips control and
// non-printable characters.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// CleanList cleans every item, drops empties and removes case-insensitive
// duplicates, preserving first-seen order.
func CleanList(items []string) []string {
	if len(items) == 0 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = CleanText(it)
		if it == "" {
			continue
		}
		k := FoldKey(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

// IsPlaceholder reports whether s is empty or a known placeholder phrase.
func IsPlaceholder(s string) bool {
	k := FoldKey(s)
	if k == "" || strings.Contains(k, "not available") {
		return true
	}
	for _, p := range placeholders {
		if k == p {
			return true
		}
	}
	return false
}

// Clean returns a copy of d with all text cleaned and lists deduplicated.
func (d ProfileData) Clean() ProfileData {
	c := d.Clone()
	cleanMorpheme := func(m *Morpheme) {
		if m == nil {
			return
		}
		m.Text = CleanText(m.Text)
		m.Meaning = CleanText(m.Meaning)
		m.Origin = CleanText(m.Origin)
	}
	cleanMorpheme(c.MorphemeBreakdown.Prefix)
	cleanMorpheme(&c.MorphemeBreakdown.Root)
	cleanMorpheme(c.MorphemeBreakdown.Suffix)
	if c.MorphemeBreakdown.Prefix != nil && c.MorphemeBreakdown.Prefix.IsZero() {
		c.MorphemeBreakdown.Prefix = nil
	}
	if c.MorphemeBreakdown.Suffix != nil && c.MorphemeBreakdown.Suffix.IsZero() {
		c.MorphemeBreakdown.Suffix = nil
	}
	c.MorphemeBreakdown.Phonetic = strings.TrimSpace(c.MorphemeBreakdown.Phonetic)

	c.Etymology.LanguageOfOrigin = CleanText(c.Etymology.LanguageOfOrigin)
	c.Etymology.HistoricalOrigins = CleanText(c.Etymology.HistoricalOrigins)
	c.Etymology.WordEvolution = CleanText(c.Etymology.WordEvolution)
	c.Etymology.CulturalVariations = CleanText(c.Etymology.CulturalVariations)

	c.Definitions.Primary = CleanText(c.Definitions.Primary)
	c.Definitions.Standard = CleanList(c.Definitions.Standard)
	c.Definitions.Extended = CleanList(c.Definitions.Extended)
	c.Definitions.Contextual = CleanList(c.Definitions.Contextual)
	c.Definitions.Specialized = CleanList(c.Definitions.Specialized)

	c.Analysis.PartsOfSpeech = CleanText(c.Analysis.PartsOfSpeech)
	c.Analysis.Synonyms = CleanList(c.Analysis.Synonyms)
	c.Analysis.Antonyms = CleanList(c.Analysis.Antonyms)
	c.Analysis.Collocations = CleanList(c.Analysis.Collocations)
	c.Analysis.UsageExamples = CleanList(c.Analysis.UsageExamples)
	c.Analysis.Rhymes = CleanList(c.Analysis.Rhymes)

	c.WordForms.BaseForm = CleanText(c.WordForms.BaseForm)
	return c
}
