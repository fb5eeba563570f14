package enhance

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sells-group/lexicon-cli/internal/model"
)

var (
	fieldRe    = regexp.MustCompile(`^\*\*([^*:]+):?\*\*:?\s*(.*)$`)
	numberedRe = regexp.MustCompile(`(?:^|\s)\d+\.\s+`)
	quotedRe   = regexp.MustCompile(`"([^"]+)"`)
)

// parseResponse turns the model's answer into profile data. JSON answers
// are decoded directly; anything else goes through the markdown extractor.
// ok is false when nothing usable was found.
func parseResponse(text string) (model.ProfileData, bool) {
	if d, ok := parseJSON(text); ok {
		return d, true
	}
	d := parseMarkdown(text)
	return d, !isEmpty(d)
}

func parseJSON(text string) (model.ProfileData, bool) {
	var d model.ProfileData
	cleaned := cleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return d, false
	}
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return model.ProfileData{}, false
	}
	return d, !isEmpty(d)
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// field is one "**Label:** value" entry. Value lines that follow a label
// without a label of their own are appended to it.
type field struct {
	label string
	value string
}

// splitSections maps each "## Heading" to its body. Unknown headings are
// kept; callers look up the ones they know.
func splitSections(text string) map[string]string {
	sections := make(map[string]string)
	var heading string
	var body []string
	flush := func() {
		if heading != "" {
			sections[heading] = strings.Join(body, "\n")
		}
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			flush()
			heading = strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
			body = body[:0]
			continue
		}
		body = append(body, line)
	}
	flush()
	return sections
}

func parseFields(section string) []field {
	var out []field
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Bullets and the bold markers share characters, so strip both and
		// match the bare "Label: value" form.
		bare := strings.TrimLeft(line, "*-• ")
		if m := fieldRe.FindStringSubmatch("**" + bare); m != nil {
			out = append(out, field{label: strings.TrimSpace(m[1]), value: strings.TrimSpace(m[2])})
			continue
		}
		if len(out) == 0 {
			continue
		}
		last := &out[len(out)-1]
		if last.value == "" {
			last.value = bare
		} else {
			last.value += "\n" + bare
		}
	}
	return out
}

// lookup returns the value of the first field whose label starts with one
// of the prefixes, case-insensitively.
func lookup(fields []field, prefixes ...string) string {
	for _, f := range fields {
		label := strings.ToLower(f.label)
		for _, p := range prefixes {
			if strings.HasPrefix(label, strings.ToLower(p)) {
				return f.value
			}
		}
	}
	return ""
}

// splitMorpheme splits "text - meaning".
func splitMorpheme(v string) *model.Morpheme {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	text, meaning, ok := strings.Cut(v, " - ")
	if !ok {
		return &model.Morpheme{Text: v}
	}
	return &model.Morpheme{Text: strings.TrimSpace(text), Meaning: strings.TrimSpace(meaning)}
}

// splitNumbered splits "1. a 2. b" or one item per line.
func splitNumbered(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	var parts []string
	if numberedRe.MatchString(v) {
		parts = numberedRe.Split(v, -1)
	} else {
		parts = strings.Split(v, "\n")
	}
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitCommas splits a comma or semicolon separated list.
func splitCommas(v string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// quotedOrWhole returns every quoted sentence in v, or v itself when there
// are none.
func quotedOrWhole(v string) []string {
	matches := quotedRe.FindAllStringSubmatch(v, -1)
	if len(matches) == 0 {
		if v = strings.TrimSpace(v); v != "" {
			return []string{v}
		}
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// parseMarkdown is a best-effort reader of the markdown answer format.
// Missing sections and fields are skipped.
func parseMarkdown(text string) model.ProfileData {
	var d model.ProfileData
	sections := splitSections(text)

	if s, ok := sections[headingMorpheme]; ok {
		f := parseFields(s)
		if root := splitMorpheme(lookup(f, "root")); root != nil {
			d.MorphemeBreakdown.Root = *root
		}
		d.MorphemeBreakdown.Prefix = splitMorpheme(lookup(f, "prefix"))
		d.MorphemeBreakdown.Suffix = splitMorpheme(lookup(f, "suffix"))
		d.MorphemeBreakdown.Phonetic = lookup(f, "phonetic", "pronunciation")
	}

	if s, ok := sections[headingEtymology]; ok {
		f := parseFields(s)
		d.Etymology.LanguageOfOrigin = lookup(f, "language of origin")
		d.Etymology.HistoricalOrigins = lookup(f, "historical origins")
		d.Etymology.WordEvolution = lookup(f, "word evolution")
		d.Etymology.CulturalVariations = lookup(f, "cultural")
	}

	if s, ok := sections[headingDefinitions]; ok {
		f := parseFields(s)
		d.Definitions.Primary = lookup(f, "primary definition")
		d.Definitions.Standard = splitNumbered(lookup(f, "standard definition"))
		d.Definitions.Extended = splitNumbered(lookup(f, "extended definition"))
		d.Definitions.Contextual = splitNumbered(lookup(f, "contextual"))
		d.Definitions.Specialized = splitNumbered(lookup(f, "specialized"))
	}

	if s, ok := sections[headingWordForms]; ok {
		f := parseFields(s)
		d.WordForms.BaseForm = lookup(f, "base form")
		d.WordForms.VerbTenses.Past = lookup(f, "past tense")
		d.WordForms.VerbTenses.PresentParticiple = lookup(f, "present participle")
		d.WordForms.VerbTenses.PastParticiple = lookup(f, "past participle")
		d.WordForms.NounForms.Plural = lookup(f, "plural")
		d.WordForms.AdjectiveForms.Comparative = lookup(f, "comparative")
		d.WordForms.AdjectiveForms.Superlative = lookup(f, "superlative")
		d.WordForms.AdverbForm = lookup(f, "adverb")
	}

	if s, ok := sections[headingAnalysis]; ok {
		f := parseFields(s)
		d.Analysis.PartsOfSpeech = lookup(f, "parts of speech", "part of speech")
		d.Analysis.Synonyms = splitCommas(lookup(f, "synonyms"))
		d.Analysis.Antonyms = splitCommas(lookup(f, "antonyms"))
		d.Analysis.Collocations = splitCommas(lookup(f, "collocations"))
		d.Analysis.UsageExamples = quotedOrWhole(lookup(f, "example", "usage example"))
		d.Analysis.Rhymes = splitCommas(lookup(f, "rhymes"))
	}

	return d.Clean()
}

func isEmpty(d model.ProfileData) bool {
	got, err1 := json.Marshal(d)
	empty, err2 := json.Marshal(model.ProfileData{})
	return err1 != nil || err2 != nil || string(got) == string(empty)
}
