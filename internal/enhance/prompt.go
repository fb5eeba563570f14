package enhance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/lexicon-cli/internal/model"
)

// Section headings and field labels of the markdown answer format. The
// extractor in extract.go reads exactly these.
const (
	headingMorpheme    = "Morpheme Breakdown"
	headingEtymology   = "Etymology"
	headingDefinitions = "Definitions"
	headingWordForms   = "Word Forms & Inflections"
	headingAnalysis    = "Analysis of the Word"
)

const systemPrompt = `You are a careful lexicographer filling gaps in a vocabulary word profile.

Answer with a single JSON object and nothing else. Use only these keys, and
include only the fields you were asked for:

{
  "morpheme_breakdown": {"prefix": {"text": "", "meaning": ""}, "root": {"text": "", "meaning": "", "origin": ""}, "suffix": {"text": "", "meaning": ""}, "phonetic": ""},
  "etymology": {"language_of_origin": "", "historical_origins": "", "word_evolution": "", "cultural_regional_variations": ""},
  "definitions": {"primary": "", "standard": [], "extended": [], "contextual": [], "specialized": []},
  "word_forms": {"base_form": "", "verb_tenses": {"past": "", "present_participle": "", "past_participle": ""}, "noun_forms": {"plural": ""}, "adjective_forms": {"comparative": "", "superlative": ""}, "adverb_form": ""},
  "analysis": {"parts_of_speech": "", "synonyms": [], "antonyms": [], "collocations": [], "usage_examples": [], "rhymes": []}
}

If you cannot produce JSON, answer in markdown with these sections, one
"* **Label:** value" bullet per field:

## ` + headingMorpheme + `
* **Prefix:** text - meaning
* **Root Word:** text - meaning
* **Suffix:** text - meaning
* **Phonetic:** /ipa/

## ` + headingEtymology + `
* **Language of Origin:** language
* **Historical Origins:** prose
* **Word Evolution:** prose
* **Cultural Variations:** prose

## ` + headingDefinitions + `
* **Primary Definition:** one sentence
* **Standard Definitions:** 1. first 2. second

## ` + headingWordForms + `
* **Base Form:** word
* **Past Tense:** form
* **Present Participle:** form
* **Past Participle:** form
* **Plural:** form
* **Comparative:** form
* **Superlative:** form
* **Adverb Form:** form

## ` + headingAnalysis + `
* **Parts of Speech:** noun, verb, adjective or adverb
* **Synonyms:** a, b, c
* **Antonyms:** a, b
* **Collocations:** a, b
* **Example:** "A sentence using the word."
* **Rhymes:** a, b

Never invent placeholder text such as "not available". Leave out what you do not know.`

// buildUserPrompt describes the word, what is already known, and which
// fields are wanted.
func buildUserPrompt(p *model.WordProfile, missing []string) string {
	current, err := json.MarshalIndent(p.ProfileData, "", "  ")
	if err != nil {
		current = []byte("{}")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Word: %s\n\n", p.Word)
	fmt.Fprintf(&b, "Current profile:\n%s\n\n", current)
	b.WriteString("Fill in only these fields:\n")
	for _, f := range missing {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	return b.String()
}
