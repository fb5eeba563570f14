package source

import (
	"html"
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// stripHTML removes markup and decodes entities.
func stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}

// languages is ordered so that compound names match before their suffixes.
var languages = []string{
	"Old English", "Middle English", "Old French", "Anglo-Norman", "Old Norse",
	"Late Latin", "Medieval Latin", "Ancient Greek",
	"Latin", "Greek", "French", "German", "Dutch", "Italian", "Spanish",
	"Portuguese", "Arabic", "Hebrew", "Persian", "Sanskrit", "Hindi",
	"Japanese", "Chinese", "Norse", "Celtic", "Gaelic", "Turkish", "Russian",
}

// InferLanguage guesses a language of origin from a free-text etymology. It
// prefers the language named after the last "from" (the deepest root a
// dictionary usually states last), and otherwise the first language named.
func InferLanguage(origin string) string {
	if origin == "" {
		return ""
	}
	lower := strings.ToLower(origin)

	best, bestPos := "", -1
	for _, lang := range languages {
		needle := "from " + strings.ToLower(lang)
		if i := strings.LastIndex(lower, needle); i > bestPos {
			best, bestPos = lang, i
		}
	}
	if best != "" {
		return normalizeLanguage(best)
	}

	bestPos = len(lower) + 1
	for _, lang := range languages {
		if i := strings.Index(lower, strings.ToLower(lang)); i >= 0 && i < bestPos {
			best, bestPos = lang, i
		}
	}
	return normalizeLanguage(best)
}

func normalizeLanguage(lang string) string {
	switch lang {
	case "Late Latin", "Medieval Latin":
		return "Latin"
	case "Ancient Greek":
		return "Greek"
	case "Norse":
		return "Old Norse"
	}
	return lang
}
