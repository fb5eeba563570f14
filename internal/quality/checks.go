package quality

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/sells-group/lexicon-cli/internal/model"
)

// Pass thresholds per check.
const (
	accuracyPass     = 70
	completenessPass = 80
	consistencyPass  = 75
	freshnessPass    = 70
)

// completenessWeight is a field whose absence deducts weight points.
type completenessWeight struct {
	field   string
	weight  int
	present func(p *model.WordProfile) bool
}

var completenessWeights = []completenessWeight{
	{"word", 20, func(p *model.WordProfile) bool { return nonBlank(p.Word) }},
	{"definitions.primary", 20, func(p *model.WordProfile) bool { return nonBlank(p.Definitions.Primary) }},
	{"morpheme_breakdown.root.text", 15, func(p *model.WordProfile) bool { return nonBlank(p.MorphemeBreakdown.Root.Text) }},
	{"morpheme_breakdown.root.meaning", 15, func(p *model.WordProfile) bool { return nonBlank(p.MorphemeBreakdown.Root.Meaning) }},
	{"etymology.language_of_origin", 10, func(p *model.WordProfile) bool { return nonBlank(p.Etymology.LanguageOfOrigin) }},
	{"analysis.parts_of_speech", 10, func(p *model.WordProfile) bool { return nonBlank(p.Analysis.PartsOfSpeech) }},
	{"definitions.standard", 10, func(p *model.WordProfile) bool { return len(p.Definitions.Standard) > 0 }},
}

var posIndicators = map[string][]string{
	"noun":      {"person", "place", "thing", "concept", "entity"},
	"verb":      {"action", "process", "state", "occur", "happen"},
	"adjective": {"describing", "quality", "characteristic", "attribute"},
	"adverb":    {"manner", "way", "how", "when", "where"},
}

func nonBlank(s string) bool { return strings.TrimSpace(s) != "" }

type checkBuilder struct {
	check model.QualityCheck
	pass  int
}

func newCheck(t model.CheckType, pass int) *checkBuilder {
	return &checkBuilder{
		check: model.QualityCheck{Type: t, Score: 100, Issues: []string{}, Recommendations: []string{}},
		pass:  pass,
	}
}

func (b *checkBuilder) deduct(points int, issue, recommendation string) {
	b.check.Score -= points
	if issue != "" {
		b.check.Issues = append(b.check.Issues, issue)
	}
	if recommendation != "" {
		b.check.Recommendations = append(b.check.Recommendations, recommendation)
	}
}

func (b *checkBuilder) done() model.QualityCheck {
	b.check.Score = clamp(b.check.Score)
	b.check.Passed = b.check.Score >= b.pass
	return b.check
}

func clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// checkAccuracy compares the stored profile against the best source values.
// records are assumed sorted by confidence, highest first.
func checkAccuracy(p *model.WordProfile, records []*model.SourceRecord, conflicts []model.ConflictNote, threshold float64) model.QualityCheck {
	b := newCheck(model.CheckAccuracy, accuracyPass)

	if len(records) == 0 {
		b.deduct(10, "Unable to verify accuracy with external sources", "")
	}

	if best := bestValue(records, func(d *model.ProfileData) string { return d.Definitions.Primary }); best != "" {
		if Similarity(p.Definitions.Primary, best) < threshold {
			b.deduct(30, "Possible inaccurate definition compared to authoritative sources", "Review and update primary definition")
		}
	}

	if best := bestValue(records, func(d *model.ProfileData) string { return d.Etymology.LanguageOfOrigin }); best != "" {
		if !strings.EqualFold(strings.TrimSpace(p.Etymology.LanguageOfOrigin), best) {
			b.deduct(20, "Etymology language origin discrepancy detected", "Verify etymology with authoritative sources")
		}
	}

	for _, c := range conflicts {
		values := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			values = append(values, fmt.Sprintf("%s=%q", v.Source, v.Value))
		}
		b.deduct(0, fmt.Sprintf("Unresolved conflict on %s: %s", c.Field, strings.Join(values, ", ")), "")
	}

	return b.done()
}

func bestValue(records []*model.SourceRecord, get func(d *model.ProfileData) string) string {
	for _, r := range records {
		if v := strings.TrimSpace(get(&r.Data)); v != "" {
			return v
		}
	}
	return ""
}

func checkCompleteness(p *model.WordProfile) model.QualityCheck {
	b := newCheck(model.CheckCompleteness, completenessPass)
	for _, w := range completenessWeights {
		if !w.present(p) {
			b.deduct(w.weight,
				"Missing required field: "+w.field,
				"Add "+strings.ReplaceAll(w.field, ".", " "))
		}
	}
	return b.done()
}

func checkConsistency(p *model.WordProfile) model.QualityCheck {
	b := newCheck(model.CheckConsistency, consistencyPass)

	root := strings.TrimSpace(p.MorphemeBreakdown.Root.Text)
	word := strings.TrimSpace(p.Word)
	if root != "" && word != "" && !strings.Contains(strings.ToLower(word), strings.ToLower(root)) {
		b.deduct(25, "Root morpheme not found in word", "Verify morpheme breakdown accuracy")
	}

	pos := strings.ToLower(strings.TrimSpace(p.Analysis.PartsOfSpeech))
	def := strings.ToLower(p.Definitions.Primary)
	if indicators, ok := posIndicators[pos]; ok && def != "" {
		found := false
		for _, ind := range indicators {
			if strings.Contains(def, ind) {
				found = true
				break
			}
		}
		if !found {
			b.deduct(15, "Definition may not match parts of speech", "Review definition alignment with grammatical role")
		}
	}

	return b.done()
}

func checkFreshness(p *model.WordProfile, now time.Time, staleDays, agingDays int) model.QualityCheck {
	b := newCheck(model.CheckFreshness, freshnessPass)

	if p.LastEnrichmentAt == nil {
		b.deduct(20, "No enrichment history found", "Perform initial enrichment")
		return b.done()
	}

	days := int(now.Sub(*p.LastEnrichmentAt).Hours() / 24)
	switch {
	case days > staleDays:
		b.deduct(30, "Data has not been enriched recently", "Consider re-enriching with latest sources")
	case days > agingDays:
		b.deduct(15, "Data enrichment is somewhat outdated", "")
	}
	return b.done()
}

// Similarity returns the Jaccard overlap of the case-folded word tokens of a
// and b, in [0, 1]. Either side being empty yields 0.
func Similarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	folded := cases.Fold().String(s)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
