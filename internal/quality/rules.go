package quality

import (
	_ "embed"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lexicon-cli/internal/model"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule kinds.
const (
	KindRequired = "required"
	KindRange    = "range"
	KindPattern  = "pattern"
	KindCustom   = "custom"
)

// Rule is one declarative validation rule.
type Rule struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Field     string `yaml:"field"`
	Min       int    `yaml:"min,omitempty"`
	Max       int    `yaml:"max,omitempty"`
	Pattern   string `yaml:"pattern,omitempty"`
	Predicate string `yaml:"predicate,omitempty"`
	Message   string `yaml:"message,omitempty"`

	re *regexp.Regexp
}

// Predicate is a named custom check on a field value.
type Predicate func(value string) bool

var predicates = map[string]Predicate{
	"not_placeholder": func(v string) bool { return !model.IsPlaceholder(v) },
	"single_word":     func(v string) bool { return len(strings.Fields(v)) == 1 },
}

var listPaths = map[string]bool{
	"definitions.standard":    true,
	"analysis.synonyms":       true,
	"analysis.usage_examples": true,
}

// fieldValues returns the values a rule inspects. Scalars yield at most one
// value; lists yield their items. The bool is false for unknown paths.
func fieldValues(p *model.WordProfile, path string) ([]string, bool) {
	one := func(s string) []string {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return []string{s}
	}
	root := p.MorphemeBreakdown.Root
	switch path {
	case "word":
		return one(p.Word), true
	case "morpheme_breakdown.root":
		if strings.TrimSpace(root.Text) == "" || strings.TrimSpace(root.Meaning) == "" {
			return nil, true
		}
		return []string{root.Text}, true
	case "morpheme_breakdown.root.text":
		return one(root.Text), true
	case "morpheme_breakdown.root.meaning":
		return one(root.Meaning), true
	case "morpheme_breakdown.phonetic":
		return one(p.MorphemeBreakdown.Phonetic), true
	case "definitions.primary":
		return one(p.Definitions.Primary), true
	case "definitions.standard":
		return p.Definitions.Standard, true
	case "etymology.language_of_origin":
		return one(p.Etymology.LanguageOfOrigin), true
	case "etymology.historical_origins":
		return one(p.Etymology.HistoricalOrigins), true
	case "analysis.parts_of_speech":
		return one(p.Analysis.PartsOfSpeech), true
	case "analysis.synonyms":
		return p.Analysis.Synonyms, true
	case "analysis.usage_examples":
		return p.Analysis.UsageExamples, true
	case "word_forms.base_form":
		return one(p.WordForms.BaseForm), true
	}
	return nil, false
}

// LoadRules reads a rule set from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "quality: read rules %s", path)
	}
	return ParseRules(data)
}

// ParseRules parses and validates a YAML rule set.
func ParseRules(data []byte) ([]Rule, error) {
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "quality: parse rules")
	}
	if len(doc.Rules) == 0 {
		return nil, eris.New("quality: rule set is empty")
	}

	var errs []string
	for i := range doc.Rules {
		if err := doc.Rules[i].compile(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return nil, eris.Errorf("quality: invalid rules: %s", strings.Join(errs, "; "))
	}
	return doc.Rules, nil
}

// DefaultRules returns the built-in rule set.
func DefaultRules() []Rule {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(err)
	}
	return rules
}

func (r *Rule) compile() error {
	if r.Name == "" {
		return eris.Errorf("rule on %q has no name", r.Field)
	}
	if _, ok := fieldValues(&model.WordProfile{}, r.Field); !ok {
		return eris.Errorf("%s: unknown field %q", r.Name, r.Field)
	}
	switch r.Kind {
	case KindRequired:
	case KindRange:
		if r.Max > 0 && r.Max < r.Min {
			return eris.Errorf("%s: max %d < min %d", r.Name, r.Max, r.Min)
		}
	case KindPattern:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return eris.Wrapf(err, "%s: bad pattern", r.Name)
		}
		r.re = re
	case KindCustom:
		if _, ok := predicates[r.Predicate]; !ok {
			return eris.Errorf("%s: unknown predicate %q", r.Name, r.Predicate)
		}
	default:
		return eris.Errorf("%s: unknown kind %q", r.Name, r.Kind)
	}
	return nil
}

// Evaluate applies the rule to p.
func (r *Rule) Evaluate(p *model.WordProfile) model.ValidationResult {
	values, _ := fieldValues(p, r.Field)
	ok := r.check(values)
	res := model.ValidationResult{Rule: r.Name, Passed: ok}
	if !ok {
		res.Message = r.Message
	}
	return res
}

func (r *Rule) check(values []string) bool {
	if len(values) == 0 {
		return false
	}
	switch r.Kind {
	case KindRequired:
		return true
	case KindRange:
		return r.inRange(values)
	case KindPattern:
		for _, v := range values {
			if !r.re.MatchString(v) {
				return false
			}
		}
		return true
	case KindCustom:
		pred := predicates[r.Predicate]
		for _, v := range values {
			if utf8.RuneCountInString(v) < r.Min || !pred(v) {
				return false
			}
		}
		return true
	}
	return false
}

// inRange checks character length of a scalar, or item count of a list.
func (r *Rule) inRange(values []string) bool {
	n := len(values)
	if !listPaths[r.Field] {
		n = utf8.RuneCountInString(values[0])
	}
	if n < r.Min {
		return false
	}
	return r.Max <= 0 || n <= r.Max
}
