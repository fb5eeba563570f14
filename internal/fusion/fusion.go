// Package fusion merges source records into a canonical word profile using
// confidence-weighted conflict resolution.
package fusion

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

// UnattributedConfidence is assumed for stored values with no provenance,
// such as imported profiles.
const UnattributedConfidence = 0.5

const rootPath = "morpheme_breakdown.root"

// MergeResult describes what a merge changed.
type MergeResult struct {
	FieldsChanged []string             `json:"fields_changed"`
	SourcesUsed   []string             `json:"sources_used"`
	Conflicts     []model.ConflictNote `json:"conflicts,omitempty"`
}

// Changed reports whether any field changed.
func (r MergeResult) Changed() bool { return len(r.FieldsChanged) > 0 }

// Engine merges records into profiles.
type Engine struct {
	epsilon float64
	listCap int
	decay   config.DecayConfig
	now     func() time.Time
}

// New creates a fusion engine.
func New(cfg config.FusionConfig) *Engine {
	e := &Engine{
		epsilon: cfg.Epsilon,
		listCap: cfg.ListCap,
		decay:   cfg.Decay,
		now:     time.Now,
	}
	if e.listCap <= 0 {
		e.listCap = 10
	}
	return e
}

// WithNow sets a fixed time for testing.
func (e *Engine) WithNow(t time.Time) *Engine {
	e.now = func() time.Time { return t }
	return e
}

type candidate struct {
	source     string
	value      string
	confidence float64
}

// Merge returns a copy of existing updated with the records. existing is
// never mutated. A nil existing is treated as an empty profile.
//
// Scalars take the value of the highest-confidence record, but only replace a
// stored value when they beat its (optionally decayed) confidence by more
// than epsilon. Near-tied records that disagree leave the field as it is and
// produce a conflict note. Lists are unioned, existing values first.
func (e *Engine) Merge(existing *model.WordProfile, records []*model.SourceRecord) (*model.WordProfile, MergeResult) {
	var out *model.WordProfile
	if existing == nil {
		out = model.NewWordProfile("")
	} else {
		out = existing.Clone()
	}
	if out.Provenance == nil {
		out.Provenance = make(map[string]model.FieldProvenance)
	}

	recs := make([]*model.SourceRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Confidence > recs[j].Confidence })

	now := e.now().UTC()
	var res MergeResult

	for _, f := range scalarFields {
		if note, changed := e.mergeScalar(out, f, recs, now); changed {
			res.FieldsChanged = append(res.FieldsChanged, f.path)
		} else if note != nil {
			res.Conflicts = append(res.Conflicts, *note)
		}
	}

	if e.mergeRoot(out, recs, now) {
		res.FieldsChanged = append(res.FieldsChanged, rootPath)
	}
	if e.mergeAffix(out, recs, now, "morpheme_breakdown.prefix",
		func(d *model.ProfileData) **model.Morpheme { return &d.MorphemeBreakdown.Prefix }) {
		res.FieldsChanged = append(res.FieldsChanged, "morpheme_breakdown.prefix")
	}
	if e.mergeAffix(out, recs, now, "morpheme_breakdown.suffix",
		func(d *model.ProfileData) **model.Morpheme { return &d.MorphemeBreakdown.Suffix }) {
		res.FieldsChanged = append(res.FieldsChanged, "morpheme_breakdown.suffix")
	}

	for _, f := range listFields {
		if e.mergeList(out, f, recs) {
			res.FieldsChanged = append(res.FieldsChanged, f.path)
		}
	}

	sources := make([]string, 0, len(recs))
	for _, r := range recs {
		sources = append(sources, r.SourceName)
	}
	res.SourcesUsed = model.CleanList(sources)
	sort.Strings(res.SourcesUsed)

	merged := model.CleanList(append(append([]string(nil), out.DataSources...), res.SourcesUsed...))
	if len(merged) != len(out.DataSources) {
		out.DataSources = merged
	}

	if res.Changed() {
		out.UpdatedAt = now
	}
	return out, res
}

// mergeScalar returns (nil, true) when the field changed, or a conflict note
// when near-tied sources disagree.
func (e *Engine) mergeScalar(p *model.WordProfile, f scalarField, recs []*model.SourceRecord, now time.Time) (*model.ConflictNote, bool) {
	var cands []candidate
	for _, r := range recs {
		v := model.CleanText(f.get(&r.Data))
		if v == "" || model.IsPlaceholder(v) {
			continue
		}
		cands = append(cands, candidate{source: r.SourceName, value: v, confidence: r.Confidence})
	}
	if len(cands) == 0 {
		return nil, false
	}

	winner := cands[0]
	current := f.get(&p.ProfileData)

	if note := e.conflict(f.path, current, cands); note != nil {
		return note, false
	}

	if current != "" {
		if model.FoldKey(current) == model.FoldKey(winner.value) {
			return nil, false
		}
		if margin(winner.confidence, e.storedConfidence(p, f.path, now)) <= e.epsilon {
			return nil, false
		}
	}

	f.set(&p.ProfileData, winner.value)
	p.Provenance[f.path] = model.FieldProvenance{Source: winner.source, Confidence: winner.confidence, UpdatedAt: now}
	return nil, true
}

// conflict returns a note when a candidate other than the winner disagrees
// with it and sits within epsilon of its confidence.
func (e *Engine) conflict(path, current string, cands []candidate) *model.ConflictNote {
	winner := cands[0]
	var rivals []candidate
	seen := map[string]bool{model.FoldKey(winner.value): true}
	for _, c := range cands[1:] {
		k := model.FoldKey(c.value)
		if seen[k] || !e.withinEpsilon(winner.confidence, c.confidence) {
			continue
		}
		seen[k] = true
		rivals = append(rivals, c)
	}
	if len(rivals) == 0 {
		return nil
	}

	note := &model.ConflictNote{
		Field: path,
		Kept:  current,
		Values: []model.ConflictValue{
			{Source: winner.source, Value: winner.value, Confidence: winner.confidence},
		},
	}
	for _, c := range rivals {
		note.Values = append(note.Values, model.ConflictValue{Source: c.source, Value: c.value, Confidence: c.confidence})
	}
	if current == "" {
		note.Message = fmt.Sprintf("%d sources disagree on %s with similar confidence; left unset", len(note.Values), path)
	} else {
		note.Message = fmt.Sprintf("%d sources disagree on %s with similar confidence; kept existing value", len(note.Values), path)
	}
	return note
}

func (e *Engine) withinEpsilon(winner, other float64) bool {
	return margin(winner, other) < e.epsilon
}

// margin compares at micro precision so that configured weights such as 0.90
// and 0.85 are exactly 0.05 apart.
func margin(a, b float64) float64 {
	return math.Round((a-b)*1e6) / 1e6
}

func (e *Engine) storedConfidence(p *model.WordProfile, path string, now time.Time) float64 {
	prov, ok := p.Provenance[path]
	if !ok {
		return UnattributedConfidence
	}
	return EffectiveConfidence(prov.Confidence, prov.UpdatedAt, now, e.decay)
}

// mergeRoot fills a placeholder root from the best record that carries a
// meaningful one. A real root is never replaced.
func (e *Engine) mergeRoot(p *model.WordProfile, recs []*model.SourceRecord, now time.Time) bool {
	if p.HasRealRoot() {
		return false
	}
	for _, r := range recs {
		root := r.Data.MorphemeBreakdown.Root
		root.Text = model.CleanText(root.Text)
		root.Meaning = model.CleanText(root.Meaning)
		if root.IsZero() || model.IsPlaceholder(root.Meaning) {
			continue
		}
		p.MorphemeBreakdown.Root = root
		p.Provenance[rootPath] = model.FieldProvenance{Source: r.SourceName, Confidence: r.Confidence, UpdatedAt: now}
		return true
	}
	return false
}

// mergeAffix adds a prefix or suffix only when the profile has none.
func (e *Engine) mergeAffix(p *model.WordProfile, recs []*model.SourceRecord, now time.Time, path string, field func(*model.ProfileData) **model.Morpheme) bool {
	if cur := *field(&p.ProfileData); cur != nil && !cur.IsZero() {
		return false
	}
	for _, r := range recs {
		m := *field(&r.Data)
		if m == nil || m.IsZero() {
			continue
		}
		cp := *m
		*field(&p.ProfileData) = &cp
		p.Provenance[path] = model.FieldProvenance{Source: r.SourceName, Confidence: r.Confidence, UpdatedAt: now}
		return true
	}
	return false
}

// mergeList appends record values after the existing ones, skipping
// case-folded duplicates, until the list holds listCap items. Existing items
// beyond the cap are kept.
func (e *Engine) mergeList(p *model.WordProfile, f listField, recs []*model.SourceRecord) bool {
	current := f.get(&p.ProfileData)
	if len(current) >= e.listCap {
		return false
	}

	seen := make(map[string]struct{}, len(current))
	for _, v := range current {
		seen[model.FoldKey(v)] = struct{}{}
	}

	out := append([]string(nil), current...)
	for _, r := range recs {
		for _, v := range f.get(&r.Data) {
			if len(out) >= e.listCap {
				break
			}
			v = model.CleanText(v)
			if v == "" {
				continue
			}
			k := model.FoldKey(v)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, v)
		}
	}
	if len(out) == len(current) {
		return false
	}
	f.set(&p.ProfileData, out)
	return true
}
