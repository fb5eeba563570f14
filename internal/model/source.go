package model

import "time"

// SourceRecord is normalized, confidence-tagged data from one external
// provider for one word. It lives for a single enrichment attempt.
type SourceRecord struct {
	SourceName string      `json:"source_name"`
	Confidence float64     `json:"confidence"`
	Word       string      `json:"word"`
	Data       ProfileData `json:"normalized_data"`
	FetchedAt  time.Time   `json:"fetched_at"`
}

// FieldProvenance records which source last populated a scalar field and
// with what confidence.
type FieldProvenance struct {
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConflictNote records a scalar field on which sources of near-equal
// confidence disagreed. The existing value is kept.
type ConflictNote struct {
	Field   string          `json:"field"`
	Kept    string          `json:"kept,omitempty"`
	Values  []ConflictValue `json:"values"`
	Message string          `json:"message"`
}

// ConflictValue is one disputed candidate.
type ConflictValue struct {
	Source     string  `json:"source"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// EnrichmentResult is the structured summary returned to callers of a
// single-word enrichment.
type EnrichmentResult struct {
	Word               string         `json:"word"`
	WordProfileID      string         `json:"word_profile_id,omitempty"`
	Success            bool           `json:"success"`
	QualityScoreBefore int            `json:"quality_score_before"`
	QualityScoreAfter  int            `json:"quality_score_after"`
	FieldsEnriched     []string       `json:"fields_enriched"`
	SourcesUsed        []string       `json:"sources_used"`
	Conflicts          []ConflictNote `json:"conflicts,omitempty"`
	Error              string         `json:"error,omitempty"`
}
