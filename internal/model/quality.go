package model

import "time"

// CheckType names one of the four quality checks.
type CheckType string

const (
	CheckAccuracy     CheckType = "accuracy"
	CheckCompleteness CheckType = "completeness"
	CheckConsistency  CheckType = "consistency"
	CheckFreshness    CheckType = "freshness"
)

// QualityCheck is the outcome of one check.
type QualityCheck struct {
	Type            CheckType `json:"type"`
	Score           int       `json:"score"`
	Issues          []string  `json:"issues"`
	Recommendations []string  `json:"recommendations"`
	Passed          bool      `json:"passed"`
}

// ValidationResult is the outcome of one declarative validation rule.
type ValidationResult struct {
	Rule    string `json:"rule"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// QualityReport is the immutable audit of one assessment run.
type QualityReport struct {
	ID                string             `json:"id"`
	WordProfileID     string             `json:"word_profile_id"`
	Word              string             `json:"word"`
	OverallScore      int                `json:"overall_score"`
	Passed            bool               `json:"passed"`
	Checks            []QualityCheck     `json:"checks"`
	ValidationResults []ValidationResult `json:"validation_results"`
	Conflicts         []ConflictNote     `json:"conflicts,omitempty"`
	Recommendations   []string           `json:"recommendations"`
	Timestamp         time.Time          `json:"timestamp"`
}

// Check returns the check of the given type, or nil.
func (r *QualityReport) Check(t CheckType) *QualityCheck {
	for i := range r.Checks {
		if r.Checks[i].Type == t {
			return &r.Checks[i]
		}
	}
	return nil
}

// FailedRules returns the names of rules that did not pass.
func (r *QualityReport) FailedRules() []string {
	var out []string
	for _, v := range r.ValidationResults {
		if !v.Passed {
			out = append(out, v.Rule)
		}
	}
	return out
}

// QualityTrendPoint is one historical overall score.
type QualityTrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"score"`
}
