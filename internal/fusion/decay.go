package fusion

import (
	"math"
	"time"

	"github.com/sells-group/lexicon-cli/internal/config"
)

// EffectiveConfidence computes the time-decayed confidence of a stored value.
// Formula: effective = max(floor, rawConfidence * 2^(-ageDays / halfLifeDays))
// A zero half-life disables decay.
func EffectiveConfidence(rawConfidence float64, storedAt time.Time, now time.Time, decay config.DecayConfig) float64 {
	if rawConfidence <= 0 {
		return 0
	}
	if decay.HalfLifeDays <= 0 || storedAt.IsZero() {
		return rawConfidence
	}

	ageDays := now.Sub(storedAt).Hours() / 24
	if ageDays <= 0 {
		return rawConfidence
	}

	decayed := rawConfidence * math.Pow(2, -ageDays/decay.HalfLifeDays)
	if decayed < decay.Floor {
		return math.Min(decay.Floor, rawConfidence)
	}
	return decayed
}
