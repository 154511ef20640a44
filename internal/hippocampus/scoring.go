package hippocampus

import (
	"math"

	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	weightSemantic = 0.5
	weightText = 0.2
	weightTemporal = 0.15
	weightImportance = 0.15

	temporalHalfLifeHours = 336.0 // 14 days

	importanceEmotional = 0.15
	importanceFrequency = 0.20
	importanceRecent = 0.10
	importanceHasAssoc = 0.15
	importanceStarred = 0.20
	importanceHighRetent = 0.15
	importanceConsolid = 0.05
)

// CombinedScore blends the four ranking signals of the hippocampal index
// search: `0.5*semantic + 0.2*text + 0.15*temporal +
// 0.15*importance`.
func CombinedScore(semantic, text, temporal, importance float64) float64 {
	return weightSemantic*semantic + weightText*text + weightTemporal*temporal + weightImportance*importance
}

// TemporalScore is the reciprocal-form half-life score used by the
// hippocampal index: `1/(1+hours/336)`.
func TemporalScore(hoursSinceAccess float64) float64 {
	if hoursSinceAccess < 0 {
		hoursSinceAccess = 0
	}
	return 1 / (1 + hoursSinceAccess/temporalHalfLifeHours)
}

// ImportanceScore combines the boolean importance flags into a single
// score in [0,1].
func ImportanceScore(flags types.IndexFlags) float64 {
	score := 0.0
	if flags.Emotional {
		score += importanceEmotional
	}
	if flags.FrequentlyAccessed {
		score += importanceFrequency
	}
	if flags.RecentlyCreated {
		score += importanceRecent
	}
	if flags.HasAssociations {
		score += importanceHasAssoc
	}
	if flags.UserStarred {
		score += importanceStarred
	}
	if flags.HighRetention {
		score += importanceHighRetent
	}
	if flags.Consolidated {
		score += importanceConsolid
	}
	return math.Min(score, 1.0)
}
