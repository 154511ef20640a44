// Package lifecycle implements the memory state machine (C6): retention-
// derived state classification, time-based decay transitions, retrieval
// competition with suppression, reactivation, and accessibility scoring.
package lifecycle

import (
	"math"
	"sort"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	activeToDormantHours = 4.0
	dormantToSilentDays = 30.0

	defaultSuppressionHours = 24.0
	cueReactivationStrength = 0.8
	competitionMinSimilarity = 0.6
)

// StateFromRetention classifies a node's catalogue-query state purely
// from its retention_strength, independent of the time-decay
// transitions tracked by a MemoryLifecycle.
func StateFromRetention(retention float64) types.LifecycleState {
	switch {
	case retention >= 0.7:
		return types.LifecycleActive
	case retention >= 0.4:
		return types.LifecycleDormant
	case retention >= 0.1:
		return types.LifecycleSilent
	default:
		return types.LifecycleUnavailable
	}
}

// AccessibilityScore computes the accessibility of a memory given its
// lifecycle state, hours since last access, and access count:
// `acc = state_mult * (0.6 + 0.3*exp(-hours/24) + 0.1*min(0.3,
// log10(access_count+1)*0.1))`, clamped to [0,1].
func AccessibilityScore(state types.LifecycleState, hoursSinceAccess float64, accessCount int) float64 {
	if hoursSinceAccess < 0 {
		hoursSinceAccess = 0
	}
	recency := 0.3 * math.Exp(-hoursSinceAccess/24)
	frequency := 0.1 * math.Min(0.3, math.Log10(float64(accessCount+1))*0.1)
	acc := state.AccessibilityMultiplier() * (0.6 + recency + frequency)
	if acc < 0 {
		acc = 0
	}
	if acc > 1 {
		acc = 1
	}
	return acc
}

// ApplyTimeDecay advances a MemoryLifecycle's state by elapsed-time rules
// alone: Active -> Dormant after 4h idle; Dormant -> Silent
// after 30 days idle; Silent and Unavailable do not further decay by
// time (Unavailable only leaves via suppression expiry).
func ApplyTimeDecay(m *types.MemoryLifecycle, now time.Time) {
	idle := now.Sub(m.LastAccess)
	switch m.State {
	case types.LifecycleActive:
		if idle >= time.Duration(activeToDormantHours*float64(time.Hour)) {
			m.RecordTransition(types.LifecycleDormant, types.ReasonTimeDecay, now)
		}
	case types.LifecycleDormant:
		if idle >= time.Duration(dormantToSilentDays*24*float64(time.Hour)) {
			m.RecordTransition(types.LifecycleSilent, types.ReasonTimeDecay, now)
		}
	}
}

// ExpireSuppression moves an Unavailable memory whose suppression window
// has elapsed to Silent.
func ExpireSuppression(m *types.MemoryLifecycle, now time.Time) {
	if m.State != types.LifecycleUnavailable || m.SuppressionUntil == nil {
		return
	}
	if now.Before(*m.SuppressionUntil) {
		return
	}
	m.SuppressionUntil = nil
	m.RecordTransition(types.LifecycleSilent, types.ReasonSuppressionExpired, now)
}

// Access reactivates a memory to Active and clears any suppression:
// any access transitions to Active and clears suppression.
func Access(m *types.MemoryLifecycle, now time.Time) {
	m.SuppressionUntil = nil
	m.AccessCount++
	if m.State != types.LifecycleActive {
		m.RecordTransition(types.LifecycleActive, types.ReasonAccess, now)
	} else {
		m.LastAccess = now
	}
}

// CueReactivate advances a Silent memory to Dormant when presented with
// a cue of strength >= 0.8. Cues below threshold, or
// memories not in Silent, are no-ops.
func CueReactivate(m *types.MemoryLifecycle, cueStrength float64, now time.Time) {
	if m.State != types.LifecycleSilent || cueStrength < cueReactivationStrength {
		return
	}
	m.RecordTransition(types.LifecycleDormant, types.ReasonCueReactivation, now)
}

// Suppress transitions m to Unavailable with a suppression window.
func Suppress(m *types.MemoryLifecycle, now time.Time, suppressionHours float64) {
	if suppressionHours <= 0 {
		suppressionHours = defaultSuppressionHours
	}
	until := now.Add(time.Duration(suppressionHours * float64(time.Hour)))
	m.SuppressionUntil = &until
	m.RecordTransition(types.LifecycleUnavailable, types.ReasonCompetitionLoss, now)
}

// Candidate is one entrant in a retrieval competition.
type Candidate struct {
	ID string
	Similarity float64
	Strength float64
}

// CompetitionOutcome is the result of one call to Compete.
type CompetitionOutcome struct {
	Winner string
	Losers []string
	MaxSimilarity float64
}

// Compete runs the retrieval competition among candidates against
// targetID: filters to similarity >= 0.6 and id != target,
// scores each competitor `similarity*strength`, the highest wins and is
// reactivated, all others are suppressed.
func Compete(targetID string, candidates []Candidate, lifecycles map[string]*types.MemoryLifecycle, now time.Time, suppressionHours float64) (CompetitionOutcome, bool) {
	type scored struct {
		Candidate
		score float64
	}
	var eligible []scored
	maxSim := 0.0
	for _, c := range candidates {
		if c.ID == targetID || c.Similarity < competitionMinSimilarity {
			continue
		}
		if c.Similarity > maxSim {
			maxSim = c.Similarity
		}
		eligible = append(eligible, scored{c, c.Similarity * c.Strength})
	}
	if len(eligible) == 0 {
		return CompetitionOutcome{}, false
	}

	sort.Slice(eligible, func(i, j int) bool { return eligible[i].score > eligible[j].score })
	winner := eligible[0]

	outcome := CompetitionOutcome{Winner: winner.ID, MaxSimilarity: maxSim}
	if m, ok := lifecycles[winner.ID]; ok {
		Access(m, now)
	}
	for _, c := range eligible[1:] {
		outcome.Losers = append(outcome.Losers, c.ID)
		if m, ok := lifecycles[c.ID]; ok {
			Suppress(m, now, suppressionHours)
		}
	}
	return outcome, true
}

// RecentLosses returns the records in history no older than withinHours
// before now in which id was among the losers. The history itself is
// owned by the caller (e.g. a slice kept capped at
// types.MaxCompetitionHistory by AppendCompetitionRecord).
func RecentLosses(history []types.CompetitionRecord, id string, withinHours float64, now time.Time) []types.CompetitionRecord {
	var out []types.CompetitionRecord
	for _, h := range history {
		if now.Sub(h.Timestamp).Hours() > withinHours {
			continue
		}
		for _, l := range h.Losers {
			if l == id {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// AppendCompetitionRecord appends rec to history, evicting the oldest
// entry once types.MaxCompetitionHistory is exceeded.
func AppendCompetitionRecord(history []types.CompetitionRecord, rec types.CompetitionRecord) []types.CompetitionRecord {
	history = append(history, rec)
	if len(history) > types.MaxCompetitionHistory {
		history = history[len(history)-types.MaxCompetitionHistory:]
	}
	return history
}
