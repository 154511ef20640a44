// Package engine implements the spaced-repetition scheduler, the decay and
// consolidation sweep, the hybrid search pipeline, smart ingest, and the
// feedback/tagging tools that operate on store.Store-backed knowledge nodes.
package engine

import (
	"math"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

// Grade is the caller's recall quality signal for one review.
type Grade int

const (
	GradeAgain Grade = 1
	GradeHard Grade = 2
	GradeGood Grade = 3
	GradeEasy Grade = 4
)

const (
	// rFactor and rDecay parameterize the retrievability curve so that
	// R(S,S) = 0.9 (desired retention default), per FSRS-6.
	rFactor = 19.0 / 81.0
	rDecay = -0.5

	minStability = 0.001
	maxStability = 36500.0
	minDifficulty = 1.0
	maxDifficulty = 10.0

	// defaultDesiredRetention is the target recall probability used to
	// size the next interval absent an override.
	defaultDesiredRetention = 0.9

	// minIntervalDays is the floor applied to graduated cards.
	minIntervalDays = 1.0
)

// fsrsWeights is the fixed 21-parameter table (w0..w20) from FSRS-6's
// default fit. Index meanings follow the published ordering: w0-w3 seed
// initial stability per first grade, w4-w5 seed initial difficulty, w6-w7
// mean-revert difficulty, w8-w10 scale post-success stability growth,
// w11-w14 scale post-lapse stability, w15 is the Hard-grade penalty and
// w16 the Easy-grade bonus on success, w17-w18 set the lower bound of
// post-lapse stability; w19-w20 are not read by this scheduler.
var fsrsWeights = [21]float64{
	0.2172, 1.1771, 3.2602, 16.1507,
	7.0114, 0.57, 2.0966, 0.0069,
	1.5261, 0.112, 1.0178, 1.849,
	0.1133, 0.3127, 2.2934, 0.2191,
	3.0004, 0.7536, 0.3332, 0.1437,
	0.2,
}

// Card is the subset of KnowledgeNode fields the scheduler reads and
// writes; callers build one from a types.KnowledgeNode and write the
// ReviewOutcome back via UpdateNodeFields.
type Card struct {
	Stability float64
	Difficulty float64
	State types.ReviewState
	LastReview *time.Time
	Reps int
	Lapses int
}

// ReviewOutcome is the scheduler's output for one grade application
//: the updated scheduling fields plus classification flags.
type ReviewOutcome struct {
	State types.ReviewState
	Stability float64
	Difficulty float64
	LastReview time.Time
	NextReview time.Time
	IsLapse bool
	IsGraduation bool
}

// Retrievability computes R(t,S), the probability of successful recall t
// days after last_review given stability S. t<0 is treated as 0.
func Retrievability(t, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	if t < 0 {
		t = 0
	}
	return math.Pow(1+rFactor*t/stability, rDecay)
}

// NextInterval solves Retrievability(I,S) = desiredRetention for I.
// desiredRetention <= 0 defaults to 0.9.
func NextInterval(stability, desiredRetention float64) float64 {
	if desiredRetention <= 0 || desiredRetention >= 1 {
		desiredRetention = defaultDesiredRetention
	}
	i := (stability / rFactor) * (math.Pow(desiredRetention, 1/rDecay) - 1)
	if i < minIntervalDays {
		i = minIntervalDays
	}
	return i
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// initialStability returns the seed stability for a New card's first
// review, indexed by grade (1-based in the weight table).
func initialStability(g Grade) float64 {
	return clamp(fsrsWeights[int(g)-1], minStability, maxStability)
}

// initialDifficulty returns the seed difficulty for a New card's first
// review.
func initialDifficulty(g Grade) float64 {
	d := fsrsWeights[4] - (float64(g)-3)*fsrsWeights[5]
	return clamp(d, minDifficulty, maxDifficulty)
}

// nextDifficulty mean-reverts difficulty toward the easy-grade anchor
// after every review.
func nextDifficulty(d float64, g Grade) float64 {
	delta := -fsrsWeights[6] * (float64(g) - 3)
	dPrime := d + delta*(maxDifficulty-d)/(maxDifficulty-minDifficulty)
	meanReverted := fsrsWeights[7]*initialDifficulty(GradeEasy) + (1-fsrsWeights[7])*dPrime
	return clamp(meanReverted, minDifficulty, maxDifficulty)
}

// nextStabilitySuccess computes the post-review stability after a
// Hard/Good/Easy grade, per the standard FSRS stability-increase formula.
func nextStabilitySuccess(s, d, r float64, g Grade) float64 {
	hardPenalty := 1.0
	if g == GradeHard {
		hardPenalty = fsrsWeights[15]
	}
	easyBonus := 1.0
	if g == GradeEasy {
		easyBonus = fsrsWeights[16]
	}
	factor := math.Exp(fsrsWeights[8]) *
		(11 - d) *
		math.Pow(s, -fsrsWeights[9]) *
		(math.Exp(fsrsWeights[10]*(1-r)) - 1) *
		hardPenalty * easyBonus
	return clamp(s*(1+factor), minStability, maxStability)
}

// nextStabilityLapse computes the post-lapse (Again) stability.
func nextStabilityLapse(s, d, r float64) float64 {
	sMin := s / math.Exp(fsrsWeights[17]*fsrsWeights[18])
	sLapse := fsrsWeights[11] *
		math.Pow(d, -fsrsWeights[12]) *
		(math.Pow(s+1, fsrsWeights[13]) - 1) *
		math.Exp(fsrsWeights[14]*(1-r))
	return clamp(math.Min(sLapse, s), math.Min(minStability, sMin), maxStability)
}

// Review applies grade g to card at instant now, returning the new
// scheduling state without mutating card.
func Review(card Card, g Grade, now time.Time, desiredRetention float64) ReviewOutcome {
	out := ReviewOutcome{LastReview: now}

	if card.State == types.StateNew {
		out.Stability = initialStability(g)
		out.Difficulty = initialDifficulty(g)
		out.IsGraduation = true
		if g == GradeAgain {
			out.State = types.StateLearning
			out.IsGraduation = false
		} else {
			out.State = types.StateReview
		}
		out.NextReview = now.Add(dayDuration(NextInterval(out.Stability, desiredRetention)))
		return out
	}

	t := 0.0
	if card.LastReview != nil {
		t = now.Sub(*card.LastReview).Hours() / 24.0
	}
	r := Retrievability(t, card.Stability)
	newDifficulty := nextDifficulty(card.Difficulty, g)

	switch card.State {
	case types.StateLearning, types.StateRelearning:
		if g == GradeAgain {
			out.State = card.State
			out.Stability = clamp(card.Stability, minStability, maxStability)
		} else {
			out.State = types.StateReview
			out.Stability = nextStabilitySuccess(card.Stability, newDifficulty, r, g)
			out.IsGraduation = true
		}
	case types.StateReview:
		if g == GradeAgain {
			out.State = types.StateRelearning
			out.Stability = nextStabilityLapse(card.Stability, newDifficulty, r)
			out.IsLapse = true
		} else {
			out.State = types.StateReview
			out.Stability = nextStabilitySuccess(card.Stability, newDifficulty, r, g)
		}
	default:
		out.State = types.StateReview
		out.Stability = nextStabilitySuccess(card.Stability, newDifficulty, r, g)
	}

	out.Difficulty = newDifficulty
	out.NextReview = now.Add(dayDuration(NextInterval(out.Stability, desiredRetention)))
	return out
}

func dayDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}

// PreviewIntervals returns the interval in days for each of the four
// grades without mutating state, so a caller can show "if I pass, review
// again in N days".
func PreviewIntervals(card Card, now time.Time, desiredRetention float64) map[Grade]float64 {
	out := make(map[Grade]float64, 4)
	for _, g := range []Grade{GradeAgain, GradeHard, GradeGood, GradeEasy} {
		o := Review(card, g, now, desiredRetention)
		out[g] = math.Round(o.NextReview.Sub(now).Hours()/24*1000) / 1000
	}
	return out
}

// ApplyDualStrength implements the Bjork dual-strength coupling on top of
// an FSRS outcome. On success, storage strength nudges toward
// 1 and retrieval strength resets to full; on lapse, retrieval strength
// halves (floored) and storage is untouched.
func ApplyDualStrength(n *types.KnowledgeNode, isLapse bool) {
	if isLapse {
		n.RetrievalStrength = math.Max(0.1, n.RetrievalStrength*0.5)
	} else {
		n.StorageStrength = math.Min(1, n.StorageStrength+0.1*(1-n.StorageStrength))
		n.RetrievalStrength = 1.0
	}
	n.SyncRetentionStrength()
}
