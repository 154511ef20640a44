// Package synaptic implements synaptic tagging and capture (C7): weak
// encoding-time tags, PRP importance events, the asymmetric capture
// window, and the resulting consolidation records.
package synaptic

import (
	"math"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	defaultInitialStrength = 1.0
	defaultLifetimeHours = 12.0

	captureMinTagStrength = 0.3
	captureMinScore = 0.3

	defaultBackwardHours = 9.0
	defaultForwardHours = 2.0

	prpThreshold = 0.7

	maxImportanceClusters = 50
	minClusterCaptures = 2
)

// NewTag lays a fresh synaptic tag at encoding time. Any
// existing non-captured tag for the same memory should be discarded by
// the caller before calling NewTag (one active tag per memory).
func NewTag(id, memoryID string, now time.Time) types.SynapticTag {
	return types.SynapticTag{
		ID: id, MemoryID: memoryID, CreatedAt: now,
		InitialStrength: defaultInitialStrength,
		TagStrength: defaultInitialStrength,
		LifetimeHours: defaultLifetimeHours,
		DecayFunction: types.DecayExponential,
	}
}

// lambda is the decay rate constant such that strength is ~0.01 of
// initial at t = lifetime.
var lambda = -math.Log(0.01)

// StrengthAt computes a tag's strength t hours after encoding, following
// its configured decay function. Captured tags stop
// decaying; callers should not call StrengthAt after Captured is true.
func StrengthAt(tag types.SynapticTag, hoursSinceEncoding float64) float64 {
	if tag.Captured {
		return tag.TagStrength
	}
	if hoursSinceEncoding < 0 {
		hoursSinceEncoding = 0
	}
	t := hoursSinceEncoding
	L := tag.LifetimeHours
	if L <= 0 {
		L = defaultLifetimeHours
	}
	s0 := tag.InitialStrength

	switch tag.DecayFunction {
	case types.DecayLinear:
		v := 1 - t/L
		if v < 0 {
			v = 0
		}
		return s0 * v
	case types.DecayPower:
		return s0 * math.Pow(1+10*t/L, -2)
	case types.DecayLogarithmic:
		return s0 / (1 + math.Log(1+t*math.E/L))
	default: // Exponential
		return s0 * math.Exp(-lambda*t/L)
	}
}

// CaptureWindow is the asymmetric interval around a PRP event during
// which a tag is eligible for capture.
type CaptureWindow struct {
	BackwardHours float64
	ForwardHours float64
}

// DefaultCaptureWindow returns the default capture window (9h backward,
// 2h forward).
func DefaultCaptureWindow() CaptureWindow {
	return CaptureWindow{BackwardHours: defaultBackwardHours, ForwardHours: defaultForwardHours}
}

// CaptureProbability computes the probability a tag laid tagOffsetHours
// before the PRP event (negative means the tag came after the event) is
// captured, given its decay function and the capture window:
// outside the window the probability is 0; inside, normalized distance
// `d` (0 at event, 1 at edge) is fed through the tag's decay curve.
func CaptureProbability(tag types.SynapticTag, tagOffsetHours float64, window CaptureWindow) float64 {
	if tagOffsetHours >= 0 {
		// Tag laid before the event, within the backward window.
		if window.BackwardHours <= 0 || tagOffsetHours > window.BackwardHours {
			return 0
		}
		d := tagOffsetHours / window.BackwardHours
		return decayCurve(tag.DecayFunction, d)
	}
	// Tag effectively "after" the event (event precedes tag), within the
	// forward window.
	forwardOffset := -tagOffsetHours
	if window.ForwardHours <= 0 || forwardOffset > window.ForwardHours {
		return 0
	}
	d := forwardOffset / window.ForwardHours
	return decayCurve(tag.DecayFunction, d)
}

// decayCurve evaluates the tag's decay function at normalized distance
// d in [0,1] using a fixed "lifetime" of 1 so d itself plays the role of
// t/L.
func decayCurve(fn types.DecayFunction, d float64) float64 {
	switch fn {
	case types.DecayLinear:
		v := 1 - d
		if v < 0 {
			v = 0
		}
		return v
	case types.DecayPower:
		return math.Pow(1+10*d, -2)
	case types.DecayLogarithmic:
		return 1 / (1 + math.Log(1+d*math.E))
	default:
		return math.Exp(-lambda * d)
	}
}

// prpBaseStrength and prpRadiusMultiplier are the fixed per-type table
// of base tagging strengths and capture-radius multipliers.
var prpBaseStrength = map[types.PRPEventType]float64{
	types.PRPUserFlag:          1.00,
	types.PRPNoveltySpike:      0.90,
	types.PRPEmotionalContent:  0.80,
	types.PRPRepeatedAccess:    0.75,
	types.PRPCrossReference:    0.60,
	types.PRPTemporalProximity: 0.50,
}

var prpRadiusMultiplier = map[types.PRPEventType]float64{
	types.PRPUserFlag:          1.5,
	types.PRPNoveltySpike:      1.2,
	types.PRPEmotionalContent:  1.3,
	types.PRPRepeatedAccess:    1.0,
	types.PRPCrossReference:    0.8,
	types.PRPTemporalProximity: 0.6,
}

// PRPBaseStrength returns the fixed base strength for an event type.
func PRPBaseStrength(t types.PRPEventType) float64 { return prpBaseStrength[t] }

// PRPRadiusMultiplier returns the fixed capture-radius multiplier for an
// event type, applied to the capture window's hours.
func PRPRadiusMultiplier(t types.PRPEventType) float64 { return prpRadiusMultiplier[t] }

// EventFires reports whether a PRP event clears the firing threshold.
func EventFires(event types.PRPEvent) bool {
	return event.Strength >= prpThreshold
}

// CaptureOutcome is the result of attempting to capture one tag with one
// event.
type CaptureOutcome struct {
	Record types.CaptureRecord
	Capture bool
}

// AttemptCapture evaluates the capture rule for one tag against one PRP
// event: capture score = tag_strength * probability *
// event.strength; captured if score >= 0.3.
func AttemptCapture(tag types.SynapticTag, event types.PRPEvent, tagOffsetHours float64, baseWindow CaptureWindow) CaptureOutcome {
	if !EventFires(event) || tag.TagStrength < captureMinTagStrength {
		return CaptureOutcome{}
	}
	radius := PRPRadiusMultiplier(event.Type)
	window := CaptureWindow{
		BackwardHours: baseWindow.BackwardHours * radius,
		ForwardHours: baseWindow.ForwardHours * radius,
	}
	probability := CaptureProbability(tag, tagOffsetHours, window)
	if probability == 0 {
		return CaptureOutcome{}
	}
	score := tag.TagStrength * probability * event.Strength
	if score < captureMinScore {
		return CaptureOutcome{}
	}
	consolidated := math.Min(1, 0.6*score+0.4*event.Strength)
	return CaptureOutcome{
		Capture: true,
		Record: types.CaptureRecord{
			MemoryID: tag.MemoryID, TagID: tag.ID, EventID: event.ID,
			TemporalDistanceH: math.Abs(tagOffsetHours), Probability: probability,
			StrengthAtCapture: tag.TagStrength, ConsolidatedImportance: consolidated,
			CapturedAt: event.Timestamp,
		},
	}
}

// BuildImportanceCluster groups two or more captures from the same event
// into an ImportanceCluster; returns false if fewer than 2
// captures were supplied.
func BuildImportanceCluster(id string, event types.PRPEvent, records []types.CaptureRecord, now time.Time) (types.ImportanceCluster, bool) {
	if len(records) < minClusterCaptures {
		return types.ImportanceCluster{}, false
	}
	var sum float64
	var minT, maxT float64
	ids := make([]string, 0, len(records))
	for i, r := range records {
		sum += r.ConsolidatedImportance
		ids = append(ids, r.MemoryID)
		if i == 0 || r.TemporalDistanceH < minT {
			minT = r.TemporalDistanceH
		}
		if i == 0 || r.TemporalDistanceH > maxT {
			maxT = r.TemporalDistanceH
		}
	}
	return types.ImportanceCluster{
		ID: id, MemoryIDs: ids, EventID: event.ID,
		AverageImportance: sum / float64(len(records)),
		TemporalSpanHours: maxT - minT,
		CreatedAt: now,
	}, true
}

// AppendImportanceCluster appends c to clusters, evicting the oldest
// once maxImportanceClusters is exceeded.
func AppendImportanceCluster(clusters []types.ImportanceCluster, c types.ImportanceCluster) []types.ImportanceCluster {
	clusters = append(clusters, c)
	if len(clusters) > maxImportanceClusters {
		clusters = clusters[len(clusters)-maxImportanceClusters:]
	}
	return clusters
}
