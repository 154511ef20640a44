package types

import "time"

// DecayFunction selects the curve a SynapticTag's strength follows between
// encoding and capture or expiry.
type DecayFunction string

const (
	DecayExponential DecayFunction = "exponential"
	DecayLinear DecayFunction = "linear"
	DecayPower DecayFunction = "power"
	DecayLogarithmic DecayFunction = "logarithmic"
)

// SynapticTag is the weak marker laid at encoding time that later PRP
// events may retroactively capture. Only one tag is
// active per memory; a new tag replaces any existing non-captured one.
type SynapticTag struct {
	ID string `json:"id"`
	MemoryID string `json:"memory_id"`
	CreatedAt time.Time `json:"created_at"`
	InitialStrength float64 `json:"initial_strength"`
	TagStrength float64 `json:"tag_strength"`
	LifetimeHours float64 `json:"lifetime_hours"`
	DecayFunction DecayFunction `json:"decay_function"`
	Captured bool `json:"captured"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
	CaptureEventID string `json:"capture_event_id,omitempty"`
}

// PRPEventType enumerates the importance-signal variants recognized by
// synaptic capture.
type PRPEventType string

const (
	PRPUserFlag PRPEventType = "UserFlag"
	PRPNoveltySpike PRPEventType = "NoveltySpike"
	PRPEmotionalContent PRPEventType = "EmotionalContent"
	PRPRepeatedAccess PRPEventType = "RepeatedAccess"
	PRPCrossReference PRPEventType = "CrossReference"
	PRPTemporalProximity PRPEventType = "TemporalProximity"
)

// PRPEvent is a plasticity-related-protein event: an importance signal
// capable of capturing tagged memories within its capture window.
type PRPEvent struct {
	ID string `json:"id"`
	Type PRPEventType `json:"type"`
	Strength float64 `json:"strength"`
	Timestamp time.Time `json:"timestamp"`
	SourceMemory string `json:"source_memory,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ImportanceCluster groups two or more captures triggered by the same PRP
// event.
type ImportanceCluster struct {
	ID string `json:"id"`
	MemoryIDs []string `json:"memory_ids"`
	EventID string `json:"event_id"`
	AverageImportance float64 `json:"average_importance"`
	TemporalSpanHours float64 `json:"temporal_span_hours"`
	CreatedAt time.Time `json:"created_at"`
}

// CaptureRecord is the durable trace of one tag being captured by one
// event.
type CaptureRecord struct {
	MemoryID string `json:"memory_id"`
	TagID string `json:"tag_id"`
	EventID string `json:"event_id"`
	TemporalDistanceH float64 `json:"temporal_distance_h"`
	Probability float64 `json:"probability"`
	StrengthAtCapture float64 `json:"strength_at_capture"`
	ConsolidatedImportance float64 `json:"consolidated_importance"`
	CapturedAt time.Time `json:"captured_at"`
}
