// Package types defines the core data structures shared across the vestige
// memory engine: knowledge nodes, people, graph edges, intentions,
// embeddings and the hippocampal/synaptic index structures layered on top
// of them.
package types

import "time"

// SourceType classifies the nature of a KnowledgeNode.
type SourceType string

const (
	SourceFact SourceType = "fact"
	SourceConcept SourceType = "concept"
	SourceEvent SourceType = "event"
	SourcePerson SourceType = "person"
	SourcePlace SourceType = "place"
	SourceNote SourceType = "note"
	SourcePattern SourceType = "pattern"
	SourceDecision SourceType = "decision"
	SourceConversation SourceType = "conversation"
	SourceEmail SourceType = "email"
	SourceBook SourceType = "book"
	SourceArticle SourceType = "article"
	SourceHighlight SourceType = "highlight"
	SourceMeeting SourceType = "meeting"
	SourceManual SourceType = "manual"
	SourceWebpage SourceType = "webpage"
	SourceIntention SourceType = "intention"
)

// ValidSourceTypes lists every accepted SourceType value.
var ValidSourceTypes = []SourceType{
	SourceFact, SourceConcept, SourceEvent, SourcePerson, SourcePlace,
	SourceNote, SourcePattern, SourceDecision, SourceConversation,
	SourceEmail, SourceBook, SourceArticle, SourceHighlight, SourceMeeting,
	SourceManual, SourceWebpage, SourceIntention,
}

// IsValidSourceType reports whether st is one of ValidSourceTypes.
func IsValidSourceType(st SourceType) bool {
	for _, v := range ValidSourceTypes {
		if v == st {
			return true
		}
	}
	return false
}

// ReviewState is the FSRS scheduling state of a node.
type ReviewState string

const (
	StateNew ReviewState = "New"
	StateLearning ReviewState = "Learning"
	StateReview ReviewState = "Review"
	StateRelearning ReviewState = "Relearning"
)

// GitContext captures the working-tree state a node was encoded under.
type GitContext struct {
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
	UncommittedPaths []string `json:"uncommitted_paths,omitempty"`
}

// KnowledgeNode is the canonical unit of memory.
//
// Invariants enforced by callers (see pkg/types/validation.go):
// - RetrievalStrength <= StorageStrength
// - NextReview >= LastReview when both are set
// - State == StateNew implies Reps == 0 && LastReview == nil
type KnowledgeNode struct {
	ID string `json:"id"`
	Content string `json:"content"`
	Summary string `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount int `json:"access_count"`
	ReviewCount int `json:"review_count"`

	SourceType SourceType `json:"source_type"`
	SourcePlatform string `json:"source_platform,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	SourceChain []string `json:"source_chain,omitempty"`

	// FSRS scheduling fields, see internal/engine/fsrs.go.
	Stability float64 `json:"stability"`
	Difficulty float64 `json:"difficulty"`
	State ReviewState `json:"state"`
	LastReview *time.Time `json:"last_review,omitempty"`
	NextReview *time.Time `json:"next_review,omitempty"`
	Reps int `json:"reps"`
	Lapses int `json:"lapses"`

	// Dual-strength model (Bjork), see internal/engine/fsrs.go.
	StorageStrength float64 `json:"storage_strength"`
	RetrievalStrength float64 `json:"retrieval_strength"`
	// RetentionStrength is a legacy field kept as a derived view of
	// RetrievalStrength (design note §9(c)); always recomputed by
	// SyncRetentionStrength, never stored independently.
	RetentionStrength float64 `json:"retention_strength"`
	StabilityFactor float64 `json:"stability_factor"`

	SentimentIntensity float64 `json:"sentiment_intensity"`

	Confidence float64 `json:"confidence"`
	IsContradicted bool `json:"is_contradicted"`
	ContradictionIDs []string `json:"contradiction_ids,omitempty"`

	Tags []string `json:"tags,omitempty"`
	People []string `json:"people,omitempty"`
	Concepts []string `json:"concepts,omitempty"`
	Events []string `json:"events,omitempty"`

	Git *GitContext `json:"git,omitempty"`
}

// SyncRetentionStrength recomputes the legacy RetentionStrength field from
// the dual-strength pair. Call after any mutation of RetrievalStrength.
func (n *KnowledgeNode) SyncRetentionStrength() {
	n.RetentionStrength = n.RetrievalStrength
}

// NewKnowledgeNode returns a KnowledgeNode with all insert-time defaults
// populated: dual-strength at 1.0/1.0, FSRS state New, stability/
// difficulty defaults, and timestamps set to now.
func NewKnowledgeNode(id, content string, st SourceType, now time.Time) *KnowledgeNode {
	n := &KnowledgeNode{
		ID: id,
		Content: content,
		SourceType: st,
		CreatedAt: now,
		UpdatedAt: now,
		LastAccessedAt: now,
		Stability: 1.0,
		Difficulty: 5.0,
		State: StateNew,
		StorageStrength: 1.0,
		RetrievalStrength: 1.0,
		StabilityFactor: 1.0,
		Confidence: 0.8,
	}
	n.SyncRetentionStrength()
	return n
}
