package types

import "time"

// ActivationEdge is a weighted, typed connection in the spreading-activation
// semantic network.
type ActivationEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Strength float64 `json:"strength"`
	LinkType EdgeType `json:"link_type"`
	ActivationCount int `json:"activation_count"`
	CreatedAt time.Time `json:"created_at"`
	LastActivated *time.Time `json:"last_activated,omitempty"`
}

// ActivationNode holds the current activation level of one memory in the
// semantic network, plus its outgoing edges.
type ActivationNode struct {
	MemoryID string `json:"memory_id"`
	Activation float64 `json:"activation"`
	LastActivated *time.Time `json:"last_activated,omitempty"`
	OutEdges []ActivationEdge `json:"out_edges"`
}
