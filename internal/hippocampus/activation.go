package hippocampus

import (
	"sort"

	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	defaultMaxHops = 3
	activationEdgeDecay = 0.7
	activationFloor = 0.1
	startingActivation = 1.0
)

// ActivationResult is one memory reached by spreading activation:
// its current best activation, the path taken to reach it, the
// hop distance, and the link type of the first hop on that path.
type ActivationResult struct {
	ID string
	Activation float64
	Path []string
	Distance int
	DominantLinkType types.EdgeType
}

// NeighborFunc returns the outgoing typed links for a memory id; callers
// back this with the in-memory index (or a Store-backed fallback).
type NeighborFunc func(id string) []types.IndexLink

// SpreadActivation performs breadth-first spreading activation from
// startID: starting activation 1.0, each edge multiplies by
// `edge.strength * 0.7`, traversal stops when activation drops below 0.1
// or depth reaches maxHops. A visited set prevents cycles, but the best
// (highest) activation for a node is kept even if reached by multiple
// paths — so a node already visited at lower activation is still
// relaxed if a stronger path arrives later, as long as depth bounds
// allow the re-expansion.
func SpreadActivation(startID string, neighbors NeighborFunc, maxHops int) []ActivationResult {
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}

	type queueItem struct {
		id string
		activation float64
		path []string
		depth int
	}

	best := map[string]*ActivationResult{}
	queue := []queueItem{{id: startID, activation: startingActivation, path: []string{startID}, depth: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.id != startID {
			if existing, ok := best[cur.id]; ok && existing.Activation >= cur.activation {
				continue
			}
			dominant := types.EdgeType("")
			if len(cur.path) >= 2 {
				dominant = firstHopType(cur.path, neighbors)
			}
			best[cur.id] = &ActivationResult{
				ID: cur.id, Activation: cur.activation,
				Path: append([]string(nil), cur.path...), Distance: cur.depth,
				DominantLinkType: dominant,
			}
		}

		if cur.depth >= maxHops {
			continue
		}

		for _, link := range neighbors(cur.id) {
			next := cur.activation * link.Strength * activationEdgeDecay
			if next < activationFloor {
				continue
			}
			if contains(cur.path, link.TargetID) {
				continue // visited set prevents cycles within one path
			}
			newPath := append(append([]string(nil), cur.path...), link.TargetID)
			queue = append(queue, queueItem{id: link.TargetID, activation: next, path: newPath, depth: cur.depth + 1})
		}
	}

	out := make([]ActivationResult, 0, len(best))
	for _, r := range best {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Activation > out[j].Activation })
	return out
}

func contains(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

// firstHopType resolves the link type of the first edge on path by
// re-querying the neighbor set of the path's origin.
func firstHopType(path []string, neighbors NeighborFunc) types.EdgeType {
	if len(path) < 2 {
		return ""
	}
	for _, link := range neighbors(path[0]) {
		if link.TargetID == path[1] {
			return link.LinkType
		}
	}
	return ""
}
