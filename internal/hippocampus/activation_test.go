package hippocampus

import (
	"math"
	"testing"

	"github.com/vestige-mem/vestige/pkg/types"
)

func TestSpreadActivation_ExactDecayPowers(t *testing.T) {
	// A linear chain a -> b -> c -> d, each edge strength 1.0.
	graph := map[string][]types.IndexLink{
		"a": {{TargetID: "b", Strength: 1.0, LinkType: types.EdgeRelatesTo}},
		"b": {{TargetID: "c", Strength: 1.0, LinkType: types.EdgeRelatesTo}},
		"c": {{TargetID: "d", Strength: 1.0, LinkType: types.EdgeRelatesTo}},
	}
	neighbors := func(id string) []types.IndexLink { return graph[id] }

	results := SpreadActivation("a", neighbors, 3)
	byID := map[string]ActivationResult{}
	for _, r := range results {
		byID[r.ID] = r
	}

	if math.Abs(byID["b"].Activation-0.7) > 1e-9 {
		t.Errorf("expected activation(b) = 0.7, got %f", byID["b"].Activation)
	}
	if math.Abs(byID["c"].Activation-0.49) > 1e-9 {
		t.Errorf("expected activation(c) = 0.49, got %f", byID["c"].Activation)
	}
	if math.Abs(byID["d"].Activation-0.343) > 1e-9 {
		t.Errorf("expected activation(d) = 0.343, got %f", byID["d"].Activation)
	}
}

func TestSpreadActivation_StopsBelowThreshold(t *testing.T) {
	graph := map[string][]types.IndexLink{
		"a": {{TargetID: "b", Strength: 0.1, LinkType: types.EdgeRelatesTo}},
	}
	neighbors := func(id string) []types.IndexLink { return graph[id] }
	results := SpreadActivation("a", neighbors, 3)
	for _, r := range results {
		if r.ID == "b" {
			t.Errorf("expected activation below threshold to be excluded, found b with %f", r.Activation)
		}
	}
}

func TestSpreadActivation_VisitedSetPreventsCycles(t *testing.T) {
	graph := map[string][]types.IndexLink{
		"a": {{TargetID: "b", Strength: 1.0, LinkType: types.EdgeRelatesTo}},
		"b": {{TargetID: "a", Strength: 1.0, LinkType: types.EdgeRelatesTo}},
	}
	neighbors := func(id string) []types.IndexLink { return graph[id] }
	// Should terminate rather than loop forever.
	results := SpreadActivation("a", neighbors, 5)
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("expected only b reached once, got %+v", results)
	}
}
