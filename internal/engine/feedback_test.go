package engine

import (
	"context"
	"testing"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

func TestPromoteMemory(t *testing.T) {
	fs := newFakeStore()
	n := types.NewKnowledgeNode("n1", "fact", types.SourceFact, time.Now())
	n.RetrievalStrength = 0.5
	n.SyncRetentionStrength()
	n.StabilityFactor = 1.0
	fs.put(n)

	ft := NewFeedbackTools(fs)
	result, err := ft.PromoteMemory(context.Background(), "n1", "looks right")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.After.RetentionStrength <= result.Before.RetentionStrength {
		t.Errorf("expected retention to increase")
	}
	if result.After.StabilityFactor != 1.5 {
		t.Errorf("expected stability_factor 1.5, got %f", result.After.StabilityFactor)
	}
}

func TestDemoteMemory_NeverDeletesOrDropsBelowFloor(t *testing.T) {
	fs := newFakeStore()
	n := types.NewKnowledgeNode("n1", "fact", types.SourceFact, time.Now())
	n.RetrievalStrength = 0.15
	n.SyncRetentionStrength()
	n.StabilityFactor = 1.0
	fs.put(n)

	ft := NewFeedbackTools(fs)
	for i := 0; i < 5; i++ {
		if _, err := ft.DemoteMemory(context.Background(), "n1", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fs.nodes["n1"] == nil {
		t.Fatalf("node should not be deleted")
	}
	if fs.nodes["n1"].RetentionStrength < 0.1 {
		t.Errorf("expected retention floor at 0.1, got %f", fs.nodes["n1"].RetentionStrength)
	}
}

func TestRequestFeedback_TruncatesPreview(t *testing.T) {
	fs := newFakeStore()
	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	n := types.NewKnowledgeNode("n1", long, types.SourceFact, time.Now())
	fs.put(n)

	ft := NewFeedbackTools(fs)
	fb, err := ft.RequestFeedback(context.Background(), "n1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.Preview) != previewTruncateLen+3 {
		t.Errorf("expected truncated preview of length %d, got %d", previewTruncateLen+3, len(fb.Preview))
	}
	if len(fb.Options) != 3 {
		t.Errorf("expected 3 feedback options, got %d", len(fb.Options))
	}
}

func TestFindTagged_FiltersByStabilityAndRetention(t *testing.T) {
	fs := newFakeStore()
	tagged := types.NewKnowledgeNode("tagged", "fact", types.SourceFact, time.Now())
	tagged.StabilityFactor = 2.0
	tagged.RetrievalStrength = 0.9
	tagged.SyncRetentionStrength()
	fs.put(tagged)

	untagged := types.NewKnowledgeNode("untagged", "fact", types.SourceFact, time.Now())
	untagged.StabilityFactor = 1.0
	fs.put(untagged)

	ft := NewFeedbackTools(fs)
	out, err := ft.FindTagged(context.Background(), 0.5, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Node.ID != "tagged" {
		t.Errorf("expected only the tagged node, got %+v", out)
	}
}
