package engine

import (
	"context"
	"testing"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, e.err
}

func TestIngest_CreatesWhenNoEmbedder(t *testing.T) {
	fs := newFakeStore()
	ig := NewIngester(fs, nil, nil)
	res, err := ig.Ingest(context.Background(), IngestRequest{Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionCreate || res.HasEmbedding {
		t.Errorf("expected create with no embedding, got %+v", res)
	}
}

func TestIngest_CreatesWhenStoreEmpty(t *testing.T) {
	fs := newFakeStore()
	ig := NewIngester(fs, &fakeEmbedder{vec: types.Normalize([]float32{1, 0, 0})}, nil)
	res, err := ig.Ingest(context.Background(), IngestRequest{Content: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionCreate {
		t.Errorf("expected create, got %s", res.Decision)
	}
}

func TestIngest_ReinforcesNearIdentical(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	n := types.NewKnowledgeNode("n1", "React uses a virtual DOM.", types.SourceFact, now)
	fs.put(n)
	vec := types.Normalize([]float32{1, 0, 0})
	fs.embeddings["n1"] = &types.Embedding{NodeID: "n1", Vector: vec}

	ig := NewIngester(fs, &fakeEmbedder{vec: vec}, func() time.Time { return now })
	res, err := ig.Ingest(context.Background(), IngestRequest{Content: "React uses a virtual DOM."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionReinforce {
		t.Errorf("expected reinforce, got %s: %+v", res.Decision, res)
	}
	if res.NodeID != "n1" {
		t.Errorf("expected reinforce to target n1, got %s", res.NodeID)
	}
}

func TestIngest_SupersedesWeaklyRetainedSimilarNode(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	n := types.NewKnowledgeNode("n1", "React uses a virtual DOM.", types.SourceFact, now)
	n.RetrievalStrength = 0.2
	n.SyncRetentionStrength()
	fs.put(n)
	vecOld := types.Normalize([]float32{1, 0, 0})
	fs.embeddings["n1"] = &types.Embedding{NodeID: "n1", Vector: vecOld}

	// A "similar but not identical" vector (0.85-0.95 cosine band).
	vecNew := types.Normalize([]float32{0.9, 0.436, 0})
	ig := NewIngester(fs, &fakeEmbedder{vec: vecNew}, func() time.Time { return now })
	res, err := ig.Ingest(context.Background(), IngestRequest{Content: "React uses a virtual DOM, mostly."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionSupersede {
		t.Fatalf("expected supersede, got %s: %+v", res.Decision, res)
	}
	if res.SupersededID != "n1" {
		t.Errorf("expected superseded id n1, got %s", res.SupersededID)
	}
	created := fs.nodes[res.NodeID]
	if len(created.ContradictionIDs) != 1 || created.ContradictionIDs[0] != "n1" {
		t.Errorf("expected contradiction_ids=[n1], got %v", created.ContradictionIDs)
	}
}

func TestIngest_UpdatesSimilarWellRetainedNode(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	n := types.NewKnowledgeNode("n1", "React uses a virtual DOM.", types.SourceFact, now)
	n.RetrievalStrength = 0.6
	n.SyncRetentionStrength()
	fs.put(n)
	vecOld := types.Normalize([]float32{1, 0, 0})
	fs.embeddings["n1"] = &types.Embedding{NodeID: "n1", Vector: vecOld}

	// cos ~ 0.88, inside [simSimilar, simSame) with retention above the
	// supersede threshold: refines the existing node in place.
	vecNew := types.Normalize([]float32{0.88, 0.475, 0})
	ig := NewIngester(fs, &fakeEmbedder{vec: vecNew}, func() time.Time { return now })
	res, err := ig.Ingest(context.Background(), IngestRequest{Content: "React uses a virtual DOM under the hood."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionUpdate {
		t.Fatalf("expected update, got %s: %+v", res.Decision, res)
	}
	if res.NodeID != "n1" {
		t.Errorf("expected update to target n1, got %s", res.NodeID)
	}
	if fs.nodes["n1"].Content != "React uses a virtual DOM under the hood." {
		t.Errorf("expected content to be refined in place, got %q", fs.nodes["n1"].Content)
	}
	if fs.embeddings["n1"].Vector[0] != vecNew[0] {
		t.Errorf("expected embedding to be refreshed to the new vector")
	}
}

func TestIngest_MergesRelatedContent(t *testing.T) {
	fs := newFakeStore()
	now := time.Now()
	n := types.NewKnowledgeNode("n1", "JavaScript closures capture variables.", types.SourceFact, now)
	fs.put(n)
	vecOld := types.Normalize([]float32{1, 0, 0})
	fs.embeddings["n1"] = &types.Embedding{NodeID: "n1", Vector: vecOld}

	// cos ~ 0.75, in the RELATED band.
	vecNew := types.Normalize([]float32{0.75, 0.66, 0})
	ig := NewIngester(fs, &fakeEmbedder{vec: vecNew}, func() time.Time { return now })
	res, err := ig.Ingest(context.Background(), IngestRequest{Content: "Closures in JS are related to scope."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Decision != DecisionMerge {
		t.Fatalf("expected merge, got %s: %+v", res.Decision, res)
	}
}
