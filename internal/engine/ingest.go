package engine

import (
	"context"
	"time"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	simSame = 0.95
	simSimilar = 0.85
	simRelated = 0.70

	supersedeRetention = 0.30
)

// IngestDecision classifies the action Ingest took.
type IngestDecision string

const (
	DecisionCreate IngestDecision = "create"
	DecisionReinforce IngestDecision = "reinforce"
	DecisionUpdate IngestDecision = "update"
	DecisionSupersede IngestDecision = "supersede"
	DecisionMerge IngestDecision = "merge"
)

// IngestRequest is the caller-facing input to Ingest.
type IngestRequest struct {
	Content string
	SourceType types.SourceType
	ForceCreate bool
}

// IngestResult is Ingest's return value.
type IngestResult struct {
	Decision IngestDecision
	NodeID string
	Similarity *float64
	PredictionError float64
	SupersededID string
	Reason string
	HasEmbedding bool
}

// Ingester runs the smart-ingest decision algorithm (C8): given new
// content, find the nearest existing node by embedding similarity and
// decide whether to create, reinforce, update, supersede, or merge.
type Ingester struct {
	store    store.Store
	embedder Embedder
	now      func() time.Time
}

// NewIngester returns an Ingester. embedder may be nil; Ingest then
// always creates, degrading gracefully when no embedding backend is
// configured.
func NewIngester(s store.Store, embedder Embedder, now func() time.Time) *Ingester {
	if now == nil {
		now = time.Now
	}
	return &Ingester{store: s, embedder: embedder, now: now}
}

// Ingest classifies incoming content against existing memories and
// decides whether to create, reinforce, update, supersede, or merge.
func (ig *Ingester) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if ig.embedder == nil || req.ForceCreate {
		id, err := ig.create(ctx, req, nil)
		return IngestResult{Decision: DecisionCreate, NodeID: id, PredictionError: 1, HasEmbedding: false}, err
	}

	vec, err := ig.embedder.Embed(ctx, req.Content)
	if err != nil {
		id, createErr := ig.create(ctx, req, nil)
		return IngestResult{Decision: DecisionCreate, NodeID: id, PredictionError: 1, HasEmbedding: false}, createErr
	}

	embeddings, err := ig.store.AllEmbeddings(ctx)
	if err != nil || len(embeddings) == 0 {
		id, createErr := ig.create(ctx, req, vec)
		return IngestResult{Decision: DecisionCreate, NodeID: id, PredictionError: 1, HasEmbedding: true}, createErr
	}

	topID, sim := findMostSimilar(vec, embeddings)
	if topID == "" {
		id, createErr := ig.create(ctx, req, vec)
		return IngestResult{Decision: DecisionCreate, NodeID: id, PredictionError: 1, HasEmbedding: true}, createErr
	}

	pe := 1 - sim
	node, err := ig.store.GetNode(ctx, topID)
	if err != nil || node == nil {
		id, createErr := ig.create(ctx, req, vec)
		return IngestResult{Decision: DecisionCreate, NodeID: id, PredictionError: 1, HasEmbedding: true}, createErr
	}

	switch {
	case sim >= simSame:
		_ = ig.store.UpdateNodeAccess(ctx, node.ID)
		return IngestResult{
			Decision: DecisionReinforce, NodeID: node.ID, Similarity: &sim,
			PredictionError: pe, HasEmbedding: true, Reason: "near-identical content",
		}, nil

	case sim >= simSimilar:
		if node.RetentionStrength < supersedeRetention {
			id, err := ig.createSuperseding(ctx, req, vec, node.ID)
			return IngestResult{
				Decision: DecisionSupersede, NodeID: id, Similarity: &sim,
				PredictionError: pe, SupersededID: node.ID, HasEmbedding: true,
				Reason: "similar content replacing a weakly retained node",
			}, err
		}
		if err := ig.updateContent(ctx, node.ID, req.Content, vec); err != nil {
			return IngestResult{}, err
		}
		return IngestResult{
			Decision: DecisionUpdate, NodeID: node.ID, Similarity: &sim,
			PredictionError: pe, HasEmbedding: true, Reason: "similar content refining an existing node",
		}, nil

	case sim >= simRelated:
		id, err := ig.create(ctx, req, vec)
		if err == nil {
			edge := &types.GraphEdge{
				FromID: id, ToID: node.ID, Type: types.EdgeSimilarTo,
				Weight: sim, CreatedAt: ig.now(),
			}
			_, _ = ig.store.InsertEdge(ctx, edge)
		}
		return IngestResult{
			Decision: DecisionMerge, NodeID: id, Similarity: &sim,
			PredictionError: pe, HasEmbedding: true, Reason: "related content linked to an existing node",
		}, err

	default:
		id, err := ig.create(ctx, req, vec)
		return IngestResult{
			Decision: DecisionCreate, NodeID: id, Similarity: &sim,
			PredictionError: pe, HasEmbedding: true, Reason: "no sufficiently similar node found",
		}, err
	}
}

func (ig *Ingester) create(ctx context.Context, req IngestRequest, vec []float32) (string, error) {
	st := req.SourceType
	if st == "" {
		st = types.SourceNote
	}
	n := types.NewKnowledgeNode("", req.Content, st, ig.now())
	id, err := ig.store.InsertNode(ctx, n)
	if err != nil {
		return "", err
	}
	if vec != nil {
		_ = ig.store.UpsertEmbedding(ctx, &types.Embedding{NodeID: id, Vector: vec, CreatedAt: ig.now()})
	}
	return id, nil
}

func (ig *Ingester) createSuperseding(ctx context.Context, req IngestRequest, vec []float32, supersededID string) (string, error) {
	st := req.SourceType
	if st == "" {
		st = types.SourceNote
	}
	n := types.NewKnowledgeNode("", req.Content, st, ig.now())
	n.ContradictionIDs = []string{supersededID}
	n.SourceChain = []string{supersededID}
	id, err := ig.store.InsertNode(ctx, n)
	if err != nil {
		return "", err
	}
	if vec != nil {
		_ = ig.store.UpsertEmbedding(ctx, &types.Embedding{NodeID: id, Vector: vec, CreatedAt: ig.now()})
	}
	return id, nil
}

func (ig *Ingester) updateContent(ctx context.Context, id, content string, vec []float32) error {
	c := content
	if err := ig.store.UpdateNodeFields(ctx, id, store.NodeFields{Content: &c}); err != nil {
		return err
	}
	if vec != nil {
		_ = ig.store.UpsertEmbedding(ctx, &types.Embedding{NodeID: id, Vector: vec, CreatedAt: ig.now()})
	}
	return ig.store.UpdateNodeAccess(ctx, id)
}

// findMostSimilar scans every stored embedding by cosine similarity and
// returns the closest id and its similarity.
func findMostSimilar(query []float32, embeddings []*types.Embedding) (string, float64) {
	bestID := ""
	bestSim := -2.0
	for _, e := range embeddings {
		sim := types.CosineSimilarity(query, e.Vector)
		if sim > bestSim {
			bestSim = sim
			bestID = e.NodeID
		}
	}
	if bestID == "" {
		return "", 0
	}
	return bestID, bestSim
}
