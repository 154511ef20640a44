package mcp

import (
	"context"
	"strings"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

// fakeStore is a minimal in-memory store.Store used to exercise the MCP
// server without a real backend.
type fakeStore struct {
	nodes      map[string]*types.KnowledgeNode
	order      []string
	embeddings map[string]*types.Embedding
	intentions map[string]*types.Intention
	edges      map[string][]*types.GraphEdge
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:      map[string]*types.KnowledgeNode{},
		embeddings: map[string]*types.Embedding{},
		intentions: map[string]*types.Intention{},
		edges:      map[string][]*types.GraphEdge{},
	}
}

func (f *fakeStore) put(n *types.KnowledgeNode) {
	if _, exists := f.nodes[n.ID]; !exists {
		f.order = append(f.order, n.ID)
	}
	f.nodes[n.ID] = n
}

func (f *fakeStore) InsertNode(ctx context.Context, n *types.KnowledgeNode) (string, error) {
	f.put(n)
	return n.ID, nil
}
func (f *fakeStore) GetNode(ctx context.Context, id string) (*types.KnowledgeNode, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, errNotFound
	}
	return n, nil
}
func (f *fakeStore) UpdateNodeAccess(ctx context.Context, id string) error {
	if n, ok := f.nodes[id]; ok {
		n.AccessCount++
	}
	return nil
}
func (f *fakeStore) UpdateNodeFields(ctx context.Context, id string, patch store.NodeFields) error {
	n, ok := f.nodes[id]
	if !ok {
		return errNotFound
	}
	if patch.Stability != nil {
		n.Stability = *patch.Stability
	}
	if patch.Difficulty != nil {
		n.Difficulty = *patch.Difficulty
	}
	if patch.State != nil {
		n.State = *patch.State
	}
	if patch.LastReview != nil {
		n.LastReview = patch.LastReview
	}
	if patch.NextReview != nil {
		n.NextReview = patch.NextReview
	}
	if patch.Reps != nil {
		n.Reps = *patch.Reps
	}
	if patch.Lapses != nil {
		n.Lapses = *patch.Lapses
	}
	if patch.RetrievalStrength != nil {
		n.RetrievalStrength = *patch.RetrievalStrength
		n.SyncRetentionStrength()
	}
	if patch.StabilityFactor != nil {
		n.StabilityFactor = *patch.StabilityFactor
	}
	if patch.Tags != nil {
		n.Tags = patch.Tags
	}
	return nil
}
func (f *fakeStore) DeleteNode(ctx context.Context, id string) error {
	if _, ok := f.nodes[id]; !ok {
		return errNotFound
	}
	delete(f.nodes, id)
	return nil
}
func (f *fakeStore) InsertEdge(ctx context.Context, e *types.GraphEdge) (string, error) {
	f.edges[e.FromID] = append(f.edges[e.FromID], e)
	return e.ID, nil
}
func (f *fakeStore) GetEdges(ctx context.Context, nodeID string) ([]*types.GraphEdge, error) {
	return f.edges[nodeID], nil
}
func (f *fakeStore) InsertPerson(ctx context.Context, p *types.Person) (string, error) { return "", nil }
func (f *fakeStore) GetPerson(ctx context.Context, id string) (*types.Person, error)   { return nil, nil }

func (f *fakeStore) InsertIntention(ctx context.Context, in *types.Intention) (string, error) {
	f.intentions[in.ID] = in
	return in.ID, nil
}
func (f *fakeStore) GetIntention(ctx context.Context, id string) (*types.Intention, error) {
	in, ok := f.intentions[id]
	if !ok {
		return nil, errNotFound
	}
	return in, nil
}
func (f *fakeStore) ListIntentions(ctx context.Context, status types.IntentionStatus) ([]*types.Intention, error) {
	var out []*types.Intention
	for _, in := range f.intentions {
		if in.Status == status {
			out = append(out, in)
		}
	}
	return out, nil
}
func (f *fakeStore) UpdateIntention(ctx context.Context, in *types.Intention) error {
	f.intentions[in.ID] = in
	return nil
}

func (f *fakeStore) UpsertEmbedding(ctx context.Context, e *types.Embedding) error {
	f.embeddings[e.NodeID] = e
	return nil
}
func (f *fakeStore) GetEmbedding(ctx context.Context, nodeID string) (*types.Embedding, error) {
	return f.embeddings[nodeID], nil
}
func (f *fakeStore) AllEmbeddings(ctx context.Context) ([]*types.Embedding, error) {
	out := make([]*types.Embedding, 0, len(f.embeddings))
	for _, e := range f.embeddings {
		out = append(out, e)
	}
	return out, nil
}
func (f *fakeStore) Batch(ctx context.Context, stmts []store.Statement) error { return nil }
func (f *fakeStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx store.TxScope) error) error {
	return fn(ctx, nil)
}

// SearchNodes does a naive case-insensitive substring match over
// content, ranked by recency, enough to exercise the keyword channel.
func (f *fakeStore) SearchNodes(ctx context.Context, query string, opts store.SearchOptions) ([]store.ScoredNode, int, error) {
	q := strings.ToLower(query)
	var out []store.ScoredNode
	for _, id := range f.order {
		n := f.nodes[id]
		if n == nil {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(n.Content), q) {
			continue
		}
		out = append(out, store.ScoredNode{ID: n.ID, Score: 1})
	}
	return out, len(out), nil
}
func (f *fakeStore) GetRecentNodes(ctx context.Context, opts store.RecentOptions) ([]*types.KnowledgeNode, error) {
	return nil, nil
}
func (f *fakeStore) ListNodesByLastAccess(ctx context.Context, limit int) ([]*types.KnowledgeNode, error) {
	out := make([]*types.KnowledgeNode, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.nodes[id])
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
func (f *fakeStore) GetDatabaseSize(ctx context.Context) (store.DatabaseSize, error) {
	return store.DatabaseSize{Bytes: 4096, MB: 0.004}, nil
}
func (f *fakeStore) CheckHealth(ctx context.Context) (store.HealthReport, error) {
	return store.HealthReport{}, nil
}
func (f *fakeStore) Close() error { return nil }

var errNotFound = errNotFoundError{}

type errNotFoundError struct{}

func (errNotFoundError) Error() string { return "not found" }

var _ store.Store = (*fakeStore)(nil)
