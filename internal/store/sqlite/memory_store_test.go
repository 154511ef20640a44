package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:): %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestInsertAndGetNode_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n := types.NewKnowledgeNode("", "React uses a virtual DOM.", types.SourceFact, time.Now())
	n.Tags = []string{"react", "frontend"}
	id, err := s.InsertNode(ctx, n)
	if err != nil {
		t.Fatalf("InsertNode: %v", err)
	}
	if id == "" {
		t.Fatal("InsertNode returned empty id")
	}

	got, err := s.GetNode(ctx, id)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Content != n.Content {
		t.Errorf("Content = %q, want %q", got.Content, n.Content)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "react" {
		t.Errorf("Tags = %v, want [react frontend]", got.Tags)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNode(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want wrapping store.ErrNotFound", err)
	}
}

func TestUpdateNodeAccess_BumpsCountAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := types.NewKnowledgeNode("", "content", types.SourceFact, time.Now().Add(-time.Hour))
	id, err := s.InsertNode(ctx, n)
	if err != nil {
		t.Fatalf("InsertNode: %v", err)
	}

	if err := s.UpdateNodeAccess(ctx, id); err != nil {
		t.Fatalf("UpdateNodeAccess: %v", err)
	}

	got, err := s.GetNode(ctx, id)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1", got.AccessCount)
	}
	if !got.LastAccessedAt.After(n.LastAccessedAt) {
		t.Errorf("LastAccessedAt did not advance: %v", got.LastAccessedAt)
	}
}

func TestUpdateNodeAccess_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateNodeAccess(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want wrapping store.ErrNotFound", err)
	}
}

func TestUpdateNodeFields_PatchesOnlySetFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := types.NewKnowledgeNode("", "original content", types.SourceFact, time.Now())
	id, err := s.InsertNode(ctx, n)
	if err != nil {
		t.Fatalf("InsertNode: %v", err)
	}

	newContent := "revised content"
	if err := s.UpdateNodeFields(ctx, id, store.NodeFields{Content: &newContent}); err != nil {
		t.Fatalf("UpdateNodeFields: %v", err)
	}

	got, err := s.GetNode(ctx, id)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Content != newContent {
		t.Errorf("Content = %q, want %q", got.Content, newContent)
	}
	if got.Summary != n.Summary {
		t.Errorf("unset field Summary changed: %q", got.Summary)
	}
}

func TestUpdateNodeFields_NoFieldsIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := types.NewKnowledgeNode("", "content", types.SourceFact, time.Now())
	id, err := s.InsertNode(ctx, n)
	if err != nil {
		t.Fatalf("InsertNode: %v", err)
	}
	if err := s.UpdateNodeFields(ctx, id, store.NodeFields{}); err != nil {
		t.Errorf("UpdateNodeFields with empty patch returned error: %v", err)
	}
}

func TestDeleteNode_CascadesToEmbeddingsAndEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := types.NewKnowledgeNode("", "node a", types.SourceFact, time.Now())
	idA, err := s.InsertNode(ctx, a)
	if err != nil {
		t.Fatalf("InsertNode(a): %v", err)
	}
	b := types.NewKnowledgeNode("", "node b", types.SourceFact, time.Now())
	idB, err := s.InsertNode(ctx, b)
	if err != nil {
		t.Fatalf("InsertNode(b): %v", err)
	}

	if err := s.UpsertEmbedding(ctx, &types.Embedding{NodeID: idA, Vector: []float32{1, 0, 0}, Model: "test"}); err != nil {
		t.Fatalf("UpsertEmbedding: %v", err)
	}
	if _, err := s.InsertEdge(ctx, &types.GraphEdge{FromID: idA, ToID: idB, Type: types.EdgeSimilarTo, Weight: 0.9}); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	if err := s.DeleteNode(ctx, idA); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	if _, err := s.GetNode(ctx, idA); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected node gone, got err=%v", err)
	}
	if _, err := s.GetEmbedding(ctx, idA); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected embedding cascade-deleted, got err=%v", err)
	}
	edges, err := s.GetEdges(ctx, idB)
	if err != nil {
		t.Fatalf("GetEdges: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected edge touching deleted node to be gone, got %v", edges)
	}
}

func TestDeleteNode_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteNode(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want wrapping store.ErrNotFound", err)
	}
}

func TestInsertEdge_IdempotentOnFromToType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := types.NewKnowledgeNode("", "node a", types.SourceFact, time.Now())
	idA, _ := s.InsertNode(ctx, a)
	b := types.NewKnowledgeNode("", "node b", types.SourceFact, time.Now())
	idB, _ := s.InsertNode(ctx, b)

	firstID, err := s.InsertEdge(ctx, &types.GraphEdge{FromID: idA, ToID: idB, Type: types.EdgeRelatesTo, Weight: 0.5})
	if err != nil {
		t.Fatalf("InsertEdge (first): %v", err)
	}
	secondID, err := s.InsertEdge(ctx, &types.GraphEdge{FromID: idA, ToID: idB, Type: types.EdgeRelatesTo, Weight: 0.9})
	if err != nil {
		t.Fatalf("InsertEdge (second): %v", err)
	}
	if firstID != secondID {
		t.Errorf("re-inserting the same (from,to,type) created a new edge: %s != %s", firstID, secondID)
	}

	edges, err := s.GetEdges(ctx, idA)
	if err != nil {
		t.Fatalf("GetEdges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected exactly one edge after duplicate insert, got %d", len(edges))
	}
	if edges[0].Weight != 0.9 {
		t.Errorf("expected weight to be updated to 0.9, got %v", edges[0].Weight)
	}
}

func TestSearchNodes_FTSMatchesContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n1 := types.NewKnowledgeNode("", "React uses a virtual DOM for rendering.", types.SourceFact, time.Now())
	n2 := types.NewKnowledgeNode("", "Python is a dynamically typed language.", types.SourceFact, time.Now())
	if _, err := s.InsertNode(ctx, n1); err != nil {
		t.Fatalf("InsertNode(n1): %v", err)
	}
	if _, err := s.InsertNode(ctx, n2); err != nil {
		t.Fatalf("InsertNode(n2): %v", err)
	}

	results, total, err := s.SearchNodes(ctx, "virtual DOM", store.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("SearchNodes: %v", err)
	}
	if total != 1 || len(results) != 1 {
		t.Fatalf("expected exactly one FTS match, got total=%d results=%v", total, results)
	}
	if results[0].ID != n1.ID {
		t.Errorf("matched node = %s, want %s", results[0].ID, n1.ID)
	}
	if results[0].Score <= 0 || results[0].Score > 1 {
		t.Errorf("score %v out of [0,1]", results[0].Score)
	}
}

func TestSearchNodes_EmptyQueryReturnsNothing(t *testing.T) {
	s := newTestStore(t)
	results, total, err := s.SearchNodes(context.Background(), "   ", store.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("SearchNodes: %v", err)
	}
	if results != nil || total != 0 {
		t.Errorf("expected no results for blank query, got %v total=%d", results, total)
	}
}

func TestSearchNodes_LikeFallbackMatchesContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := types.NewKnowledgeNode("", "The quick brown fox jumps over the lazy dog.", types.SourceFact, time.Now())
	if _, err := s.InsertNode(ctx, n); err != nil {
		t.Fatalf("InsertNode: %v", err)
	}

	results, err := s.searchLike(ctx, "brown fox", store.SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("searchLike: %v", err)
	}
	if len(results) != 1 || results[0].ID != n.ID {
		t.Fatalf("expected LIKE fallback to match the node, got %v", results)
	}
	if results[0].Score != 1 {
		t.Errorf("expected rank-0 LIKE score of 1, got %v", results[0].Score)
	}
}

func TestEmbedding_UpsertAndRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := types.NewKnowledgeNode("", "content", types.SourceFact, time.Now())
	id, _ := s.InsertNode(ctx, n)

	vec := []float32{0.1, -0.2, 0.3, 0.0}
	if err := s.UpsertEmbedding(ctx, &types.Embedding{NodeID: id, Vector: vec, Model: "nomic-embed-text"}); err != nil {
		t.Fatalf("UpsertEmbedding: %v", err)
	}

	got, err := s.GetEmbedding(ctx, id)
	if err != nil {
		t.Fatalf("GetEmbedding: %v", err)
	}
	if len(got.Vector) != len(vec) {
		t.Fatalf("Vector length = %d, want %d", len(got.Vector), len(vec))
	}
	for i := range vec {
		if got.Vector[i] != vec[i] {
			t.Errorf("Vector[%d] = %v, want %v", i, got.Vector[i], vec[i])
		}
	}

	// Upserting again for the same node replaces rather than duplicates.
	newVec := []float32{1, 1, 1, 1}
	if err := s.UpsertEmbedding(ctx, &types.Embedding{NodeID: id, Vector: newVec, Model: "nomic-embed-text"}); err != nil {
		t.Fatalf("UpsertEmbedding (replace): %v", err)
	}
	all, err := s.AllEmbeddings(ctx)
	if err != nil {
		t.Fatalf("AllEmbeddings: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one embedding row after re-upsert, got %d", len(all))
	}
}

func TestBatch_RollsBackAllStatementsOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := types.NewKnowledgeNode("seed", "seed content", types.SourceFact, time.Now())
	if _, err := s.InsertNode(ctx, n); err != nil {
		t.Fatalf("InsertNode(seed): %v", err)
	}

	err := s.Batch(ctx, []store.Statement{
		{Op: "UPDATE knowledge_nodes SET access_count = access_count + 1 WHERE id = ?", Args: []interface{}{"seed"}},
		{Op: "not valid sql at all", Args: nil},
	})
	if err == nil {
		t.Fatal("expected Batch to fail on the invalid statement")
	}

	got, err := s.GetNode(ctx, "seed")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.AccessCount != 0 {
		t.Errorf("expected first statement's effect to be rolled back, AccessCount = %d", got.AccessCount)
	}
}

func TestTransaction_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	n := types.NewKnowledgeNode("seed", "seed content", types.SourceFact, time.Now())
	if _, err := s.InsertNode(ctx, n); err != nil {
		t.Fatalf("InsertNode(seed): %v", err)
	}

	err := s.Transaction(ctx, func(ctx context.Context, tx store.TxScope) error {
		return tx.Execute(ctx, store.Statement{
			Op:   "UPDATE knowledge_nodes SET access_count = access_count + 1 WHERE id = ?",
			Args: []interface{}{"seed"},
		})
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}

	got, err := s.GetNode(ctx, "seed")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.AccessCount != 1 {
		t.Errorf("AccessCount = %d, want 1 after committed transaction", got.AccessCount)
	}
}

func TestDbPathFromDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"bare path", "/tmp/vestige.db", "/tmp/vestige.db"},
		{"memory", ":memory:", ":memory:"},
		{"file scheme with query", "file:/tmp/vestige.db?cache=shared", "/tmp/vestige.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dbPathFromDSN(tt.dsn); got != tt.want {
				t.Errorf("dbPathFromDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

// CheckHealth and GetDatabaseSize exercise WAL-mode specifics (journal_mode,
// on-disk file size) that a ":memory:" DSN can't reproduce — SQLite silently
// keeps in-memory databases on the "memory" journal mode regardless of the
// PRAGMA issued at open, so these use a real file-backed store.
func TestCheckHealth_ReportsNoWarningsOnFreshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vestige.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	report, err := s.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("expected no warnings on a fresh file-backed store, got %v", report.Warnings)
	}
}

func TestGetDatabaseSize_NonZeroAfterInsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vestige.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	n := types.NewKnowledgeNode("", "content", types.SourceFact, time.Now())
	if _, err := s.InsertNode(ctx, n); err != nil {
		t.Fatalf("InsertNode: %v", err)
	}

	size, err := s.GetDatabaseSize(ctx)
	if err != nil {
		t.Fatalf("GetDatabaseSize: %v", err)
	}
	if size.Bytes <= 0 {
		t.Errorf("expected non-zero database size, got %d bytes", size.Bytes)
	}
}
