package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vestige-mem/vestige/internal/config"
	"github.com/vestige-mem/vestige/pkg/types"
)

func newTestServer() *Server {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewServer(newFakeStore(), nil, func() time.Time { return now }, nil)
}

func callTool(t *testing.T, s *Server, name string, args interface{}) MCPToolCallResult {
	t.Helper()
	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	var rawArgs map[string]interface{}
	if err := json.Unmarshal(argsJSON, &rawArgs); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}

	req := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		Params:  MCPToolCallParams{Name: name, Arguments: rawArgs},
		ID:      1,
	}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	respJSON, err := s.HandleRequest(context.Background(), reqJSON)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	var resp JSONRPCResponse
	if err := json.Unmarshal(respJSON, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected JSON-RPC error: %+v", resp.Error)
	}

	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	var callResult MCPToolCallResult
	if err := json.Unmarshal(resultJSON, &callResult); err != nil {
		t.Fatalf("unmarshal tool call result: %v", err)
	}
	return callResult
}

func decodeContent(t *testing.T, r MCPToolCallResult, dest interface{}) {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool call reported error: %s", r.Content[0].Text)
	}
	if len(r.Content) != 1 {
		t.Fatalf("expected exactly one content block, got %d", len(r.Content))
	}
	if err := json.Unmarshal([]byte(r.Content[0].Text), dest); err != nil {
		t.Fatalf("unmarshal content: %v", err)
	}
}

func TestInitialize(t *testing.T) {
	s := newTestServer()
	req := JSONRPCRequest{JSONRPC: "2.0", Method: "initialize", Params: MCPInitializeParams{ProtocolVersion: "2024-11-05"}, ID: 1}
	reqJSON, _ := json.Marshal(req)
	respJSON, err := s.HandleRequest(context.Background(), reqJSON)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	var resp JSONRPCResponse
	if err := json.Unmarshal(respJSON, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestToolsList_AllNamesPresent(t *testing.T) {
	s := newTestServer()
	tools := s.buildToolsList()
	want := []string{
		"ingest", "smart_ingest", "recall", "search", "review", "stats",
		"consolidate", "context", "get_knowledge", "delete_knowledge",
		"get_memory_state", "list_by_state", "state_stats", "trigger_importance",
		"find_tagged", "tag_stats", "promote_memory", "demote_memory",
		"request_feedback", "intention", "codebase", "related_memories",
	}
	have := make(map[string]bool, len(tools))
	for _, tool := range tools {
		have[tool.Name] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing tool %q from tools/list", name)
		}
	}
	if len(want) != len(tools) {
		t.Errorf("expected exactly %d tools, got %d", len(want), len(tools))
	}
}

func TestIngestThenRecall(t *testing.T) {
	s := newTestServer()

	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "the build is green", Tags: []string{"ci"}}), &ingestRes)
	if ingestRes.ID == "" {
		t.Fatal("expected a non-empty node ID")
	}

	var recallRes RecallResult
	decodeContent(t, callTool(t, s, "recall", RecallArgs{ID: ingestRes.ID}), &recallRes)
	if !recallRes.Found || recallRes.Node.Content != "the build is green" {
		t.Fatalf("expected recall to find the ingested node, got %+v", recallRes)
	}
}

func TestSmartIngest_CreatesWithoutEmbedder(t *testing.T) {
	s := newTestServer()
	var res SmartIngestResult
	decodeContent(t, callTool(t, s, "smart_ingest", SmartIngestArgs{Content: "new idea"}), &res)
	if res.NodeID == "" {
		t.Fatal("expected a created node ID")
	}
	if res.HasEmbedding {
		t.Error("expected HasEmbedding false with no embedder configured")
	}
}

func TestSearch_KeywordMatch(t *testing.T) {
	s := newTestServer()
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "kubernetes deployment notes"}), &IngestResult{})
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "kubernetes deployment notes"}), &ingestRes)

	var searchRes SearchResult
	decodeContent(t, callTool(t, s, "search", SearchArgs{Query: "kubernetes"}), &searchRes)
	if len(searchRes.Results) == 0 {
		t.Fatal("expected at least one keyword match")
	}
}

func TestGetKnowledgeAndDelete(t *testing.T) {
	s := newTestServer()
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "ephemeral note"}), &ingestRes)

	var getRes GetKnowledgeResult
	decodeContent(t, callTool(t, s, "get_knowledge", GetKnowledgeArgs{ID: ingestRes.ID}), &getRes)
	if !getRes.Found {
		t.Fatal("expected node to be found")
	}

	var delRes DeleteKnowledgeResult
	decodeContent(t, callTool(t, s, "delete_knowledge", DeleteKnowledgeArgs{ID: ingestRes.ID}), &delRes)
	if !delRes.Deleted {
		t.Fatal("expected delete to succeed")
	}

	var getRes2 GetKnowledgeResult
	decodeContent(t, callTool(t, s, "get_knowledge", GetKnowledgeArgs{ID: ingestRes.ID}), &getRes2)
	if getRes2.Found {
		t.Fatal("expected node to be gone after delete")
	}
}

func TestReview_AdvancesSchedule(t *testing.T) {
	s := newTestServer()
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "spaced repetition target"}), &ingestRes)

	var reviewRes ReviewResult
	decodeContent(t, callTool(t, s, "review", ReviewArgs{ID: ingestRes.ID, Grade: 3}), &reviewRes)
	if reviewRes.IntervalDays <= 0 {
		t.Errorf("expected a positive interval after a Good review, got %f", reviewRes.IntervalDays)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer()
	var res StatsResult
	decodeContent(t, callTool(t, s, "stats", StatsArgs{}), &res)
	if res.DatabaseBytes <= 0 {
		t.Error("expected a positive database size")
	}
}

func TestConsolidate_RunsWithoutError(t *testing.T) {
	s := newTestServer()
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "consolidation candidate"}), &IngestResult{})
	var res ConsolidateResult
	decodeContent(t, callTool(t, s, "consolidate", ConsolidateArgs{}), &res)
	if res.Processed < 0 {
		t.Errorf("unexpected negative processed count: %+v", res)
	}
}

func TestGetMemoryState(t *testing.T) {
	s := newTestServer()
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "state check"}), &ingestRes)

	var res GetMemoryStateResult
	decodeContent(t, callTool(t, s, "get_memory_state", GetMemoryStateArgs{ID: ingestRes.ID}), &res)
	if res.State == "" {
		t.Error("expected a non-empty lifecycle state")
	}
}

func TestListByStateAndStateStats(t *testing.T) {
	s := newTestServer()
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "a"}), &IngestResult{})
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "b"}), &IngestResult{})

	var stats StateStatsResult
	decodeContent(t, callTool(t, s, "state_stats", StateStatsArgs{}), &stats)
	total := 0
	for _, c := range stats.Counts {
		total += c
	}
	if total != 2 {
		t.Errorf("expected 2 nodes accounted for across states, got %d", total)
	}
}

func TestTriggerImportance(t *testing.T) {
	s := newTestServer()
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "breakthrough moment"}), &ingestRes)

	var res TriggerImportanceResult
	decodeContent(t, callTool(t, s, "trigger_importance", TriggerImportanceArgs{ID: ingestRes.ID, EventType: "breakthrough"}), &res)
	if !res.Applied {
		t.Fatal("expected breakthrough trigger to apply")
	}
	if res.RetentionAfter <= res.RetentionBefore {
		t.Errorf("expected retention to increase, before=%f after=%f", res.RetentionBefore, res.RetentionAfter)
	}
}

func TestPromoteThenFindTagged(t *testing.T) {
	s := newTestServer()
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "promote me"}), &ingestRes)

	for i := 0; i < 3; i++ {
		decodeContent(t, callTool(t, s, "promote_memory", PromoteMemoryArgs{ID: ingestRes.ID, Reason: "repeated confirmation"}), &PromoteDemoteResult{})
	}

	var tagged FindTaggedResult
	decodeContent(t, callTool(t, s, "find_tagged", FindTaggedArgs{MinStrength: 0}), &tagged)
	found := false
	for _, n := range tagged.Nodes {
		if n.ID == ingestRes.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected repeatedly promoted node to surface as tagged")
	}

	var stats TagStatsResult
	decodeContent(t, callTool(t, s, "tag_stats", TagStatsArgs{}), &stats)
	if stats.Count == 0 {
		t.Error("expected tag_stats to report at least one tagged node")
	}
}

func TestDemoteMemory(t *testing.T) {
	s := newTestServer()
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "demote me"}), &ingestRes)

	var res PromoteDemoteResult
	decodeContent(t, callTool(t, s, "demote_memory", DemoteMemoryArgs{ID: ingestRes.ID, Reason: "superseded"}), &res)
	if res.RetentionAfter >= res.RetentionBefore {
		t.Errorf("expected retention to decrease, before=%f after=%f", res.RetentionBefore, res.RetentionAfter)
	}
}

func TestRequestFeedback(t *testing.T) {
	s := newTestServer()
	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "a somewhat long note about feedback previews"}), &ingestRes)

	var res RequestFeedbackResult
	decodeContent(t, callTool(t, s, "request_feedback", RequestFeedbackArgs{ID: ingestRes.ID}), &res)
	if len(res.Options) != 3 {
		t.Errorf("expected 3 feedback options, got %d", len(res.Options))
	}
}

func TestIntentionLifecycle(t *testing.T) {
	s := newTestServer()

	var created IntentionResult
	decodeContent(t, callTool(t, s, "intention", IntentionArgs{Action: "create", Text: "remind me to check the deploy in 10 minutes"}), &created)
	if created.ID == "" {
		t.Fatal("expected a created intention ID")
	}
	if created.Status != "active" {
		t.Errorf("expected newly created intention to be active, got %q", created.Status)
	}

	var listed IntentionResult
	decodeContent(t, callTool(t, s, "intention", IntentionArgs{Action: "list", Status: "active"}), &listed)
	found := false
	for _, id := range listed.IDs {
		if id == created.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected listing active intentions to include the created one")
	}

	var fulfilled IntentionResult
	decodeContent(t, callTool(t, s, "intention", IntentionArgs{Action: "fulfill", ID: created.ID}), &fulfilled)
	if fulfilled.Status != "fulfilled" {
		t.Errorf("expected fulfilled status, got %q", fulfilled.Status)
	}
}

func TestCodebasePredictionAndNovelty(t *testing.T) {
	s := newTestServer()

	var res1 CodebaseResult
	decodeContent(t, callTool(t, s, "codebase", CodebaseArgs{Query: "auth bug", Tags: []string{"auth"}, AccessedIDs: []string{"mem:1", "mem:2"}, Satisfaction: 0.9}), &res1)
	if res1.Novelty <= 0.5 {
		t.Errorf("expected high novelty for a fresh topic, got %f", res1.Novelty)
	}

	var res2 CodebaseResult
	decodeContent(t, callTool(t, s, "codebase", CodebaseArgs{AccessedIDs: []string{"mem:1"}, Tags: []string{"auth"}}), &res2)
	foundPrediction := false
	for _, p := range res2.Predictions {
		if p.ID == "mem:2" {
			foundPrediction = true
		}
	}
	if !foundPrediction {
		t.Error("expected mem:2 to be predicted via co-access with mem:1")
	}
}

func TestContextBoost(t *testing.T) {
	s := newTestServer()
	var res ContextResult
	decodeContent(t, callTool(t, s, "context", ContextArgs{
		ProjectName:  "vestige",
		ResultIDs:    []string{"a", "b"},
		ResultScores: []float64{1.0, 0.5},
	}), &res)
	if len(res.Boosted) != 2 {
		t.Fatalf("expected 2 boosted results, got %d", len(res.Boosted))
	}
}

func TestUnknownTool(t *testing.T) {
	s := newTestServer()
	result := callTool(t, s, "not_a_real_tool", map[string]interface{}{})
	if !result.IsError {
		t.Error("expected calling an unknown tool to report an error")
	}
}

func TestRelatedMemories_SpreadsActivationOverEdges(t *testing.T) {
	s := newTestServer()

	var a, b, c IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "root memory"}), &a)
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "directly related"}), &b)
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "two hops away"}), &c)

	ctx := context.Background()
	fs := s.store.(*fakeStore)
	if _, err := fs.InsertEdge(ctx, &types.GraphEdge{ID: "e1", FromID: a.ID, ToID: b.ID, Type: types.EdgeRelatesTo, Weight: 0.9}); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}
	if _, err := fs.InsertEdge(ctx, &types.GraphEdge{ID: "e2", FromID: b.ID, ToID: c.ID, Type: types.EdgeRelatesTo, Weight: 0.9}); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	var res RelatedMemoriesResult
	decodeContent(t, callTool(t, s, "related_memories", RelatedMemoriesArgs{ID: a.ID}), &res)

	found := map[string]bool{}
	for _, r := range res.Related {
		found[r.ID] = true
	}
	if !found[b.ID] {
		t.Errorf("expected %s (direct neighbor) in related results: %+v", b.ID, res.Related)
	}
	if !found[c.ID] {
		t.Errorf("expected %s (two hops away) in related results: %+v", c.ID, res.Related)
	}
}

func TestRelatedMemories_UnknownIDReturnsError(t *testing.T) {
	s := newTestServer()
	result := callTool(t, s, "related_memories", RelatedMemoriesArgs{ID: "does-not-exist"})
	if !result.IsError {
		t.Error("expected related_memories on an unknown ID to report an error")
	}
}

func TestNewServer_NilConfigDisablesNotifications(t *testing.T) {
	s := newTestServer()
	if s.notifier != nil {
		t.Error("expected notifier to be nil when NewServer is given a nil config")
	}
}

func TestNotify_WritesEventFileWhenConfigSupplied(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.DBPath = filepath.Join(dir, "vestige.db")

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewServer(newFakeStore(), nil, func() time.Time { return now }, &cfg)
	if s.notifier == nil {
		t.Fatal("expected notifier to be set when NewServer is given a non-nil config")
	}

	var ingestRes IngestResult
	decodeContent(t, callTool(t, s, "ingest", IngestArgs{Content: "an event-worthy memory"}), &ingestRes)

	eventsDir := filepath.Join(dir, "events")
	entries, err := os.ReadDir(eventsDir)
	if err != nil {
		t.Fatalf("read events dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected ingest to write an event file, found none")
	}
}
