package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vestige-mem/vestige/internal/config"
	memctx "github.com/vestige-mem/vestige/internal/context"
	"github.com/vestige-mem/vestige/internal/engine"
	"github.com/vestige-mem/vestige/internal/hippocampus"
	"github.com/vestige-mem/vestige/internal/lifecycle"
	"github.com/vestige-mem/vestige/internal/notify"
	"github.com/vestige-mem/vestige/internal/predictive"
	"github.com/vestige-mem/vestige/internal/prospective"
	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/internal/synaptic"
	"github.com/vestige-mem/vestige/pkg/types"
)

// Server implements the Model Context Protocol (MCP) for Vestige. It
// exposes the §6.1 tool surface over JSON-RPC 2.0, wired to the store
// and in-process engine components (C1-C12).
type Server struct {
	mu sync.Mutex

	store store.Store
	now func() time.Time
	cfg config.Config

	search *engine.SearchEngine
	ingester *engine.Ingester
	consolidator *engine.Consolidator
	feedback *engine.FeedbackTools

	synapticMgr *synaptic.Manager
	predictor *predictive.Tracker
	lastContext memctx.WorkingContext
	index *hippocampus.Index

	notifier *notify.EventWriter

	sessionID string
}

// NewServer constructs a Server bound to s. embedder may be nil (the
// vector channel and smart-ingest similarity matching degrade
// gracefully). now defaults to time.Now. cfg may be nil, in which case
// config.Defaults() supplies the fusion weights and consolidation
// thresholds a tool call doesn't explicitly override.
func NewServer(s store.Store, embedder engine.Embedder, now func() time.Time, cfg *config.Config) *Server {
	if now == nil {
		now = time.Now
	}
	resolved := config.Defaults()
	var notifier *notify.EventWriter
	if cfg != nil {
		resolved = *cfg
		// Cross-process event notification is opt-in: it only activates
		// when a caller supplies an explicit config, so embedding the
		// server as a library (or in tests) never touches the
		// filesystem by surprise.
		notifier = notify.NewEventWriter(filepath.Dir(resolved.DBPath))
	}
	srv := &Server{
		store: s,
		now: now,
		cfg: resolved,
		search: engine.NewSearchEngine(s, embedder, now),
		ingester: engine.NewIngester(s, embedder, now),
		consolidator: engine.NewConsolidator(s, now),
		feedback: engine.NewFeedbackTools(s),
		synapticMgr: synaptic.NewManager(synaptic.DefaultCaptureWindow(), now),
		predictor: predictive.NewTracker(nil, now),
		index: hippocampus.NewIndex(0),
		notifier: notifier,
		sessionID: uuid.New().String(),
	}
	log.Printf("vestige-mcp: session ID: %s", srv.sessionID)
	return srv
}

// HandleRequest processes a single JSON-RPC 2.0 request line and returns
// the marshaled response.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err)
	}
	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized":
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx, req.Params)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}
	return s.successResponse(req.ID, result)
}

func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPInitializeResult{
		ProtocolVersion: "2024-11-05",
		Capabilities: MCPServerCapabilities{Tools: &MCPToolsCapability{}},
		ServerInfo: MCPServerInfo{Name: "vestige", Version: "1.0.0"},
	}, nil
}

func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request to the tool registry
// and wraps the result in the MCP content envelope.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	argsJSON, err := json.Marshal(p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	handler, ok := s.toolHandlers()[p.Name]
	if !ok {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}

	result, handlerErr := handler(ctx, argsJSON)
	if handlerErr != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: handlerErr.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &MCPToolCallResult{Content: []MCPToolCallContent{{Type: "text", Text: string(text)}}}, nil
}

// toolHandler unmarshals raw tool arguments and returns a result value.
type toolHandler func(ctx context.Context, argsJSON []byte) (interface{}, error)

// toolHandlers is the dispatch table for tools/call, keyed by tool name.
func (s *Server) toolHandlers() map[string]toolHandler {
	return map[string]toolHandler{
		"ingest": s.handleIngest,
		"smart_ingest": s.handleSmartIngest,
		"recall": s.handleRecall,
		"search": s.handleSearch,
		"review": s.handleReview,
		"stats": s.handleStats,
		"consolidate": s.handleConsolidate,
		"context": s.handleContext,
		"get_knowledge": s.handleGetKnowledge,
		"delete_knowledge": s.handleDeleteKnowledge,
		"get_memory_state": s.handleGetMemoryState,
		"list_by_state": s.handleListByState,
		"state_stats": s.handleStateStats,
		"trigger_importance": s.handleTriggerImportance,
		"find_tagged": s.handleFindTagged,
		"tag_stats": s.handleTagStats,
		"promote_memory": s.handlePromoteMemory,
		"demote_memory": s.handleDemoteMemory,
		"request_feedback": s.handleRequestFeedback,
		"intention": s.handleIntention,
		"codebase": s.handleCodebase,
		"related_memories": s.handleRelatedMemories,
	}
}

func decodeArgs[T any](argsJSON []byte) (T, error) {
	var v T
	if len(argsJSON) == 0 || string(argsJSON) == "null" {
		return v, nil
	}
	err := json.Unmarshal(argsJSON, &v)
	return v, err
}

// --- C1/C8: ingest, smart_ingest --------------------------------------

func (s *Server) handleIngest(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[IngestArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	st := types.SourceType(args.SourceType)
	if st == "" {
		st = types.SourceNote
	}
	n := types.NewKnowledgeNode(engine.GenerateMemoryID(string(st), ""), args.Content, st, s.now())
	n.Tags = args.Tags
	id, err := s.store.InsertNode(ctx, n)
	if err != nil {
		return nil, err
	}
	s.indexNode(id, args.Content)
	s.notify("memory_created", id)
	return IngestResult{ID: id}, nil
}

func (s *Server) handleSmartIngest(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[SmartIngestArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	st := types.SourceType(args.SourceType)
	if st == "" {
		st = types.SourceNote
	}
	res, err := s.ingester.Ingest(ctx, engine.IngestRequest{
		Content: args.Content,
		SourceType: st,
		ForceCreate: args.ForceCreate,
	})
	if err != nil {
		return nil, err
	}
	if res.Decision == engine.DecisionCreate {
		s.indexNode(res.NodeID, args.Content)
	}
	s.notify(string(res.Decision), res.NodeID)
	return SmartIngestResult{
		Decision: string(res.Decision),
		NodeID: res.NodeID,
		Similarity: res.Similarity,
		PredictionError: res.PredictionError,
		SupersededID: res.SupersededID,
		Reason: res.Reason,
		HasEmbedding: res.HasEmbedding,
	}, nil
}

// --- C1: recall, get_knowledge, delete_knowledge ----------------------

func (s *Server) handleRecall(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[RecallArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, args.ID)
	if err != nil {
		return RecallResult{Found: false}, nil
	}
	_ = s.store.UpdateNodeAccess(ctx, args.ID)
	return RecallResult{Node: n, Found: true}, nil
}

func (s *Server) handleGetKnowledge(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[GetKnowledgeArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, args.ID)
	if err != nil {
		return GetKnowledgeResult{Found: false}, nil
	}
	return GetKnowledgeResult{Node: n, Found: true}, nil
}

func (s *Server) handleDeleteKnowledge(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[DeleteKnowledgeArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteNode(ctx, args.ID); err != nil {
		return DeleteKnowledgeResult{ID: args.ID, Deleted: false}, nil
	}
	return DeleteKnowledgeResult{ID: args.ID, Deleted: true}, nil
}

// --- C4: search ---------------------------------------------------------

func (s *Server) handleSearch(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[SearchArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	kw, vw := args.KeywordWeight, args.VectorWeight
	if kw == 0 && vw == 0 {
		kw, vw = s.cfg.KeywordWeight, s.cfg.VectorWeight
	}
	resp, err := s.search.Search(ctx, engine.SearchRequest{
		Query: args.Query,
		Limit: args.Limit,
		Offset: args.Offset,
		Filters: store.SearchFilters{
			SourceType: args.SourceType,
			SourcePlatform: args.SourcePlatform,
			Tag: args.Tag,
			MinRetention: args.MinRetention,
			MaxRetention: args.MaxRetention,
		},
		KeywordWeight: kw,
		VectorWeight: vw,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, SearchHit{Node: r.Node, Score: r.Score})
	}

	if len(args.QueryTopics) > 0 || args.ProjectContext != "" {
		hits = applyContextBoostToHits(hits, args, s.now())
	}

	return SearchResult{Results: hits, HasMore: resp.HasMore, TotalAfterFilters: resp.TotalAfterFilters}, nil
}

// applyContextBoostToHits scores each hit's node tags/summary against
// the caller's declared topics via the working-context similarity
// boost, re-sorting via context.ApplyBoost.
func applyContextBoostToHits(hits []SearchHit, args SearchArgs, now time.Time) []SearchHit {
	sims := make(map[string]float64, len(hits))
	query := memctx.WorkingContext{ProjectName: args.ProjectContext, Topics: args.QueryTopics, CapturedAt: now}
	for _, h := range hits {
		stored := memctx.WorkingContext{ProjectName: args.ProjectContext, Topics: h.Node.Tags, CapturedAt: now}
		sims[h.Node.ID] = memctx.Similarity(stored, query)
	}
	boosted := make([]memctx.Boosted, 0, len(hits))
	for _, h := range hits {
		boosted = append(boosted, memctx.Boosted{ID: h.Node.ID, Score: h.Score})
	}
	boosted = memctx.ApplyBoost(boosted, sims)

	byID := make(map[string]*types.KnowledgeNode, len(hits))
	for _, h := range hits {
		byID[h.Node.ID] = h.Node
	}
	out := make([]SearchHit, 0, len(boosted))
	for _, b := range boosted {
		out = append(out, SearchHit{Node: byID[b.ID], Score: b.Score})
	}
	return out
}

// --- C2: review ----------------------------------------------------------

func (s *Server) handleReview(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[ReviewArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	card := engine.Card{Stability: n.Stability, Difficulty: n.Difficulty, State: n.State, LastReview: n.LastReview, Reps: n.Reps, Lapses: n.Lapses}
	outcome := engine.Review(card, engine.Grade(args.Grade), now, 0)

	state, stability, difficulty, lastReview, nextReview, reps, lapses :=
		outcome.State, outcome.Stability, outcome.Difficulty, outcome.LastReview, outcome.NextReview, n.Reps+1, n.Lapses
	if outcome.IsLapse {
		lapses++
	}
	if err := s.store.UpdateNodeFields(ctx, args.ID, store.NodeFields{
		Stability: &stability,
		Difficulty: &difficulty,
		State: &state,
		LastReview: &lastReview,
		NextReview: &nextReview,
		Reps: &reps,
		Lapses: &lapses,
	}); err != nil {
		return nil, err
	}
	return ReviewResult{
		ID: args.ID,
		NewStability: stability,
		NewDifficulty: difficulty,
		NextReview: nextReview.Format(time.RFC3339),
		IntervalDays: nextReview.Sub(lastReview).Hours() / 24,
	}, nil
}

// --- C1/C3: stats, consolidate -------------------------------------------

func (s *Server) handleStats(ctx context.Context, argsJSON []byte) (interface{}, error) {
	size, err := s.store.GetDatabaseSize(ctx)
	if err != nil {
		return nil, err
	}
	health, err := s.store.CheckHealth(ctx)
	if err != nil {
		return nil, err
	}
	return StatsResult{DatabaseBytes: size.Bytes, DatabaseMB: size.MB, Warnings: health.Warnings}, nil
}

func (s *Server) handleConsolidate(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[ConsolidateArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	opts := engine.DefaultConsolidateOptions()
	opts.ApplyDecay = args.ApplyDecay
	opts.PruneThreshold = s.cfg.PruneThreshold
	opts.PromoteThreshold = s.cfg.PromoteThreshold
	if args.PruneThreshold > 0 {
		opts.PruneThreshold = args.PruneThreshold
	}
	if args.PromoteThreshold > 0 {
		opts.PromoteThreshold = args.PromoteThreshold
	}
	if args.MaxProcess > 0 {
		opts.MaxProcess = args.MaxProcess
	}
	report, err := s.consolidator.Consolidate(ctx, opts)
	if err != nil {
		return nil, err
	}
	return ConsolidateResult{
		Processed: report.Processed,
		Promoted: report.Promoted,
		Pruned: report.Pruned,
		DecayApplied: report.DecayApplied,
		EmbeddingsMissing: report.EmbeddingsMissing,
		DurationMS: report.DurationMS,
	}, nil
}

// --- C9: context ----------------------------------------------------------

func (s *Server) handleContext(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[ContextArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	query := memctx.WorkingContext{
		ProjectType: args.ProjectType,
		Frameworks: args.Frameworks,
		ProjectName: args.ProjectName,
		Git: memctx.GitState{Branch: args.GitBranch},
		ActiveFile: memctx.ActiveFile{Path: args.ActiveFile, Module: args.ActiveModule},
		RecentFiles: args.RecentFiles,
		CapturedAt: s.now(),
	}

	s.mu.Lock()
	stored := s.lastContext
	s.lastContext = query
	s.mu.Unlock()

	var result ContextResult
	if len(args.ResultIDs) > 0 {
		sim := memctx.Similarity(stored, query)
		sims := make(map[string]float64, len(args.ResultIDs))
		boosted := make([]memctx.Boosted, 0, len(args.ResultIDs))
		for i, id := range args.ResultIDs {
			var score float64
			if i < len(args.ResultScores) {
				score = args.ResultScores[i]
			}
			sims[id] = sim
			boosted = append(boosted, memctx.Boosted{ID: id, Score: score})
		}
		boosted = memctx.ApplyBoost(boosted, sims)
		for _, b := range boosted {
			result.Boosted = append(result.Boosted, ContextBoostedResult{ID: b.ID, Score: b.Score})
		}
	}
	return result, nil
}

// --- C6: get_memory_state, list_by_state, state_stats --------------------

func (s *Server) handleGetMemoryState(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[GetMemoryStateArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	state := lifecycle.StateFromRetention(n.RetentionStrength)
	hoursSince := s.now().Sub(n.LastAccessedAt).Hours()
	return GetMemoryStateResult{
		ID: args.ID,
		State: string(state),
		AccessibilityScore: lifecycle.AccessibilityScore(state, hoursSince, n.AccessCount),
		RetentionStrength: n.RetentionStrength,
	}, nil
}

func (s *Server) nodesWithState(ctx context.Context) (map[types.LifecycleState][]*types.KnowledgeNode, error) {
	nodes, err := s.store.ListNodesByLastAccess(ctx, 1<<20)
	if err != nil {
		return nil, err
	}
	out := make(map[types.LifecycleState][]*types.KnowledgeNode)
	for _, n := range nodes {
		state := lifecycle.StateFromRetention(n.RetentionStrength)
		out[state] = append(out[state], n)
	}
	return out, nil
}

func (s *Server) handleListByState(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[ListByStateArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	byState, err := s.nodesWithState(ctx)
	if err != nil {
		return nil, err
	}
	nodes := byState[types.LifecycleState(args.State)]
	if args.Limit > 0 && len(nodes) > args.Limit {
		nodes = nodes[:args.Limit]
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ListByStateResult{IDs: ids, Total: len(byState[types.LifecycleState(args.State)])}, nil
}

func (s *Server) handleStateStats(ctx context.Context, argsJSON []byte) (interface{}, error) {
	byState, err := s.nodesWithState(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(byState))
	for state, nodes := range byState {
		counts[string(state)] = len(nodes)
	}
	return StateStatsResult{Counts: counts}, nil
}

// --- C7: trigger_importance -----------------------------------------------

func (s *Server) handleTriggerImportance(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[TriggerImportanceArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNode(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	retentionBefore, stabilityBefore := n.RetrievalStrength, n.StabilityFactor
	newRetention, newStability, ok := synaptic.ApplyTrigger(retentionBefore, stabilityBefore, synaptic.TriggerEventType(args.EventType))
	if !ok {
		return TriggerImportanceResult{ID: args.ID, Applied: false, RetentionBefore: retentionBefore, RetentionAfter: retentionBefore, StabilityBefore: stabilityBefore, StabilityAfter: stabilityBefore}, nil
	}
	if err := s.store.UpdateNodeFields(ctx, args.ID, store.NodeFields{
		RetrievalStrength: &newRetention,
		StabilityFactor: &newStability,
	}); err != nil {
		return nil, err
	}
	return TriggerImportanceResult{
		ID: args.ID, Applied: true,
		RetentionBefore: retentionBefore, RetentionAfter: newRetention,
		StabilityBefore: stabilityBefore, StabilityAfter: newStability,
	}, nil
}

// --- C12: find_tagged, tag_stats, promote_memory, demote_memory, request_feedback

func (s *Server) handleFindTagged(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[FindTaggedArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	tagged, err := s.feedback.FindTagged(ctx, args.MinStrength, args.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]TaggedNodeResult, 0, len(tagged))
	for _, t := range tagged {
		out = append(out, TaggedNodeResult{ID: t.Node.ID, TagStrength: t.TagStrength})
	}
	return FindTaggedResult{Nodes: out}, nil
}

func (s *Server) handleTagStats(ctx context.Context, argsJSON []byte) (interface{}, error) {
	stats, err := s.feedback.TagStats(ctx)
	if err != nil {
		return nil, err
	}
	return TagStatsResult{Count: stats.Count, Distribution: stats.Distribution}, nil
}

func (s *Server) handlePromoteMemory(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[PromoteMemoryArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	res, err := s.feedback.PromoteMemory(ctx, args.ID, args.Reason)
	if err != nil {
		return nil, err
	}
	s.notify("memory_promoted", res.NodeID)
	return promoteDemoteResult(res), nil
}

func (s *Server) handleDemoteMemory(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[DemoteMemoryArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	res, err := s.feedback.DemoteMemory(ctx, args.ID, args.Reason)
	if err != nil {
		return nil, err
	}
	s.notify("memory_demoted", res.NodeID)
	return promoteDemoteResult(res), nil
}

func promoteDemoteResult(res engine.PromoteDemoteResult) PromoteDemoteResult {
	return PromoteDemoteResult{
		ID: res.NodeID,
		RetentionBefore: res.Before.RetrievalStrength,
		RetentionAfter: res.After.RetrievalStrength,
		StabilityBefore: res.Before.StabilityFactor,
		StabilityAfter: res.After.StabilityFactor,
		Reason: res.Reason,
	}
}

func (s *Server) handleRequestFeedback(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[RequestFeedbackArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	res, err := s.feedback.RequestFeedback(ctx, args.ID)
	if err != nil {
		return nil, err
	}
	opts := make([]FeedbackChoice, 0, len(res.Options))
	for _, o := range res.Options {
		opts = append(opts, FeedbackChoice{Key: o.Key, Description: o.Description})
	}
	return RequestFeedbackResult{ID: res.NodeID, Preview: res.Preview, Options: opts}, nil
}

// --- C11: intention --------------------------------------------------------

var allIntentionStatuses = []types.IntentionStatus{
	types.IntentionActive, types.IntentionTriggered, types.IntentionFulfilled,
	types.IntentionCancelled, types.IntentionExpired, types.IntentionSnoozed,
}

func (s *Server) handleIntention(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[IntentionArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	now := s.now()

	switch args.Action {
	case "create":
		parsed, ok := prospective.ParseTrigger(args.Text, now)
		if !ok {
			return nil, fmt.Errorf("could not parse an actionable intention from text")
		}
		in := &types.Intention{
			ID: engine.GenerateMemoryID("intention", ""),
			Content: parsed.Content,
			Trigger: parsed.Trigger,
			Priority: prospective.ParsePriority(args.Text),
			Status: types.IntentionActive,
			CreatedAt: now,
			Source: types.IntentionSourceNaturalLanguage,
		}
		if _, err := s.store.InsertIntention(ctx, in); err != nil {
			return nil, err
		}
		return IntentionResult{ID: in.ID, Status: string(in.Status), Priority: string(in.Priority), Content: in.Content}, nil

	case "fire":
		in, err := s.store.GetIntention(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		fired := prospective.Fire(in, prospective.Context{
			Timestamp: now, Project: args.Project, Files: args.Files, Topics: args.Topics, Mode: args.Mode, Events: args.Events,
		})
		if err := s.store.UpdateIntention(ctx, in); err != nil {
			return nil, err
		}
		return IntentionResult{ID: in.ID, Status: string(in.Status), Fired: fired}, nil

	case "snooze":
		in, err := s.store.GetIntention(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		minutes := args.Minutes
		if minutes <= 0 {
			minutes = 30
		}
		prospective.Snooze(in, minutes, now)
		if err := s.store.UpdateIntention(ctx, in); err != nil {
			return nil, err
		}
		return IntentionResult{ID: in.ID, Status: string(in.Status)}, nil

	case "fulfill":
		in, err := s.store.GetIntention(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		prospective.Fulfill(in, now)
		if err := s.store.UpdateIntention(ctx, in); err != nil {
			return nil, err
		}
		return IntentionResult{ID: in.ID, Status: string(in.Status)}, nil

	case "cancel":
		in, err := s.store.GetIntention(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		prospective.Cancel(in)
		if err := s.store.UpdateIntention(ctx, in); err != nil {
			return nil, err
		}
		return IntentionResult{ID: in.ID, Status: string(in.Status)}, nil

	case "escalate":
		in, err := s.store.GetIntention(ctx, args.ID)
		if err != nil {
			return nil, err
		}
		escalated := prospective.Escalate(in, now)
		if err := s.store.UpdateIntention(ctx, in); err != nil {
			return nil, err
		}
		return IntentionResult{ID: in.ID, Status: string(in.Status), Priority: string(in.Priority), Escalated: escalated}, nil

	case "list", "":
		statuses := allIntentionStatuses
		if args.Status != "" {
			statuses = []types.IntentionStatus{types.IntentionStatus(args.Status)}
		}
		var ids []string
		for _, st := range statuses {
			in, err := s.store.ListIntentions(ctx, st)
			if err != nil {
				return nil, err
			}
			for _, i := range in {
				ids = append(ids, i.ID)
			}
		}
		return IntentionResult{IDs: ids}, nil

	default:
		return nil, fmt.Errorf("unknown intention action: %s", args.Action)
	}
}

// --- C10: codebase ----------------------------------------------------------

func (s *Server) handleCodebase(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[CodebaseArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	if args.Query != "" {
		s.predictor.RecordQuery(args.Query, args.Tags, args.AccessedIDs, args.Satisfaction)
	}
	for _, id := range args.AccessedIDs {
		s.predictor.RecordMemoryAccess(id, args.Tags)
	}
	preds := s.predictor.Predict(10)
	out := make([]PredictionResult, 0, len(preds))
	for _, p := range preds {
		out = append(out, PredictionResult{ID: p.ID, Confidence: p.Confidence})
	}
	return CodebaseResult{Predictions: out, Novelty: s.predictor.Novelty(args.Tags)}, nil
}

// --- shared helpers ----------------------------------------------------------

func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}

func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{JSONRPC: "2.0", Result: result, ID: id})
}

func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{JSONRPC: "2.0", Error: &JSONRPCError{Code: code, Message: message, Data: data}, ID: id})
}

// indexNode records a freshly created node's barcode in the in-memory
// hippocampal index so later related_memories calls can skip a store
// round-trip for its edges. Best-effort: the index is a bounded cache,
// not the source of truth.
func (s *Server) indexNode(id, content string) {
	now := s.now()
	s.index.Upsert(&types.MemoryIndex{
		Barcode: hippocampus.GenerateBarcode(id, content, now.UnixMilli()),
		Temporal: types.TemporalMeta{CreatedAt: now, LastAccessed: now},
	})
}

// notify writes a best-effort cross-process event file so other local
// tooling (a dashboard, a log shipper) can observe store mutations
// without polling. Failures are logged, never surfaced to the caller.
func (s *Server) notify(eventType, nodeID string) {
	if s.notifier == nil || nodeID == "" {
		return
	}
	if err := s.notifier.Notify(eventType, nodeID); err != nil {
		log.Printf("vestige-mcp: event notify failed: %v", err)
	}
}

// --- C13: related_memories -----------------------------------------------

func (s *Server) handleRelatedMemories(ctx context.Context, argsJSON []byte) (interface{}, error) {
	args, err := decodeArgs[RelatedMemoriesArgs](argsJSON)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetNode(ctx, args.ID); err != nil {
		return nil, fmt.Errorf("related_memories: %w", err)
	}

	neighbors := func(id string) []types.IndexLink {
		if cached := s.index.Get(id); cached != nil && len(cached.Links) > 0 {
			return cached.Links
		}
		edges, err := s.store.GetEdges(ctx, id)
		if err != nil {
			return nil
		}
		links := make([]types.IndexLink, 0, len(edges))
		for _, e := range edges {
			links = append(links, types.IndexLink{TargetID: e.ToID, Strength: e.Weight, LinkType: e.Type})
			s.index.AddLink(id, e.ToID, e.Weight, e.Type)
		}
		return links
	}

	results := hippocampus.SpreadActivation(args.ID, neighbors, args.MaxHops)
	related := make([]RelatedMemory, 0, len(results))
	for _, r := range results {
		related = append(related, RelatedMemory{
			ID: r.ID,
			Activation: r.Activation,
			Distance: r.Distance,
			DominantLinkType: string(r.DominantLinkType),
			Path: r.Path,
		})
	}
	return RelatedMemoriesResult{Related: related}, nil
}
