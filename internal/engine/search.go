package engine

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	// rrfK is the Reciprocal Rank Fusion constant.
	rrfK = 60.0

	// defaultKeywordWeight and defaultVectorWeight are the fusion weights
	// when the caller does not override them.
	defaultKeywordWeight = 0.5
	defaultVectorWeight = 0.5

	// keywordMultiplier scales limit into the keyword channel's k.
	keywordMultiplier = 3

	temporalHalfLifeDays = 14.0
)

// Embedder generates a dense vector for arbitrary text, the query-side
// half of the hybrid pipeline. Implementations live outside
// this package; a nil Embedder disables the vector channel.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchRequest is the caller-facing input to Search.
type SearchRequest struct {
	Query string
	Limit int
	Offset int
	Filters store.SearchFilters
	KeywordWeight float64
	VectorWeight float64
}

// SearchResult is one fused, filtered hit.
type SearchResult struct {
	Node *types.KnowledgeNode
	Score float64
}

// SearchResponse is Search's full return value, including pagination
// metadata.
type SearchResponse struct {
	Results []SearchResult
	HasMore bool
	TotalAfterFilters int
}

// SearchEngine runs the hybrid keyword+vector pipeline against a Store.
type SearchEngine struct {
	store store.Store
	embedder Embedder
	now func() time.Time
}

// NewSearchEngine returns a SearchEngine. embedder may be nil to disable
// the vector channel.
func NewSearchEngine(s store.Store, embedder Embedder, now func() time.Time) *SearchEngine {
	if now == nil {
		now = time.Now
	}
	return &SearchEngine{store: s, embedder: embedder, now: now}
}

// Search runs the full pipeline: keyword candidates, vector candidates,
// RRF fusion, post-fusion filters, pagination, and best-effort
// update_node_access on every returned id.
func (e *SearchEngine) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}
	wk, wv := req.KeywordWeight, req.VectorWeight
	if wk == 0 && wv == 0 {
		wk, wv = defaultKeywordWeight, defaultVectorWeight
	}

	k := req.Limit * keywordMultiplier
	if k < req.Limit {
		k = req.Limit
	}

	keywordOpts := store.SearchOptions{Limit: k, Filters: req.Filters}
	keywordHits, _, err := e.store.SearchNodes(ctx, req.Query, keywordOpts)
	if err != nil {
		keywordHits = nil
	}
	keywordRank := rankOf(keywordHits)

	var vectorRank map[string]int
	if e.embedder != nil {
		if vec, err := e.embedder.Embed(ctx, req.Query); err == nil {
			vectorRank = rankOf(e.vectorCandidates(ctx, vec, k))
		}
	}

	fused := fuse(keywordRank, vectorRank, wk, wv)

	nodes := make(map[string]*types.KnowledgeNode, len(fused))
	for id := range fused {
		n, err := e.store.GetNode(ctx, id)
		if err != nil || n == nil {
			continue
		}
		nodes[id] = n
	}

	results := make([]SearchResult, 0, len(fused))
	for id, score := range fused {
		n, ok := nodes[id]
		if !ok {
			continue
		}
		if !passesFilters(n, req.Filters, score) {
			continue
		}
		results = append(results, SearchResult{Node: n, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Node.RetentionStrength != results[j].Node.RetentionStrength {
			return results[i].Node.RetentionStrength > results[j].Node.RetentionStrength
		}
		return results[i].Node.LastAccessedAt.After(results[j].Node.LastAccessedAt)
	})

	total := len(results)
	start := req.Offset
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}
	page := results[start:end]

	for _, r := range page {
		_ = e.store.UpdateNodeAccess(ctx, r.Node.ID)
	}

	return SearchResponse{
		Results: page,
		HasMore: end < total,
		TotalAfterFilters: total,
	}, nil
}

func (e *SearchEngine) vectorCandidates(ctx context.Context, query []float32, k int) []store.ScoredNode {
	embeddings, err := e.store.AllEmbeddings(ctx)
	if err != nil {
		return nil
	}
	out := make([]store.ScoredNode, 0, len(embeddings))
	for _, emb := range embeddings {
		sim := types.CosineSimilarity(query, emb.Vector)
		out = append(out, store.ScoredNode{ID: emb.NodeID, Score: (sim + 1) / 2})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// rankOf converts a score-ordered list into a 0-based rank index, since
// RRF only uses rank, not the underlying score.
func rankOf(hits []store.ScoredNode) map[string]int {
	if len(hits) == 0 {
		return nil
	}
	out := make(map[string]int, len(hits))
	for i, h := range hits {
		out[h.ID] = i
	}
	return out
}

// fuse computes RRF scores over the union of both rank maps: an id absent from one list contributes 0 from
// that channel.
func fuse(keywordRank, vectorRank map[string]int, wk, wv float64) map[string]float64 {
	scores := make(map[string]float64, len(keywordRank)+len(vectorRank))
	for id, r := range keywordRank {
		scores[id] += wk / (rrfK + float64(r+1))
	}
	for id, r := range vectorRank {
		scores[id] += wv / (rrfK + float64(r+1))
	}
	return scores
}

func passesFilters(n *types.KnowledgeNode, f store.SearchFilters, score float64) bool {
	if score < f.MinScore {
		return false
	}
	if f.SourceType != "" && string(n.SourceType) != f.SourceType {
		return false
	}
	if f.SourcePlatform != "" && n.SourcePlatform != f.SourcePlatform {
		return false
	}
	if f.Tag != "" && !hasTagFold(n.Tags, f.Tag) {
		return false
	}
	if f.MinRetention > 0 && n.RetentionStrength < f.MinRetention {
		return false
	}
	if f.MaxRetention > 0 && f.MaxRetention < 1 && n.RetentionStrength > f.MaxRetention {
		return false
	}
	if !f.DateFrom.IsZero() && n.CreatedAt.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && n.CreatedAt.After(f.DateTo) {
		return false
	}
	return true
}

func hasTagFold(tags []string, want string) bool {
	want = strings.ToLower(want)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), want) {
			return true
		}
	}
	return false
}

// ContextMode holds the weighted-sum inputs for the context-ranked search
// variant exposed by the `context` tool.
type ContextMode struct {
	QueryTopics []string
	Project string
	Mood string // "positive", "negative", or "neutral"
}

// temporalProximity is the 14-day half-life exponential decay term of
// the context-mode weighted sum.
func temporalProximity(lastAccessed time.Time, now time.Time) float64 {
	hours := now.Sub(lastAccessed).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-math.Ln2 * hours / (temporalHalfLifeDays * 24))
}

// topicalOverlap computes the case-insensitive substring-symmetric
// overlap fraction between query topics and a node's tags.
func topicalOverlap(queryTopics, tags []string) float64 {
	if len(queryTopics) == 0 || len(tags) == 0 {
		return 0
	}
	matches := 0
	for _, qt := range queryTopics {
		qtl := strings.ToLower(qt)
		for _, tag := range tags {
			tl := strings.ToLower(tag)
			if strings.Contains(tl, qtl) || strings.Contains(qtl, tl) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(queryTopics))
}

// projectMatch returns 1.0 for a content hit, 0.8 for a tag-only hit, 0
// otherwise.
func projectMatch(project string, content string, tags []string) float64 {
	if project == "" {
		return 0
	}
	pl := strings.ToLower(project)
	if strings.Contains(strings.ToLower(content), pl) {
		return 1.0
	}
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), pl) {
			return 0.8
		}
	}
	return 0
}

// moodScore maps a query mood onto a node's sentiment_intensity:
// positive/negative read the intensity directly, neutral reads its
// complement.
func moodScore(mood string, sentimentIntensity float64) float64 {
	switch mood {
	case "positive", "negative":
		return sentimentIntensity
	case "neutral":
		return 1 - sentimentIntensity
	default:
		return 0
	}
}

// ApplyContextBoost rescales result scores by (1 + 0.3*similarity) and
// resorts, where similarity is the weighted sum over the four components
// in use.
func ApplyContextBoost(results []SearchResult, mode ContextMode, now time.Time) []SearchResult {
	hasProject := mode.Project != ""
	hasMood := mode.Mood != ""
	hasTopics := len(mode.QueryTopics) > 0

	// Weights are normalized to sum to 1 over only the components in use.
	wTemporal, wTopical, wProject, wMood := 0.25, 0.30, 0.25, 0.20
	total := wTemporal
	if hasTopics {
		total += wTopical
	}
	if hasProject {
		total += wProject
	}
	if hasMood {
		total += wMood
	}
	if total == 0 {
		total = 1
	}

	for i := range results {
		n := results[i].Node
		sim := wTemporal / total * temporalProximity(n.LastAccessedAt, now)
		if hasTopics {
			sim += wTopical / total * topicalOverlap(mode.QueryTopics, n.Tags)
		}
		if hasProject {
			sim += wProject / total * projectMatch(mode.Project, n.Content, n.Tags)
		}
		if hasMood {
			sim += wMood / total * moodScore(mode.Mood, n.SentimentIntensity)
		}
		results[i].Score = results[i].Score * (1 + 0.3*sim)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
