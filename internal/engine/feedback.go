package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	promoteRetentionDelta = 0.2
	promoteStabilityScale = 1.5

	demoteRetentionDelta = 0.3
	demoteRetentionFloor = 0.1
	demoteStabilityScale = 0.5
	demoteStabilityFloor = 1.0

	findTaggedMinStability = 1.3
	tagStrengthStabilitySpan = 1.5

	previewTruncateLen = 100
)

// PromoteDemoteResult reports the before/after of a promote_memory or
// demote_memory call.
type PromoteDemoteResult struct {
	NodeID string
	Before types.KnowledgeNode
	After types.KnowledgeNode
	Reason string
}

// FeedbackTools bundles the promote/demote/feedback/find-tagged/stats
// operations of C12 against a Store.
type FeedbackTools struct {
	store store.Store
}

// NewFeedbackTools returns a FeedbackTools bound to s.
func NewFeedbackTools(s store.Store) *FeedbackTools {
	return &FeedbackTools{store: s}
}

// PromoteMemory implements promote_memory.
func (f *FeedbackTools) PromoteMemory(ctx context.Context, id, reason string) (PromoteDemoteResult, error) {
	n, err := f.store.GetNode(ctx, id)
	if err != nil {
		return PromoteDemoteResult{}, err
	}
	before := *n

	n.RetrievalStrength = math.Min(1, n.RetrievalStrength+promoteRetentionDelta)
	n.SyncRetentionStrength()
	n.StabilityFactor = math.Min(365, n.StabilityFactor*promoteStabilityScale)

	if err := f.writeBack(ctx, n); err != nil {
		return PromoteDemoteResult{}, err
	}
	return PromoteDemoteResult{NodeID: id, Before: before, After: *n, Reason: reason}, nil
}

// DemoteMemory implements demote_memory. Never deletes.
func (f *FeedbackTools) DemoteMemory(ctx context.Context, id, reason string) (PromoteDemoteResult, error) {
	n, err := f.store.GetNode(ctx, id)
	if err != nil {
		return PromoteDemoteResult{}, err
	}
	before := *n

	n.RetrievalStrength = math.Max(demoteRetentionFloor, n.RetrievalStrength-demoteRetentionDelta)
	n.SyncRetentionStrength()
	n.StabilityFactor = math.Max(demoteStabilityFloor, n.StabilityFactor*demoteStabilityScale)

	if err := f.writeBack(ctx, n); err != nil {
		return PromoteDemoteResult{}, err
	}
	return PromoteDemoteResult{NodeID: id, Before: before, After: *n, Reason: reason}, nil
}

func (f *FeedbackTools) writeBack(ctx context.Context, n *types.KnowledgeNode) error {
	retention := n.RetrievalStrength
	stability := n.StabilityFactor
	return f.store.UpdateNodeFields(ctx, n.ID, store.NodeFields{
		RetrievalStrength: &retention,
		StabilityFactor: &stability,
	})
}

// FeedbackOption is one of the three choices request_feedback offers.
type FeedbackOption struct {
	Key string
	Description string
}

// FeedbackRequest is the return value of RequestFeedback.
type FeedbackRequest struct {
	NodeID string
	Preview string
	Options []FeedbackOption
}

// RequestFeedback implements request_feedback: a content preview
// truncated to 100 chars with an ellipsis, plus three options.
func (f *FeedbackTools) RequestFeedback(ctx context.Context, id string) (FeedbackRequest, error) {
	n, err := f.store.GetNode(ctx, id)
	if err != nil {
		return FeedbackRequest{}, err
	}
	return FeedbackRequest{
		NodeID: id,
		Preview: truncate(n.Content, previewTruncateLen),
		Options: []FeedbackOption{
			{Key: "A", Description: "promote"},
			{Key: "B", Description: "demote"},
			{Key: "C", Description: "custom"},
		},
	}, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// TaggedNode is one result of FindTagged.
type TaggedNode struct {
	Node *types.KnowledgeNode
	TagStrength float64
}

// allTagged returns every node with stability_factor > 1.3 (the "tagged"
// predicate shared by find_tagged and tag_stats), sorted by stability
// desc then retention desc.
func (f *FeedbackTools) allTagged(ctx context.Context) ([]TaggedNode, error) {
	candidates, err := f.store.ListNodesByLastAccess(ctx, 1<<30)
	if err != nil {
		return nil, err
	}

	var out []TaggedNode
	for _, n := range candidates {
		if n.StabilityFactor > findTaggedMinStability {
			out = append(out, TaggedNode{
				Node: n,
				TagStrength: math.Min(1, (n.StabilityFactor-1)/tagStrengthStabilitySpan),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Node.StabilityFactor != out[j].Node.StabilityFactor {
			return out[i].Node.StabilityFactor > out[j].Node.StabilityFactor
		}
		return out[i].Node.RetentionStrength > out[j].Node.RetentionStrength
	})
	return out, nil
}

// FindTagged implements find_tagged: nodes with stability_factor > 1.3
// and retention_strength >= minStrength, sorted by stability desc then
// retention desc.
func (f *FeedbackTools) FindTagged(ctx context.Context, minStrength float64, limit int) ([]TaggedNode, error) {
	if minStrength <= 0 {
		minStrength = 0.5
	}
	if limit <= 0 {
		limit = 20
	}

	all, err := f.allTagged(ctx)
	if err != nil {
		return nil, err
	}

	var out []TaggedNode
	for _, t := range all {
		if t.Node.RetentionStrength >= minStrength {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TagStats is the result of tag_stats: count and distribution over
// tagged nodes.
type TagStats struct {
	Count int
	Distribution map[string]int // bucketed by tag_strength decile, "0.0-0.1".. "0.9-1.0"
}

// TagStats implements tag_stats.
func (f *FeedbackTools) TagStats(ctx context.Context) (TagStats, error) {
	tagged, err := f.allTagged(ctx)
	if err != nil {
		return TagStats{}, err
	}
	stats := TagStats{Count: len(tagged), Distribution: map[string]int{}}
	for _, t := range tagged {
		bucket := int(t.TagStrength * 10)
		if bucket > 9 {
			bucket = 9
		}
		key := fmt.Sprintf("%.1f-%.1f", float64(bucket)/10, float64(bucket+1)/10)
		stats.Distribution[key]++
	}
	return stats, nil
}
