package hippocampus

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vestige-mem/vestige/pkg/types"
)

// DefaultCapacity bounds the number of entries an Index holds in memory
// before it starts evicting the least-recently-used one.
const DefaultCapacity = 10000

// Index is the in-memory hippocampal index: a single-writer-guarded,
// capacity-bounded cache of barcoded, compressed memory summaries with
// typed association links. It is snapshotted at search time rather than
// held locked across a whole query.
type Index struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *types.MemoryIndex]
}

// NewIndex returns an empty Index bounded to capacity entries. A
// non-positive capacity falls back to DefaultCapacity.
func NewIndex(capacity int) *Index {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, *types.MemoryIndex](capacity)
	if err != nil {
		// Only returned by lru.New for a non-positive size, which is
		// already guarded against above.
		panic(err)
	}
	return &Index{entries: cache}
}

// Upsert inserts or replaces the index entry for id.
func (ix *Index) Upsert(entry *types.MemoryIndex) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries.Add(entry.Barcode.ID, entry)
}

// Get returns the index entry for id, or nil if absent.
func (ix *Index) Get(id string) *types.MemoryIndex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	v, ok := ix.entries.Get(id)
	if !ok {
		return nil
	}
	return v
}

// Delete removes the index entry for id.
func (ix *Index) Delete(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries.Remove(id)
}

// Len reports the number of entries currently cached.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.entries.Len()
}

// snapshot returns a shallow copy of the current entry map, taken under
// lock, so readers can iterate without holding the write lock.
func (ix *Index) snapshot() map[string]*types.MemoryIndex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make(map[string]*types.MemoryIndex, ix.entries.Len())
	for _, k := range ix.entries.Keys() {
		if v, ok := ix.entries.Peek(k); ok {
			out[k] = v
		}
	}
	return out
}

// AddLink records a typed association from fromID to toID, creating the
// fromID entry's link list if needed, and recomputes its
// HasAssociations flag.
func (ix *Index) AddLink(fromID, toID string, strength float64, linkType types.EdgeType) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	entry, ok := ix.entries.Peek(fromID)
	if !ok {
		return
	}
	entry.Links = UpsertLink(entry.Links, toID, strength, linkType)
	entry.Flags.HasAssociations = HasAssociations(entry.Links)
}

// SearchFilters narrows a hippocampal index search.
type SearchFilters struct {
	CreatedFrom   time.Time
	CreatedTo     time.Time
	RequireFlags  types.IndexFlags
	MinSimilarity float64
}

// SearchResult pairs an entry id with its combined score.
type SearchResult struct {
	ID    string
	Score float64
}

// Search scores every entry against a query embedding and free text
// overlap, applies filters, and returns results sorted by combined score
// descending. textOverlap and querySummary may be nil/zero
// when the caller has no text or embedding input for that channel.
func (ix *Index) Search(querySummary []float32, textOverlap func(id string) float64, now time.Time, filters SearchFilters) []SearchResult {
	snapshot := ix.snapshot()
	minSim := filters.MinSimilarity
	if minSim <= 0 {
		minSim = 0.3
	}

	var out []SearchResult
	for id, entry := range snapshot {
		if !filters.CreatedFrom.IsZero() && entry.Temporal.CreatedAt.Before(filters.CreatedFrom) {
			continue
		}
		if !filters.CreatedTo.IsZero() && entry.Temporal.CreatedAt.After(filters.CreatedTo) {
			continue
		}
		if !flagsSatisfy(entry.Flags, filters.RequireFlags) {
			continue
		}

		semantic := 0.0
		if querySummary != nil {
			semantic = (types.CosineSimilarity(querySummary, entry.SemanticSummary) + 1) / 2
			if semantic < minSim {
				continue
			}
		}

		text := 0.0
		if textOverlap != nil {
			text = textOverlap(id)
		}

		hoursSince := now.Sub(entry.Temporal.LastAccessed).Hours()
		temporal := TemporalScore(hoursSince)
		importance := ImportanceScore(entry.Flags)

		out = append(out, SearchResult{ID: id, Score: CombinedScore(semantic, text, temporal, importance)})
	}

	sortResultsDesc(out)
	return out
}

func flagsSatisfy(have, want types.IndexFlags) bool {
	if want.Emotional && !have.Emotional {
		return false
	}
	if want.FrequentlyAccessed && !have.FrequentlyAccessed {
		return false
	}
	if want.RecentlyCreated && !have.RecentlyCreated {
		return false
	}
	if want.HasAssociations && !have.HasAssociations {
		return false
	}
	if want.UserStarred && !have.UserStarred {
		return false
	}
	if want.HighRetention && !have.HighRetention {
		return false
	}
	if want.Consolidated && !have.Consolidated {
		return false
	}
	return true
}

func sortResultsDesc(results []SearchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// Neighbors implements NeighborFunc against this Index, for use with
// SpreadActivation.
func (ix *Index) Neighbors(id string) []types.IndexLink {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	entry, ok := ix.entries.Peek(id)
	if !ok {
		return nil
	}
	return entry.Links
}
