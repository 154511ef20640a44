package synaptic

import (
	"sync"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

// Manager owns the live set of synaptic tags and the capture/cluster
// history derived from PRP events: a small mutex-guarded in-memory
// structure fronting the durable store.
type Manager struct {
	mu sync.Mutex
	window CaptureWindow
	tags map[string]types.SynapticTag // memoryID -> active tag
	history []types.CaptureRecord
	clusters []types.ImportanceCluster
	now func() time.Time
}

// NewManager constructs a Manager with the given capture window (use
// DefaultCaptureWindow() unless overridden by configuration).
func NewManager(window CaptureWindow, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{window: window, tags: make(map[string]types.SynapticTag), now: now}
}

// Lay replaces any existing non-captured tag for memoryID with a fresh
// one.
func (m *Manager) Lay(id, memoryID string) types.SynapticTag {
	m.mu.Lock()
	defer m.mu.Unlock()
	tag := NewTag(id, memoryID, m.now())
	m.tags[memoryID] = tag
	return tag
}

// Tag returns the active tag for a memory, if any.
func (m *Manager) Tag(memoryID string) (types.SynapticTag, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tags[memoryID]
	return t, ok
}

// Fire processes event against every currently-active, uncaptured tag,
// capturing those whose score clears the threshold. It
// returns the newly captured records and, when two or more memories were
// captured by the same event, the resulting ImportanceCluster.
func (m *Manager) Fire(event types.PRPEvent) ([]types.CaptureRecord, *types.ImportanceCluster) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !EventFires(event) {
		return nil, nil
	}

	var captured []types.CaptureRecord
	for memoryID, tag := range m.tags {
		if tag.Captured {
			continue
		}
		offsetHours := event.Timestamp.Sub(tag.CreatedAt).Hours()
		outcome := AttemptCapture(tag, event, offsetHours, m.window)
		if !outcome.Capture {
			continue
		}
		tag.Captured = true
		capturedAt := event.Timestamp
		tag.CapturedAt = &capturedAt
		tag.CaptureEventID = event.ID
		m.tags[memoryID] = tag

		m.history = append(m.history, outcome.Record)
		captured = append(captured, outcome.Record)
	}

	if len(captured) < minClusterCaptures {
		return captured, nil
	}

	clusterID := event.ID + ":cluster"
	cluster, ok := BuildImportanceCluster(clusterID, event, captured, m.now())
	if !ok {
		return captured, nil
	}
	m.clusters = AppendImportanceCluster(m.clusters, cluster)
	return captured, &cluster
}

// Expire drops tags that were never captured once their lifetime has
// elapsed (or their strength has decayed to zero), freeing the slot for a
// future Lay. Callers typically run this during consolidation sweeps.
func (m *Manager) Expire(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, tag := range m.tags {
		if tag.Captured {
			continue
		}
		hours := now.Sub(tag.CreatedAt).Hours()
		if hours >= tag.LifetimeHours || StrengthAt(tag, hours) <= 0 {
			delete(m.tags, id)
		}
	}
}

// History returns a copy of all capture records recorded so far.
func (m *Manager) History() []types.CaptureRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.CaptureRecord, len(m.history))
	copy(out, m.history)
	return out
}

// Clusters returns a copy of all importance clusters recorded so far.
func (m *Manager) Clusters() []types.ImportanceCluster {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ImportanceCluster, len(m.clusters))
	copy(out, m.clusters)
	return out
}
