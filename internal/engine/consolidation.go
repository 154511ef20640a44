package engine

import (
	"context"
	"math"
	"time"

	"github.com/vestige-mem/vestige/internal/store"
)

const (
	// decayGraceHours is the idle period after which a node becomes
	// eligible for the decay multiplier.
	decayGraceHours = 24.0

	// defaultPruneThreshold and defaultPromoteThreshold gate the
	// prune/promote decisions in Consolidate.
	defaultPruneThreshold = 0.05
	defaultPromoteThreshold = 0.8
	defaultMaxProcess = 1000

	// pruneAccessCeiling and promoteAccessFloor are the access_count
	// guards alongside the retention thresholds.
	pruneAccessCeiling = 3
	promoteAccessFloor = 5

	// promoteStabilityGrowth and promoteStabilityCap bound the
	// stability_factor growth on promotion.
	promoteStabilityGrowth = 1.1
	promoteStabilityCap = 365.0
)

// ConsolidateOptions configures one sweep.
type ConsolidateOptions struct {
	ApplyDecay bool
	PruneThreshold float64
	PromoteThreshold float64
	MaxProcess int
}

// DefaultConsolidateOptions returns the standard sweep defaults.
func DefaultConsolidateOptions() ConsolidateOptions {
	return ConsolidateOptions{
		ApplyDecay: true,
		PruneThreshold: defaultPruneThreshold,
		PromoteThreshold: defaultPromoteThreshold,
		MaxProcess: defaultMaxProcess,
	}
}

// ConsolidateReport is the sweep's return value.
type ConsolidateReport struct {
	Processed int
	Promoted int
	Pruned int
	DecayApplied int
	EmbeddingsMissing int
	DurationMS int64
}

// Consolidator runs the decay/prune/promote sweep against a Store.
type Consolidator struct {
	store store.Store
	now func() time.Time
}

// NewConsolidator returns a Consolidator bound to s. now defaults to
// time.Now if nil (tests may override for determinism).
func NewConsolidator(s store.Store, now func() time.Time) *Consolidator {
	if now == nil {
		now = time.Now
	}
	return &Consolidator{store: s, now: now}
}

// decayMultiplier computes the retention multiplier for a node idle for
// the given number of days at the given stability factor, protected by
// sentiment intensity: a stability-scaled rate with a sentiment floor,
// instead of a flat exponential half-life.
func decayMultiplier(days, stabilityFactor, sentimentIntensity float64) float64 {
	stabilityPrime := 1 + (stabilityFactor-1)*0.1
	effectiveDailyRate := math.Pow(0.95, 1/stabilityPrime)
	raw := math.Pow(effectiveDailyRate, days)
	sentimentProtection := 1 - 0.3*sentimentIntensity
	return raw*sentimentProtection + (1 - sentimentProtection)
}

// Consolidate runs one sweep: select up to opts.MaxProcess
// nodes ordered by last_accessed_at asc, apply decay, then prune or
// promote based on the resulting retention_strength.
func (c *Consolidator) Consolidate(ctx context.Context, opts ConsolidateOptions) (ConsolidateReport, error) {
	start := c.now()
	if opts.PruneThreshold <= 0 {
		opts.PruneThreshold = defaultPruneThreshold
	}
	if opts.PromoteThreshold <= 0 {
		opts.PromoteThreshold = defaultPromoteThreshold
	}
	if opts.MaxProcess <= 0 {
		opts.MaxProcess = defaultMaxProcess
	}

	var report ConsolidateReport

	nodes, err := c.store.ListNodesByLastAccess(ctx, opts.MaxProcess)
	if err != nil {
		return report, err
	}

	for _, n := range nodes {
		if ctx.Err() != nil {
			break
		}
		report.Processed++

		hoursSince := c.now().Sub(n.LastAccessedAt).Hours()
		changed := false

		if opts.ApplyDecay && hoursSince > decayGraceHours {
			days := hoursSince / 24.0
			multiplier := decayMultiplier(days, n.StabilityFactor, n.SentimentIntensity)
			newRetention := math.Max(0, n.RetrievalStrength*multiplier)
			if newRetention != n.RetrievalStrength {
				n.RetrievalStrength = newRetention
				n.SyncRetentionStrength()
				changed = true
				report.DecayApplied++
			}
		}

		switch {
		case n.RetentionStrength < opts.PruneThreshold && n.AccessCount < pruneAccessCeiling:
			n.RetrievalStrength = 0
			n.SyncRetentionStrength()
			report.Pruned++
			changed = true
		case n.RetentionStrength >= opts.PromoteThreshold && n.AccessCount >= promoteAccessFloor:
			n.StabilityFactor = math.Min(promoteStabilityCap, n.StabilityFactor*promoteStabilityGrowth)
			report.Promoted++
			changed = true
		}

		if changed {
			retention := n.RetrievalStrength
			stabilityFactor := n.StabilityFactor
			_ = c.store.UpdateNodeFields(ctx, n.ID, store.NodeFields{
				RetrievalStrength: &retention,
				StabilityFactor: &stabilityFactor,
			})
		}
	}

	embeddings, err := c.store.AllEmbeddings(ctx)
	if err == nil {
		withEmbedding := make(map[string]bool, len(embeddings))
		for _, e := range embeddings {
			withEmbedding[e.NodeID] = true
		}
		for _, n := range nodes {
			if !withEmbedding[n.ID] {
				report.EmbeddingsMissing++
			}
		}
	}

	report.DurationMS = c.now().Sub(start).Milliseconds()
	return report, nil
}
