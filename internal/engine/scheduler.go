package engine

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Scheduler runs a Consolidator sweep on a fixed interval, gated by a
// token-bucket rate limiter so a burst of newly-ingested nodes (or a
// caller resetting the ticker) cannot trigger back-to-back sweeps that
// saturate the single Store writer.
type Scheduler struct {
	consolidator *Consolidator
	opts         ConsolidateOptions
	interval     time.Duration
	limiter      *rate.Limiter
}

// NewScheduler wires c to run every interval, allowed to fire at most
// once per interval (burst of 1) even if the ticker is ever driven
// faster than that.
func NewScheduler(c *Consolidator, opts ConsolidateOptions, interval time.Duration) *Scheduler {
	return &Scheduler{
		consolidator: c,
		opts:         opts,
		interval:     interval,
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Run blocks, triggering a consolidation sweep every interval until ctx
// is canceled. Each sweep waits on the limiter first, so a slow or
// delayed tick never compounds into a burst of sweeps.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			report, err := s.consolidator.Consolidate(ctx, s.opts)
			if err != nil {
				log.Printf("vestige: consolidation sweep failed: %v", err)
				continue
			}
			log.Printf("vestige: consolidation sweep: processed=%d decayed=%d promoted=%d pruned=%d",
				report.Processed, report.DecayApplied, report.Promoted, report.Pruned)
		}
	}
}
