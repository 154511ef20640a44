package engine

import (
	"context"
	"testing"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

func TestScheduler_RunsConsolidationOnInterval(t *testing.T) {
	s := newFakeStore()
	s.put(&types.KnowledgeNode{
		ID:                "n1",
		RetentionStrength: 0.01,
		RetrievalStrength: 0.01,
		AccessCount:       0,
		CreatedAt:         time.Now().Add(-48 * time.Hour),
	})

	c := NewConsolidator(s, time.Now)
	sched := NewScheduler(c, ConsolidateOptions{}, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	n := s.nodes["n1"]
	if n == nil {
		t.Fatal("expected node n1 to still be present")
	}
	if n.RetrievalStrength != 0 {
		t.Errorf("expected a scheduled sweep to prune n1's retrieval strength to 0, got %v", n.RetrievalStrength)
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := newFakeStore()
	c := NewConsolidator(s, time.Now)
	sched := NewScheduler(c, ConsolidateOptions{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return promptly after context cancellation")
	}
}
