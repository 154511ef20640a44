package predictive

import (
	"math"
	"testing"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

func TestBumpInterest_EMAFormula(t *testing.T) {
	now := time.Now()
	tr := NewTracker(nil, func() time.Time { return now })
	tr.bumpInterest("go", 1.0)
	if math.Abs(tr.model.Interests["go"]-0.1) > 1e-9 {
		t.Errorf("expected 0.1 after one EMA tick from zero, got %f", tr.model.Interests["go"])
	}
	tr.bumpInterest("go", 1.0)
	want := 0.1*0.9 + 1.0*0.1
	if math.Abs(tr.model.Interests["go"]-want) > 1e-9 {
		t.Errorf("expected %f after second tick, got %f", want, tr.model.Interests["go"])
	}
}

func TestDecayDaily_DropsBelowFloor(t *testing.T) {
	now := time.Now()
	tr := NewTracker(nil, func() time.Time { return now })
	tr.model.Interests["stale"] = 0.0101
	tr.DecayDaily()
	if _, ok := tr.model.Interests["stale"]; ok {
		t.Error("expected weight below floor after decay to be dropped")
	}
}

func TestRecordQuery_BoundedHistory(t *testing.T) {
	now := time.Now()
	tr := NewTracker(nil, func() time.Time { return now })
	for i := 0; i < types.MaxQueryHistory+10; i++ {
		tr.RecordQuery("q", nil, nil, 0.8)
	}
	if len(tr.model.QueryHistory) != types.MaxQueryHistory {
		t.Errorf("expected history capped at %d, got %d", types.MaxQueryHistory, len(tr.model.QueryHistory))
	}
}

func TestRecordQuery_CoAccessBidirectional(t *testing.T) {
	now := time.Now()
	tr := NewTracker(nil, func() time.Time { return now })
	tr.RecordQuery("q", nil, []string{"a", "b"}, 0.8)
	if len(tr.model.CoAccessPatterns["a"]) != 1 || tr.model.CoAccessPatterns["a"][0] != "b" {
		t.Errorf("expected a->b co-access, got %+v", tr.model.CoAccessPatterns["a"])
	}
	if len(tr.model.CoAccessPatterns["b"]) != 1 || tr.model.CoAccessPatterns["b"][0] != "a" {
		t.Errorf("expected b->a co-access, got %+v", tr.model.CoAccessPatterns["b"])
	}
}

func TestCoAccess_CapsAt20FIFO(t *testing.T) {
	now := time.Now()
	tr := NewTracker(nil, func() time.Time { return now })
	for i := 0; i < 25; i++ {
		tr.addCoAccess("src", string(rune('a'+i)))
	}
	if len(tr.model.CoAccessPatterns["src"]) != types.MaxCoAccessTargets {
		t.Fatalf("expected cap %d, got %d", types.MaxCoAccessTargets, len(tr.model.CoAccessPatterns["src"]))
	}
	if tr.model.CoAccessPatterns["src"][0] != "f" { // first 5 (a..e) evicted
		t.Errorf("expected FIFO eviction, oldest remaining should be 'f', got %s", tr.model.CoAccessPatterns["src"][0])
	}
}

func TestNovelty_EmptyTagsIsMaximal(t *testing.T) {
	tr := NewTracker(nil, nil)
	if n := tr.Novelty(nil); n != 1.0 {
		t.Errorf("expected novelty 1.0 for empty tags, got %f", n)
	}
}

func TestNovelty_KnownInterestReducesNovelty(t *testing.T) {
	tr := NewTracker(nil, nil)
	tr.model.Interests["go"] = 0.8
	if n := tr.Novelty([]string{"go"}); math.Abs(n-0.2) > 1e-9 {
		t.Errorf("expected novelty 0.2, got %f", n)
	}
}

func TestPredict_FiltersBelowFloorAndSorts(t *testing.T) {
	now := time.Now()
	tr := NewTracker(nil, func() time.Time { return now })
	tr.RecordQuery("q", nil, []string{"x", "y"}, 0.8)
	tr.RecordMemoryAccess("y", nil)

	preds := tr.Predict(10)
	for _, p := range preds {
		if p.Confidence < predictionFloor {
			t.Errorf("expected no prediction below floor, got %+v", p)
		}
	}
}

func TestSessionReset_AfterTimeout(t *testing.T) {
	now := time.Now()
	current := now
	tr := NewTracker(nil, func() time.Time { return current })
	tr.RecordMemoryAccess("a", nil)
	found := false
	for _, id := range tr.model.Session.AccessedIDs {
		if id == "a" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a in session")
	}
	current = now.Add(sessionTimeout + time.Minute)
	tr.RecordMemoryAccess("b", nil)
	for _, id := range tr.model.Session.AccessedIDs {
		if id == "a" {
			t.Error("expected session reset to drop stale id a")
		}
	}
}
