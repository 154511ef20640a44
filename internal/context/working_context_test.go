package context

import (
	"math"
	"testing"
	"time"
)

func TestSimilarity_IdenticalContextsScoreHigh(t *testing.T) {
	now := time.Now()
	ctx := WorkingContext{
		ProjectName: "vestige", Frameworks: []string{"go", "cobra"},
		Git:        GitState{Branch: "main"},
		ActiveFile: ActiveFile{Path: "a.go", Directory: "internal/engine", Language: "go"},
		CapturedAt: now,
	}
	s := Similarity(ctx, ctx)
	if s < 0.99 {
		t.Errorf("expected near-maximal similarity for identical contexts, got %f", s)
	}
}

func TestSimilarity_DisjointContextsScoreZero(t *testing.T) {
	now := time.Now()
	a := WorkingContext{ProjectName: "p1", Frameworks: []string{"go"}, Git: GitState{Branch: "main"}, CapturedAt: now}
	b := WorkingContext{ProjectName: "p2", Frameworks: []string{"rust"}, Git: GitState{Branch: "dev"}, CapturedAt: now.Add(-1000 * time.Hour)}
	s := Similarity(a, b)
	if s > 0.01 {
		t.Errorf("expected near-zero similarity for disjoint contexts, got %f", s)
	}
}

func TestFrameworkJaccard_PartialOverlap(t *testing.T) {
	got := frameworkJaccard([]string{"go", "cobra", "viper"}, []string{"go", "cobra"})
	want := 2.0 / 3.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected jaccard %f, got %f", want, got)
	}
}

func TestFileProximityScore_Ladder(t *testing.T) {
	sameDir := fileProximityScore(ActiveFile{Path: "a.go", Directory: "d"}, ActiveFile{Path: "b.go", Directory: "d"})
	if sameDir != proximitySameDir {
		t.Errorf("expected same-dir score %f, got %f", proximitySameDir, sameDir)
	}
	sameModule := fileProximityScore(ActiveFile{Path: "a.go", Directory: "d1", Module: "m"}, ActiveFile{Path: "b.go", Directory: "d2", Module: "m"})
	if sameModule != proximitySameModule {
		t.Errorf("expected same-module score %f, got %f", proximitySameModule, sameModule)
	}
	sameLang := fileProximityScore(ActiveFile{Path: "a.go", Directory: "d1", Language: "go"}, ActiveFile{Path: "b.py", Directory: "d2", Language: "go"})
	if sameLang != proximitySameLang {
		t.Errorf("expected same-language score %f, got %f", proximitySameLang, sameLang)
	}
}

func TestTemporalProximity_HalfLife(t *testing.T) {
	now := time.Now()
	p := temporalProximity(now, now.Add(24*time.Hour))
	if math.Abs(p-0.5) > 1e-9 {
		t.Errorf("expected 0.5 at exactly one half-life, got %f", p)
	}
}

func TestApplyBoost_RescoresAndSorts(t *testing.T) {
	results := []Boosted{{ID: "a", Score: 1.0}, {ID: "b", Score: 1.0}}
	similarity := map[string]float64{"a": 0, "b": 1.0}
	out := ApplyBoost(results, similarity)
	if out[0].ID != "b" {
		t.Fatalf("expected b (higher similarity boost) to sort first, got %s", out[0].ID)
	}
	if math.Abs(out[0].Score-1.3) > 1e-9 {
		t.Errorf("expected boosted score 1.3, got %f", out[0].Score)
	}
}
