package engine

import (
	"testing"
)

func TestFuse_RRFBothLists(t *testing.T) {
	keyword := map[string]int{"a": 0, "b": 1}
	vector := map[string]int{"a": 2, "c": 0}
	scores := fuse(keyword, vector, 0.5, 0.5)

	want := 0.5/(rrfK+1) + 0.5/(rrfK+3)
	if diff := scores["a"] - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected fused score %f for a, got %f", want, scores["a"])
	}
}

func TestFuse_AbsentListContributesZero(t *testing.T) {
	keyword := map[string]int{"a": 0}
	full := fuse(keyword, map[string]int{"a": 5}, 0.5, 0.5)
	zeroed := fuse(keyword, map[string]int{"a": 5}, 0.5, 0)
	onlyKeyword := fuse(keyword, nil, 1.0, 0)

	if full["a"] == zeroed["a"] {
		t.Errorf("expected weighting a vector list at 0 to change the score")
	}
	if zeroed["a"] != onlyKeyword["a"] {
		t.Errorf("expected w_v=0 to equal omitting the vector list entirely: %f vs %f", zeroed["a"], onlyKeyword["a"])
	}
}

func TestTopicalOverlap_SymmetricSubstring(t *testing.T) {
	overlap := topicalOverlap([]string{"Go"}, []string{"golang", "testing"})
	if overlap != 1.0 {
		t.Errorf("expected full overlap for substring match, got %f", overlap)
	}
	none := topicalOverlap([]string{"rust"}, []string{"golang"})
	if none != 0 {
		t.Errorf("expected zero overlap, got %f", none)
	}
}

func TestProjectMatch_ContentVsTagHit(t *testing.T) {
	if got := projectMatch("vestige", "the vestige engine handles memory", nil); got != 1.0 {
		t.Errorf("expected content hit score 1.0, got %f", got)
	}
	if got := projectMatch("vestige", "unrelated content", []string{"vestige"}); got != 0.8 {
		t.Errorf("expected tag hit score 0.8, got %f", got)
	}
	if got := projectMatch("vestige", "unrelated", []string{"other"}); got != 0 {
		t.Errorf("expected no match score 0, got %f", got)
	}
}

func TestMoodScore_NeutralIsComplement(t *testing.T) {
	if got := moodScore("positive", 0.8); got != 0.8 {
		t.Errorf("expected positive mood to read intensity directly, got %f", got)
	}
	if got := moodScore("neutral", 0.8); got != 0.2 {
		t.Errorf("expected neutral mood to read the complement, got %f", got)
	}
}
