// Package context implements working-context capture and the
// context-similarity retrieval boost (C9).
package context

import (
	"math"
	"strings"
	"time"
)

// GitState is the working tree state captured alongside a memory.
type GitState struct {
	Branch string
	Head string
	DirtyPaths []string
}

// ActiveFile describes the file the user was editing at capture time.
type ActiveFile struct {
	Path string
	Language string
	Directory string
	Module string
	RelatedFiles []string
	IsTest bool
}

// WorkingContext is the full ambient-context snapshot captured per
// memory.
type WorkingContext struct {
	ProjectType string
	Frameworks []string
	ProjectName string
	ProjectRoot string
	Git GitState
	ActiveFile ActiveFile
	RecentFiles []string
	ConfigFiles []string
	CapturedAt time.Time

	EncodingKeywords []string
	Topics []string
}

// similarityWeights are the fixed weights of the context-similarity
// formula; distinct from the search pipeline's own
// context-mode weights (C4).
const (
	weightProjectMatch = 0.25
	weightFrameworkJaccard = 0.20
	weightGitBranch = 0.15
	weightFileProximity = 0.25
	weightTemporal = 0.15

	proximitySameDir = 1.0
	proximitySameModule = 0.7
	proximityRelated = 0.5
	proximitySameLang = 0.2

	temporalHalfLifeHours = 24.0
	searchBoostFactor = 0.3
)

// Similarity computes the fixed-weight context-similarity score between
// the context a memory was captured under and the querying context.
func Similarity(stored, query WorkingContext) float64 {
	score := weightProjectMatch * projectMatchScore(stored, query)
	score += weightFrameworkJaccard * frameworkJaccard(stored.Frameworks, query.Frameworks)
	score += weightGitBranch * gitBranchScore(stored.Git, query.Git)
	score += weightFileProximity * fileProximityScore(stored.ActiveFile, query.ActiveFile)
	score += weightTemporal * temporalProximity(stored.CapturedAt, query.CapturedAt)
	return score
}

func projectMatchScore(stored, query WorkingContext) float64 {
	if stored.ProjectName != "" && strings.EqualFold(stored.ProjectName, query.ProjectName) {
		return 1
	}
	if stored.ProjectRoot != "" && strings.EqualFold(stored.ProjectRoot, query.ProjectRoot) {
		return 1
	}
	return 0
}

func frameworkJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	sa := toSet(a)
	sb := toSet(b)
	inter := 0
	for k := range sa {
		if sb[k] {
			inter++
		}
	}
	union := len(sa)
	for k := range sb {
		if !sa[k] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[strings.ToLower(strings.TrimSpace(it))] = true
	}
	return set
}

func gitBranchScore(a, b GitState) float64 {
	if a.Branch == "" || b.Branch == "" {
		return 0
	}
	if strings.EqualFold(a.Branch, b.Branch) {
		return 1
	}
	return 0
}

// fileProximityScore follows a fixed ladder: same directory
// 1.0, same module 0.7, related file 0.5, same language 0.2, else 0.
func fileProximityScore(stored, query ActiveFile) float64 {
	if stored.Path == "" || query.Path == "" {
		return 0
	}
	if stored.Directory != "" && stored.Directory == query.Directory {
		return proximitySameDir
	}
	if stored.Module != "" && stored.Module == query.Module {
		return proximitySameModule
	}
	for _, rel := range stored.RelatedFiles {
		if rel == query.Path {
			return proximityRelated
		}
	}
	for _, rel := range query.RelatedFiles {
		if rel == stored.Path {
			return proximityRelated
		}
	}
	if stored.Language != "" && stored.Language == query.Language {
		return proximitySameLang
	}
	return 0
}

func temporalProximity(stored, query time.Time) float64 {
	if stored.IsZero() || query.IsZero() {
		return 0
	}
	hours := math.Abs(query.Sub(stored).Hours())
	return math.Pow(0.5, hours/temporalHalfLifeHours)
}

// Boosted is a search-style result carrying a score that ApplyBoost can
// mutate in place. Callers supply their own result type via the Score
// field accessor pattern used by ApplyBoost below (kept index-parallel
// with []float64 rather than introducing an interface, mirroring the
// search package's plain-slice sort).
type Boosted struct {
	ID    string
	Score float64
}

// ApplyBoost rescales each result's score by `1 + 0.3*similarity` given
// that result's precomputed context similarity, and re-sorts descending
// by score.
func ApplyBoost(results []Boosted, similarity map[string]float64) []Boosted {
	out := make([]Boosted, len(results))
	copy(out, results)
	for i, r := range out {
		sim := similarity[r.ID]
		out[i].Score = r.Score * (1 + searchBoostFactor*sim)
	}
	sortByScoreDesc(out)
	return out
}

func sortByScoreDesc(results []Boosted) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}
