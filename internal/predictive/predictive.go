// Package predictive implements predictive retrieval (C10): EMA-based
// interest tracking, query/access history, co-access pattern mining, and
// next-memory prediction, operating on a types.UserModel.
package predictive

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vestige-mem/vestige/pkg/types"
)

const (
	interestAlpha = 0.1
	dailyDecayFactor = 0.98
	interestDropFloor = 0.01
	coAccessConfidence = 0.6
	sessionRecencyConfidence = 0.9
	predictionFloor = 0.2
	sessionTimeout = 30 * time.Minute
	satisfactionDefault = 0.8
	accessInterestWeight = 0.5
	interestConfidenceWeight = 0.55
	temporalConfidenceWeight = 0.45
	topInterestCount = 5
)

// Tracker mutex-guards a types.UserModel so external tools can call it
// sequentially without racing the owning process.
type Tracker struct {
	mu sync.Mutex
	model *types.UserModel
	now func() time.Time
}

// NewTracker wraps model (or a fresh types.NewUserModel if nil) in a
// Tracker.
func NewTracker(model *types.UserModel, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	if model == nil {
		model = types.NewUserModel(now())
	}
	return &Tracker{model: model, now: now}
}

// Model returns the underlying UserModel for persistence by the caller.
func (tr *Tracker) Model() *types.UserModel {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.model
}

func normalizeTopic(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// bumpInterest applies one EMA tick to a topic's interest weight:
// `w <- w*(1-alpha) + new*alpha`, clamped to [0,1]. Caller must
// hold tr.mu.
func (tr *Tracker) bumpInterest(topic string, newWeight float64) {
	topic = normalizeTopic(topic)
	if topic == "" {
		return
	}
	w := tr.model.Interests[topic]
	w = w*(1-interestAlpha) + newWeight*interestAlpha
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	tr.model.Interests[topic] = w
}

// DecayDaily multiplies all interest weights by 0.98 and drops entries
// below 0.01. Call once per day boundary.
func (tr *Tracker) DecayDaily() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for topic, w := range tr.model.Interests {
		w *= dailyDecayFactor
		if w < interestDropFloor {
			delete(tr.model.Interests, topic)
			continue
		}
		tr.model.Interests[topic] = w
	}
}

// Interest is one topic's current weight.
type Interest struct {
	Topic string
	Weight float64
}

// Interests returns the live interest model sorted by weight descending.
func (tr *Tracker) Interests() []Interest {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.topInterests(0)
}

// topInterests returns the n highest-weighted interests, or all of them
// if n <= 0. Caller must hold tr.mu.
func (tr *Tracker) topInterests(n int) []Interest {
	out := make([]Interest, 0, len(tr.model.Interests))
	for topic, w := range tr.model.Interests {
		out = append(out, Interest{Topic: topic, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// touchSession resets the session if idle past sessionTimeout. Caller
// must hold tr.mu.
func (tr *Tracker) touchSession(now time.Time) {
	sess := &tr.model.Session
	if !sess.LastActivity.IsZero() && now.Sub(sess.LastActivity) >= sessionTimeout {
		sess.AccessedIDs = nil
		sess.Queries = nil
		sess.StartedAt = now
	}
	sess.LastActivity = now
}

// RecordQuery appends a query to history (bounded to types.MaxQueryHistory),
// ticks interest for each tag using satisfaction as the EMA input weight,
// appends the query text to the active session, and records co-access
// pairs among accessedIDs.
func (tr *Tracker) RecordQuery(query string, tags, accessedIDs []string, satisfaction float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.now()
	tr.touchSession(now)
	if satisfaction <= 0 {
		satisfaction = satisfactionDefault
	}

	rec := types.QueryRecord{Query: query, Tags: tags, AccessedIDs: accessedIDs, Satisfaction: satisfaction, Timestamp: now}
	tr.model.QueryHistory = append(tr.model.QueryHistory, rec)
	if len(tr.model.QueryHistory) > types.MaxQueryHistory {
		tr.model.QueryHistory = tr.model.QueryHistory[len(tr.model.QueryHistory)-types.MaxQueryHistory:]
	}

	for _, tag := range tags {
		tr.bumpInterest(tag, satisfaction)
	}
	tr.model.Session.Queries = append(tr.model.Session.Queries, query)

	if len(accessedIDs) >= 2 {
		tr.recordCoAccess(accessedIDs)
	}
}

// RecordMemoryAccess adds id to the session set, ticks interest for each
// tag at a fixed weight of 0.5, and updates temporal buckets.
func (tr *Tracker) RecordMemoryAccess(id string, tags []string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.now()
	tr.touchSession(now)
	tr.model.Session.AccessedIDs = append(tr.model.Session.AccessedIDs, id)
	for _, tag := range tags {
		tr.bumpInterest(tag, accessInterestWeight)
	}
	tr.model.Temporal.ByHour[now.Hour()]++
	tr.model.Temporal.ByDayOfWeek[int(now.Weekday())]++
	tr.model.Temporal.ByMonth[int(now.Month())-1]++
}

// recordCoAccess adds every pair in ids bidirectionally to the co-access
// graph, evicting the oldest target once a source exceeds
// types.MaxCoAccessTargets (FIFO). Caller must hold tr.mu.
func (tr *Tracker) recordCoAccess(ids []string) {
	for i, a := range ids {
		for j, b := range ids {
			if i == j {
				continue
			}
			tr.addCoAccess(a, b)
		}
	}
}

func (tr *Tracker) addCoAccess(from, to string) {
	targets := tr.model.CoAccessPatterns[from]
	for _, t := range targets {
		if t == to {
			return
		}
	}
	targets = append(targets, to)
	if len(targets) > types.MaxCoAccessTargets {
		targets = targets[len(targets)-types.MaxCoAccessTargets:]
	}
	tr.model.CoAccessPatterns[from] = targets
}

// Prediction is one candidate memory id with its merged confidence.
type Prediction struct {
	ID string
	Confidence float64
}

// Predict merges candidates from four sources — interests, temporal
// access patterns, the current session, and co-access of the most
// recently accessed memory — taking the max confidence per id,
// filtering below 0.2, sorting descending, and truncating to limit.
// Co-access predictions carry fixed confidence 0.6; already-touched
// session ids carry 0.9 so they resurface first; interest and temporal
// candidates are scaled by how strong the matching interest or time
// bucket is.
func (tr *Tracker) Predict(limit int) []Prediction {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.now()
	tr.touchSession(now)

	merged := make(map[string]float64)

	for id, conf := range tr.interestCandidates() {
		if conf > merged[id] {
			merged[id] = conf
		}
	}

	for id, conf := range tr.temporalCandidates(now) {
		if conf > merged[id] {
			merged[id] = conf
		}
	}

	if last := tr.lastSessionID(); last != "" {
		for _, candidate := range tr.model.CoAccessPatterns[last] {
			if coAccessConfidence > merged[candidate] {
				merged[candidate] = coAccessConfidence
			}
		}
	}

	for _, id := range tr.model.Session.AccessedIDs {
		if sessionRecencyConfidence > merged[id] {
			merged[id] = sessionRecencyConfidence
		}
	}

	out := make([]Prediction, 0, len(merged))
	for id, conf := range merged {
		if conf < predictionFloor {
			continue
		}
		out = append(out, Prediction{ID: id, Confidence: conf})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// interestCandidates maps top interest topics back to memory ids via
// query history: a record tagged with a high-interest topic lends its
// accessed ids a confidence proportional to that topic's weight.
// Caller must hold tr.mu.
func (tr *Tracker) interestCandidates() map[string]float64 {
	out := make(map[string]float64)
	top := tr.topInterests(topInterestCount)
	if len(top) == 0 {
		return out
	}
	weights := make(map[string]float64, len(top))
	for _, it := range top {
		weights[it.Topic] = it.Weight
	}
	for _, rec := range tr.model.QueryHistory {
		var best float64
		for _, tag := range rec.Tags {
			if w, ok := weights[normalizeTopic(tag)]; ok && w > best {
				best = w
			}
		}
		if best <= 0 {
			continue
		}
		conf := best * interestConfidenceWeight
		for _, id := range rec.AccessedIDs {
			if conf > out[id] {
				out[id] = conf
			}
		}
	}
	return out
}

// temporalCandidates maps query-history records back to memory ids
// when their timestamp falls in the current hour, day-of-week, or
// month bucket, confidence scaled by how dominant that bucket is
// relative to the user's other access-time buckets. Caller must hold
// tr.mu.
func (tr *Tracker) temporalCandidates(now time.Time) map[string]float64 {
	out := make(map[string]float64)
	hourStrength := bucketStrength(tr.model.Temporal.ByHour[:], now.Hour())
	dowStrength := bucketStrength(tr.model.Temporal.ByDayOfWeek[:], int(now.Weekday()))
	monthStrength := bucketStrength(tr.model.Temporal.ByMonth[:], int(now.Month())-1)
	strength := math.Max(hourStrength, math.Max(dowStrength, monthStrength))
	if strength <= 0 {
		return out
	}

	conf := strength * temporalConfidenceWeight
	for _, rec := range tr.model.QueryHistory {
		if rec.Timestamp.Hour() != now.Hour() &&
			rec.Timestamp.Weekday() != now.Weekday() &&
			rec.Timestamp.Month() != now.Month() {
			continue
		}
		for _, id := range rec.AccessedIDs {
			if conf > out[id] {
				out[id] = conf
			}
		}
	}
	return out
}

// bucketStrength normalizes counts[idx] against the largest bucket in
// counts, or 0 if every bucket is empty.
func bucketStrength(counts []int, idx int) float64 {
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	if max == 0 {
		return 0
	}
	return float64(counts[idx]) / float64(max)
}

func (tr *Tracker) lastSessionID() string {
	ids := tr.model.Session.AccessedIDs
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}

// Novelty computes `1 - mean(interest(t) for t in tags)`; an
// empty tag set is maximally novel (1.0).
func (tr *Tracker) Novelty(tags []string) float64 {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tags) == 0 {
		return 1.0
	}
	var sum float64
	for _, t := range tags {
		sum += tr.model.Interests[normalizeTopic(t)]
	}
	mean := sum / float64(len(tags))
	return 1 - mean
}
