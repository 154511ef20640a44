package types

import "time"

// MaxQueryHistory bounds UserModel.QueryHistory.
const MaxQueryHistory = 500

// MaxCoAccessTargets bounds the per-source fan-out of CoAccessPatterns.
const MaxCoAccessTargets = 20

// QueryRecord is one entry in the predictive retrieval query history.
type QueryRecord struct {
	Query string `json:"query"`
	Tags []string `json:"tags"`
	AccessedIDs []string `json:"accessed_ids"`
	Satisfaction float64 `json:"satisfaction"`
	Timestamp time.Time `json:"timestamp"`
}

// TemporalPatterns buckets access counts by hour-of-day, day-of-week and
// month, used by C10 predictive retrieval.
type TemporalPatterns struct {
	ByHour [24]int `json:"by_hour"`
	ByDayOfWeek [7]int `json:"by_day_of_week"`
	ByMonth [12]int `json:"by_month"`
}

// SessionContext is the active predictive-retrieval session: the set of
// memories and queries seen since the session started or last reset.
type SessionContext struct {
	StartedAt time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	AccessedIDs []string `json:"accessed_ids"`
	Queries []string `json:"queries"`
}

// UserModel is the predictive-retrieval state for a single user/workspace.
type UserModel struct {
	Interests map[string]float64 `json:"interests"`
	QueryHistory []QueryRecord `json:"query_history"`
	Temporal TemporalPatterns `json:"temporal_patterns"`
	CoAccessPatterns map[string][]string `json:"co_access_patterns"`
	Session SessionContext `json:"session"`
}

// NewUserModel returns an empty, ready-to-use UserModel.
func NewUserModel(now time.Time) *UserModel {
	return &UserModel{
		Interests: make(map[string]float64),
		CoAccessPatterns: make(map[string][]string),
		Session: SessionContext{
			StartedAt: now,
			LastActivity: now,
		},
	}
}
