// Package store defines the durable-entity contract: knowledge nodes, graph edges, people, intentions and embeddings,
// plus the list/search option types shared by every backend.
package store

import "time"

// ListOptions provides pagination for List-style operations.
type ListOptions struct {
	Page int
	Limit int
	SortBy string
	SortOrder string
}

// Normalize applies defaults and bounds checks against a fixed
// whitelist, so callers never build SQL from unchecked client input.
func (o *ListOptions) Normalize() {
	allowed := map[string]bool{
		"created_at": true, "last_accessed_at": true, "retention_strength": true,
		"next_review": true, "id": true,
	}
	if !allowed[o.SortBy] {
		o.SortBy = "created_at"
	}
	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		o.SortOrder = "desc"
	}
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 20
	}
	if o.Limit > 200 {
		o.Limit = 200
	}
}

// Offset computes the SQL OFFSET for the current page.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// RecentOptions configures get_recent_nodes.
type RecentOptions struct {
	Limit int
	SourceType string
	Since time.Time
}

// SearchFilters is the post-fusion filter set applied by the search
// pipeline.
type SearchFilters struct {
	MinScore float64
	SourceType string
	SourcePlatform string
	Tag string
	MinRetention float64
	MaxRetention float64
	DateFrom time.Time
	DateTo time.Time
}

// SearchOptions configures search_nodes.
type SearchOptions struct {
	Limit int
	Offset int
	Filters SearchFilters
}

// Normalize applies defaults to SearchOptions.
func (o *SearchOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 10
	}
	if o.Limit > 200 {
		o.Limit = 200
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Filters.MaxRetention == 0 {
		o.Filters.MaxRetention = 1.0
	}
}

// ScoredNode pairs a node id with a raw relevance score in [0,1] from one
// retrieval channel (keyword or vector) before RRF fusion.
type ScoredNode struct {
	ID string
	Score float64
}

// DatabaseSize reports the store's on-disk footprint.
type DatabaseSize struct {
	Bytes int64
	MB float64
}

// HealthReport is the result of check_health: a list of
// human-readable warnings, empty when everything looks fine.
type HealthReport struct {
	Warnings []string
}
