package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/vestige-mem/vestige/internal/store"
)

// SearchNodes implements store.Store search_nodes: the keyword channel,
// using tsvector/ts_rank and falling back to ILIKE when the tsvector query
// returns an error. ts_rank scores are capped at 1 so they stay in [0,1]
// like the sqlite backend's, though the two map raw ranks differently.
func (s *Store) SearchNodes(ctx context.Context, query string, opts store.SearchOptions) ([]store.ScoredNode, int, error) {
	opts.Normalize()
	if strings.TrimSpace(query) == "" {
		return nil, 0, nil
	}

	rows, err := s.searchTSV(ctx, query, opts)
	if err != nil {
		rows, err = s.searchLike(ctx, query, opts)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: search nodes: %w", err)
		}
	}
	total := len(rows)
	end := opts.Offset + opts.Limit
	if end > len(rows) {
		end = len(rows)
	}
	if opts.Offset > len(rows) {
		return nil, total, nil
	}
	return rows[opts.Offset:end], total, nil
}

func (s *Store) searchTSV(ctx context.Context, query string, opts store.SearchOptions) ([]store.ScoredNode, error) {
	where, args := buildNodeFilterSQL(opts.Filters, 2)
	sqlq := `
		SELECT id, ts_rank(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM knowledge_nodes
		WHERE content_tsv @@ plainto_tsquery('english', $1)` + where + `
		ORDER BY rank DESC
		LIMIT 500`
	queryArgs := append([]interface{}{query}, args...)

	var out []store.ScoredNode
	err := s.call(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, sqlq, queryArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var rank float64
			if err := rows.Scan(&id, &rank); err != nil {
				return err
			}
			score := rank
			if score > 1 {
				score = 1
			}
			if score < opts.Filters.MinScore {
				continue
			}
			out = append(out, store.ScoredNode{ID: id, Score: score})
		}
		return rows.Err()
	})
	return out, err
}

// searchLike falls back to ILIKE, ranked by retention_strength desc,
// access_count desc, scored with a linear relevance proxy.
func (s *Store) searchLike(ctx context.Context, query string, opts store.SearchOptions) ([]store.ScoredNode, error) {
	where, args := buildNodeFilterSQL(opts.Filters, 4)
	like := "%" + query + "%"
	sqlq := `
		SELECT id FROM knowledge_nodes
		WHERE (content ILIKE $1 OR summary ILIKE $2 OR tags::text ILIKE $3)` + where + `
		ORDER BY retention_strength DESC, access_count DESC
		LIMIT 500`
	queryArgs := append([]interface{}{like, like, like}, args...)

	var out []store.ScoredNode
	err := s.call(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, sqlq, queryArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rank := 0
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			score := 1 - 0.1*float64(rank)
			if score < 0 {
				score = 0
			}
			rank++
			if score < opts.Filters.MinScore {
				continue
			}
			out = append(out, store.ScoredNode{ID: id, Score: score})
		}
		return rows.Err()
	})
	return out, err
}

// buildNodeFilterSQL renders the post-fusion filter set as a
// "$N"-parameterized WHERE fragment starting at argOffset.
func buildNodeFilterSQL(f store.SearchFilters, argOffset int) (string, []interface{}) {
	var b strings.Builder
	var args []interface{}
	n := argOffset
	add := func(col string, val interface{}) {
		b.WriteString(fmt.Sprintf(" AND %s = $%d", col, n))
		args = append(args, val)
		n++
	}
	if f.SourceType != "" {
		add("source_type", f.SourceType)
	}
	if f.SourcePlatform != "" {
		add("source_platform", f.SourcePlatform)
	}
	if f.Tag != "" {
		b.WriteString(fmt.Sprintf(" AND tags::text LIKE $%d", n))
		args = append(args, "%"+f.Tag+"%")
		n++
	}
	if f.MinRetention > 0 {
		b.WriteString(fmt.Sprintf(" AND retention_strength >= $%d", n))
		args = append(args, f.MinRetention)
		n++
	}
	if f.MaxRetention > 0 && f.MaxRetention < 1 {
		b.WriteString(fmt.Sprintf(" AND retention_strength <= $%d", n))
		args = append(args, f.MaxRetention)
		n++
	}
	if !f.DateFrom.IsZero() {
		b.WriteString(fmt.Sprintf(" AND created_at >= $%d", n))
		args = append(args, f.DateFrom)
		n++
	}
	if !f.DateTo.IsZero() {
		b.WriteString(fmt.Sprintf(" AND created_at <= $%d", n))
		args = append(args, f.DateTo)
		n++
	}
	return b.String(), args
}
