package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/vestige-mem/vestige/internal/store"
)

// SearchNodes implements store.Store search_nodes: the keyword channel of
// the hybrid pipeline. It runs an FTS5 MATCH query and
// normalizes bm25's negative-is-better convention to [0,1] via
// max(0, min(1, 1 + r/10)); on any FTS failure it falls back to a LIKE
// scan ranked by retention_strength/access_count with a linear relevance
// proxy, per the FTS contract.
func (s *Store) SearchNodes(ctx context.Context, query string, opts store.SearchOptions) ([]store.ScoredNode, int, error) {
	opts.Normalize()
	if strings.TrimSpace(query) == "" {
		return nil, 0, nil
	}

	rows, err := s.searchFTS(ctx, query, opts)
	if err != nil {
		rows, err = s.searchLike(ctx, query, opts)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: search nodes: %w", err)
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

func (s *Store) searchFTS(ctx context.Context, query string, opts store.SearchOptions) ([]store.ScoredNode, error) {
	where, args := buildNodeFilterSQL(opts.Filters, "n")
	sqlq := `
		SELECT n.id, bm25(nodes_fts) AS rank
		FROM nodes_fts
		JOIN knowledge_nodes n ON n.id = nodes_fts.id
		WHERE nodes_fts MATCH ?` + where + `
		ORDER BY rank ASC
		LIMIT 500`
	queryArgs := append([]interface{}{query}, args...)

	rows, err := s.db.QueryContext(ctx, sqlq, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ScoredNode
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		score := 1 + rank/10
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		if score < opts.Filters.MinScore {
			continue
		}
		out = append(out, store.ScoredNode{ID: id, Score: score})
	}
	return out, rows.Err()
}

// searchLike is the fallback path when FTS is unavailable:
// ranked by retention_strength desc, access_count desc, scored by a
// linear relevance proxy max(0, 1 - 0.1*rank).
func (s *Store) searchLike(ctx context.Context, query string, opts store.SearchOptions) ([]store.ScoredNode, error) {
	where, args := buildNodeFilterSQL(opts.Filters, "")
	like := "%" + query + "%"
	sqlq := `
		SELECT id FROM knowledge_nodes
		WHERE (content LIKE ? OR summary LIKE ? OR tags LIKE ?)` + where + `
		ORDER BY retention_strength DESC, access_count DESC
		LIMIT 500`
	queryArgs := append([]interface{}{like, like, like}, args...)

	rows, err := s.db.QueryContext(ctx, sqlq, queryArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ScoredNode
	rank := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
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
	return out, rows.Err()
}

// buildNodeFilterSQL renders the post-fusion filter set as a
// SQL WHERE fragment (leading " AND..."), applied ahead of fusion here
// for the keyword channel so results are already narrowed.
func buildNodeFilterSQL(f store.SearchFilters, alias string) (string, []interface{}) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}
	var b strings.Builder
	var args []interface{}
	if f.SourceType != "" {
		b.WriteString(" AND " + col("source_type") + " = ?")
		args = append(args, f.SourceType)
	}
	if f.SourcePlatform != "" {
		b.WriteString(" AND " + col("source_platform") + " = ?")
		args = append(args, f.SourcePlatform)
	}
	if f.Tag != "" {
		b.WriteString(" AND " + col("tags") + " LIKE ?")
		args = append(args, "%"+f.Tag+"%")
	}
	if f.MinRetention > 0 {
		b.WriteString(" AND " + col("retention_strength") + " >= ?")
		args = append(args, f.MinRetention)
	}
	if f.MaxRetention > 0 && f.MaxRetention < 1 {
		b.WriteString(" AND " + col("retention_strength") + " <= ?")
		args = append(args, f.MaxRetention)
	}
	if !f.DateFrom.IsZero() {
		b.WriteString(" AND " + col("created_at") + " >= ?")
		args = append(args, f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		b.WriteString(" AND " + col("created_at") + " <= ?")
		args = append(args, f.DateTo)
	}
	return b.String(), args
}
