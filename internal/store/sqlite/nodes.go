package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

// InsertNode implements store.Store: validates
// content, assigns an id/timestamps when absent, and writes the FTS
// mirror row atomically via the schema's AFTER INSERT trigger.
func (s *Store) InsertNode(ctx context.Context, n *types.KnowledgeNode) (string, error) {
	if n.Content == "" {
		return "", fmt.Errorf("sqlite: insert node: %w", store.ErrInvalidInput)
	}
	if n.ID == "" {
		n.ID = "node_" + uuid.NewString()
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.LastAccessedAt.IsZero() {
		n.LastAccessedAt = now
	}
	if n.Stability == 0 {
		n.Stability = 1.0
	}
	if n.Difficulty == 0 {
		n.Difficulty = 5.0
	}
	if n.State == "" {
		n.State = types.StateNew
	}
	if n.StorageStrength == 0 {
		n.StorageStrength = 1.0
	}
	if n.RetrievalStrength == 0 {
		n.RetrievalStrength = 1.0
	}
	if n.StabilityFactor == 0 {
		n.StabilityFactor = 1.0
	}
	n.SyncRetentionStrength()

	var gitBranch, gitCommit sql.NullString
	gitUncommitted := "[]"
	if n.Git != nil {
		gitBranch = sql.NullString{String: n.Git.Branch, Valid: n.Git.Branch != ""}
		gitCommit = sql.NullString{String: n.Git.Commit, Valid: n.Git.Commit != ""}
		gitUncommitted = marshalStrings(n.Git.UncommittedPaths)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_nodes (
			id, content, summary, created_at, updated_at, last_accessed_at,
			access_count, review_count, source_type, source_platform, source_id,
			source_url, source_chain, stability, difficulty, state, last_review,
			next_review, reps, lapses, storage_strength, retrieval_strength,
			retention_strength, stability_factor, sentiment_intensity, confidence,
			is_contradicted, contradiction_ids, tags, people, concepts, events,
			git_branch, git_commit, git_uncommitted
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.Content, nullableString(n.Summary), n.CreatedAt, n.UpdatedAt, n.LastAccessedAt,
		n.AccessCount, n.ReviewCount, string(n.SourceType), nullableString(n.SourcePlatform), nullableString(n.SourceID),
		nullableString(n.SourceURL), marshalStrings(n.SourceChain), n.Stability, n.Difficulty, string(n.State), n.LastReview,
		n.NextReview, n.Reps, n.Lapses, n.StorageStrength, n.RetrievalStrength,
		n.RetentionStrength, n.StabilityFactor, n.SentimentIntensity, n.Confidence,
		n.IsContradicted, marshalStrings(n.ContradictionIDs), marshalStrings(n.Tags), marshalStrings(n.People), marshalStrings(n.Concepts), marshalStrings(n.Events),
		gitBranch, gitCommit, gitUncommitted,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert node: %w", err)
	}
	return n.ID, nil
}

const nodeColumns = `
	id, content, summary, created_at, updated_at, last_accessed_at,
	access_count, review_count, source_type, source_platform, source_id,
	source_url, source_chain, stability, difficulty, state, last_review,
	next_review, reps, lapses, storage_strength, retrieval_strength,
	retention_strength, stability_factor, sentiment_intensity, confidence,
	is_contradicted, contradiction_ids, tags, people, concepts, events,
	git_branch, git_commit, git_uncommitted`

func scanNode(row interface{ Scan(...interface{}) error }) (*types.KnowledgeNode, error) {
	var n types.KnowledgeNode
	var summary, sourcePlatform, sourceID, sourceURL, sourceChain sql.NullString
	var lastReview, nextReview sql.NullTime
	var contradictionIDs, tags, people, concepts, events sql.NullString
	var gitBranch, gitCommit, gitUncommitted sql.NullString
	var sourceType, state string

	err := row.Scan(
		&n.ID, &n.Content, &summary, &n.CreatedAt, &n.UpdatedAt, &n.LastAccessedAt,
		&n.AccessCount, &n.ReviewCount, &sourceType, &sourcePlatform, &sourceID,
		&sourceURL, &sourceChain, &n.Stability, &n.Difficulty, &state, &lastReview,
		&nextReview, &n.Reps, &n.Lapses, &n.StorageStrength, &n.RetrievalStrength,
		&n.RetentionStrength, &n.StabilityFactor, &n.SentimentIntensity, &n.Confidence,
		&n.IsContradicted, &contradictionIDs, &tags, &people, &concepts, &events,
		&gitBranch, &gitCommit, &gitUncommitted,
	)
	if err != nil {
		return nil, err
	}

	n.Summary = summary.String
	n.SourceType = types.SourceType(sourceType)
	n.SourcePlatform = sourcePlatform.String
	n.SourceID = sourceID.String
	n.SourceURL = sourceURL.String
	n.SourceChain = unmarshalStrings(sourceChain.String)
	n.State = types.ReviewState(state)
	if lastReview.Valid {
		t := lastReview.Time
		n.LastReview = &t
	}
	if nextReview.Valid {
		t := nextReview.Time
		n.NextReview = &t
	}
	n.ContradictionIDs = unmarshalStrings(contradictionIDs.String)
	n.Tags = unmarshalStrings(tags.String)
	n.People = unmarshalStrings(people.String)
	n.Concepts = unmarshalStrings(concepts.String)
	n.Events = unmarshalStrings(events.String)
	if gitBranch.Valid || gitCommit.Valid {
		n.Git = &types.GitContext{
			Branch: gitBranch.String,
			Commit: gitCommit.String,
			UncommittedPaths: unmarshalStrings(gitUncommitted.String),
		}
	}
	return &n, nil
}

// GetNode implements store.Store.
func (s *Store) GetNode(ctx context.Context, id string) (*types.KnowledgeNode, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM knowledge_nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: get node %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get node: %w", err)
	}
	return n, nil
}

// UpdateNodeAccess implements store.Store (single-statement access bump).
func (s *Store) UpdateNodeAccess(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE knowledge_nodes SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?",
		time.Now(), id)
	if err != nil {
		return fmt.Errorf("sqlite: update node access: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: update node access %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpdateNodeFields implements store.Store update_node_fields; id and
// created_at are never patchable.
func (s *Store) UpdateNodeFields(ctx context.Context, id string, patch store.NodeFields) error {
	set := map[string]interface{}{}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Summary != nil {
		set["summary"] = *patch.Summary
	}
	if patch.Stability != nil {
		set["stability"] = *patch.Stability
	}
	if patch.Difficulty != nil {
		set["difficulty"] = *patch.Difficulty
	}
	if patch.State != nil {
		set["state"] = string(*patch.State)
	}
	if patch.LastReview != nil {
		set["last_review"] = *patch.LastReview
	}
	if patch.NextReview != nil {
		set["next_review"] = *patch.NextReview
	}
	if patch.Reps != nil {
		set["reps"] = *patch.Reps
	}
	if patch.Lapses != nil {
		set["lapses"] = *patch.Lapses
	}
	if patch.StorageStrength != nil {
		set["storage_strength"] = *patch.StorageStrength
	}
	if patch.RetrievalStrength != nil {
		set["retrieval_strength"] = *patch.RetrievalStrength
		set["retention_strength"] = *patch.RetrievalStrength
	}
	if patch.StabilityFactor != nil {
		set["stability_factor"] = *patch.StabilityFactor
	}
	if patch.SentimentIntensity != nil {
		set["sentiment_intensity"] = *patch.SentimentIntensity
	}
	if patch.Confidence != nil {
		set["confidence"] = *patch.Confidence
	}
	if patch.IsContradicted != nil {
		set["is_contradicted"] = *patch.IsContradicted
	}
	if patch.ContradictionIDs != nil {
		set["contradiction_ids"] = marshalStrings(patch.ContradictionIDs)
	}
	if patch.Tags != nil {
		set["tags"] = marshalStrings(patch.Tags)
	}
	if patch.People != nil {
		set["people"] = marshalStrings(patch.People)
	}
	if patch.Concepts != nil {
		set["concepts"] = marshalStrings(patch.Concepts)
	}
	if patch.Events != nil {
		set["events"] = marshalStrings(patch.Events)
	}
	if len(set) == 0 {
		return nil
	}
	set["updated_at"] = time.Now()

	query := "UPDATE knowledge_nodes SET "
	args := make([]interface{}, 0, len(set)+1)
	first := true
	for col, val := range set {
		if !first {
			query += ", "
		}
		first = false
		query += col + " = ?"
		args = append(args, val)
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: update node fields: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: update node fields %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteNode implements store.Store delete_node: cascades to embeddings
// and edges, the FTS row is removed by the schema's AFTER DELETE trigger.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: delete node: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE node_id = ?", id); err != nil {
		return fmt.Errorf("sqlite: delete node: embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_edges WHERE from_id = ? OR to_id = ?", id, id); err != nil {
		return fmt.Errorf("sqlite: delete node: edges: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM knowledge_nodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete node: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sqlite: delete node %s: %w", id, store.ErrNotFound)
	}
	return tx.Commit()
}

// GetRecentNodes implements store.Store get_recent_nodes (delegates
// ordering to C4 callers; here it is last_accessed_at desc).
func (s *Store) GetRecentNodes(ctx context.Context, opts store.RecentOptions) ([]*types.KnowledgeNode, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + nodeColumns + " FROM knowledge_nodes WHERE last_accessed_at >= ?"
	args := []interface{}{opts.Since}
	if opts.SourceType != "" {
		query += " AND source_type = ?"
		args = append(args, opts.SourceType)
	}
	query += " ORDER BY last_accessed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get recent nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListNodesByLastAccess implements store.Store, ascending by
// last_accessed_at — the selection order consolidate() uses.
func (s *Store) ListNodesByLastAccess(ctx context.Context, limit int) ([]*types.KnowledgeNode, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM knowledge_nodes ORDER BY last_accessed_at ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list nodes by last access: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func scanNodes(rows *sql.Rows) ([]*types.KnowledgeNode, error) {
	var out []*types.KnowledgeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
