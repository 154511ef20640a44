package postgres

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

// InsertNode implements store.Store.
func (s *Store) InsertNode(ctx context.Context, n *types.KnowledgeNode) (string, error) {
	if n.Content == "" {
		return "", fmt.Errorf("postgres: insert node: %w", store.ErrInvalidInput)
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
		gitBranch = nullableString(n.Git.Branch)
		gitCommit = nullableString(n.Git.Commit)
		gitUncommitted = marshalStrings(n.Git.UncommittedPaths)
	}

	err := s.call(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO knowledge_nodes (
				id, content, summary, created_at, updated_at, last_accessed_at,
				access_count, review_count, source_type, source_platform, source_id,
				source_url, source_chain, stability, difficulty, state, last_review,
				next_review, reps, lapses, storage_strength, retrieval_strength,
				retention_strength, stability_factor, sentiment_intensity, confidence,
				is_contradicted, contradiction_ids, tags, people, concepts, events,
				git_branch, git_commit, git_uncommitted
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
				$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35)`,
			n.ID, n.Content, nullableString(n.Summary), n.CreatedAt, n.UpdatedAt, n.LastAccessedAt,
			n.AccessCount, n.ReviewCount, string(n.SourceType), nullableString(n.SourcePlatform), nullableString(n.SourceID),
			nullableString(n.SourceURL), marshalStrings(n.SourceChain), n.Stability, n.Difficulty, string(n.State), n.LastReview,
			n.NextReview, n.Reps, n.Lapses, n.StorageStrength, n.RetrievalStrength,
			n.RetentionStrength, n.StabilityFactor, n.SentimentIntensity, n.Confidence,
			n.IsContradicted, marshalStrings(n.ContradictionIDs), marshalStrings(n.Tags), marshalStrings(n.People), marshalStrings(n.Concepts), marshalStrings(n.Events),
			gitBranch, gitCommit, gitUncommitted,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("postgres: insert node: %w", err)
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
	var n *types.KnowledgeNode
	err := s.call(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM knowledge_nodes WHERE id = $1", id)
		var scanErr error
		n, scanErr = scanNode(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get node %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get node: %w", err)
	}
	return n, nil
}

// UpdateNodeAccess implements store.Store.
func (s *Store) UpdateNodeAccess(ctx context.Context, id string) error {
	var rows int64
	err := s.call(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			"UPDATE knowledge_nodes SET access_count = access_count + 1, last_accessed_at = $1 WHERE id = $2",
			time.Now(), id)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: update node access: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("postgres: update node access %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// UpdateNodeFields implements store.Store update_node_fields.
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
	i := 1
	first := true
	for col, val := range set {
		if !first {
			query += ", "
		}
		first = false
		query += fmt.Sprintf("%s = $%d", col, i)
		args = append(args, val)
		i++
	}
	query += fmt.Sprintf(" WHERE id = $%d", i)
	args = append(args, id)

	var rows int64
	err := s.call(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: update node fields: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("postgres: update node fields %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// DeleteNode implements store.Store: embeddings and edges cascade via the
// embeddings FK and an explicit edges delete.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	var rows int64
	err := s.call(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "DELETE FROM graph_edges WHERE from_id = $1 OR to_id = $1", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM knowledge_nodes WHERE id = $1", id)
		if err != nil {
			return err
		}
		if rows, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("postgres: delete node: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("postgres: delete node %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// GetRecentNodes implements store.Store get_recent_nodes.
func (s *Store) GetRecentNodes(ctx context.Context, opts store.RecentOptions) ([]*types.KnowledgeNode, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + nodeColumns + " FROM knowledge_nodes WHERE last_accessed_at >= $1"
	args := []interface{}{opts.Since}
	if opts.SourceType != "" {
		query += " AND source_type = $2"
		args = append(args, opts.SourceType)
	}
	query += fmt.Sprintf(" ORDER BY last_accessed_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	var out []*types.KnowledgeNode
	err := s.call(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanNodes(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: get recent nodes: %w", err)
	}
	return out, nil
}

// ListNodesByLastAccess implements store.Store, ascending by
// last_accessed_at — the selection order consolidate() uses.
func (s *Store) ListNodesByLastAccess(ctx context.Context, limit int) ([]*types.KnowledgeNode, error) {
	var out []*types.KnowledgeNode
	err := s.call(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+nodeColumns+" FROM knowledge_nodes ORDER BY last_accessed_at ASC LIMIT $1", limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanNodes(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list nodes by last access: %w", err)
	}
	return out, nil
}

func scanNodes(rows *sql.Rows) ([]*types.KnowledgeNode, error) {
	var out []*types.KnowledgeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
