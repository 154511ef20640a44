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

// InsertEdge implements store.Store insert_edge: idempotent on
// (from_id, to_id, edge_type) — a conflicting insert updates the weight.
func (s *Store) InsertEdge(ctx context.Context, e *types.GraphEdge) (string, error) {
	if e.ID == "" {
		e.ID = "edge_" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_edges (id, from_id, to_id, edge_type, weight, metadata, created_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(from_id, to_id, edge_type) DO UPDATE SET weight = excluded.weight, metadata = excluded.metadata`,
		e.ID, e.FromID, e.ToID, string(e.Type), e.Weight, marshalMap(e.Metadata), e.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert edge: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT id FROM graph_edges WHERE from_id = ? AND to_id = ? AND edge_type = ?", e.FromID, e.ToID, string(e.Type))
	var id string
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("sqlite: insert edge: reread id: %w", err)
	}
	e.ID = id
	return id, nil
}

// GetEdges implements store.Store: every edge touching nodeID in either
// direction.
func (s *Store) GetEdges(ctx context.Context, nodeID string) ([]*types.GraphEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, from_id, to_id, edge_type, weight, metadata, created_at FROM graph_edges WHERE from_id = ? OR to_id = ?",
		nodeID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get edges: %w", err)
	}
	defer rows.Close()

	var out []*types.GraphEdge
	for rows.Next() {
		var e types.GraphEdge
		var edgeType, metadata string
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID, &edgeType, &e.Weight, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan edge: %w", err)
		}
		e.Type = types.EdgeType(edgeType)
		e.Metadata = unmarshalMap(metadata)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// InsertPerson implements store.Store.
func (s *Store) InsertPerson(ctx context.Context, p *types.Person) (string, error) {
	if p.ID == "" {
		p.ID = "person_" + uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO people (id, name, aliases, relationship_type, organization, role, location,
			socials, contact_frequency, relationship_health, shared_topics, shared_projects)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, aliases=excluded.aliases`,
		p.ID, p.Name, marshalStrings(p.Aliases), nullableString(p.RelationshipType), nullableString(p.Organization),
		nullableString(p.Role), nullableString(p.Location), marshalMap(toStringMap(p.Socials)),
		p.ContactFrequency, p.RelationshipHealth, marshalStrings(p.SharedTopics), marshalStrings(p.SharedProjects),
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: insert person: %w", err)
	}
	return p.ID, nil
}

func toStringMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetPerson implements store.Store.
func (s *Store) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, aliases, relationship_type, organization, role, location,
			socials, contact_frequency, relationship_health, shared_topics, shared_projects
		FROM people WHERE id = ?`, id)

	var p types.Person
	var aliases, relType, org, role, location, socials, sharedTopics, sharedProjects sql.NullString
	err := row.Scan(&p.ID, &p.Name, &aliases, &relType, &org, &role, &location,
		&socials, &p.ContactFrequency, &p.RelationshipHealth, &sharedTopics, &sharedProjects)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: get person %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get person: %w", err)
	}
	p.Aliases = unmarshalStrings(aliases.String)
	p.RelationshipType = relType.String
	p.Organization = org.String
	p.Role = role.String
	p.Location = location.String
	p.SharedTopics = unmarshalStrings(sharedTopics.String)
	p.SharedProjects = unmarshalStrings(sharedProjects.String)
	if m := unmarshalMap(socials.String); m != nil {
		p.Socials = make(map[string]string, len(m))
		for k, v := range m {
			if sv, ok := v.(string); ok {
				p.Socials[k] = sv
			}
		}
	}
	return &p, nil
}
