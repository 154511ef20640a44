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

// InsertEdge implements store.Store: idempotent on (from_id, to_id,
// edge_type) — a conflicting insert updates the weight.
func (s *Store) InsertEdge(ctx context.Context, e *types.GraphEdge) (string, error) {
	if e.ID == "" {
		e.ID = "edge_" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	var id string
	err := s.call(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO graph_edges (id, from_id, to_id, edge_type, weight, metadata, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (from_id, to_id, edge_type) DO UPDATE SET weight = excluded.weight, metadata = excluded.metadata`,
			e.ID, e.FromID, e.ToID, string(e.Type), e.Weight, marshalMap(e.Metadata), e.CreatedAt,
		)
		if err != nil {
			return err
		}
		return s.db.QueryRowContext(ctx,
			"SELECT id FROM graph_edges WHERE from_id = $1 AND to_id = $2 AND edge_type = $3",
			e.FromID, e.ToID, string(e.Type)).Scan(&id)
	})
	if err != nil {
		return "", fmt.Errorf("postgres: insert edge: %w", err)
	}
	e.ID = id
	return id, nil
}

// GetEdges implements store.Store.
func (s *Store) GetEdges(ctx context.Context, nodeID string) ([]*types.GraphEdge, error) {
	var out []*types.GraphEdge
	err := s.call(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			"SELECT id, from_id, to_id, edge_type, weight, metadata, created_at FROM graph_edges WHERE from_id = $1 OR to_id = $1",
			nodeID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e types.GraphEdge
			var edgeType, metadata string
			if err := rows.Scan(&e.ID, &e.FromID, &e.ToID, &edgeType, &e.Weight, &metadata, &e.CreatedAt); err != nil {
				return err
			}
			e.Type = types.EdgeType(edgeType)
			e.Metadata = unmarshalMap(metadata)
			out = append(out, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: get edges: %w", err)
	}
	return out, nil
}

// InsertPerson implements store.Store.
func (s *Store) InsertPerson(ctx context.Context, p *types.Person) (string, error) {
	if p.ID == "" {
		p.ID = "person_" + uuid.NewString()
	}
	socials := make(map[string]interface{}, len(p.Socials))
	for k, v := range p.Socials {
		socials[k] = v
	}
	err := s.call(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO people (id, name, aliases, relationship_type, organization, role, location,
				socials, contact_frequency, relationship_health, shared_topics, shared_projects)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, aliases = excluded.aliases`,
			p.ID, p.Name, marshalStrings(p.Aliases), nullableString(p.RelationshipType), nullableString(p.Organization),
			nullableString(p.Role), nullableString(p.Location), marshalMap(socials),
			p.ContactFrequency, p.RelationshipHealth, marshalStrings(p.SharedTopics), marshalStrings(p.SharedProjects),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("postgres: insert person: %w", err)
	}
	return p.ID, nil
}

// GetPerson implements store.Store.
func (s *Store) GetPerson(ctx context.Context, id string) (*types.Person, error) {
	var p types.Person
	err := s.call(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, name, aliases, relationship_type, organization, role, location,
				socials, contact_frequency, relationship_health, shared_topics, shared_projects
			FROM people WHERE id = $1`, id)

		var aliases, relType, org, role, location, socials, sharedTopics, sharedProjects sql.NullString
		err := row.Scan(&p.ID, &p.Name, &aliases, &relType, &org, &role, &location,
			&socials, &p.ContactFrequency, &p.RelationshipHealth, &sharedTopics, &sharedProjects)
		if err != nil {
			return err
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
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get person %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get person: %w", err)
	}
	return &p, nil
}
