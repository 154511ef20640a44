package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

func packFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// UpsertEmbedding implements store.Store. The vector is always written to
// the portable BYTEA column; when pgvector is available and the vector is
// compressed to the index's fixed 128 dimensions it is mirrored into
// embedding_vec for ANN search.
func (s *Store) UpsertEmbedding(ctx context.Context, e *types.Embedding) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	blob := packFloat32(e.Vector)

	err := s.call(ctx, func(ctx context.Context) error {
		if s.pgvectorAvailable && len(e.Vector) == types.CompressedDim {
			vec := pgvector.NewVector(e.Vector)
			_, err := s.db.ExecContext(ctx, `
				INSERT INTO embeddings (node_id, embedding, model, created_at, embedding_vec)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (node_id) DO UPDATE SET embedding=excluded.embedding, model=excluded.model,
					created_at=excluded.created_at, embedding_vec=excluded.embedding_vec`,
				e.NodeID, blob, e.Model, e.CreatedAt, vec,
			)
			if err == nil {
				return nil
			}
			log.Printf("postgres: embedding_vec write failed (falling back to BYTEA only): %v", err)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO embeddings (node_id, embedding, model, created_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (node_id) DO UPDATE SET embedding=excluded.embedding, model=excluded.model, created_at=excluded.created_at`,
			e.NodeID, blob, e.Model, e.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: upsert embedding: %w", err)
	}
	return nil
}

// GetEmbedding implements store.Store.
func (s *Store) GetEmbedding(ctx context.Context, nodeID string) (*types.Embedding, error) {
	var e types.Embedding
	err := s.call(ctx, func(ctx context.Context) error {
		var blob []byte
		row := s.db.QueryRowContext(ctx, "SELECT node_id, embedding, model, created_at FROM embeddings WHERE node_id = $1", nodeID)
		if err := row.Scan(&e.NodeID, &blob, &e.Model, &e.CreatedAt); err != nil {
			return err
		}
		e.Vector = unpackFloat32(blob)
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("postgres: get embedding %s: %w", nodeID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get embedding: %w", err)
	}
	return &e, nil
}

// AllEmbeddings implements store.Store: read from the BYTEA column by the
// engine's in-process cosine search and by index rebuild, whether or not
// pgvector is available.
func (s *Store) AllEmbeddings(ctx context.Context) ([]*types.Embedding, error) {
	var out []*types.Embedding
	err := s.call(ctx, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, "SELECT node_id, embedding, model, created_at FROM embeddings")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e types.Embedding
			var blob []byte
			if err := rows.Scan(&e.NodeID, &blob, &e.Model, &e.CreatedAt); err != nil {
				return err
			}
			e.Vector = unpackFloat32(blob)
			out = append(out, &e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: all embeddings: %w", err)
	}
	return out, nil
}
