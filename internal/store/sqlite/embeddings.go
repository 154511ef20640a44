package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vestige-mem/vestige/internal/store"
	"github.com/vestige-mem/vestige/pkg/types"
)

// packFloat32 serializes a vector as tightly-packed little-endian
// IEEE-754 float32.
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

// UpsertEmbedding implements store.Store.
func (s *Store) UpsertEmbedding(ctx context.Context, e *types.Embedding) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (node_id, embedding, model, created_at) VALUES (?,?,?,?)
		ON CONFLICT(node_id) DO UPDATE SET embedding=excluded.embedding, model=excluded.model, created_at=excluded.created_at`,
		e.NodeID, packFloat32(e.Vector), e.Model, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert embedding: %w", err)
	}
	return nil
}

// GetEmbedding implements store.Store.
func (s *Store) GetEmbedding(ctx context.Context, nodeID string) (*types.Embedding, error) {
	row := s.db.QueryRowContext(ctx, "SELECT node_id, embedding, model, created_at FROM embeddings WHERE node_id = ?", nodeID)
	var e types.Embedding
	var blob []byte
	if err := row.Scan(&e.NodeID, &blob, &e.Model, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlite: get embedding %s: %w", nodeID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlite: get embedding: %w", err)
	}
	e.Vector = unpackFloat32(blob)
	return &e, nil
}

// AllEmbeddings implements store.Store: used by C4 vector search and C5
// index rebuild.
func (s *Store) AllEmbeddings(ctx context.Context) ([]*types.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT node_id, embedding, model, created_at FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("sqlite: all embeddings: %w", err)
	}
	defer rows.Close()

	var out []*types.Embedding
	for rows.Next() {
		var e types.Embedding
		var blob []byte
		if err := rows.Scan(&e.NodeID, &blob, &e.Model, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan embedding: %w", err)
		}
		e.Vector = unpackFloat32(blob)
		out = append(out, &e)
	}
	return out, rows.Err()
}
