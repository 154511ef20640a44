package postgres

import (
	"context"
	"fmt"

	"github.com/vestige-mem/vestige/internal/store"
)

// GetDatabaseSize implements store.Store get_database_size using
// PostgreSQL's own accounting function rather than the filesystem, since
// the backend may not have file access to the data directory.
func (s *Store) GetDatabaseSize(ctx context.Context) (store.DatabaseSize, error) {
	var bytes int64
	err := s.call(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, "SELECT pg_database_size(current_database())").Scan(&bytes)
	})
	if err != nil {
		return store.DatabaseSize{}, fmt.Errorf("postgres: database size: %w", err)
	}
	return store.DatabaseSize{Bytes: bytes, MB: float64(bytes) / (1024 * 1024)}, nil
}

// CheckHealth implements store.Store check_health: connectivity, replica
// lag is out of scope (no replica topology here), but a missing pgvector
// extension is reported as a warning.
func (s *Store) CheckHealth(ctx context.Context) (store.HealthReport, error) {
	var report store.HealthReport

	if err := s.db.PingContext(ctx); err != nil {
		report.Warnings = append(report.Warnings, "database unreachable: "+err.Error())
		return report, nil
	}

	if !s.pgvectorAvailable {
		report.Warnings = append(report.Warnings, "pgvector extension unavailable: embeddings are stored in the BYTEA column only")
	}

	var conns int
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM pg_stat_activity WHERE datname = current_database()").Scan(&conns); err == nil {
		if conns > 20 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%d active connections, approaching pool limit", conns))
		}
	}

	return report, nil
}
