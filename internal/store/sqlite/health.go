package sqlite

import (
	"context"
	"fmt"
	"os"

	"github.com/vestige-mem/vestige/internal/store"
)

// GetDatabaseSize implements store.Store get_database_size. It sums the
// main database file plus its WAL/SHM siblings, since WAL mode keeps
// uncheckpointed writes there.
func (s *Store) GetDatabaseSize(ctx context.Context) (store.DatabaseSize, error) {
	path := s.dsnPath
	if path == "" || path == ":memory:" {
		var pageCount, pageSize int64
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
			return store.DatabaseSize{}, fmt.Errorf("sqlite: database size: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
			return store.DatabaseSize{}, fmt.Errorf("sqlite: database size: %w", err)
		}
		bytes := pageCount * pageSize
		return store.DatabaseSize{Bytes: bytes, MB: float64(bytes) / (1024 * 1024)}, nil
	}

	var total int64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if info, err := os.Stat(path + suffix); err == nil {
			total += info.Size()
		}
	}
	return store.DatabaseSize{Bytes: total, MB: float64(total) / (1024 * 1024)}, nil
}

// CheckHealth implements store.Store check_health: a best-effort set of
// sanity checks surfaced as human-readable warnings rather than errors,
// since none of them should block the caller.
func (s *Store) CheckHealth(ctx context.Context) (store.HealthReport, error) {
	var report store.HealthReport

	if err := s.db.PingContext(ctx); err != nil {
		report.Warnings = append(report.Warnings, "database unreachable: "+err.Error())
		return report, nil
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		report.Warnings = append(report.Warnings, "integrity check failed: "+err.Error())
	} else if integrity != "ok" {
		report.Warnings = append(report.Warnings, "integrity check reported: "+integrity)
	}

	var journalMode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err == nil && journalMode != "wal" {
		report.Warnings = append(report.Warnings, "journal_mode is "+journalMode+", expected wal")
	}

	var fkViolations int
	row := s.db.QueryRowContext(ctx, "SELECT count(*) FROM pragma_foreign_key_check()")
	if err := row.Scan(&fkViolations); err == nil && fkViolations > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d foreign key violations detected", fkViolations))
	}

	return report, nil
}
