// Package backup implements scheduled and on-demand SQLite database
// backups for Vestige using VACUUM INTO, which produces a consistent
// snapshot even while the store is open under WAL mode.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// RetentionPolicy bounds how many backups survive pruning at each
// granularity. Hourly is the number of most-recent backups kept
// unconditionally; Daily/Weekly/Monthly thin out anything older by
// keeping at most one backup per bucket.
type RetentionPolicy struct {
	Hourly  int
	Daily   int
	Weekly  int
	Monthly int
}

// Config configures a Service.
type Config struct {
	DBPath    string
	BackupDir string
	Interval  time.Duration
	Retention RetentionPolicy
	Verify    bool
}

// Result describes a single completed backup.
type Result struct {
	Path     string
	Size     int64
	Duration time.Duration
	Verified bool
}

// Backup describes a backup file discovered on disk.
type Backup struct {
	Path      string
	Size      int64
	Timestamp time.Time
}

// Health summarizes the backup service's current state.
type Health struct {
	Status        string
	Message       string
	TotalBackups  int
	DiskSpaceUsed int64
	BackupDir     string
	LastBackup    time.Time
	NextBackup    time.Time
}

// Service runs backups of a single SQLite database, either on a timer
// (Start/Stop) or on demand (BackupNow).
type Service struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	lastBackup time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	stopped  chan struct{}
}

// NewService validates cfg and creates the backup directory.
func NewService(cfg Config) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("backup: DBPath is required")
	}
	if cfg.BackupDir == "" {
		return nil, fmt.Errorf("backup: BackupDir is required")
	}
	if err := os.MkdirAll(cfg.BackupDir, 0o700); err != nil {
		return nil, fmt.Errorf("backup: mkdir %s: %w", cfg.BackupDir, err)
	}
	return &Service{cfg: cfg, now: time.Now, stopCh: make(chan struct{}), stopped: make(chan struct{})}, nil
}

const backupFilePrefix = "vestige-"

func (s *Service) backupFilename(t time.Time) string {
	return fmt.Sprintf("%s%s.db", backupFilePrefix, t.UTC().Format("20060102-150405"))
}

// BackupNow takes a consistent snapshot of the source database via
// VACUUM INTO, optionally verifies it with PRAGMA integrity_check, and
// prunes old backups according to the retention policy.
func (s *Service) BackupNow(ctx context.Context) (Result, error) {
	start := s.now()

	db, err := sql.Open("sqlite", s.cfg.DBPath)
	if err != nil {
		return Result{}, fmt.Errorf("backup: open source: %w", err)
	}
	defer db.Close()

	dest := filepath.Join(s.cfg.BackupDir, s.backupFilename(start))
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return Result{}, fmt.Errorf("backup: vacuum into %s: %w", dest, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return Result{}, fmt.Errorf("backup: stat %s: %w", dest, err)
	}

	verified := false
	if s.cfg.Verify {
		if err := verifyBackup(dest); err != nil {
			return Result{}, fmt.Errorf("backup: verification failed for %s: %w", dest, err)
		}
		verified = true
	}

	s.mu.Lock()
	s.lastBackup = start
	s.mu.Unlock()

	if err := s.prune(); err != nil {
		return Result{}, fmt.Errorf("backup: prune: %w", err)
	}

	return Result{
		Path:     dest,
		Size:     info.Size(),
		Duration: s.now().Sub(start),
		Verified: verified,
	}, nil
}

// prune removes backups beyond the retention policy: the most recent
// Hourly backups are always kept; among the rest, at most one backup
// survives per day (up to Daily days), one per week (up to Weekly
// weeks), and one per month (up to Monthly months). Anything not
// claimed by one of those buckets is deleted.
func (s *Service) prune() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}
	r := s.cfg.Retention
	if r.Hourly <= 0 && r.Daily <= 0 && r.Weekly <= 0 && r.Monthly <= 0 {
		return nil // no retention policy configured, keep everything
	}

	keep := map[string]bool{}
	for i, b := range backups {
		if i < r.Hourly {
			keep[b.Path] = true
		}
	}

	now := s.now()
	claimDay := map[string]bool{}
	claimWeek := map[string]bool{}
	claimMonth := map[string]bool{}
	for _, b := range backups {
		if keep[b.Path] {
			continue
		}
		age := now.Sub(b.Timestamp)

		if days := int(age.Hours() / 24); r.Daily > 0 && days < r.Daily {
			key := b.Timestamp.Format("2006-01-02")
			if !claimDay[key] {
				claimDay[key] = true
				keep[b.Path] = true
				continue
			}
		}
		if weeks := int(age.Hours() / (24 * 7)); r.Weekly > 0 && weeks < r.Weekly {
			year, week := b.Timestamp.ISOWeek()
			key := fmt.Sprintf("%d-W%02d", year, week)
			if !claimWeek[key] {
				claimWeek[key] = true
				keep[b.Path] = true
				continue
			}
		}
		if months := int(age.Hours() / (24 * 30)); r.Monthly > 0 && months < r.Monthly {
			key := b.Timestamp.Format("2006-01")
			if !claimMonth[key] {
				claimMonth[key] = true
				keep[b.Path] = true
			}
		}
	}

	for _, b := range backups {
		if !keep[b.Path] {
			if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", b.Path, err)
			}
		}
	}
	return nil
}

func verifyBackup(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported %q", result)
	}
	return nil
}

// ListBackups returns every backup file in BackupDir, newest first.
func (s *Service) ListBackups() ([]Backup, error) {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("backup: read dir %s: %w", s.cfg.BackupDir, err)
	}

	var backups []Backup
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupFilePrefix) || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		ts, err := parseBackupTimestamp(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Backup{
			Path:      filepath.Join(s.cfg.BackupDir, e.Name()),
			Size:      info.Size(),
			Timestamp: ts,
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

func parseBackupTimestamp(name string) (time.Time, error) {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, backupFilePrefix), ".db")
	return time.Parse("20060102-150405", stem)
}

// RestoreBackup replaces the live database file with backupPath,
// removing any stale WAL/SHM sidecar files so the next open starts
// clean.
func (s *Service) RestoreBackup(ctx context.Context, backupPath string) error {
	if err := verifyBackup(backupPath); err != nil {
		return fmt.Errorf("backup: refusing to restore corrupt backup: %w", err)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", backupPath, err)
	}
	if err := os.WriteFile(s.cfg.DBPath, data, 0o600); err != nil {
		return fmt.Errorf("backup: write %s: %w", s.cfg.DBPath, err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(s.cfg.DBPath + suffix)
	}
	return nil
}

// HealthCheck reports the service's current state: backup count, disk
// usage, and last/next backup time.
func (s *Service) HealthCheck() (Health, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return Health{}, err
	}

	var totalSize int64
	for _, b := range backups {
		totalSize += b.Size
	}

	s.mu.Lock()
	last := s.lastBackup
	s.mu.Unlock()
	if last.IsZero() && len(backups) > 0 {
		last = backups[0].Timestamp
	}

	h := Health{
		Status:        "healthy",
		TotalBackups:  len(backups),
		DiskSpaceUsed: totalSize,
		BackupDir:     s.cfg.BackupDir,
		LastBackup:    last,
	}
	if s.cfg.Interval > 0 && !last.IsZero() {
		h.NextBackup = last.Add(s.cfg.Interval)
	}
	if !last.IsZero() && s.cfg.Interval > 0 && s.now().Sub(last) > 2*s.cfg.Interval {
		h.Status = "degraded"
		h.Message = "last backup is more than two intervals old"
	}
	return h, nil
}

// Start runs BackupNow on cfg.Interval until ctx is cancelled or Stop
// is called.
func (s *Service) Start(ctx context.Context) error {
	defer close(s.stopped)
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("backup: Interval must be positive to run continuously")
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			if _, err := s.BackupNow(ctx); err != nil {
				return fmt.Errorf("backup: scheduled run: %w", err)
			}
		}
	}
}

// Stop signals Start to return and waits for it to finish.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.stopped
	return nil
}
