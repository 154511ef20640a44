// Command vestige-backup runs the automated database backup service
// for a Vestige store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vestige-mem/vestige/internal/backup"
	"github.com/vestige-mem/vestige/internal/config"
)

var (
	dbPathFlag    = flag.String("db", "", "Path to database file (overrides config)")
	backupDirFlag = flag.String("backup-dir", "", "Backup directory path (default: ./backups)")
	interval      = flag.Duration("interval", 0, "Backup interval (default: 1h)")
	verify        = flag.Bool("verify", true, "Verify backups after creation")
	oneshot       = flag.Bool("oneshot", false, "Perform a single backup and exit")
	restore       = flag.String("restore", "", "Restore database from backup file and exit")
	healthCmd     = flag.Bool("health", false, "Check backup service health and exit")
	listCmd       = flag.Bool("list", false, "List all available backups and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dbPath := cfg.DBPath
	if *dbPathFlag != "" {
		dbPath = *dbPathFlag
	}

	backupDir := "./backups"
	if *backupDirFlag != "" {
		backupDir = *backupDirFlag
	}

	backupInterval := 1 * time.Hour
	if *interval > 0 {
		backupInterval = *interval
	}

	service, err := backup.NewService(backup.Config{
		DBPath:    dbPath,
		BackupDir: backupDir,
		Interval:  backupInterval,
		Retention: backup.RetentionPolicy{
			Hourly:  24,
			Daily:   7,
			Weekly:  4,
			Monthly: 12,
		},
		Verify: *verify,
	})
	if err != nil {
		log.Fatalf("failed to create backup service: %v", err)
	}

	ctx := context.Background()

	switch {
	case *restore != "":
		handleRestore(ctx, service, *restore)
	case *healthCmd:
		handleHealth(service)
	case *listCmd:
		handleList(service)
	case *oneshot:
		handleOneshot(ctx, service)
	default:
		runService(ctx, service)
	}
}

func handleRestore(ctx context.Context, service *backup.Service, backupPath string) {
	log.Printf("restoring database from backup: %s", backupPath)
	if err := service.RestoreBackup(ctx, backupPath); err != nil {
		log.Fatalf("restore failed: %v", err)
	}
	log.Println("database restored successfully")
}

func handleHealth(service *backup.Service) {
	health, err := service.HealthCheck()
	if err != nil {
		log.Fatalf("health check failed: %v", err)
	}

	fmt.Printf("Status: %s\n", health.Status)
	if health.Message != "" {
		fmt.Printf("Message: %s\n", health.Message)
	}
	fmt.Printf("Total Backups: %d\n", health.TotalBackups)
	fmt.Printf("Disk Space Used: %.2f MB\n", float64(health.DiskSpaceUsed)/(1024*1024))
	fmt.Printf("Backup Directory: %s\n", health.BackupDir)

	if !health.LastBackup.IsZero() {
		fmt.Printf("Last Backup: %s (%s ago)\n",
			health.LastBackup.Format(time.RFC3339),
			time.Since(health.LastBackup).Round(time.Minute))
	} else {
		fmt.Println("Last Backup: never")
	}

	if !health.NextBackup.IsZero() {
		fmt.Printf("Next Backup: %s (in %s)\n",
			health.NextBackup.Format(time.RFC3339),
			time.Until(health.NextBackup).Round(time.Minute))
	}

	if health.Status != "healthy" {
		os.Exit(1)
	}
}

func handleList(service *backup.Service) {
	backups, err := service.ListBackups()
	if err != nil {
		log.Fatalf("failed to list backups: %v", err)
	}

	if len(backups) == 0 {
		fmt.Println("No backups found")
		return
	}

	fmt.Printf("Found %d backup(s):\n\n", len(backups))
	for i, b := range backups {
		fmt.Printf("%d. %s\n", i+1, b.Path)
		fmt.Printf("   Size: %.2f MB\n", float64(b.Size)/(1024*1024))
		fmt.Printf("   Created: %s (%s ago)\n",
			b.Timestamp.Format(time.RFC3339),
			time.Since(b.Timestamp).Round(time.Minute))
		fmt.Println()
	}
}

func handleOneshot(ctx context.Context, service *backup.Service) {
	log.Println("performing one-time backup...")

	result, err := service.BackupNow(ctx)
	if err != nil {
		log.Fatalf("backup failed: %v", err)
	}

	log.Printf("backup completed successfully:")
	log.Printf("  path: %s", result.Path)
	log.Printf("  size: %.2f MB", float64(result.Size)/(1024*1024))
	log.Printf("  duration: %v", result.Duration)
	log.Printf("  verified: %v", result.Verified)
}

func runService(ctx context.Context, service *backup.Service) {
	go func() {
		if err := service.Start(ctx); err != nil {
			if err != context.Canceled {
				log.Printf("backup service error: %v", err)
			}
		}
	}()

	log.Println("vestige backup service started")
	log.Println("press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down backup service...")
	if err := service.Stop(); err != nil {
		log.Printf("warning: %v", err)
	}
	log.Println("backup service stopped")
}
