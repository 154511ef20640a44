// cmd/vestige-mcp is the entry point for the Vestige MCP (Model Context
// Protocol) server. It wires the SQLite store through the in-process
// engine components (ingest, search, review, consolidation, feedback)
// and serves JSON-RPC 2.0 over stdio.
//
// Startup sequence:
//  1. Load configuration from VESTIGE_-prefixed environment variables
//     (and an optional YAML overlay named by VESTIGE_CONFIG_FILE).
//  2. Open the SQLite database at cfg.DBPath, creating its schema on
//     first run.
//  3. Create the MCP server, injecting the store and config.
//  4. Start the background consolidation scheduler.
//  5. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr. Any bytes written to stdout
// that are not valid JSON-RPC 2.0 response frames will corrupt the
// protocol.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vestige-mem/vestige/internal/api/mcp"
	"github.com/vestige-mem/vestige/internal/config"
	"github.com/vestige-mem/vestige/internal/engine"
	"github.com/vestige-mem/vestige/internal/store/sqlite"
)

// consolidationSweepInterval is how often the background consolidation
// scheduler runs a decay/prune/promote pass.
const consolidationSweepInterval = time.Hour

func main() {
	// Redirect the default logger to stderr so incidental log calls from
	// imported packages never pollute the stdout JSON-RPC stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("vestige-mcp: ")
	log.SetFlags(log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Debug {
		log.Printf("config: %+v", *cfg)
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	// embedder is nil until a concrete embedding backend is configured;
	// without it search uses the keyword channel only and smart ingest
	// always takes the create path.
	srv := mcp.NewServer(db, nil, nil, cfg)

	consolidator := engine.NewConsolidator(db, time.Now)
	scheduler := engine.NewScheduler(consolidator, engine.ConsolidateOptions{
		ApplyDecay:       true,
		PruneThreshold:   cfg.PruneThreshold,
		PromoteThreshold: cfg.PromoteThreshold,
	}, consolidationSweepInterval)
	go scheduler.Run(ctx)

	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)

	log.Println("ready — serving JSON-RPC 2.0 on stdin/stdout")

	if err := transport.Serve(ctx); err != nil {
		// A non-nil error here is normal (context cancellation) or
		// indicates a fatal stdin/stdout problem. Either way it is
		// informational only.
		log.Printf("transport stopped: %v", err)
	}
}
