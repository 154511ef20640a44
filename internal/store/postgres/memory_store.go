package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sony/gobreaker"

	"github.com/vestige-mem/vestige/internal/store"
)

// Store implements store.Store using PostgreSQL, with tsvector FTS and,
// when the pgvector extension is available, a vector column that mirrors
// 128-dimension embeddings (no query in this package reads it). Every call
// that touches the network is routed through a circuit breaker so a
// degraded database trips fast instead of piling up blocked goroutines.
type Store struct {
	db *sql.DB
	pgvectorAvailable bool
	breaker *gobreaker.CircuitBreaker
}

// New opens a PostgreSQL connection, applies the schema, and attempts to
// enable pgvector. dsn is a standard PostgreSQL connection string.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	s := &Store{db: db, breaker: newBreaker()}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (vector search disabled): %v", err)
	} else {
		s.pgvectorAvailable = true
		if _, err := db.Exec(MigrationPgvector); err != nil {
			log.Printf("postgres: pgvector migration failed (vector search disabled): %v", err)
			s.pgvectorAvailable = false
		}
	}

	return s, nil
}

// newBreaker configures a gobreaker instance that opens after 5
// consecutive failures and probes again after 30 seconds, matching the
// failure budget the adapter layer expects from external stores.
func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "postgres-store",
		MaxRequests: 1,
		Interval: 0,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// call executes fn through the circuit breaker under a 5 s deadline
// (or the caller's, if sooner), translating a trip into
// store.ErrAdapterFailure.
func (s *Store) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("postgres: circuit open: %w", store.ErrAdapterFailure)
	}
	return err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)
