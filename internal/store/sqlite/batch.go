package sqlite

import (
	"context"
	"fmt"

	"github.com/vestige-mem/vestige/internal/store"
)

// txScope adapts a *sql.Tx to store.TxScope; each Op is interpreted as
// raw SQL with positional args.
type txScope struct {
	exec func(ctx context.Context, query string, args ...interface{}) error
}

func (t *txScope) Execute(ctx context.Context, stmt store.Statement) error {
	return t.exec(ctx, stmt.Op, stmt.Args...)
}

// Batch implements store.Store batch(): executes every statement inside
// one transaction, rolling back on the first error.
func (s *Store) Batch(ctx context.Context, stmts []store.Statement) error {
	return s.Transaction(ctx, func(ctx context.Context, tx store.TxScope) error {
		for _, stmt := range stmts {
			if err := tx.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Transaction implements store.Store transaction(fn): fn's scope commits
// on successful return and rolls back on error or context cancellation.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx store.TxScope) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: transaction: begin: %w", err)
	}

	scope := &txScope{exec: func(ctx context.Context, query string, args ...interface{}) error {
		_, err := sqlTx.ExecContext(ctx, query, args...)
		return err
	}}

	if err := fn(ctx, scope); err != nil {
		sqlTx.Rollback()
		return err
	}
	if ctx.Err() != nil {
		sqlTx.Rollback()
		return fmt.Errorf("sqlite: transaction: %w", store.ErrCancelled)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlite: transaction: commit: %w", err)
	}
	return nil
}
