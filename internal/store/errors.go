package store

import "errors"

// Sentinel errors for the store's error kinds. Callers
// should check with errors.Is; adapters wrap these with fmt.Errorf("...: %w").
var (
	// ErrNotFound indicates the requested id is unknown to the store.
	ErrNotFound = errors.New("vestige: not found")

	// ErrInvalidInput indicates a schema or validation failure.
	ErrInvalidInput = errors.New("vestige: invalid input")

	// ErrConflict indicates a unique-constraint violation that the caller
	// did not request idempotent handling for.
	ErrConflict = errors.New("vestige: conflict")

	// ErrEmbeddingUnavailable indicates the embedding provider could not
	// be reached or declined to embed; callers fall back to keyword-only search.
	ErrEmbeddingUnavailable = errors.New("vestige: embedding unavailable")

	// ErrAdapterFailure indicates a remote/transport failure in a store
	// adapter (timeout, connection reset, circuit open).
	ErrAdapterFailure = errors.New("vestige: adapter failure")

	// ErrCancelled indicates the operation's context was cancelled or hit
	// its deadline before completing.
	ErrCancelled = errors.New("vestige: cancelled")

	// ErrInternal indicates an invariant violation; the wrapping error
	// message names which invariant failed.
	ErrInternal = errors.New("vestige: internal invariant violation")
)
