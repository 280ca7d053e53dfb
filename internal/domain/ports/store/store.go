// Package store defines the narrow port to the remote tabular record
// store. Everything the engine persists flows through this interface; the
// concrete transport (Supabase REST, Postgres, in-memory) lives in infra.
package store

import "context"

// Record is one row as the store returns it. Values are whatever the
// transport produces (string, float64, bool, int64, time.Time, nil); the
// typed mapping layer in internal/infra/records owns interpretation.
type Record map[string]any

// Filter is a conjunction of equality predicates on columns.
type Filter map[string]any

// ListOptions shape Find results. A zero value means "no ordering, no
// paging".
type ListOptions struct {
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// Store is the record store port.
//
// Error contract: implementations return the domain sentinels —
// domain.ErrNotFound, domain.ErrAlreadyExists (uniqueness violation on
// Insert), domain.ErrConflict (ConditionalUpdate predicate did not match),
// domain.ErrStoreUnavailable (timeout, network, 5xx) — possibly wrapped.
// Every call carries a bounded timeout; a timeout is ErrStoreUnavailable,
// never a silent success.
type Store interface {
	// Find returns all records matching the filter.
	Find(ctx context.Context, table string, filter Filter, opts *ListOptions) ([]Record, error)

	// Insert creates a record and returns it as stored (with the assigned id).
	Insert(ctx context.Context, table string, rec Record) (Record, error)

	// ConditionalUpdate patches the record with the given id only if every
	// predicate column still holds its expected value, evaluated atomically
	// with the write. This is the engine's sole cross-process coordination
	// primitive; no lock is ever held across a store call.
	ConditionalUpdate(ctx context.Context, table string, id any, predicate Filter, patch Record) (Record, error)
}
