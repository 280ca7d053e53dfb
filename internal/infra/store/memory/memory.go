// Package memory is a mutex-guarded in-memory record store used by unit
// tests and the dev/demo wiring. Conditional updates are atomic under the
// table lock, which makes it a faithful stand-in for the remote store's
// concurrency semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/ports/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	tables map[string][]store.Record
	unique map[string][]string // table -> columns with a uniqueness constraint
}

func NewStore() *Store {
	return &Store{
		tables: make(map[string][]store.Record),
		unique: make(map[string][]string),
	}
}

// WithUnique declares a uniqueness constraint, mirroring what the real
// store enforces at the schema level.
func (s *Store) WithUnique(table string, columns ...string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[table] = append(s.unique[table], columns...)
	return s
}

func (s *Store) Find(ctx context.Context, table string, filter store.Filter, opts *store.ListOptions) ([]store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Record
	for _, rec := range s.tables[table] {
		if matches(rec, filter) {
			out = append(out, clone(rec))
		}
	}
	if opts != nil {
		if opts.OrderBy != "" {
			col, desc := opts.OrderBy, opts.Desc
			sort.SliceStable(out, func(i, j int) bool {
				a, b := fmt.Sprint(out[i][col]), fmt.Sprint(out[j][col])
				if desc {
					return a > b
				}
				return a < b
			})
		}
		if opts.Offset > 0 {
			if opts.Offset >= len(out) {
				out = nil
			} else {
				out = out[opts.Offset:]
			}
		}
		if opts.Limit > 0 && len(out) > opts.Limit {
			out = out[:opts.Limit]
		}
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := clone(rec)
	if _, ok := stored["id"]; !ok {
		stored["id"] = uuid.NewString()
	}
	for _, col := range s.unique[table] {
		want, ok := stored[col]
		if !ok {
			continue
		}
		for _, existing := range s.tables[table] {
			if eq(existing[col], want) {
				return nil, fmt.Errorf("%w: %s.%s=%v", domain.ErrAlreadyExists, table, col, want)
			}
		}
	}
	s.tables[table] = append(s.tables[table], stored)
	return clone(stored), nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, table string, id any, predicate store.Filter, patch store.Record) (store.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.tables[table] {
		if !eq(rec["id"], id) {
			continue
		}
		if !matches(rec, predicate) {
			return nil, domain.ErrConflict
		}
		for k, v := range patch {
			rec[k] = v
		}
		return clone(rec), nil
	}
	return nil, domain.ErrNotFound
}

func matches(rec store.Record, filter store.Filter) bool {
	for col, want := range filter {
		if !eq(rec[col], want) {
			return false
		}
	}
	return true
}

// eq compares loosely across the numeric and string representations the
// different transports produce for the same value.
func eq(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return norm(a) == norm(b)
}

func norm(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return norm(float64(x))
	default:
		return fmt.Sprint(v)
	}
}

func clone(rec store.Record) store.Record {
	cp := make(store.Record, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}
