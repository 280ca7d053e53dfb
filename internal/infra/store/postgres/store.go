// Package postgres implements the record store port directly on Postgres.
// A conditional update is a single UPDATE with the predicate folded into
// the WHERE clause, so the check and the write are one atomic statement.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/ports/store"
	"telegram-tarot-subscription/internal/infra/metrics"
)

const uniqueViolation = "23505"

var _ store.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

func NewStore(pool *pgxpool.Pool, logger *zerolog.Logger) *Store {
	return &Store{pool: pool, log: logger}
}

// Connect opens a pgx pool with a short dial deadline.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pgxpool connect: %w", err)
	}
	return pool, nil
}

func (s *Store) Find(ctx context.Context, table string, filter store.Filter, opts *store.ListOptions) ([]store.Record, error) {
	start := time.Now()
	recs, err := s.find(ctx, table, filter, opts)
	s.observe("find", err, start)
	return recs, err
}

func (s *Store) find(ctx context.Context, table string, filter store.Filter, opts *store.ListOptions) ([]store.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", table)

	args, err := appendWhere(&sb, filter, nil)
	if err != nil {
		return nil, err
	}
	if opts != nil && opts.OrderBy != "" {
		if err := checkIdent(opts.OrderBy); err != nil {
			return nil, err
		}
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", opts.OrderBy, dir)
	}
	if opts != nil && opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}
	if opts != nil && opts.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", opts.Offset)
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapPg(err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		rec, err := recordFromRow(rows)
		if err != nil {
			return nil, wrapPg(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPg(err)
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	start := time.Now()
	out, err := s.insert(ctx, table, rec)
	s.observe("insert", err, start)
	return out, err
}

func (s *Store) insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	cols := sortedKeys(rec)
	if len(cols) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	args := make([]any, 0, len(cols))
	ph := make([]string, 0, len(cols))
	for i, col := range cols {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		args = append(args, rec[col])
		ph = append(ph, fmt.Sprintf("$%d", i+1))
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(ph, ", "))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapPg(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, wrapPg(err)
		}
		return nil, fmt.Errorf("%w: insert returned no row", domain.ErrStoreUnavailable)
	}
	return recordFromRow(rows)
}

func (s *Store) ConditionalUpdate(ctx context.Context, table string, id any, predicate store.Filter, patch store.Record) (store.Record, error) {
	start := time.Now()
	out, err := s.conditionalUpdate(ctx, table, id, predicate, patch)
	s.observe("update", err, start)
	return out, err
}

func (s *Store) conditionalUpdate(ctx context.Context, table string, id any, predicate store.Filter, patch store.Record) (store.Record, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	cols := sortedKeys(patch)
	if len(cols) == 0 {
		return nil, domain.ErrInvalidArgument
	}

	var sb strings.Builder
	args := make([]any, 0, len(cols)+len(predicate)+1)
	fmt.Fprintf(&sb, "UPDATE %s SET ", table)
	for i, col := range cols {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, patch[col])
		fmt.Fprintf(&sb, "%s = $%d", col, len(args))
	}
	args = append(args, id)
	fmt.Fprintf(&sb, " WHERE id = $%d", len(args))
	for _, col := range sortedKeys(predicate) {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		args = append(args, predicate[col])
		fmt.Fprintf(&sb, " AND %s = $%d", col, len(args))
	}
	sb.WriteString(" RETURNING *")

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapPg(err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, wrapPg(err)
		}
		// Zero rows updated: the id is gone or the predicate lost the race.
		// Distinguish so callers can tell a missing record from a conflict.
		exists, err := s.exists(ctx, table, id)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrConflict
	}
	return recordFromRow(rows)
}

func (s *Store) exists(ctx context.Context, table string, id any) (bool, error) {
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = $1", table)
	if err := s.pool.QueryRow(ctx, q, id).Scan(&n); err != nil {
		return false, wrapPg(err)
	}
	return n > 0, nil
}

func (s *Store) observe(op string, err error, start time.Time) {
	out := "ok"
	switch {
	case errors.Is(err, domain.ErrConflict):
		out = "conflict"
	case errors.Is(err, domain.ErrAlreadyExists):
		out = "duplicate"
	case errors.Is(err, domain.ErrNotFound):
		out = "not_found"
	case err != nil:
		out = "unavailable"
		s.log.Error().Err(err).Str("op", op).Msg("postgres store call failed")
	}
	metrics.ObserveStoreCall("postgres", op, out, float64(time.Since(start).Milliseconds()))
}

func appendWhere(sb *strings.Builder, filter store.Filter, args []any) ([]any, error) {
	first := true
	for _, col := range sortedKeys(filter) {
		if err := checkIdent(col); err != nil {
			return nil, err
		}
		if first {
			sb.WriteString(" WHERE ")
			first = false
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, filter[col])
		fmt.Fprintf(sb, "%s = $%d", col, len(args))
	}
	return args, nil
}

func recordFromRow(rows pgx.Rows) (store.Record, error) {
	vals, err := rows.Values()
	if err != nil {
		return nil, wrapPg(err)
	}
	rec := make(store.Record, len(vals))
	for i, fd := range rows.FieldDescriptions() {
		rec[string(fd.Name)] = vals[i]
	}
	return rec, nil
}

func wrapPg(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pgErr.ConstraintName)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// checkIdent guards the identifiers we interpolate into SQL. They all come
// from our own mapping layer, never from user input; this is a tripwire,
// not an escape mechanism.
func checkIdent(s string) error {
	if !identRe.MatchString(s) {
		return fmt.Errorf("%w: bad identifier %q", domain.ErrInvalidArgument, s)
	}
	return nil
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
