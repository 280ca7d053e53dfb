// Package supabase implements the record store port over the Supabase
// PostgREST API. Conditional updates lean on PostgREST evaluating the
// filter atomically with the PATCH: if the predicate no longer matches,
// the representation comes back empty and we report a conflict.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/config"
	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/ports/store"
	"telegram-tarot-subscription/internal/infra/metrics"
)

var _ store.Store = (*Client)(nil)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zerolog.Logger
}

func NewClient(cfg config.SupabaseConfig, logger *zerolog.Logger) (*Client, error) {
	host := strings.TrimSpace(cfg.URL)
	if host == "" || cfg.Key == "" {
		return nil, domain.ErrInvalidArgument
	}
	base := host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	base = strings.TrimSuffix(base, "/") + "/rest/v1"

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.Key,
		client:  &http.Client{Timeout: timeout},
		log:     logger,
	}, nil
}

func (c *Client) Find(ctx context.Context, table string, filter store.Filter, opts *store.ListOptions) ([]store.Record, error) {
	start := time.Now()
	q := url.Values{}
	for col, v := range filter {
		q.Set(col, "eq."+literal(v))
	}
	if opts != nil {
		if opts.OrderBy != "" {
			dir := "asc"
			if opts.Desc {
				dir = "desc"
			}
			q.Set("order", opts.OrderBy+"."+dir)
		}
		if opts.Limit > 0 {
			q.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			q.Set("offset", strconv.Itoa(opts.Offset))
		}
	}

	recs, err := c.do(ctx, http.MethodGet, table, q, nil)
	c.observe("find", err, start)
	return recs, err
}

func (c *Client) Insert(ctx context.Context, table string, rec store.Record) (store.Record, error) {
	start := time.Now()
	recs, err := c.do(ctx, http.MethodPost, table, nil, rec)
	c.observe("insert", err, start)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: insert returned no representation", domain.ErrStoreUnavailable)
	}
	return recs[0], nil
}

func (c *Client) ConditionalUpdate(ctx context.Context, table string, id any, predicate store.Filter, patch store.Record) (store.Record, error) {
	start := time.Now()
	q := url.Values{}
	q.Set("id", "eq."+literal(id))
	for col, v := range predicate {
		q.Set(col, "eq."+literal(v))
	}

	recs, err := c.do(ctx, http.MethodPatch, table, q, patch)
	if err != nil {
		c.observe("update", err, start)
		return nil, err
	}
	if len(recs) == 0 {
		// The row exists but the predicate no longer matched, or the row is
		// gone entirely. Either way the caller must re-read and decide.
		c.observe("update", domain.ErrConflict, start)
		return nil, domain.ErrConflict
	}
	c.observe("update", nil, start)
	return recs[0], nil
}

func (c *Client) do(ctx context.Context, method, table string, q url.Values, body any) ([]store.Record, error) {
	u := c.baseURL + "/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrStoreUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		// fallthrough to decode below
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyExists, snippet(raw))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: table %s", domain.ErrNotFound, table)
	default:
		c.log.Error().Int("status", resp.StatusCode).Str("table", table).
			Str("body", snippet(raw)).Msg("supabase request failed")
		return nil, fmt.Errorf("%w: http %d", domain.ErrStoreUnavailable, resp.StatusCode)
	}

	if len(raw) == 0 {
		return nil, nil
	}
	var recs []store.Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		// PostgREST returns a bare object for some singular requests.
		var one store.Record
		if err2 := json.Unmarshal(raw, &one); err2 != nil {
			return nil, fmt.Errorf("%w: decode response: %v", domain.ErrStoreUnavailable, err)
		}
		recs = []store.Record{one}
	}
	return recs, nil
}

func (c *Client) observe(op string, err error, start time.Time) {
	metrics.ObserveStoreCall("supabase", op, outcome(err), float64(time.Since(start).Milliseconds()))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "duplicate"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}

// literal renders a filter value the way PostgREST expects it.
func literal(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func snippet(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
