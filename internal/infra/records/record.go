// Package records is the typed mapping layer between the record store
// port and the domain models. All defaulting rules live here: a record
// missing subscription_type is a free account, a missing is_active flag
// means active, counters default to zero, and timestamps that fail to
// normalize map to nil so downstream logic fails closed.
package records

import (
	"strconv"
	"time"

	"telegram-tarot-subscription/internal/domain/ports/store"
	"telegram-tarot-subscription/internal/domain/timeparse"
)

// The transports disagree on scalar representations: REST JSON delivers
// float64 numbers and string timestamps, the Postgres driver delivers
// int32/int64 and time.Time. The helpers below absorb the difference.

func asString(rec store.Record, col string) string {
	switch v := rec[col].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return ""
	}
}

func asInt(rec store.Record, col string, def int) int {
	switch v := rec[col].(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func asInt64(rec store.Record, col string, def int64) int64 {
	switch v := rec[col].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func asFloat(rec store.Record, col string, def float64) float64 {
	switch v := rec[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func asBool(rec store.Record, col string, def bool) bool {
	switch v := rec[col].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// asTime normalizes a stored timestamp. An absent, null or unparseable
// value returns nil; the caller must treat nil as "not active".
func asTime(rec store.Record, col string) *time.Time {
	switch v := rec[col].(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case *time.Time:
		if v == nil {
			return nil
		}
		t := v.UTC()
		return &t
	case string:
		if v == "" {
			return nil
		}
		t, err := timeparse.Parse(v)
		if err != nil {
			return nil
		}
		t = t.UTC()
		return &t
	default:
		return nil
	}
}

// fmtTime serializes a timestamp the way the original dashboard rows are
// written, so every transport stores the same shape.
func fmtTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999Z07:00")
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

// idValue converts a model id back into the value the store keyed it
// with: numeric ids stay numeric so the Postgres driver can bind them.
func idValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
