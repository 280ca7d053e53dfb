// Package timeparse normalizes the heterogeneous timestamp strings the
// backing store emits into time.Time values.
package timeparse

import (
	"fmt"
	"strings"
	"time"
)

// The store serializes timestamps inconsistently depending on column type
// and on whether a row was written by us or by the dashboard. Layouts are
// tried in order; the first match wins.
var layouts = []string{
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05-07",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999-07",
	"2006-01-02T15:04:05-07",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Parse converts a raw store timestamp into a time.Time. Offset-less forms
// are assumed to be UTC. A malformed input returns an error; callers must
// treat that as "expiry unknown" and fail closed, never as an active grant.
func Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("timeparse: empty timestamp")
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timeparse: unrecognized timestamp %q", raw)
}
