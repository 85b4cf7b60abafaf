package stores

import (
	"errors"
	"time"

	"github.com/oarkflow/date"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// parseFlexibleTime parses the timestamp representations different drivers
// hand back (RFC3339, sqlite's default format, unix-ish strings).
func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

// scanTime normalizes a raw scanned column value into a time.Time.
func scanTime(raw any) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}
