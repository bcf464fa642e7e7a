package keys

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned for key timestamps that are not ISO-8601 dates
var ErrInvalidTimestamp = errors.New("invalid key timestamp")

// timestampLayout writes colons as underscores so timestamps are URL and header safe.
const timestampLayout = "2006-01-02T15_04_05.000"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// NewTimestamp formats t as a key timestamp.
func NewTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// CheckTimestamp accepts a key timestamp if, with underscores read as colons,
// it parses as an ISO-8601 date time.
func CheckTimestamp(ts string) error {
	if ts == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	iso := strings.ReplaceAll(ts, "_", ":")
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, iso); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
}

// Latest returns the greatest timestamp, comparing as strings.
func Latest(timestamps []string) (string, bool) {
	latest, found := "", false
	for _, ts := range timestamps {
		if !found || ts > latest {
			latest, found = ts, true
		}
	}
	return latest, found
}
