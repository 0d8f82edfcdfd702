package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// millisThreshold separates unix seconds from unix milliseconds. Seconds
// cross it in the year 33658.
const millisThreshold = 1_000_000_000_000

// ParseDate parses a date string leniently and returns it in UTC. Strings
// made only of digits are unix timestamps in seconds or milliseconds.
// Strings without a zone are read as UTC.
func ParseDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return nil, false
		}
		var t time.Time
		if n >= millisThreshold {
			t = time.UnixMilli(n).UTC()
		} else {
			t = time.Unix(n, 0).UTC()
		}
		return &t, true
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		t, err = dateparse.ParseAny(s)
		if err != nil {
			return nil, false
		}
	}
	t = t.UTC()
	return &t, true
}

// firstDate returns the first candidate that parses.
func firstDate(candidates []string) *time.Time {
	for _, c := range candidates {
		if t, ok := ParseDate(c); ok {
			return t
		}
	}
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
