package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timeframe is the normalized resolution/unit-count pair, independent of any
// host-native timeframe naming.
type Timeframe struct {
	Resolution string // "s", "m", "h" or "d"
	Units      int
}

// ParseTimeframe converts a host timeframe string such as "1s", "5m", "1h"
// into the normalized form. This is the one-time conversion point; callers
// cache the result for the session.
func ParseTimeframe(s string) (Timeframe, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if len(s) < 2 {
		return Timeframe{}, fmt.Errorf("timeframe %q too short", s)
	}
	res := s[len(s)-1:]
	switch res {
	case "s", "m", "h", "d":
	default:
		return Timeframe{}, fmt.Errorf("timeframe %q: unknown resolution %q", s, res)
	}
	units, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || units <= 0 {
		return Timeframe{}, fmt.Errorf("timeframe %q: bad unit count", s)
	}
	return Timeframe{Resolution: res, Units: units}, nil
}

// String renders the timeframe back into its compact form.
func (t Timeframe) String() string { return strconv.Itoa(t.Units) + t.Resolution }

// Duration returns the bar interval length.
func (t Timeframe) Duration() time.Duration {
	var unit time.Duration
	switch t.Resolution {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(t.Units) * unit
}

// Matches reports whether a requested resolution/unit pair equals this
// timeframe exactly.
func (t Timeframe) Matches(resolution string, units int) bool {
	return t.Resolution == resolution && t.Units == units
}

// IsZero reports whether the timeframe is unset.
func (t Timeframe) IsZero() bool { return t.Resolution == "" && t.Units == 0 }
