// Package tfutils parses chart interval strings.
package tfutils

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrUnsupportedInterval = errors.New("unsupported interval")

// unitSeconds maps an interval suffix to its length in seconds.
// "M" is a calendar month approximated as 30 days.
var unitSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 60 * 60,
	"d": 24 * 60 * 60,
	"w": 7 * 24 * 60 * 60,
	"M": 30 * 24 * 60 * 60,
}

// ParseInterval parses an interval string (e.g., "15m", "4h", "1d", "1w") to seconds.
func ParseInterval(interval string) (int64, error) {
	interval = strings.TrimSpace(interval)
	if len(interval) < 2 {
		return 0, ErrUnsupportedInterval
	}

	unit := interval[len(interval)-1:]
	mult, ok := unitSeconds[unit]
	if !ok {
		// Lowercase-only hosts sometimes send "1D" / "1W"
		mult, ok = unitSeconds[strings.ToLower(unit)]
		if !ok || unit == "M" {
			return 0, ErrUnsupportedInterval
		}
	}

	n, err := strconv.ParseInt(interval[:len(interval)-1], 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrUnsupportedInterval
	}
	return n * mult, nil
}

// IntervalSeconds returns the interval length in seconds, or 0 when unparsable.
func IntervalSeconds(interval string) int64 {
	secs, err := ParseInterval(interval)
	if err != nil {
		return 0
	}
	return secs
}

// GetIntervalDuration returns the duration for a given interval
func GetIntervalDuration(interval string) time.Duration {
	return time.Duration(IntervalSeconds(interval)) * time.Second
}

// GetSupportedIntervals returns the intervals offered by the chart toolbar
func GetSupportedIntervals() []string {
	return []string{"1m", "5m", "15m", "30m", "1h", "2h", "4h", "1d", "1w"}
}

// IsValidInterval checks if an interval is parsable
func IsValidInterval(interval string) bool {
	return IntervalSeconds(interval) > 0
}
