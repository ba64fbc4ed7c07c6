// Package dateutil parses the dates used to select records and releases.
package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jinzhu/now"
)

// Parse parses a date in one of many common layouts.
func Parse(value string) (time.Time, error) {
	return dateparse.ParseStrict(value)
}

// MustParse is like Parse but panics on error
func MustParse(value string) time.Time {
	t, err := dateparse.ParseStrict(value)
	if err != nil {
		panic(err)
	}
	return t
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	return now.With(t).BeginningOfDay()
}

// ParseSince parses either a date or a relative offset like "7d", "2w", "3m"
// or "1y" before ref. The result is the start of that day.
func ParseSince(value string, ref time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if n := len(value) - 1; n > 0 {
		if k, err := strconv.Atoi(value[:n]); err == nil && k >= 0 {
			switch value[n] {
			case 'd':
				return StartOfDay(ref.AddDate(0, 0, -k)), nil
			case 'w':
				return StartOfDay(ref.AddDate(0, 0, -7*k)), nil
			case 'm':
				return StartOfDay(ref.AddDate(0, -k, 0)), nil
			case 'y':
				return StartOfDay(ref.AddDate(-k, 0, 0)), nil
			}
		}
	}
	t, err := Parse(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse date %q: %w", value, err)
	}
	return StartOfDay(t), nil
}
