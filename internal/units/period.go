package units

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidPeriod is returned when a duration string cannot be parsed.
var ErrInvalidPeriod = errors.New("invalid period")

var periodPattern = regexp.MustCompile(`^\s*(\d*\.?\d*)\s*([A-Za-z]*)\s*$`)

// unitSeconds maps every accepted unit word to its length in seconds.
var unitSeconds = map[string]float64{
	"":        3600,
	"h":       3600,
	"hr":      3600,
	"hrs":     3600,
	"hour":    3600,
	"hours":   3600,
	"d":       86400,
	"day":     86400,
	"days":    86400,
	"m":       60,
	"min":     60,
	"mins":    60,
	"minute":  60,
	"minutes": 60,
	"s":       1,
	"sec":     1,
	"secs":    1,
	"second":  1,
	"seconds": 1,
}

// ParsePeriod converts strings like "10m", "1d" or "2 hours" into hours.
// A missing unit means hours and a missing number means 1, so "" parses as 1.
// Zero is a valid parse result; callers decide whether to accept it.
func ParsePeriod(s string) (float64, error) {
	m := periodPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}

	secs, ok := unitSeconds[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidPeriod, m[2])
	}

	value := 1.0
	if m[1] != "" {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		value = v
	}

	return value * secs / 3600, nil
}

// FormatPeriod renders hours back into the shortest canonical unit:
// whole days as "Nd", anything of an hour or more as "Nh", then minutes and seconds.
func FormatPeriod(hours float64) string {
	switch {
	case hours >= 24 && isWhole(hours/24):
		return trimFloat(hours/24) + "d"
	case hours >= 1:
		return trimFloat(hours) + "h"
	case hours*60 >= 1-1e-9:
		return trimFloat(hours*60) + "m"
	}
	return trimFloat(hours*3600) + "s"
}

func isWhole(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-9
}
