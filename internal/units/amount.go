package units

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned when a cash amount cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

var amountPattern = regexp.MustCompile(`(?i)^\s*(\d*\.?\d*)([kmb]+)\s*$`)

var suffixMultipliers = map[byte]float64{
	'k': 1e3,
	'm': 1e6,
	'b': 1e9,
}

// ParseAmount converts shorthand like "5k", "2m", "1.2b" into a magnitude.
// Suffixes stack in the order given, so "1kb" is 1e3 * 1e9.
// At least one suffix is required; a bare number is rejected.
// A missing numeric part counts as 1 ("k" == 1000).
func ParseAmount(s string) (float64, error) {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	value := 1.0
	if m[1] != "" {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		value = v
	}

	for _, c := range []byte(strings.ToLower(m[2])) {
		value *= suffixMultipliers[c]
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return value, nil
}

// FormatAmount renders v using the largest suffix that keeps the mantissa >= 1.
// Values below 1000 are printed as plain integers.
func FormatAmount(v float64) string {
	switch {
	case v >= 1e9:
		return trimFloat(v/1e9) + "b"
	case v >= 1e6:
		return trimFloat(v/1e6) + "m"
	case v >= 1e3:
		return trimFloat(v/1e3) + "k"
	}
	return strconv.FormatFloat(math.Round(v), 'f', -1, 64)
}

// trimFloat rounds to 4 decimals and drops trailing zeros.
func trimFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}
