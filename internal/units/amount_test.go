package units

import (
	"errors"
	"testing"
)

func TestParseAmount_Suffixes(t *testing.T) {
	cases := map[string]float64{
		"5k":   5000,
		"2m":   2_000_000,
		"1.2b": 1_200_000_000,
		"1kb":  1000 * 1e9,
		"5K":   5000,
		" 3m ": 3_000_000,
		"k":    1000,
		".5k":  500,
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAmount(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "5", "", "1.2.3k", ".k", "5x", "k5", "-5k"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q) err = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		999:           "999",
		5000:          "5k",
		1_500_000:     "1.5m",
		1_200_000_000: "1.2b",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}
