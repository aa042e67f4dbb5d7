package engine

import (
	"math"
	"sort"
)

// EffectivePageLimit returns v, or defaultVal if v <= 0.
func EffectivePageLimit(v int, defaultVal int) int {
	if v <= 0 {
		return defaultVal
	}
	return v
}

// Viable reports whether c belongs in ranked output: both prices present,
// a positive margin, at least one whole unit, and not on the exclusion list.
func Viable(c Candidate) bool {
	if c.Low <= 0 || c.High <= 0 {
		return false
	}
	if c.Margin <= 0 {
		return false
	}
	if c.Units() <= 0 {
		return false
	}
	return !IsExcludedItem(c.ItemID)
}

// Rank filters candidates with Viable, stable-sorts them by Profit descending
// and keeps the first pageLimit (0 = DefaultPageLimit). The input is not modified.
func Rank(candidates []Candidate, pageLimit int) []Candidate {
	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if Viable(c) {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Profit > ranked[j].Profit
	})

	limit := EffectivePageLimit(pageLimit, DefaultPageLimit)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Summarize returns the count, best and total profit of a ranked page.
func Summarize(ranked []Candidate) Summary {
	s := Summary{Count: len(ranked)}
	for _, c := range ranked {
		if c.Profit > s.TopProfit {
			s.TopProfit = c.Profit
		}
		if c.Profit > math.MaxInt64-s.TotalProfit {
			s.TotalProfit = math.MaxInt64
		} else {
			s.TotalProfit += c.Profit
		}
	}
	return s
}
