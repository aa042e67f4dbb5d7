package engine

import (
	"math"

	"github.com/SyfSchydea/osrs-flip/internal/wiki"
)

// ComputeCandidates joins the catalog with price and volume data and derives
// one Candidate per item, in catalog order.
// Items without a price or volume record, or with an absent or zero low/high
// price, are skipped rather than defaulted. The function is pure.
func ComputeCandidates(catalog []wiki.Item, prices map[int]wiki.Price, volumes map[int]wiki.Volume, params Params) []Candidate {
	p := params.WithDefaults()
	windows := p.BuyLimitWindows()

	out := make([]Candidate, 0, len(catalog))
	for _, item := range catalog {
		price, ok := prices[item.ID]
		if !ok || !hasPrice(price.AvgLow) || !hasPrice(price.AvgHigh) {
			continue
		}
		vol, ok := volumes[item.ID]
		if !ok {
			continue
		}

		low, high := *price.AvgLow, *price.AvgHigh
		c := Candidate{
			ItemID:     item.ID,
			Name:       item.Name,
			BuyLimit:   item.Limit,
			Low:        low,
			High:       high,
			LowVolume:  vol.Low,
			HighVolume: vol.High,
			Margin:     high - low,
		}

		c.CashQty = float64(p.CashBudget / low)
		if item.Limit > 0 {
			c.BuyLimitQty = float64(item.Limit) * windows
		} else {
			c.BuyLimitQty = math.Inf(1)
		}
		c.LowVolumeQty = float64(vol.Low) / p.LookbackHours * p.HoldingHours
		c.HighVolumeQty = float64(vol.High) / p.LookbackHours * p.HoldingHours

		c.Quantity, c.Limit = limitingQuantity(c.CashQty, c.BuyLimitQty, c.LowVolumeQty, c.HighVolumeQty)
		c.Profit = profit(c.Margin, c.Units())

		out = append(out, c)
	}
	return out
}

// limitingQuantity returns the smallest quantity and which constraint produced it.
// Ties go to the earliest constraint in LimitingFactor order.
func limitingQuantity(qtys ...float64) (float64, LimitingFactor) {
	best, factor := qtys[0], LimitCash
	for i := 1; i < len(qtys); i++ {
		if qtys[i] < best {
			best, factor = qtys[i], LimitingFactor(i)
		}
	}
	return best, factor
}

// hasPrice treats nil and zero as "no recent trade".
func hasPrice(p *int64) bool {
	return p != nil && *p > 0
}

// profit is margin * units, saturated at MaxInt64. Losing flips yield 0.
func profit(margin, units int64) int64 {
	if margin <= 0 || units <= 0 {
		return 0
	}
	if margin > math.MaxInt64/units {
		return math.MaxInt64
	}
	return margin * units
}
