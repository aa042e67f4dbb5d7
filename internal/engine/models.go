package engine

import (
	"fmt"
	"math"
)

const (
	// DefaultPageLimit is the number of ranked rows returned when not specified.
	DefaultPageLimit = 50
	// DefaultCashBudget is used when the user has not entered a cash stack.
	// Large enough that cash never binds for realistic prices.
	DefaultCashBudget int64 = math.MaxInt32
	// DefaultHoldingHours is one buy-limit window.
	DefaultHoldingHours = 4.0
	// DefaultLookbackHours matches the 24h volume resource.
	DefaultLookbackHours = 24.0
	// BuyLimitWindowHours is how often the Grand Exchange buy limit resets.
	BuyLimitWindowHours = 4.0
)

// LimitingFactor names the constraint that decided a candidate's quantity.
// The numeric order is also the tie-break order.
type LimitingFactor int

const (
	LimitCash LimitingFactor = iota
	LimitBuyLimit
	LimitLowVolume
	LimitHighVolume
)

func (f LimitingFactor) String() string {
	switch f {
	case LimitCash:
		return "Cash Stack"
	case LimitBuyLimit:
		return "Buy Limit"
	case LimitLowVolume:
		return "Low Volume"
	case LimitHighVolume:
		return "High Volume"
	}
	return fmt.Sprintf("LimitingFactor(%d)", int(f))
}

// MarshalText encodes the display label.
func (f LimitingFactor) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Params holds the user constraints for one calculation pass.
type Params struct {
	CashBudget          int64   // 0 = DefaultCashBudget
	HoldingHours        float64 // 0 = DefaultHoldingHours
	LookbackHours       float64 // 0 = DefaultLookbackHours
	BuyLimitWindowHours float64 // 0 = BuyLimitWindowHours
}

// WithDefaults fills unset (<= 0) fields.
func (p Params) WithDefaults() Params {
	if p.CashBudget <= 0 {
		p.CashBudget = DefaultCashBudget
	}
	if p.HoldingHours <= 0 {
		p.HoldingHours = DefaultHoldingHours
	}
	if p.LookbackHours <= 0 {
		p.LookbackHours = DefaultLookbackHours
	}
	if p.BuyLimitWindowHours <= 0 {
		p.BuyLimitWindowHours = BuyLimitWindowHours
	}
	return p
}

// BuyLimitWindows returns how many buy-limit resets fit in the holding period,
// rounded up: a 5h hold gets two 4h windows.
func (p Params) BuyLimitWindows() float64 {
	return math.Ceil(p.HoldingHours / p.BuyLimitWindowHours)
}

// Candidate is one item's flip opportunity for a calculation pass.
type Candidate struct {
	ItemID     int
	Name       string
	BuyLimit   int64 // per window; 0 = unknown
	Low        int64 // buy at the low side
	High       int64 // sell at the high side
	LowVolume  int64
	HighVolume int64

	Margin int64

	// Candidate quantities; Quantity is the smallest of the four.
	CashQty       float64
	BuyLimitQty   float64 // +Inf when BuyLimit is unknown
	LowVolumeQty  float64
	HighVolumeQty float64
	Quantity      float64
	Limit         LimitingFactor

	// Profit is Margin * floor(Quantity), 0 for a non-positive margin and
	// saturated at MaxInt64.
	Profit int64
}

// Units is the whole number of items to buy, capped at MaxInt64.
func (c Candidate) Units() int64 {
	q := math.Floor(c.Quantity)
	if q >= maxUnits {
		return math.MaxInt64
	}
	if q <= 0 || math.IsNaN(q) {
		return 0
	}
	return int64(q)
}

// maxUnits is 2^63, the first float64 past MaxInt64.
const maxUnits = float64(1 << 63)

// Summary aggregates a ranked page.
type Summary struct {
	Count       int
	TopProfit   int64
	TotalProfit int64
}
