package flipper

import (
	"context"

	"github.com/SyfSchydea/osrs-flip/internal/units"
)

// Patch is a partial input update. Nil fields are left alone.
type Patch struct {
	Cash        *string
	Period      *string
	PricePeriod *string
	AutoRefresh *bool
	Visible     *bool
}

// Apply validates every field of p before changing anything, so a bad field
// leaves all inputs as they were. A price period change refetches prices; a
// fetch failure is returned after the inputs have been applied.
func (s *Session) Apply(ctx context.Context, p Patch) (Inputs, error) {
	var (
		cash        int64
		cashDisplay string
		holdHours   float64
	)
	if p.Cash != nil {
		var err error
		if cash, cashDisplay, err = cashInput(*p.Cash); err != nil {
			return s.Inputs(), s.rejected(err)
		}
	}
	if p.Period != nil {
		h, err := parseHolding(*p.Period)
		if err != nil {
			return s.Inputs(), s.rejected(err)
		}
		holdHours = h
	}
	if p.PricePeriod != nil {
		if err := checkPricePeriod(*p.PricePeriod); err != nil {
			return s.Inputs(), s.rejected(err)
		}
	}

	s.mu.Lock()
	recompute := false
	if p.Cash != nil {
		s.cashText, s.cash = cashDisplay, cash
		recompute = true
	}
	if p.Period != nil {
		s.holdHours, s.periodText = holdHours, units.FormatPeriod(holdHours)
		recompute = true
	}
	refetch := p.PricePeriod != nil && *p.PricePeriod != s.pricePeriod
	if p.PricePeriod != nil {
		s.pricePeriod = *p.PricePeriod
	}
	s.mu.Unlock()

	if p.AutoRefresh != nil {
		s.SetAutoRefresh(*p.AutoRefresh)
	}
	if p.Visible != nil {
		s.SetVisible(*p.Visible)
	}
	if recompute {
		s.requestRender()
	}
	if refetch {
		if err := s.RefreshPrices(ctx); err != nil {
			return s.Inputs(), err
		}
	}
	return s.Inputs(), nil
}
