// Package render turns ranked candidates into table rows and writes them to
// output sinks.
package render

import (
	"fmt"

	"github.com/SyfSchydea/osrs-flip/internal/engine"
	"github.com/dustin/go-humanize"
)

// ItemURL is the prices page for an item.
const ItemURL = "https://prices.runescape.wiki/osrs/item/%d"

// Row is one rendered table line.
type Row struct {
	ItemID     int    `json:"item_id"`
	Name       string `json:"name"`
	Link       string `json:"link"`
	BuyLimit   int64  `json:"buy_limit"` // 0 = unknown
	Low        int64  `json:"low"`
	High       int64  `json:"high"`
	Margin     int64  `json:"margin"`
	LowVolume  int64  `json:"low_volume"`
	HighVolume int64  `json:"high_volume"`
	Quantity   int64  `json:"quantity"`
	Limit      string `json:"limiting_factor"`
	Profit     int64  `json:"profit"`
}

// Headers are the column titles, in Cells order.
var Headers = []string{
	"Item", "Buy Limit", "Low", "High", "Margin", "Low Vol", "High Vol", "Quantity", "Limited By", "Profit",
}

// BuildRows converts ranked candidates to rows, preserving order.
func BuildRows(ranked []engine.Candidate) []Row {
	rows := make([]Row, 0, len(ranked))
	for _, c := range ranked {
		rows = append(rows, Row{
			ItemID:     c.ItemID,
			Name:       c.Name,
			Link:       fmt.Sprintf(ItemURL, c.ItemID),
			BuyLimit:   c.BuyLimit,
			Low:        c.Low,
			High:       c.High,
			Margin:     c.Margin,
			LowVolume:  c.LowVolume,
			HighVolume: c.HighVolume,
			Quantity:   c.Units(),
			Limit:      c.Limit.String(),
			Profit:     c.Profit,
		})
	}
	return rows
}

// Cells returns the display strings for r with thousands separators.
func (r Row) Cells() []string {
	limit := "?"
	if r.BuyLimit > 0 {
		limit = humanize.Comma(r.BuyLimit)
	}
	return []string{
		r.Name,
		limit,
		humanize.Comma(r.Low),
		humanize.Comma(r.High),
		humanize.Comma(r.Margin),
		humanize.Comma(r.LowVolume),
		humanize.Comma(r.HighVolume),
		humanize.Comma(r.Quantity),
		r.Limit,
		humanize.Comma(r.Profit),
	}
}

// Presenter is a render sink. Render replaces whatever the sink showed before.
type Presenter interface {
	Render(rows []Row) error
}

// Multi fans one render out to several sinks and returns the first error.
type Multi []Presenter

// Render calls every sink even if an earlier one fails.
func (m Multi) Render(rows []Row) error {
	var first error
	for _, p := range m {
		if err := p.Render(rows); err != nil && first == nil {
			first = err
		}
	}
	return first
}
