package wiki

import (
	"context"
	"encoding/json"
	"fmt"
)

// Item is one entry of the /mapping catalog.
// Limit is the Grand Exchange buy limit per 4-hour window; the API omits it
// for some items, which decodes as 0.
type Item struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Examine  string `json:"examine"`
	Icon     string `json:"icon"`
	Members  bool   `json:"members"`
	Value    int64  `json:"value"`
	LowAlch  int64  `json:"lowalch"`
	HighAlch int64  `json:"highalch"`
	Limit    int64  `json:"limit"`
}

// FetchMapping downloads the item catalog.
func (c *Client) FetchMapping(ctx context.Context) ([]Item, error) {
	body, err := c.get(ctx, ResourceMapping)
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	return items, nil
}
