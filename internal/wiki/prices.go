package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Resource names understood by the API.
const (
	ResourceMapping = "mapping"
	ResourceLatest  = "latest"
	Resource5m      = "5m"
	Resource10m     = "10m"
	Resource30m     = "30m"
	Resource1h      = "1h"
	Resource6h      = "6h"
	Resource24h     = "24h"
)

// PriceResources lists the resources that can back a price snapshot, in UI order.
var PriceResources = []string{
	ResourceLatest, Resource5m, Resource10m, Resource30m, Resource1h, Resource6h, Resource24h,
}

// VolumeResource backs the volume snapshot; LookbackHours is its window.
const (
	VolumeResource = Resource24h
	LookbackHours  = 24
)

// IsPriceResource reports whether name can be passed to FetchPrices.
func IsPriceResource(name string) bool {
	for _, r := range PriceResources {
		if r == name {
			return true
		}
	}
	return false
}

// Price holds the average low/high trade prices for an item.
// nil means no trade was seen in the window.
type Price struct {
	AvgLow  *int64
	AvgHigh *int64
}

// Volume holds the traded quantities at the low and high side.
type Volume struct {
	Low  int64
	High int64
}

// PriceSnapshot is one normalized price response.
type PriceSnapshot struct {
	Resource  string
	Timestamp time.Time
	Items     map[int]Price
}

// VolumeSnapshot is one volume response covering LookbackHours.
type VolumeSnapshot struct {
	Resource      string
	Timestamp     time.Time
	LookbackHours float64
	Items         map[int]Volume
}

// latestPoint mirrors one /latest entry, which uses high/low rather than avg fields.
type latestPoint struct {
	High     *int64 `json:"high"`
	HighTime *int64 `json:"highTime"`
	Low      *int64 `json:"low"`
	LowTime  *int64 `json:"lowTime"`
}

// intervalPoint mirrors one /5m ... /24h entry.
type intervalPoint struct {
	AvgHighPrice    *int64 `json:"avgHighPrice"`
	HighPriceVolume *int64 `json:"highPriceVolume"`
	AvgLowPrice     *int64 `json:"avgLowPrice"`
	LowPriceVolume  *int64 `json:"lowPriceVolume"`
}

type dataResponse[T any] struct {
	Data      map[string]T `json:"data"`
	Timestamp int64        `json:"timestamp"`
}

// FetchPrices downloads a price snapshot from resource (see PriceResources).
func (c *Client) FetchPrices(ctx context.Context, resource string) (PriceSnapshot, error) {
	if !IsPriceResource(resource) {
		return PriceSnapshot{}, fmt.Errorf("unknown price resource %q", resource)
	}
	body, err := c.get(ctx, resource)
	if err != nil {
		return PriceSnapshot{}, err
	}
	if resource == ResourceLatest {
		return decodeLatest(body)
	}
	return decodeIntervalPrices(resource, body)
}

// FetchVolumes downloads the 24h volume snapshot.
func (c *Client) FetchVolumes(ctx context.Context) (VolumeSnapshot, error) {
	body, err := c.get(ctx, VolumeResource)
	if err != nil {
		return VolumeSnapshot{}, err
	}
	return decodeVolumes(VolumeResource, body)
}

func decodeLatest(body []byte) (PriceSnapshot, error) {
	var resp dataResponse[latestPoint]
	if err := json.Unmarshal(body, &resp); err != nil {
		return PriceSnapshot{}, fmt.Errorf("decode latest: %w", err)
	}
	snap := PriceSnapshot{
		Resource:  ResourceLatest,
		Timestamp: time.Now(),
		Items:     make(map[int]Price, len(resp.Data)),
	}
	for key, p := range resp.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		snap.Items[id] = Price{AvgLow: p.Low, AvgHigh: p.High}
	}
	return snap, nil
}

func decodeIntervalPrices(resource string, body []byte) (PriceSnapshot, error) {
	var resp dataResponse[intervalPoint]
	if err := json.Unmarshal(body, &resp); err != nil {
		return PriceSnapshot{}, fmt.Errorf("decode %s: %w", resource, err)
	}
	snap := PriceSnapshot{
		Resource:  resource,
		Timestamp: apiTime(resp.Timestamp),
		Items:     make(map[int]Price, len(resp.Data)),
	}
	for key, p := range resp.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		snap.Items[id] = Price{AvgLow: p.AvgLowPrice, AvgHigh: p.AvgHighPrice}
	}
	return snap, nil
}

func decodeVolumes(resource string, body []byte) (VolumeSnapshot, error) {
	var resp dataResponse[intervalPoint]
	if err := json.Unmarshal(body, &resp); err != nil {
		return VolumeSnapshot{}, fmt.Errorf("decode %s: %w", resource, err)
	}
	snap := VolumeSnapshot{
		Resource:      resource,
		Timestamp:     apiTime(resp.Timestamp),
		LookbackHours: LookbackHours,
		Items:         make(map[int]Volume, len(resp.Data)),
	}
	for key, p := range resp.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		var v Volume
		if p.LowPriceVolume != nil {
			v.Low = *p.LowPriceVolume
		}
		if p.HighPriceVolume != nil {
			v.High = *p.HighPriceVolume
		}
		snap.Items[id] = v
	}
	return snap, nil
}

// apiTime converts the unix timestamp in interval responses; 0 means now.
func apiTime(ts int64) time.Time {
	if ts <= 0 {
		return time.Now()
	}
	return time.Unix(ts, 0)
}
