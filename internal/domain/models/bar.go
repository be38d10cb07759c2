package models

import (
	"fmt"
	"time"
)

// PriceLevel is one price tick of the intra-bar footprint.
type PriceLevel struct {
	Price     float64 `json:"price"`
	BidVolume float64 `json:"bidVolume"`
	AskVolume float64 `json:"askVolume"`
}

// CachedBar is an immutable completed bar. Times are always UTC; callers must
// route every host-provided timestamp through NormalizeTime before building one.
type CachedBar struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Levels    []PriceLevel
}

// Key returns the cache key for the bar.
func (b CachedBar) Key() int64 { return b.CloseTime.UnixMilli() }

// Validate checks the bar invariants.
func (b CachedBar) Validate() error {
	if !b.OpenTime.Before(b.CloseTime) {
		return fmt.Errorf("open time %v not before close time %v", b.OpenTime, b.CloseTime)
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("ohlc out of range: o=%v h=%v l=%v c=%v", b.Open, b.High, b.Low, b.Close)
	}
	return nil
}

// Record builds the outbound message for a completed bar.
func (b CachedBar) Record(symbol, resolution string, units int) BarRecord {
	return BarRecord{
		Symbol:      symbol,
		Resolution:  resolution,
		Units:       units,
		OpenTimeMs:  b.OpenTime.UnixMilli(),
		CloseTimeMs: b.CloseTime.UnixMilli(),
		Open:        b.Open,
		High:        b.High,
		Low:         b.Low,
		Close:       b.Close,
		Volume:      b.Volume,
		Levels:      b.Levels,
	}
}

// BarRecord is the push-protocol message, also reused as the bar shape in
// range responses. Not stored; built on demand from a CachedBar.
type BarRecord struct {
	Symbol      string       `json:"symbol"`
	Resolution  string       `json:"resolution"`
	Units       int          `json:"unitCount"`
	OpenTimeMs  int64        `json:"openTimeMs"`
	CloseTimeMs int64        `json:"closeTimeMs"`
	Open        float64      `json:"open"`
	High        float64      `json:"high"`
	Low         float64      `json:"low"`
	Close       float64      `json:"close"`
	Volume      float64      `json:"volume"`
	Levels      []PriceLevel `json:"priceLevels"`
}

// NormalizeTime is the single normalization point for host timestamps.
// Cache keys and boundary comparisons must only ever see its output.
func NormalizeTime(t time.Time) time.Time { return t.UTC() }
