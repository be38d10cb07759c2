package models

// RangeQuery is a pull-protocol request for historical bars. Symbol and
// resolution/units are optional; when present they must match the adapter's
// current instrument exactly.
type RangeQuery struct {
	RequestID  string `json:"requestId" validate:"required"`
	Symbol     string `json:"symbol,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Units      int    `json:"unitCount,omitempty"`
	StartMs    int64  `json:"startTimeMs" validate:"gte=0"`
	EndMs      int64  `json:"endTimeMs" validate:"gtefield=StartMs"`
}

// HasTimeframe reports whether the request pins a resolution/unit pair.
func (q RangeQuery) HasTimeframe() bool { return q.Resolution != "" || q.Units != 0 }

// Diagnostic strings for rejected range queries. Debug stays empty when a
// valid query simply has no data in range.
const (
	DebugNotInitialized    = "not initialized"
	DebugSymbolMismatch    = "symbol mismatch"
	DebugTimeframeMismatch = "timeframe mismatch"
)

// RangeResponse answers a RangeQuery. Bars is never nil.
type RangeResponse struct {
	RequestID string      `json:"requestId"`
	Symbol    string      `json:"symbol"`
	Bars      []BarRecord `json:"bars"`
	Count     int         `json:"barsCollected"`
	Debug     string      `json:"debugInfo,omitempty"`
}
