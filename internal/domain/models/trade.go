package models

// Trade is a single trade event from a market stream, used by the built-in
// feed to grow forming bars.
type Trade struct {
	Symbol string
	TimeMs int64
	Price  float64
	Volume float64
}
