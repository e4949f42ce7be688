package model

import (
	"math"
	"time"
)

// Tick is a single raw quote from the market-data collaborator.
type Tick struct {
	Symbol string  `json:"symbol"`
	Quote  float64 `json:"quote"`
	Epoch  int64   `json:"epoch"` // unix seconds
}

// Time returns the tick timestamp in UTC.
func (t *Tick) Time() time.Time {
	return time.Unix(t.Epoch, 0).UTC()
}

// Valid reports whether the tick carries a usable quote.
func (t *Tick) Valid() bool {
	return t.Symbol != "" && validPrice(t.Quote)
}

// validPrice reports whether v is a positive finite quote.
func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
