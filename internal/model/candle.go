package model

import (
	"encoding/json"
	"time"
)

// Candle is an already-reconstructed OHLC bar for a single instrument.
// Prices are plain float64 quotes as delivered by the market-data collaborator.
type Candle struct {
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	TS     time.Time `json:"ts"` // bar timestamp (UTC)
}

// Key returns the partition key for this candle's instrument.
func (c *Candle) Key() string {
	return c.Symbol
}

// Valid reports whether the candle carries usable prices.
func (c *Candle) Valid() bool {
	return c.Symbol != "" &&
		validPrice(c.Open) && validPrice(c.High) && validPrice(c.Low) && validPrice(c.Close) &&
		c.High >= c.Low
}

// Observation converts the bar into the price observation fed to the pipeline.
func (c *Candle) Observation() Observation {
	return Observation{Symbol: c.Symbol, Open: c.Open, Close: c.Close, TS: c.TS}
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Observation is one price observation as seen by the indicator pipeline.
// For ticks, Open is the previous quote of the same symbol.
type Observation struct {
	Symbol string
	Open   float64
	Close  float64
	TS     time.Time
}
