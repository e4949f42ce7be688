package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// IndicatorResult is the per-(symbol, period) output of the weighted-average
// engine. It is the common currency between the pipeline layers.
// Slope and Direction follow the base weighted average; HullSlope follows
// the Hull average.
type IndicatorResult struct {
	Symbol    string    `json:"symbol"`
	Period    int       `json:"period"`
	Value     float64   `json:"value"`      // weighted average over Period samples
	Hull      float64   `json:"hull"`       // Hull-type average, valid when HullReady
	HullReady bool      `json:"hull_ready"` // false until every Hull stage is filled
	HullSlope float64   `json:"hull_slope"` // % of value per sample
	Slope     float64   `json:"slope"`      // regression slope of Value, % per sample
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0-100
	TS        time.Time `json:"ts"`       // observation that produced this value
}

// Name returns the indicator name, e.g. "WMA_20".
func (r *IndicatorResult) Name() string {
	return "WMA_" + strconv.Itoa(r.Period)
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
