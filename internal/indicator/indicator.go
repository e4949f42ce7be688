// Package indicator provides O(1) streaming smoothing filters over price
// observations and the per-(symbol, period) weighted-average engine.
//
// All indicators implement the Indicator interface, receiving raw values and
// producing float64 values. Indicators are designed to be composable: an
// unready stage reports (0, false) and composition propagates that eagerly.
package indicator

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "WMA", "HULL", "RSI").
	Name() string

	// Add feeds a new value and returns the updated output, or false while
	// not enough data has been accumulated.
	Add(v float64) (float64, bool)

	// Value returns the last calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool

	// Reset clears all state for reuse.
	Reset()
}
