// Package fusion turns indicator, filter-bank and aggregation outputs into a
// per-symbol directional call, smooths it through a persistence state
// machine and emits the scored recommendation.
package fusion

// Weights blends the trend-following confidence components (each 0-100).
type Weights struct {
	Hierarchy float64
	Indicator float64
	Rank      float64
	Timing    float64
	Cycle     float64
}

// TierBonus is added for an anticipatory score of the given tier.
type TierBonus struct {
	Weak   float64
	Medium float64
	Strong float64
}

// MeanReversionConfig configures the contrarian family.
type MeanReversionConfig struct {
	Oversold       float64 // RSI at or below this is oversold
	Overbought     float64
	BaseConfidence float64
	DepthWeight    float64 // points per RSI point beyond the band
	LongTierWeight float64 // points per unit |long tier vote|
	Penalty        float64 // subtracted from the adjusted score
}

// Config configures the analyzer.
type Config struct {
	Signal SignalConfig

	// DisplayPeriods are the periods reported in the analysis snapshot and
	// used for indicator agreement.
	DisplayPeriods []int

	Weights           Weights
	CrossoverBonus    float64
	AnticipationBonus TierBonus
	MeanReversion     MeanReversionConfig

	// ReconfirmBonus is added to the score once a confirmed call has been
	// reconfirmed at least once.
	ReconfirmBonus float64
	// MinScore is the lowest score surfaced as BUY/SELL.
	MinScore float64
}

// DefaultConfig returns the analyzer parameters used by the hosted service.
func DefaultConfig() Config {
	return Config{
		Signal:         DefaultSignalConfig(),
		DisplayPeriods: []int{5, 10, 20},
		Weights: Weights{
			Hierarchy: 0.35,
			Indicator: 0.25,
			Rank:      0.15,
			Timing:    0.10,
			Cycle:     0.15,
		},
		CrossoverBonus:    15,
		AnticipationBonus: TierBonus{Weak: 5, Medium: 15, Strong: 25},
		MeanReversion: MeanReversionConfig{
			Oversold:       30,
			Overbought:     70,
			BaseConfidence: 45,
			DepthWeight:    1.5,
			LongTierWeight: 20,
			Penalty:        5,
		},
		ReconfirmBonus: 5,
		MinScore:       40,
	}
}
