package model

// ROCReading is the dual-horizon rate-of-change pair for one symbol.
type ROCReading struct {
	Ready     bool      `json:"ready"`
	Short     float64   `json:"short"` // % change over the short lookback
	Long      float64   `json:"long"`  // % change over the long lookback
	Alignment Direction `json:"alignment"`
}

// TierReading is one bucket of the trend hierarchy.
type TierReading struct {
	Ready     bool      `json:"ready"`
	Members   int       `json:"members"` // ready Hull instances in the tier
	Vote      float64   `json:"vote"`    // weighted vote in [-1,1]
	Direction Direction `json:"direction"`
}

// HierarchyReading classifies short/medium/long Hull tiers.
type HierarchyReading struct {
	Ready        bool        `json:"ready"`
	Short        TierReading `json:"short"`
	Medium       TierReading `json:"medium"`
	Long         TierReading `json:"long"`
	Dominant     Direction   `json:"dominant"`
	AlignmentPct float64     `json:"alignment_pct"` // 0-100
	AllAligned   bool        `json:"all_aligned"`
	Strength     float64     `json:"strength"` // 0-100
}

// Tiers returns the three tiers ordered short to long.
func (h *HierarchyReading) Tiers() [3]TierReading {
	return [3]TierReading{h.Short, h.Medium, h.Long}
}

// CycleReading is the output of the cycle-phase discriminator.
type CycleReading struct {
	Ready          bool      `json:"ready"`
	DominantCycle  float64   `json:"dominant_cycle"` // bars, within [10,50]
	Phase          float64   `json:"phase"`          // degrees
	Trendline      float64   `json:"trendline"`
	Decycler       float64   `json:"decycler"`
	Trend          float64   `json:"trend"`
	CycleComponent float64   `json:"cycle"`
	Noise          float64   `json:"noise"`
	Amplitude      float64   `json:"amplitude"`
	Power          float64   `json:"power"`
	SNR            float64   `json:"snr"`     // dB, 100 when noise power is zero
	Quality        float64   `json:"quality"` // 0-100
	TrendDirection Direction `json:"trend_direction"`
}

// AnticipationTier grades an early-reversal flag.
type AnticipationTier string

const (
	TierNone   AnticipationTier = "none"
	TierWeak   AnticipationTier = "weak"
	TierMedium AnticipationTier = "medium"
	TierStrong AnticipationTier = "strong"
)

// Anticipation is the composite early-reversal score.
type Anticipation struct {
	Ready          bool             `json:"ready"`
	Score          float64          `json:"score"` // [-100,100]
	Direction      Direction        `json:"direction"`
	Reversal       bool             `json:"reversal"`
	Tier           AnticipationTier `json:"tier"`
	ShortMomentum  float64          `json:"short_momentum"`
	MediumMomentum float64          `json:"medium_momentum"`
	LongMomentum   float64          `json:"long_momentum"`
	Acceleration   float64          `json:"acceleration"`
}

// FilterReading is the per-observation output of the digital filter bank.
// Stages lacking history leave their fields zero with the ready flag unset.
type FilterReading struct {
	Samples         int          `json:"samples"`
	HighPass        float64      `json:"high_pass"`
	Smoothed        float64      `json:"smoothed"`
	RankReady       bool         `json:"rank_ready"`
	RankCorrelation float64      `json:"rank_correlation"` // [-1,1]
	AMFMReady       bool         `json:"amfm_ready"`
	Volatility      float64      `json:"volatility"`
	Timing          float64      `json:"timing"` // [-1,1]
	Cycle           CycleReading `json:"cycle"`
	Anticipation    Anticipation `json:"anticipation"`
}
