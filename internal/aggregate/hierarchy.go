package aggregate

import (
	"math"

	"trend-signals/internal/model"
)

// HierarchyConfig configures the short/medium/long Hull tiers.
type HierarchyConfig struct {
	// HistoryLength is the fixed history every tier period must divide.
	HistoryLength int
	Short         []int
	Medium        []int
	Long          []int

	// WeightExponent shapes per-period weights: log(P+1)^WeightExponent.
	WeightExponent float64
	// SlopeBand is the Hull slope dead band, % per sample.
	SlopeBand float64
	// TierThreshold is the |weighted vote| needed for a tier direction.
	TierThreshold float64
	// AlignedBonus is added to strength when all tiers agree.
	AlignedBonus float64
}

// Periods returns the valid tier periods in tier order.
func (c HierarchyConfig) Periods() []int {
	var out []int
	for _, tier := range [][]int{c.Short, c.Medium, c.Long} {
		out = append(out, c.valid(tier)...)
	}
	return out
}

// valid drops periods that do not divide the history length.
func (c HierarchyConfig) valid(periods []int) []int {
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if p < 1 {
			continue
		}
		if c.HistoryLength > 0 && c.HistoryLength%p != 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Weight returns the vote weight of a period.
func (c HierarchyConfig) Weight(period int) float64 {
	return math.Pow(math.Log(float64(period)+1), c.WeightExponent)
}

// Classify builds the hierarchy from the latest Hull results of one symbol.
// Results whose Hull is not ready are ignored. A tier with no ready member is
// not ready, and the hierarchy is ready only when every tier is.
func Classify(cfg HierarchyConfig, results []model.IndicatorResult) model.HierarchyReading {
	byPeriod := make(map[int]model.IndicatorResult, len(results))
	for _, r := range results {
		if r.HullReady {
			byPeriod[r.Period] = r
		}
	}

	h := model.HierarchyReading{
		Short:  cfg.tier(cfg.valid(cfg.Short), byPeriod),
		Medium: cfg.tier(cfg.valid(cfg.Medium), byPeriod),
		Long:   cfg.tier(cfg.valid(cfg.Long), byPeriod),
	}
	h.Ready = h.Short.Ready && h.Medium.Ready && h.Long.Ready
	if !h.Ready {
		return h
	}

	var bull, bear int
	var voteSum float64
	for _, t := range h.Tiers() {
		voteSum += t.Vote
		switch t.Direction {
		case model.Bullish:
			bull++
		case model.Bearish:
			bear++
		}
	}
	switch {
	case bull > bear:
		h.Dominant = model.Bullish
	case bear > bull:
		h.Dominant = model.Bearish
	}
	if h.Dominant == model.Neutral {
		return h
	}

	agree := bull
	if h.Dominant == model.Bearish {
		agree = bear
	}
	h.AlignmentPct = float64(agree) / 3 * 100
	h.AllAligned = agree == 3

	// Strength: mean vote magnitude in the dominant direction, scaled by
	// alignment, plus the bonus when all tiers agree.
	s := voteSum / 3 * h.Dominant.Sign() * 100
	if s < 0 {
		s = 0
	}
	s *= h.AlignmentPct / 100
	if h.AllAligned {
		s += cfg.AlignedBonus
	}
	h.Strength = math.Min(100, s)
	return h
}

func (c HierarchyConfig) tier(periods []int, byPeriod map[int]model.IndicatorResult) model.TierReading {
	var t model.TierReading
	var num, den float64
	for _, p := range periods {
		r, ok := byPeriod[p]
		if !ok {
			continue
		}
		w := c.Weight(p)
		num += w * model.DirectionOf(r.HullSlope, c.SlopeBand).Sign()
		den += w
		t.Members++
	}
	if t.Members == 0 || den == 0 {
		return t
	}
	t.Ready = true
	t.Vote = num / den
	t.Direction = model.DirectionOf(t.Vote, c.TierThreshold)
	return t
}
