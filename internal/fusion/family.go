package fusion

import (
	"math"

	"trend-signals/internal/model"
)

// Call is a raw directional call from one recommendation family.
// The concrete types are TrendFollowing and MeanReversion.
type Call interface {
	Family() model.Family
	Direction() model.Direction
	Confidence() float64
	// Adjusted is the score used to choose between families.
	Adjusted() float64
	// Accepts reports whether the call is consistent with the ROC alignment.
	Accepts(alignment model.Direction) bool
}

// TrendFollowing is a call in the direction of the trend hierarchy.
type TrendFollowing struct {
	Dir             model.Direction
	Conf            float64
	HierarchyScore  float64
	IndicatorScore  float64
	RankScore       float64
	TimingScore     float64
	CycleScore      float64
	CrossoverBonus  float64
	AnticipationAdj float64
}

func (c TrendFollowing) Family() model.Family       { return model.FamilyTrendFollowing }
func (c TrendFollowing) Direction() model.Direction { return c.Dir }
func (c TrendFollowing) Confidence() float64        { return c.Conf }
func (c TrendFollowing) Adjusted() float64          { return c.Conf }

// Accepts requires ROC alignment in the same direction.
func (c TrendFollowing) Accepts(alignment model.Direction) bool {
	return alignment != model.Neutral && alignment == c.Dir
}

// MeanReversion is a contrarian call: buy an oversold reading inside a
// bullish long tier, sell an overbought one inside a bearish long tier.
type MeanReversion struct {
	Dir     model.Direction
	Conf    float64
	RSI     float64
	Depth   float64 // RSI points beyond the band
	Penalty float64
}

func (c MeanReversion) Family() model.Family       { return model.FamilyMeanReversion }
func (c MeanReversion) Direction() model.Direction { return c.Dir }
func (c MeanReversion) Confidence() float64        { return c.Conf }
func (c MeanReversion) Adjusted() float64          { return c.Conf - c.Penalty }

// Accepts requires ROC alignment opposite to the call.
func (c MeanReversion) Accepts(alignment model.Direction) bool {
	return alignment != model.Neutral && alignment == c.Dir.Opposite()
}

// trendFollowing builds the trend-following call, or nil when the hierarchy
// has no dominant direction.
func (a *Analyzer) trendFollowing(in Inputs) Call {
	dir := in.Hierarchy.Dominant
	if dir == model.Neutral {
		return nil
	}
	sign := dir.Sign()
	w := a.cfg.Weights

	c := TrendFollowing{Dir: dir, HierarchyScore: in.Hierarchy.Strength}
	if n := len(in.Indicators); n > 0 {
		var sum float64
		for _, r := range in.Indicators {
			if r.Direction == dir {
				sum += r.Strength
			}
		}
		c.IndicatorScore = sum / float64(n)
	}
	if in.Filter.RankReady {
		c.RankScore = math.Max(0, in.Filter.RankCorrelation*sign) * 100
	}
	if in.Filter.AMFMReady {
		c.TimingScore = math.Max(0, in.Filter.Timing*sign) * 100
	}
	if cy := in.Filter.Cycle; cy.Ready && cy.TrendDirection == dir {
		c.CycleScore = cy.Quality
	}
	if in.Crossover != 0 && float64(in.Crossover) == sign {
		c.CrossoverBonus = a.cfg.CrossoverBonus
	}
	if an := in.Filter.Anticipation; an.Ready {
		switch {
		case an.Direction == dir:
			c.AnticipationAdj = a.tierBonus(an.Tier)
		case an.Reversal && an.Direction == dir.Opposite():
			c.AnticipationAdj = -a.tierBonus(an.Tier)
		}
	}

	conf := w.Hierarchy*c.HierarchyScore + w.Indicator*c.IndicatorScore +
		w.Rank*c.RankScore + w.Timing*c.TimingScore + w.Cycle*c.CycleScore +
		c.CrossoverBonus + c.AnticipationAdj
	c.Conf = clamp100(conf)
	return c
}

// meanReversion builds the contrarian call, or nil when RSI is inside its
// band or disagrees with the long tier.
func (a *Analyzer) meanReversion(in Inputs) Call {
	if !in.RSIReady || !in.Hierarchy.Long.Ready {
		return nil
	}
	mr := a.cfg.MeanReversion
	c := MeanReversion{RSI: in.RSI, Penalty: mr.Penalty}
	switch {
	case in.Hierarchy.Long.Direction == model.Bullish && in.RSI <= mr.Oversold:
		c.Dir, c.Depth = model.Bullish, mr.Oversold-in.RSI
	case in.Hierarchy.Long.Direction == model.Bearish && in.RSI >= mr.Overbought:
		c.Dir, c.Depth = model.Bearish, in.RSI-mr.Overbought
	default:
		return nil
	}

	conf := mr.BaseConfidence + mr.DepthWeight*c.Depth + mr.LongTierWeight*math.Abs(in.Hierarchy.Long.Vote)
	if an := in.Filter.Anticipation; an.Ready && an.Direction == c.Dir {
		conf += a.tierBonus(an.Tier)
	}
	c.Conf = clamp100(conf)
	return c
}

func (a *Analyzer) tierBonus(t model.AnticipationTier) float64 {
	switch t {
	case model.TierStrong:
		return a.cfg.AnticipationBonus.Strong
	case model.TierMedium:
		return a.cfg.AnticipationBonus.Medium
	case model.TierWeak:
		return a.cfg.AnticipationBonus.Weak
	default:
		return 0
	}
}

// choose returns the call with the higher adjusted score. Ties go to the
// trend-following call.
func choose(tf, mr Call) Call {
	switch {
	case tf == nil:
		return mr
	case mr == nil:
		return tf
	case mr.Adjusted() > tf.Adjusted():
		return mr
	default:
		return tf
	}
}

func clamp100(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
