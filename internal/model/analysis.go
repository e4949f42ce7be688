package model

import (
	"encoding/json"
	"time"
)

// Recommendation is the action surfaced to the execution/UI layer.
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendSell Recommendation = "SELL"
	RecommendHold Recommendation = "HOLD"
)

// RecommendationFor maps a direction to BUY/SELL/HOLD.
func RecommendationFor(d Direction) Recommendation {
	switch d {
	case Bullish:
		return RecommendBuy
	case Bearish:
		return RecommendSell
	default:
		return RecommendHold
	}
}

// Family tags which recommendation family produced a call.
type Family string

const (
	FamilyNone           Family = "none"
	FamilyTrendFollowing Family = "trend_following"
	FamilyMeanReversion  Family = "mean_reversion"
)

// HoldReason is the machine-readable reason attached to a HOLD.
type HoldReason string

const (
	ReasonNone              HoldReason = ""
	ReasonInsufficientData  HoldReason = "insufficient_data"
	ReasonNoConfirmedSignal HoldReason = "no_confirmed_signal"
	ReasonROCNotReady       HoldReason = "roc_not_ready"
	ReasonROCNeutral        HoldReason = "roc_neutral"
	ReasonROCConflict       HoldReason = "roc_alignment_conflict"
	ReasonNoCandidate       HoldReason = "no_candidate"
	ReasonBelowMinScore     HoldReason = "below_min_score"
)

// Quality grades how trustworthy the filter-bank view of a symbol is.
type Quality string

const (
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

// QualityOf grades a 0-100 signal-quality score.
func QualityOf(score float64) Quality {
	switch {
	case score >= 75:
		return QualityExcellent
	case score >= 50:
		return QualityGood
	case score >= 25:
		return QualityFair
	default:
		return QualityPoor
	}
}

// StrengthClass grades a 0-100 confidence.
type StrengthClass string

const (
	StrengthWeak       StrengthClass = "weak"
	StrengthModerate   StrengthClass = "moderate"
	StrengthStrong     StrengthClass = "strong"
	StrengthVeryStrong StrengthClass = "very_strong"
)

// StrengthClassOf grades a 0-100 confidence.
func StrengthClassOf(confidence float64) StrengthClass {
	switch {
	case confidence >= 80:
		return StrengthVeryStrong
	case confidence >= 60:
		return StrengthStrong
	case confidence >= 40:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// SignalState is the persistence state of a symbol's directional call.
type SignalState string

const (
	StateNoSignal  SignalState = "NO_SIGNAL"
	StatePending   SignalState = "PENDING"
	StateConfirmed SignalState = "CONFIRMED"
)

// SignalSnapshot is a read-only copy of a symbol's signal cache entry.
type SignalSnapshot struct {
	State         SignalState `json:"state"`
	Direction     Direction   `json:"direction"`
	Confirmations int         `json:"confirmations"`
	Strength      float64     `json:"strength"`
	Since         time.Time   `json:"since,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at,omitempty"`
}

// Snapshot is the supporting indicator set behind an analysis.
type Snapshot struct {
	Indicators []IndicatorResult `json:"indicators"`
	Crossover  int               `json:"crossover"`
	RSIReady   bool              `json:"rsi_ready"`
	RSI        float64           `json:"rsi"`
	ROC        ROCReading        `json:"roc"`
	Hierarchy  HierarchyReading  `json:"hierarchy"`
	Filter     FilterReading     `json:"filter"`
}

// TrendAnalysis is the final per-symbol record. It is replaced wholesale on
// each analysis cycle and must be treated as read-only by consumers.
type TrendAnalysis struct {
	Symbol         string         `json:"symbol"`
	Direction      Direction      `json:"direction"`
	StrengthClass  StrengthClass  `json:"strength_class"`
	Confidence     float64        `json:"confidence"` // 0-100
	Score          float64        `json:"score"`      // 0-100
	Recommendation Recommendation `json:"recommendation"`
	Family         Family         `json:"family"`
	Reason         HoldReason     `json:"reason,omitempty"`
	Quality        Quality        `json:"quality"`
	Signal         SignalSnapshot `json:"signal"`
	Snapshot       Snapshot       `json:"snapshot"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Actionable reports whether the record carries a BUY or SELL.
func (a *TrendAnalysis) Actionable() bool {
	return a.Recommendation != RecommendHold
}

// JSON returns the JSON-encoded analysis record.
func (a *TrendAnalysis) JSON() []byte {
	b, _ := json.Marshal(a)
	return b
}
