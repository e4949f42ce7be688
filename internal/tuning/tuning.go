// Package tuning loads the empirically tuned constants of the pipeline from
// an optional YAML file. Every field carries its default in a `default` tag
// and its bounds in a `validate` tag; a file only needs the keys it changes.
package tuning

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"trend-signals/internal/aggregate"
	"trend-signals/internal/dsp"
	"trend-signals/internal/fusion"
	"trend-signals/internal/indicator"
	"trend-signals/internal/model"
	"trend-signals/internal/pipeline"
	"trend-signals/internal/scanner"
)

type Indicator struct {
	Periods        []int   `yaml:"periods" default:"[5,10,20]" validate:"min=1,dive,gte=2"`
	FastPeriod     int     `yaml:"fast_period" validate:"gte=0"`
	SlowPeriod     int     `yaml:"slow_period" validate:"gte=0"`
	SlopeThreshold float64 `yaml:"slope_threshold" default:"0.05" validate:"gt=0"`
	RSIPeriod      int     `yaml:"rsi_period" default:"14" validate:"gte=2"`
}

type Cycle struct {
	MinSamples     int     `yaml:"min_samples" default:"50" validate:"gte=10"`
	History        int     `yaml:"history" default:"200" validate:"gtefield=MinSamples"`
	MinCycle       float64 `yaml:"min_cycle" default:"10" validate:"gt=0"`
	MaxCycle       float64 `yaml:"max_cycle" default:"50" validate:"gtfield=MinCycle"`
	DecyclerPeriod float64 `yaml:"decycler_period" default:"40" validate:"gt=0"`
}

type Anticipation struct {
	ShortLookback  int     `yaml:"short_lookback" default:"3" validate:"gte=1"`
	MediumLookback int     `yaml:"medium_lookback" default:"10" validate:"gtfield=ShortLookback"`
	LongLookback   int     `yaml:"long_lookback" default:"30" validate:"gtfield=MediumLookback"`
	ShortWeight    float64 `yaml:"short_weight" default:"0.35" validate:"gte=0,lte=1"`
	MediumWeight   float64 `yaml:"medium_weight" default:"0.20" validate:"gte=0,lte=1"`
	AccelWeight    float64 `yaml:"accel_weight" default:"0.25" validate:"gte=0,lte=1"`
	CycleWeight    float64 `yaml:"cycle_weight" default:"0.20" validate:"gte=0,lte=1"`
	WeakTier       float64 `yaml:"weak_tier" default:"30" validate:"gt=0"`
	MediumTier     float64 `yaml:"medium_tier" default:"50" validate:"gtfield=WeakTier"`
	StrongTier     float64 `yaml:"strong_tier" default:"70" validate:"gtfield=MediumTier,lte=100"`
}

type Filter struct {
	HighPassPeriod   float64      `yaml:"high_pass_period" default:"40" validate:"gt=2"`
	SmootherPeriod   float64      `yaml:"smoother_period" default:"10" validate:"gt=2"`
	RankLength       int          `yaml:"rank_length" default:"14" validate:"gte=2"`
	EnvelopeLength   int          `yaml:"envelope_length" default:"4" validate:"gte=1"`
	VolatilityLength int          `yaml:"volatility_length" default:"8" validate:"gte=1"`
	TimingLength     int          `yaml:"timing_length" default:"10" validate:"gte=1"`
	Cycle            Cycle        `yaml:"cycle"`
	Anticipation     Anticipation `yaml:"anticipation"`
}

type ROC struct {
	ShortLookback   int     `yaml:"short_lookback" default:"5" validate:"gte=1"`
	LongLookback    int     `yaml:"long_lookback" default:"20" validate:"gtfield=ShortLookback"`
	AlignmentMargin float64 `yaml:"alignment_margin" default:"0.1" validate:"gte=0"`
}

type Hierarchy struct {
	HistoryLength  int     `yaml:"history_length" default:"240" validate:"gte=2"`
	Short          []int   `yaml:"short" default:"[6,8,10,12]" validate:"min=1,dive,gte=2"`
	Medium         []int   `yaml:"medium" default:"[15,20,24,30]" validate:"min=1,dive,gte=2"`
	Long           []int   `yaml:"long" default:"[40,48,60,80]" validate:"min=1,dive,gte=2"`
	WeightExponent float64 `yaml:"weight_exponent" default:"1.5" validate:"gt=0"`
	SlopeBand      float64 `yaml:"slope_band" default:"0.01" validate:"gte=0"`
	TierThreshold  float64 `yaml:"tier_threshold" default:"0.25" validate:"gt=0,lte=1"`
	AlignedBonus   float64 `yaml:"aligned_bonus" default:"15" validate:"gte=0,lte=100"`
}

type Signal struct {
	MinConfirmations  int           `yaml:"min_confirmations" default:"3" validate:"gte=1"`
	StrengthThreshold float64       `yaml:"strength_threshold" default:"55" validate:"gte=0,lte=100"`
	BypassConfidence  float64       `yaml:"bypass_confidence" default:"85" validate:"gtefield=StrengthThreshold,lte=100"`
	OverrideMargin    float64       `yaml:"override_margin" default:"20" validate:"gte=0"`
	Persistence       time.Duration `yaml:"persistence" default:"12m" validate:"gt=0"`
}

type Fusion struct {
	Signal          Signal  `yaml:"signal"`
	HierarchyWeight float64 `yaml:"hierarchy_weight" default:"0.35" validate:"gte=0,lte=1"`
	IndicatorWeight float64 `yaml:"indicator_weight" default:"0.25" validate:"gte=0,lte=1"`
	RankWeight      float64 `yaml:"rank_weight" default:"0.15" validate:"gte=0,lte=1"`
	TimingWeight    float64 `yaml:"timing_weight" default:"0.10" validate:"gte=0,lte=1"`
	CycleWeight     float64 `yaml:"cycle_weight" default:"0.15" validate:"gte=0,lte=1"`
	CrossoverBonus  float64 `yaml:"crossover_bonus" default:"15" validate:"gte=0"`
	WeakBonus       float64 `yaml:"weak_bonus" default:"5" validate:"gte=0"`
	MediumBonus     float64 `yaml:"medium_bonus" default:"15" validate:"gte=0"`
	StrongBonus     float64 `yaml:"strong_bonus" default:"25" validate:"gte=0"`
	Oversold        float64 `yaml:"oversold" default:"30" validate:"gt=0,lt=50"`
	Overbought      float64 `yaml:"overbought" default:"70" validate:"gt=50,lt=100"`
	MRBase          float64 `yaml:"mean_reversion_base" default:"45" validate:"gte=0,lte=100"`
	MRDepthWeight   float64 `yaml:"mean_reversion_depth_weight" default:"1.5" validate:"gte=0"`
	MRLongWeight    float64 `yaml:"mean_reversion_long_weight" default:"20" validate:"gte=0"`
	MRPenalty       float64 `yaml:"mean_reversion_penalty" default:"5" validate:"gte=0"`
	ReconfirmBonus  float64 `yaml:"reconfirm_bonus" default:"5" validate:"gte=0"`
	MinScore        float64 `yaml:"min_score" default:"40" validate:"gte=0,lte=100"`
}

type Scanner struct {
	Threshold      float64 `yaml:"threshold" default:"60" validate:"gte=0,lte=100"`
	TopN           int     `yaml:"top_n" default:"5" validate:"gte=1"`
	ExcellentBonus float64 `yaml:"excellent_bonus" default:"3" validate:"gte=0"`
	GoodBonus      float64 `yaml:"good_bonus" default:"1" validate:"gte=0"`
}

// File is the tuning document.
type File struct {
	Indicator   Indicator     `yaml:"indicator"`
	Filter      Filter        `yaml:"filter"`
	ROC         ROC           `yaml:"roc"`
	Hierarchy   Hierarchy     `yaml:"hierarchy"`
	Fusion      Fusion        `yaml:"fusion"`
	Scanner     Scanner       `yaml:"scanner"`
	IdleTimeout time.Duration `yaml:"idle_timeout" default:"2h" validate:"gt=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(hierarchyDivides, Hierarchy{})
	return v
}

// hierarchyDivides rejects tier periods that do not divide the history length.
func hierarchyDivides(sl validator.StructLevel) {
	h := sl.Current().Interface().(Hierarchy)
	if h.HistoryLength <= 0 {
		return
	}
	for name, tier := range map[string][]int{"Short": h.Short, "Medium": h.Medium, "Long": h.Long} {
		for _, p := range tier {
			if p > 0 && h.HistoryLength%p != 0 {
				sl.ReportError(tier, name, name, "divides", fmt.Sprint(h.HistoryLength))
				break
			}
		}
	}
}

// Default returns the tuning document with every default applied.
func Default() File {
	var f File
	if err := defaults.Set(&f); err != nil {
		panic(fmt.Sprintf("tuning defaults: %v", err))
	}
	return f
}

// Load reads path over the defaults and validates the result. An empty path
// yields the defaults.
func Load(path string) (File, error) {
	f := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("read tuning: %w", err)
		}
		if err := Parse(b, &f); err != nil {
			return File{}, err
		}
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Parse overlays YAML onto f. Keys absent from b keep their current value.
func Parse(b []byte, f *File) error {
	if err := yaml.Unmarshal(b, f); err != nil {
		return fmt.Errorf("parse tuning: %w", err)
	}
	return nil
}

// Validate checks every bound declared on the document.
func (f *File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate tuning: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("validate tuning: %s", strings.Join(msgs, "; "))
}

// Pipeline converts the document into the pipeline configuration.
func (f *File) Pipeline() pipeline.Config {
	return pipeline.Config{
		Indicator: indicator.Config{
			Periods:        append([]int(nil), f.Indicator.Periods...),
			FastPeriod:     f.Indicator.FastPeriod,
			SlowPeriod:     f.Indicator.SlowPeriod,
			SlopeThreshold: f.Indicator.SlopeThreshold,
			RSIPeriod:      f.Indicator.RSIPeriod,
		},
		Filter: dsp.Config{
			HighPassPeriod:   f.Filter.HighPassPeriod,
			SmootherPeriod:   f.Filter.SmootherPeriod,
			RankLength:       f.Filter.RankLength,
			EnvelopeLength:   f.Filter.EnvelopeLength,
			VolatilityLength: f.Filter.VolatilityLength,
			TimingLength:     f.Filter.TimingLength,
			Cycle: dsp.CycleConfig{
				MinSamples:     f.Filter.Cycle.MinSamples,
				History:        f.Filter.Cycle.History,
				MinCycle:       f.Filter.Cycle.MinCycle,
				MaxCycle:       f.Filter.Cycle.MaxCycle,
				DecyclerPeriod: f.Filter.Cycle.DecyclerPeriod,
			},
			Anticipation: dsp.AnticipationConfig{
				ShortLookback:  f.Filter.Anticipation.ShortLookback,
				MediumLookback: f.Filter.Anticipation.MediumLookback,
				LongLookback:   f.Filter.Anticipation.LongLookback,
				ShortWeight:    f.Filter.Anticipation.ShortWeight,
				MediumWeight:   f.Filter.Anticipation.MediumWeight,
				AccelWeight:    f.Filter.Anticipation.AccelWeight,
				CycleWeight:    f.Filter.Anticipation.CycleWeight,
				WeakTier:       f.Filter.Anticipation.WeakTier,
				MediumTier:     f.Filter.Anticipation.MediumTier,
				StrongTier:     f.Filter.Anticipation.StrongTier,
			},
		},
		Aggregate: aggregate.Config{
			ROC: aggregate.ROCConfig{
				ShortLookback:   f.ROC.ShortLookback,
				LongLookback:    f.ROC.LongLookback,
				AlignmentMargin: f.ROC.AlignmentMargin,
			},
			Hierarchy: aggregate.HierarchyConfig{
				HistoryLength:  f.Hierarchy.HistoryLength,
				Short:          append([]int(nil), f.Hierarchy.Short...),
				Medium:         append([]int(nil), f.Hierarchy.Medium...),
				Long:           append([]int(nil), f.Hierarchy.Long...),
				WeightExponent: f.Hierarchy.WeightExponent,
				SlopeBand:      f.Hierarchy.SlopeBand,
				TierThreshold:  f.Hierarchy.TierThreshold,
				AlignedBonus:   f.Hierarchy.AlignedBonus,
			},
		},
		Fusion: fusion.Config{
			Signal: fusion.SignalConfig{
				MinConfirmations:  f.Fusion.Signal.MinConfirmations,
				StrengthThreshold: f.Fusion.Signal.StrengthThreshold,
				BypassConfidence:  f.Fusion.Signal.BypassConfidence,
				OverrideMargin:    f.Fusion.Signal.OverrideMargin,
				Persistence:       f.Fusion.Signal.Persistence,
			},
			DisplayPeriods: append([]int(nil), f.Indicator.Periods...),
			Weights: fusion.Weights{
				Hierarchy: f.Fusion.HierarchyWeight,
				Indicator: f.Fusion.IndicatorWeight,
				Rank:      f.Fusion.RankWeight,
				Timing:    f.Fusion.TimingWeight,
				Cycle:     f.Fusion.CycleWeight,
			},
			CrossoverBonus: f.Fusion.CrossoverBonus,
			AnticipationBonus: fusion.TierBonus{
				Weak:   f.Fusion.WeakBonus,
				Medium: f.Fusion.MediumBonus,
				Strong: f.Fusion.StrongBonus,
			},
			MeanReversion: fusion.MeanReversionConfig{
				Oversold:       f.Fusion.Oversold,
				Overbought:     f.Fusion.Overbought,
				BaseConfidence: f.Fusion.MRBase,
				DepthWeight:    f.Fusion.MRDepthWeight,
				LongTierWeight: f.Fusion.MRLongWeight,
				Penalty:        f.Fusion.MRPenalty,
			},
			ReconfirmBonus: f.Fusion.ReconfirmBonus,
			MinScore:       f.Fusion.MinScore,
		},
		Scanner: scanner.Config{
			Threshold:      f.Scanner.Threshold,
			TopN:           f.Scanner.TopN,
			ExcellentBonus: f.Scanner.ExcellentBonus,
			GoodBonus:      f.Scanner.GoodBonus,
			AllowedQuality: []model.Quality{model.QualityGood, model.QualityExcellent},
		},
		IdleTimeout: f.IdleTimeout,
	}
}
