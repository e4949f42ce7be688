// Package scanner ranks the current per-symbol analysis records.
package scanner

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"trend-signals/internal/model"
)

// Config configures a scan.
type Config struct {
	// Threshold is the exclusive lower bound on score.
	Threshold float64
	// TopN ranks are flagged as recommended.
	TopN int
	// Quality bonuses added to the sort key.
	ExcellentBonus float64
	GoodBonus      float64
	// AllowedQuality lists the accepted quality grades.
	AllowedQuality []model.Quality
}

// DefaultConfig returns the scan parameters used by the service.
func DefaultConfig() Config {
	return Config{
		Threshold:      60,
		TopN:           5,
		ExcellentBonus: 3,
		GoodBonus:      1,
		AllowedQuality: []model.Quality{model.QualityGood, model.QualityExcellent},
	}
}

// Entry is one ranked instrument.
type Entry struct {
	Symbol        string              `json:"symbol"`
	DisplayName   string              `json:"display_name"`
	Trend         model.TrendAnalysis `json:"trend"`
	Rank          int                 `json:"rank"`
	IsRecommended bool                `json:"is_recommended"`
}

// Result is the output of one scan.
type Result struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Scanned int       `json:"scanned"`
	Entries []Entry   `json:"entries"`
}

// JSON returns the JSON-encoded result (ignoring errors for hot-path usage).
func (r *Result) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Candidate pairs an instrument with its current record.
type Candidate struct {
	Instrument model.Instrument
	Trend      model.TrendAnalysis
}

// Scan filters, sorts and ranks candidates. It has no side effects.
//
// Kept: score > Threshold, recommendation != HOLD, quality in AllowedQuality.
// Sorted by score plus quality bonus, descending; ties broken by symbol.
// Ranks are dense from 1: equal sort keys share a rank.
func Scan(cfg Config, candidates []Candidate, at time.Time) Result {
	allowed := make(map[model.Quality]bool, len(cfg.AllowedQuality))
	for _, q := range cfg.AllowedQuality {
		allowed[q] = true
	}

	type keyed struct {
		Entry
		key float64
	}
	kept := make([]keyed, 0, len(candidates))
	for _, c := range candidates {
		tr := c.Trend
		if tr.Score <= cfg.Threshold || tr.Recommendation == model.RecommendHold || !allowed[tr.Quality] {
			continue
		}
		name := c.Instrument.DisplayName
		if name == "" {
			name = c.Instrument.Symbol
		}
		kept = append(kept, keyed{
			Entry: Entry{Symbol: c.Instrument.Symbol, DisplayName: name, Trend: tr},
			key:   tr.Score + cfg.bonus(tr.Quality),
		})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].key != kept[j].key {
			return kept[i].key > kept[j].key
		}
		return kept[i].Symbol < kept[j].Symbol
	})

	res := Result{
		ID:      uuid.NewString(),
		At:      at,
		Scanned: len(candidates),
		Entries: make([]Entry, 0, len(kept)),
	}
	rank := 0
	for i, k := range kept {
		if i == 0 || k.key != kept[i-1].key {
			rank++
		}
		k.Rank = rank
		k.IsRecommended = cfg.TopN > 0 && rank <= cfg.TopN
		res.Entries = append(res.Entries, k.Entry)
	}
	return res
}

func (c Config) bonus(q model.Quality) float64 {
	switch q {
	case model.QualityExcellent:
		return c.ExcellentBonus
	case model.QualityGood:
		return c.GoodBonus
	default:
		return 0
	}
}
