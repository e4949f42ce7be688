package redis

import (
	"sort"
	"sync"

	"trend-signals/internal/model"
)

// pendingLatest holds records that could not be published yet. Only the
// newest record per symbol is kept, since a subscriber needs the current
// state and not the history it missed.
type pendingLatest struct {
	mu   sync.Mutex
	recs map[string]model.TrendAnalysis
}

func newPendingLatest() *pendingLatest {
	return &pendingLatest{recs: make(map[string]model.TrendAnalysis)}
}

// put stores rec unless a newer record of the same symbol is already held.
// It reports whether rec replaced an existing entry.
func (p *pendingLatest) put(rec model.TrendAnalysis) (replaced bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.recs[rec.Symbol]
	if ok && prev.UpdatedAt.After(rec.UpdatedAt) {
		return true
	}
	p.recs[rec.Symbol] = rec
	return ok
}

// take removes and returns every held record, ordered by symbol.
func (p *pendingLatest) take() []model.TrendAnalysis {
	p.mu.Lock()
	recs := p.recs
	p.recs = make(map[string]model.TrendAnalysis, len(recs))
	p.mu.Unlock()

	out := make([]model.TrendAnalysis, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (p *pendingLatest) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recs)
}
