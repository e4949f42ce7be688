package pipeline

import (
	"time"

	"trend-signals/internal/model"
)

// Hooks receives pipeline events for instrumentation. Implementations must be
// cheap and non-blocking.
type Hooks interface {
	EventProcessed(kind model.EventKind, elapsed time.Duration)
	EventRejected(kind model.EventKind)
	SignalTransition(from, to model.SignalState)
	Recommendation(rec model.Recommendation)
	SymbolsTracked(n int)
	SymbolsEvicted(n int)
}

type nopHooks struct{}

func (nopHooks) EventProcessed(model.EventKind, time.Duration) {}

func (nopHooks) EventRejected(model.EventKind) {}

func (nopHooks) SignalTransition(model.SignalState, model.SignalState) {}

func (nopHooks) Recommendation(model.Recommendation) {}

func (nopHooks) SymbolsTracked(int) {}

func (nopHooks) SymbolsEvicted(int) {}
