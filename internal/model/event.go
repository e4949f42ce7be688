package model

import "time"

// EventKind tags the payload carried by an Event.
type EventKind uint8

const (
	EventCandle EventKind = iota + 1
	EventTick
)

func (k EventKind) String() string {
	switch k {
	case EventCandle:
		return "candle"
	case EventTick:
		return "tick"
	default:
		return "unknown"
	}
}

// Event is the inbound unit of work queued between ingest and the
// single-writer pipeline loop.
type Event struct {
	Kind   EventKind
	Candle Candle
	Tick   Tick
}

// CandleEvent wraps a candle.
func CandleEvent(c Candle) Event { return Event{Kind: EventCandle, Candle: c} }

// TickEvent wraps a tick.
func TickEvent(t Tick) Event { return Event{Kind: EventTick, Tick: t} }

// Symbol returns the partition key of the payload.
func (e *Event) Symbol() string {
	if e.Kind == EventTick {
		return e.Tick.Symbol
	}
	return e.Candle.Symbol
}

// Time returns the event timestamp.
func (e *Event) Time() time.Time {
	if e.Kind == EventTick {
		return e.Tick.Time()
	}
	return e.Candle.TS
}
