package model

// Direction is the qualitative direction of an indicator or call.
type Direction int8

const (
	Bearish Direction = -1
	Neutral Direction = 0
	Bullish Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Bullish:
		return "BULLISH"
	case Bearish:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a direction name; unknown names decode to Neutral.
func (d *Direction) UnmarshalText(b []byte) error {
	*d = ParseDirection(string(b))
	return nil
}

// ParseDirection maps a name to a Direction.
func ParseDirection(s string) Direction {
	switch s {
	case "BULLISH", "bullish", "UP", "up":
		return Bullish
	case "BEARISH", "bearish", "DOWN", "down":
		return Bearish
	default:
		return Neutral
	}
}

// Sign returns +1, -1 or 0.
func (d Direction) Sign() float64 { return float64(d) }

// Opposite returns the reverse direction (Neutral stays Neutral).
func (d Direction) Opposite() Direction { return -d }

// DirectionOf classifies v against a symmetric dead band.
func DirectionOf(v, band float64) Direction {
	switch {
	case v > band:
		return Bullish
	case v < -band:
		return Bearish
	default:
		return Neutral
	}
}
