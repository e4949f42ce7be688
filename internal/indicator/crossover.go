package indicator

// Crossover detects sign changes of (fast - slow) between consecutive updates.
type Crossover struct {
	prevSign int
	seen     bool
	last     int
}

// Update returns +1 when fast moves from below to above slow, -1 for the
// reverse, and 0 otherwise. The first update only records the sign. A zero
// difference keeps the previous sign so touching lines do not fire twice.
func (c *Crossover) Update(fast, slow float64) int {
	sign := 0
	switch d := fast - slow; {
	case d > 0:
		sign = 1
	case d < 0:
		sign = -1
	}

	c.last = 0
	if !c.seen {
		c.seen = true
		c.prevSign = sign
		return 0
	}
	if sign == 0 {
		return 0
	}
	if c.prevSign != 0 && sign != c.prevSign {
		c.last = sign
	}
	c.prevSign = sign
	return c.last
}

// Last returns the result of the most recent Update.
func (c *Crossover) Last() int { return c.last }

// Reset forgets all history.
func (c *Crossover) Reset() {
	*c = Crossover{}
}
