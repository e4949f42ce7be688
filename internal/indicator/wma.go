package indicator

// resyncEvery bounds floating drift of the running sums: after this many
// evictions the sums are recomputed exactly from the buffer.
const resyncEvery = 1024

// WeightedWindow is a linearly weighted moving average over a fixed window.
// The oldest sample has weight 1 and the newest weight period, divided by
// period*(period+1)/2. Add is O(1): the weighted sum is maintained from the
// plain sum when the oldest element is evicted.
type WeightedWindow struct {
	period    int
	buf       []float64 // preallocated circular buffer
	idx       int       // next write position (oldest element once full)
	count     int
	sum       float64
	wsum      float64
	current   float64
	evictions int
}

// NewWeightedWindow creates a window of the given period (minimum 1).
func NewWeightedWindow(period int) *WeightedWindow {
	if period < 1 {
		period = 1
	}
	return &WeightedWindow{
		period: period,
		buf:    make([]float64, period),
	}
}

func (w *WeightedWindow) Name() string { return "WMA" }

// Period returns the window length.
func (w *WeightedWindow) Period() int { return w.period }

// Len returns the number of buffered samples (never more than Period).
func (w *WeightedWindow) Len() int { return w.count }

func (w *WeightedWindow) Add(v float64) (float64, bool) {
	if w.count < w.period {
		w.buf[w.idx] = v
		w.idx = (w.idx + 1) % w.period
		w.count++
		w.sum += v
		w.wsum += float64(w.count) * v
	} else {
		old := w.buf[w.idx]
		w.buf[w.idx] = v
		w.idx = (w.idx + 1) % w.period
		// Every retained sample loses one unit of weight (the evicted one
		// drops to zero), then the new sample enters with weight period.
		w.wsum += float64(w.period)*v - w.sum
		w.sum += v - old
		w.evictions++
		if w.evictions%resyncEvery == 0 {
			w.resync()
		}
	}

	if w.count < w.period {
		return 0, false
	}
	w.current = w.wsum / w.divisor()
	return w.current, true
}

func (w *WeightedWindow) Value() float64 { return w.current }
func (w *WeightedWindow) Ready() bool    { return w.count >= w.period }

// Reset clears the window for reuse.
func (w *WeightedWindow) Reset() {
	w.idx = 0
	w.count = 0
	w.sum = 0
	w.wsum = 0
	w.current = 0
	w.evictions = 0
	for i := range w.buf {
		w.buf[i] = 0
	}
}

func (w *WeightedWindow) divisor() float64 {
	p := float64(w.period)
	return p * (p + 1) / 2
}

// resync recomputes sum and weighted sum exactly. Only called when full, so
// idx points at the oldest element.
func (w *WeightedWindow) resync() {
	var sum, wsum float64
	for i := 0; i < w.period; i++ {
		v := w.buf[(w.idx+i)%w.period]
		sum += v
		wsum += float64(i+1) * v
	}
	w.sum = sum
	w.wsum = wsum
}
