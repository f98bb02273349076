package agent

// StagnationTracker counts consecutive observations of the same location.
type StagnationTracker struct {
	threshold int
	last      string
	count     int
}

func NewStagnationTracker(threshold int) *StagnationTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &StagnationTracker{threshold: threshold}
}

// Observe records loc and reports whether the run of identical observations
// has reached the threshold. A different location restarts the run.
func (t *StagnationTracker) Observe(loc string) bool {
	if t.count == 0 || loc != t.last {
		t.last = loc
		t.count = 1
	} else {
		t.count++
	}
	return t.count >= t.threshold
}

// Reset forgets the last location; call it after acting on a stagnation.
func (t *StagnationTracker) Reset() {
	t.last = ""
	t.count = 0
}

// Count is the current run length.
func (t *StagnationTracker) Count() int { return t.count }
