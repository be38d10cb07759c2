package session

// Detector infers bar completion from the monotonically increasing index of
// the bar presently forming. It is only touched from the delivery context,
// which the host drives strictly sequentially, so it carries no lock.
type Detector struct {
	last int
}

// NewDetector returns a detector that has seen no index yet.
func NewDetector() *Detector { return &Detector{last: -1} }

// OnFeedAdvance reports which bar, if any, just completed. Repeated calls
// with the same index are no-ops; on a gap only the immediately preceding
// index completes, intermediate indices are not reported.
func (d *Detector) OnFeedAdvance(current int) (completed int, ok bool) {
	if current <= d.last {
		return 0, false
	}
	d.last = current
	if current == 0 {
		// very first bar is still forming, nothing before it
		return 0, false
	}
	return current - 1, true
}

// Reset forgets the last seen index. Called only by full teardown.
func (d *Detector) Reset() { d.last = -1 }
