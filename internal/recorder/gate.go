package recorder

import "time"

// gate implements amplitude-based activation with wall-clock
// hysteresis. One batch above the threshold opens the gate instantly;
// closing requires a full hold period of continuous quiet.
type gate struct {
	// activation threshold in dBFS
	thresholdDB float64
	// how long the gate stays open after the last loud batch
	hold time.Duration
	// when the threshold was last exceeded
	lastActive time.Time
}

// process updates the gate with the signal level of one batch and
// reports whether the batch should be persisted. It is allocation-free
// and runs on the capture path for every batch.
func (g *gate) process(levelDB float64, now time.Time) bool {
	if levelDB > g.thresholdDB {
		g.lastActive = now
	}
	return now.Sub(g.lastActive) <= g.hold
}
