// Package clock implements the oscillator that drives the shared CLCK
// signal line at a configured frequency, converting elapsed wall time into
// a stream of alternating raise/drop edges without losing time to drift.
package clock

import (
	"time"

	"github.com/z0x50/z0x50/signal"
)

// MinFrequencyHz is the clamp floor, 1e-5 MHz expressed in Hz (frequency is
// tracked in Hz throughout this package).
const MinFrequencyHz = 1e-5 * 1e6

// Oscillator converts wall-clock time into CLCK edges at frequencyHz,
// keeping a fractional-microsecond overflow reservoir so no edge is ever
// lost to drift.
type Oscillator struct {
	fabric              *signal.Fabric
	microsecondsPerCycle float64
	overflow            float64
	state               bool
	lastTick            time.Time
	initialized         bool

	now func() time.Time
}

// New returns an oscillator bound to fabric, configured for frequencyHz
// (clamped to MinFrequencyHz).
func New(fabric *signal.Fabric, frequencyHz float64) *Oscillator {
	if frequencyHz < MinFrequencyHz {
		frequencyHz = MinFrequencyHz
	}
	return &Oscillator{
		fabric:               fabric,
		microsecondsPerCycle: 1e6 / frequencyHz,
		now:                  time.Now,
	}
}

// Tick measures wall-clock microseconds elapsed since the previous Tick,
// accumulates them into the overflow reservoir, and toggles CLCK for every
// full microsecondsPerCycle consumed. Returns whether at least one edge was
// emitted.
func (o *Oscillator) Tick() bool {
	now := o.now()
	if !o.initialized {
		o.lastTick = now
		o.initialized = true
		return false
	}
	elapsedUs := float64(now.Sub(o.lastTick).Nanoseconds()) / 1000.0
	o.lastTick = now
	o.overflow += elapsedUs

	edged := false
	for o.overflow >= o.microsecondsPerCycle {
		o.overflow -= o.microsecondsPerCycle
		o.state = !o.state
		if o.state {
			o.fabric.Raise(signal.CLCK)
		} else {
			o.fabric.Drop(signal.CLCK)
		}
		edged = true
	}
	return edged
}
