package clock

import (
	"testing"
	"time"

	"github.com/z0x50/z0x50/signal"
)

func TestTickEmitsNoEdgeBeforeFirstCall(t *testing.T) {
	f := signal.New()
	o := New(f, 1_000_000) // 1 MHz -> 1us/cycle
	fake := time.Now()
	o.now = func() time.Time { return fake }

	if o.Tick() {
		t.Error("first Tick call should only establish the baseline, no edge")
	}
}

func TestTickBelowThresholdEmitsNoEdge(t *testing.T) {
	f := signal.New()
	o := New(f, 1_000_000) // 1us/cycle
	fake := time.Now()
	o.now = func() time.Time { return fake }
	o.Tick()

	fake = fake.Add(500 * time.Nanosecond)
	if o.Tick() {
		t.Error("elapsed < microsecondsPerCycle should emit no edge")
	}
}

func TestTenMicrosecondsProducesTenEdges(t *testing.T) {
	f := signal.New()
	rises, falls := 0, 0
	f.Subscribe(signal.CLCK, func(level bool) {
		if level {
			rises++
		} else {
			falls++
		}
	})

	o := New(f, 1_000_000) // 1 MHz -> 1us/cycle
	fake := time.Now()
	o.now = func() time.Time { return fake }
	o.Tick()

	fake = fake.Add(10 * time.Microsecond)
	if !o.Tick() {
		t.Fatal("expected at least one edge")
	}

	if rises != 5 || falls != 5 {
		t.Errorf("expected 5 rises and 5 falls, got %d rises, %d falls", rises, falls)
	}
}

func TestFrequencyClampedToMinimum(t *testing.T) {
	f := signal.New()
	o := New(f, 0)
	if o.microsecondsPerCycle != 1e6/MinFrequencyHz {
		t.Errorf("expected clamp to MinFrequencyHz, got %f us/cycle", o.microsecondsPerCycle)
	}
}

func TestOverflowRetainsFractionalDrift(t *testing.T) {
	f := signal.New()
	edges := 0
	f.Subscribe(signal.CLCK, func(bool) { edges++ })

	o := New(f, 1_000_000) // 1us/cycle
	fake := time.Now()
	o.now = func() time.Time { return fake }
	o.Tick()

	// Three ticks of 0.4us each should sum to 1.2us -> exactly one edge,
	// with 0.2us carried in the overflow reservoir.
	for i := 0; i < 3; i++ {
		fake = fake.Add(400 * time.Nanosecond)
		o.Tick()
	}
	if edges != 1 {
		t.Errorf("expected exactly 1 edge from 1.2us of elapsed sub-cycle ticks, got %d", edges)
	}
}
