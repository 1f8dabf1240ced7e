package spikenet

import (
	"testing"

	"github.com/emer/emergent/v2/erand"
)

// TestPoissonInputRate checks the Poisson-input scenario: 1000 neurons at
// 50Hz for 10s should each fire approximately Normal(500, sqrt(500)) spikes,
// with the population mean within [490, 510].
func TestPoissonInputRate(t *testing.T) {
	ctx := newTestCtx(t)
	pop := NewInputPopulation(ctx)
	const n = 1000
	if _, err := pop.AddGroup(InputNeuronParams{Family: Poisson, Shape: [2]int{1, n}, RateHz: 50}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	pop.ResetState()

	dt := float32(1e-3)
	steps := int(10.0 / dt)
	counts := make([]int, n)
	for i := 0; i < steps; i++ {
		pop.StateUpdate(float32(i)*dt, dt)
		for k := 0; k < n; k++ {
			if pop.Neurons[k].JustSpiked {
				counts[k]++
			}
		}
	}
	var total int
	for _, c := range counts {
		total += c
	}
	mean := float64(total) / float64(n)
	if mean < 490 || mean > 510 {
		t.Errorf("mean spike count = %.2f, want in [490, 510]", mean)
	}
}

func TestReplayedPatternFiresExactEvents(t *testing.T) {
	ctx := newTestCtx(t)
	pop := NewInputPopulation(ctx)
	pattern := []SpikeEvent{
		{Index: 2, Time: 0.0031},
		{Index: 0, Time: 0.0011},
		{Index: 1, Time: 0.0021},
	}
	if _, err := pop.AddGroup(InputNeuronParams{Family: ReplayedPattern, Shape: [2]int{1, 3}, Pattern: pattern}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	pop.ResetState()

	dt := float32(1e-3)
	var fired []int
	for i := 0; i < 5; i++ {
		t32 := float32(i) * dt
		pop.StateUpdate(t32, dt)
		for k := range pop.Neurons {
			if pop.Neurons[k].JustSpiked {
				fired = append(fired, k)
			}
		}
	}
	if len(fired) != 3 {
		t.Fatalf("expected 3 spikes delivered, got %d (%v)", len(fired), fired)
	}
}

func TestImageDrivenRateMapValidation(t *testing.T) {
	ctx := newTestCtx(t)
	pop := NewInputPopulation(ctx)
	id, err := pop.AddGroup(InputNeuronParams{Family: ImageDriven, Shape: [2]int{1, 4}, RateHz: 10})
	if err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := pop.SetRateMap(id, []float32{1, 2, 3}); err == nil {
		t.Error("expected ShapeError for mismatched rate map length")
	}
	if err := pop.SetRateMap(id, []float32{1, 2, 3, 4}); err != nil {
		t.Errorf("SetRateMap: unexpected error %v", err)
	}
}

func TestPoissonFiresMonotonicInRate(t *testing.T) {
	rnd := &erand.SysRand{}
	if poissonFires(rnd, 0, 1e-3) {
		t.Error("zero rate should never fire")
	}
	var hi, lo int
	for i := 0; i < 1000; i++ {
		if poissonFires(rnd, 1000, 1e-3) {
			hi++
		}
		if poissonFires(rnd, 1, 1e-3) {
			lo++
		}
	}
	if hi <= lo {
		t.Errorf("higher rate should fire more often: hi=%d lo=%d", hi, lo)
	}
}
