package spikenet

import (
	"math"
	"testing"

	"github.com/synapcore/spikenet/backend"
)

func newTestCtx(t *testing.T) *backend.Context {
	t.Helper()
	ctx := &backend.Context{Kind: backend.Reference}
	if err := ctx.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return ctx
}

// TestLIFCurrentISI checks the single-neuron constant-current scenario:
// a LIFCurrent neuron driven by constant I_inj spikes periodically with
// inter-spike interval T = tau_m * ln((R*I-(v_rest-v_reset))/(R*I-(v_thr-v_rest))).
func TestLIFCurrentISI(t *testing.T) {
	ctx := newTestCtx(t)
	pop := NewNeuronPopulation(ctx)
	params := NeuronParams{
		Family: LIFCurrent,
		Shape:  [2]int{1, 1},
		VRest:  -70, VThr: -50, VReset: -70,
		TauM: 0.02, R: 1,
	}
	if _, err := pop.AddGroup(params); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	pop.ResetState()

	const iInj = 25.0
	wantT := float64(params.TauM) * math.Log(
		float64(params.R*iInj-(params.VRest-params.VReset))/
			float64(params.R*iInj-(params.VThr-params.VRest)))

	dt := float32(1e-5)
	var spikeTimes []float32
	total := int(1.0 / dt)
	for i := 0; i < total; i++ {
		t32 := float32(i) * dt
		pop.Neurons[0].IInj = iInj
		pop.StateUpdate(t32, dt)
		if pop.Neurons[0].JustSpiked {
			spikeTimes = append(spikeTimes, t32)
		}
		if len(spikeTimes) >= 3 {
			break
		}
	}
	if len(spikeTimes) < 2 {
		t.Fatalf("expected at least 2 spikes, got %d", len(spikeTimes))
	}
	gotT := float64(spikeTimes[1] - spikeTimes[0])
	if math.Abs(gotT-wantT)/wantT > 0.01+float64(dt)/wantT {
		t.Errorf("ISI = %.6f, want %.6f (within 1%% of one dt)", gotT, wantT)
	}
}

// TestNeuronVoltageInvariant checks that membrane potential never drops
// below v_reset or climbs unboundedly past v_thr within a single step.
func TestNeuronVoltageInvariant(t *testing.T) {
	ctx := newTestCtx(t)
	pop := NewNeuronPopulation(ctx)
	params := NeuronParams{
		Family: LIFCurrent,
		Shape:  [2]int{1, 4},
		VRest:  -70, VThr: -50, VReset: -70,
		TauM: 0.02, R: 1, TauRef: 0.002,
	}
	if _, err := pop.AddGroup(params); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	pop.ResetState()

	dt := float32(1e-4)
	for i := 0; i < 500; i++ {
		for k := range pop.Neurons {
			pop.Neurons[k].IInj = float32(k) * 10
		}
		pop.StateUpdate(float32(i)*dt, dt)
		for _, n := range pop.Neurons {
			// One step of supra-threshold drive can carry v past v_thr
			// before the next step's reset fires; bound the overshoot by
			// the maximum possible one-step delta.
			eps := dt / params.TauM * 40
			if n.V < params.VReset-eps || n.V > params.VThr+eps {
				t.Fatalf("voltage %.6f out of bounds [%.6f, %.6f]", n.V, params.VReset-eps, params.VThr+eps)
			}
		}
	}
}

func TestResetWindowClearsButNotJustSpiked(t *testing.T) {
	ctx := newTestCtx(t)
	pop := NewNeuronPopulation(ctx)
	params := NeuronParams{Family: LIFCurrent, Shape: [2]int{1, 1}, VThr: -50, VReset: -70, VRest: -70, TauM: 0.02, R: 1}
	pop.AddGroup(params)
	pop.ResetState()
	pop.Neurons[0].SpikedInWindow = true
	pop.Neurons[0].JustSpiked = true
	pop.ResetWindow()
	if pop.Neurons[0].SpikedInWindow {
		t.Error("ResetWindow did not clear SpikedInWindow")
	}
	if !pop.Neurons[0].JustSpiked {
		t.Error("ResetWindow should not touch JustSpiked")
	}
}

// TestLIFConductanceAdaptationReducesFiringRate checks that a nonzero
// K-channel spike-frequency adaptation (TauK, KInc) lowers the spike
// count of a strongly, constantly driven LIFConductance neuron relative
// to the same drive with adaptation disabled (TauK == 0).
func TestLIFConductanceAdaptationReducesFiringRate(t *testing.T) {
	run := func(tauK, kInc float32) int {
		ctx := newTestCtx(t)
		pop := NewNeuronPopulation(ctx)
		params := NeuronParams{
			Family: LIFConductance,
			Shape:  [2]int{1, 1},
			VRest:  -70, VThr: -50, VReset: -70,
			TauM: 0.02, R: 1,
			EE:   0, EI: -80, EK: -90,
			TauK: tauK, KInc: kInc,
		}
		pop.AddGroup(params)
		pop.ResetState()

		dt := float32(1e-4)
		spikes := 0
		for i := 0; i < 20000; i++ {
			pop.Neurons[0].Ge = 2
			pop.StateUpdate(float32(i)*dt, dt)
			if pop.Neurons[0].JustSpiked {
				spikes++
			}
		}
		return spikes
	}

	without := run(0, 0)
	with := run(0.05, 0.5)
	if without == 0 {
		t.Fatal("expected the undamped neuron to spike at least once")
	}
	if with >= without {
		t.Errorf("adaptation did not reduce firing: with=%d without=%d", with, without)
	}
}

func TestIzhikevichResetsAtFixedThreshold(t *testing.T) {
	ctx := newTestCtx(t)
	pop := NewNeuronPopulation(ctx)
	params := NeuronParams{
		Family: Izhikevich,
		Shape:  [2]int{1, 1},
		A: 0.02, B: 0.2, C: -0.065, D: 8,
	}
	pop.AddGroup(params)
	pop.ResetState()
	pop.Neurons[0].V = -70

	dt := float32(1e-4)
	spiked := false
	for i := 0; i < 100000; i++ {
		pop.Neurons[0].IInj = 10
		pop.StateUpdate(float32(i)*dt, dt)
		if pop.Neurons[0].JustSpiked {
			spiked = true
			if pop.Neurons[0].V != params.C {
				t.Errorf("post-spike V = %v, want C = %v", pop.Neurons[0].V, params.C)
			}
			break
		}
	}
	if !spiked {
		t.Fatal("Izhikevich neuron never spiked")
	}
}
