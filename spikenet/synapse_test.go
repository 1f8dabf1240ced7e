package spikenet

import (
	"testing"

	"github.com/emer/emergent/v2/paths"
)

// TestDelayedSynapseDelivery checks the two-neuron delayed-synapse
// scenario: a presynaptic spike at t=0.01s over a 5*dt delay (dt=1e-4)
// must land in the postsynaptic I_inj during [0.0105, 0.0106).
func TestDelayedSynapseDelivery(t *testing.T) {
	ctx := newTestCtx(t)
	neurons := NewNeuronPopulation(ctx)
	inputs := NewInputPopulation(ctx)
	neurons.AddGroup(NeuronParams{Family: LIFCurrent, Shape: [2]int{1, 2}, VRest: -70, VThr: -50, VReset: -70, TauM: 0.02, R: 1})
	neurons.ResetState()

	const w = float32(2.5)
	bundle := NewSynapseBundle(ctx)
	bundle.Synapses = []Synapse{{Pre: CorrectedPresynapticID(0, false), Post: 1, W: w, Delay: 5}}
	bundle.Params = SynapseGroupParams{Family: CurrentSynapse, DelayTimesteps: 5}
	bundle.nPost = 2
	bundle.sortAndIndex()
	bundle.Finalize(1)
	bundle.ResetState()

	dt := float32(1e-4)
	spikeStep := int(0.01/float64(dt) + 0.5)
	var deliveredAt float32 = -1
	for i := 0; i <= spikeStep+20; i++ {
		t32 := float32(i) * dt
		neurons.Neurons[0].JustSpiked = false
		neurons.Neurons[1].IInj = 0

		bundle.DrainBlock(i)
		bundle.ApplyOffset(neurons, 0, dt)
		if neurons.Neurons[1].IInj != 0 {
			deliveredAt = t32
			if neurons.Neurons[1].IInj != w {
				t.Errorf("delivered contribution = %v, want %v", neurons.Neurons[1].IInj, w)
			}
			break
		}

		if i == spikeStep {
			neurons.Neurons[0].JustSpiked = true
			neurons.Neurons[0].LastSpikeTime = t32
		}
		bundle.EnqueueSpikes(neurons, inputs, t32, dt)
	}
	if deliveredAt < 0 {
		t.Fatal("synapse contribution was never delivered")
	}
	if deliveredAt < 0.0105 || deliveredAt >= 0.0106 {
		t.Errorf("delivered at t=%v, want in [0.0105, 0.0106)", deliveredAt)
	}
}

func TestSynapseBundleCSRIndexing(t *testing.T) {
	ctx := newTestCtx(t)
	neurons := NewNeuronPopulation(ctx)
	neurons.AddGroup(NeuronParams{Family: LIFCurrent, Shape: [2]int{1, 3}, TauM: 0.02, R: 1})
	neurons.ResetState()

	bundle := NewSynapseBundle(ctx)
	err := bundle.AddGroup(0, 2, 0, 3, false, SynapseGroupParams{
		Family: CurrentSynapse, DelayTimesteps: 1, Pattern: paths.NewFull(),
	}, 3)
	if err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if len(bundle.Synapses) != 6 {
		t.Fatalf("expected 6 synapses (2 pre x 3 post), got %d", len(bundle.Synapses))
	}
	for j := 0; j < bundle.nPost; j++ {
		lo, hi := bundle.postOffsets[j], bundle.postOffsets[j+1]
		for k := lo; k < hi; k++ {
			if bundle.Synapses[k].Post != int32(j) {
				t.Errorf("synapse at index %d has Post=%d, want %d (CSR range mismatch)", k, bundle.Synapses[k].Post, j)
			}
		}
	}
}

func TestMinimumDelayBeforeFinalize(t *testing.T) {
	ctx := newTestCtx(t)
	bundle := NewSynapseBundle(ctx)
	if got := bundle.MinimumDelay(); got != 1 {
		t.Errorf("empty bundle MinimumDelay = %d, want 1", got)
	}
	bundle.Synapses = []Synapse{{Delay: 3}, {Delay: 7}, {Delay: 2}}
	if got := bundle.MinimumDelay(); got != 2 {
		t.Errorf("MinimumDelay = %d, want 2", got)
	}
}

func TestRejectsSubunitDelay(t *testing.T) {
	ctx := newTestCtx(t)
	bundle := NewSynapseBundle(ctx)
	err := bundle.AddGroup(0, 1, 0, 1, false, SynapseGroupParams{Family: CurrentSynapse, DelayTimesteps: 0}, 1)
	if err == nil {
		t.Error("expected LifecycleError for DelayTimesteps < 1")
	}
}
