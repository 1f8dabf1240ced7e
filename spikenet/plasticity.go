package spikenet

import "cogentcore.org/core/math32"

// PlasticityRule observes spike times and weights and mutates weights in
// its own governed bundle only. A rule never allocates neurons or
// synapses.
type PlasticityRule interface {
	ResetState()
	StateUpdate(t, dt float32)
}

// presynapticSpikedInWindow resolves a tagged presynaptic ID to whether
// that neuron spiked at any point during the aggregation window just
// completed.
func presynapticSpikedInWindow(id PresynapticID, neurons *NeuronPopulation, inputPop *InputPopulation) bool {
	if id.IsInput() {
		return inputPop.Neurons[id.Index()].SpikedInWindow
	}
	return neurons.Neurons[id.Index()].SpikedInWindow
}

// STDPRule is the additive, pair-based spike-timing-dependent plasticity
// rule. Rather than re-scan spike history each step, it keeps a
// pair of exponentially decaying eligibility traces -- Tr per synapse
// (driven by presynaptic spikes, time constant TauPlus) and NTr per
// postsynaptic neuron (driven by postsynaptic spikes, time constant
// TauMinus), named after pcore.TraceSyn's trace fields. A
// postsynaptic spike potentiates every afferent synapse by APlus*Tr; a
// presynaptic spike depresses that synapse by AMinus*NTr of its target.
type STDPRule struct {
	Bundle   *SynapseBundle
	Neurons  *NeuronPopulation
	Inputs   *InputPopulation

	APlus, AMinus     float32
	TauPlus, TauMinus float32
	WMin, WMax        float32

	Tr  []float32 // presynaptic trace, one per synapse
	NTr []float32 // postsynaptic trace, one per postsynaptic neuron
}

// ResetState zeroes both trace arrays, sized from the bundle this rule
// governs.
func (r *STDPRule) ResetState() {
	r.Tr = make([]float32, len(r.Bundle.Synapses))
	r.NTr = make([]float32, r.Bundle.nPost)
}

// StateUpdate is pipeline stage 4: decay both traces, then apply
// depression on every synapse whose presynaptic neuron just spiked and
// potentiation on every synapse whose postsynaptic neuron just spiked.
func (r *STDPRule) StateUpdate(t, dt float32) {
	decayPlus := math32.Exp(-dt / r.TauPlus)
	decayMinus := math32.Exp(-dt / r.TauMinus)
	for i := range r.Tr {
		r.Tr[i] *= decayPlus
	}
	for j := range r.NTr {
		r.NTr[j] *= decayMinus
	}

	b := r.Bundle
	for k := range b.Synapses {
		s := &b.Synapses[k]
		if presynapticSpikedInWindow(s.Pre, r.Neurons, r.Inputs) {
			r.Tr[k] = 1
			s.W -= r.AMinus * r.NTr[s.Post]
			if s.W < r.WMin {
				s.W = r.WMin
			}
		}
	}

	for j := 0; j < b.nPost; j++ {
		if !r.Neurons.Neurons[j].SpikedInWindow {
			continue
		}
		r.NTr[j] = 1
		lo, hi := b.postOffsets[j], b.postOffsets[j+1]
		for k := lo; k < hi; k++ {
			s := &b.Synapses[k]
			s.W += r.APlus * r.Tr[k]
			if s.W > r.WMax {
				s.W = r.WMax
			}
		}
	}
}

// WeightNormRule rescales every postsynaptic neuron's afferent weights
// so their sum tracks either the sum captured at finalize (SetTarget
// false) or a fixed Target (SetTarget true).
type WeightNormRule struct {
	Bundle    *SynapseBundle
	SetTarget bool
	Target    float32

	initialSums []float32
}

// ResetState captures each postsynaptic neuron's current afferent weight
// sum as the normalization target, when SetTarget is false.
func (r *WeightNormRule) ResetState() {
	n := r.Bundle.nPost
	r.initialSums = make([]float32, n)
	for j := 0; j < n; j++ {
		r.initialSums[j] = r.sumAfferent(j)
	}
}

func (r *WeightNormRule) sumAfferent(j int) float32 {
	lo, hi := r.Bundle.postOffsets[j], r.Bundle.postOffsets[j+1]
	var sum float32
	for k := lo; k < hi; k++ {
		sum += r.Bundle.Synapses[k].W
	}
	return sum
}

// StateUpdate rescales every postsynaptic neuron's afferent weights to
// its target sum. Deltas accumulated by other rules during the step are
// implicitly included since this reads the weights as they stand now.
func (r *WeightNormRule) StateUpdate(t, dt float32) {
	b := r.Bundle
	for j := 0; j < b.nPost; j++ {
		sum := r.sumAfferent(j)
		if sum == 0 {
			continue
		}
		target := r.initialSums[j]
		if r.SetTarget {
			target = r.Target
		}
		scale := target / sum
		lo, hi := b.postOffsets[j], b.postOffsets[j+1]
		for k := lo; k < hi; k++ {
			b.Synapses[k].W *= scale
		}
	}
}
