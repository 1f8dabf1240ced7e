package spikenet

import (
	"sort"

	"cogentcore.org/core/math32"
	"cogentcore.org/core/tensor"
	"github.com/emer/emergent/v2/erand"
	"github.com/emer/emergent/v2/paths"

	"github.com/synapcore/spikenet/backend"
)

// SynapseFamily selects how a bundle delivers a matured delayed spike
// into its postsynaptic neurons.
type SynapseFamily int32

const (
	// CurrentSynapse adds w directly into the postsynaptic neuron's IInj
	// on arrival.
	CurrentSynapse SynapseFamily = iota
	// ConductanceSynapse adds w into a per-postsynaptic conductance
	// accumulator that decays exponentially with time constant TauSyn and
	// is added into the postsynaptic neuron's Ge (or Gi, if Inhibitory)
	// every step.
	ConductanceSynapse
)

// Synapse is one presynaptic-to-postsynaptic connection. Post is a
// plain index into the owning NeuronPopulation's Neurons slice (synapse
// bundles always target the ordinary population).
type Synapse struct {
	Pre   PresynapticID
	Post  int32
	W     float32
	Delay int32 // whole timesteps, >= 1
}

// SynapseGroupParams configures one call to AddSynapseGroup /
// AddSynapseGroupsForNeuronGroupAndEachInputGroup.
type SynapseGroupParams struct {
	Family SynapseFamily

	// Inhibitory routes ConductanceSynapse contributions into Gi instead
	// of Ge; ignored by CurrentSynapse.
	Inhibitory bool

	// TauSyn is the conductance decay time constant, ConductanceSynapse
	// only.
	TauSyn float32

	// DelayTimesteps is the axonal delay in whole timesteps, d >= 1.
	DelayTimesteps int

	// WeightInit draws each synapse's initial weight; the zero value
	// (Dist Mean, Par 0) yields a deterministic Mean weight, matching
	// erand.RndParams' zero-value behavior.
	WeightInit erand.RndParams

	// Pattern selects which (pre, post) index pairs receive a synapse.
	// A nil Pattern defaults to paths.NewFull().
	Pattern paths.Pattern
}

// SynapseBundle is an ordered sequence of synapses together with the
// delayed-spike ring buffer that conducts matured spikes into the
// postsynaptic population. Synapses are stored sorted by
// Post so that DrainBlock, ApplyOffset and EnqueueSpikes can dispatch
// one worker per postsynaptic
// neuron and have it own every write to that neuron's ring slots and
// conductance accumulator -- the same "receiver iterates its own
// incoming connections" shape leabra uses to avoid concurrent writes
// into a shared neuron (see leabra.Layer.RecvPaths-based GFromInc).
type SynapseBundle struct {
	Params   SynapseGroupParams
	Synapses []Synapse

	// postOffsets[j]..postOffsets[j+1] is the range of Synapses
	// targeting postsynaptic neuron j.
	postOffsets []int32
	nPost       int

	ring    [][]float32 // ring[slot][j], slot in [0, ringLen)
	ringLen int
	gAccum  []float32 // per-postsynaptic decaying conductance, ConductanceSynapse only

	// pending[off][j] holds the off-th sub-step's drained ring
	// contribution for postsynaptic neuron j, off in [0, blockGrouping).
	// DrainBlock fills it once per block; ApplyOffset consumes one row
	// of it per sub-step.
	pending       [][]float32
	blockGrouping int

	minDelay, maxDelay int

	ctx *backend.Context
}

// NewSynapseBundle constructs an empty bundle bound to ctx.
func NewSynapseBundle(ctx *backend.Context) *SynapseBundle {
	return &SynapseBundle{ctx: ctx}
}

// AddGroup wires pre to post according to params.Pattern (default Full),
// appending one Synapse per connected pair. preIsInput
// selects whether pre indices are tagged into the input population.
func (b *SynapseBundle) AddGroup(preOffset, preN, postOffset, postN int, preIsInput bool, params SynapseGroupParams, nPost int) error {
	if params.DelayTimesteps < 1 {
		return reportFatal(&LifecycleError{Op: "AddSynapseGroup", Msg: "axonal delay must be >= 1 timestep"})
	}
	pat := params.Pattern
	if pat == nil {
		pat = paths.NewFull()
	}
	var ssh, rsh tensor.Shape
	ssh.SetShape([]int{1, preN}, nil, nil)
	rsh.SetShape([]int{1, postN}, nil, nil)
	_, _, cons := pat.Connect(&ssh, &rsh, false)

	rnd := erand.SysRand{}
	for ri := 0; ri < postN; ri++ {
		for si := 0; si < preN; si++ {
			if !cons.Values.Index(ri*preN + si) {
				continue
			}
			w := params.WeightInit.Gen(&rnd)
			b.Synapses = append(b.Synapses, Synapse{
				Pre:   CorrectedPresynapticID(preOffset+si, preIsInput),
				Post:  int32(postOffset + ri),
				W:     w,
				Delay: int32(params.DelayTimesteps),
			})
		}
	}
	b.Params = params
	b.nPost = nPost
	b.sortAndIndex()
	return nil
}

func (b *SynapseBundle) sortAndIndex() {
	sort.SliceStable(b.Synapses, func(i, j int) bool { return b.Synapses[i].Post < b.Synapses[j].Post })
	b.postOffsets = make([]int32, b.nPost+1)
	for _, s := range b.Synapses {
		b.postOffsets[s.Post+1]++
	}
	for j := 0; j < b.nPost; j++ {
		b.postOffsets[j+1] += b.postOffsets[j]
	}
}

// Finalize computes the delay bounds and sizes the ring buffer; called
// once by Model.finalize after every AddGroup call for this bundle has
// completed.
func (b *SynapseBundle) Finalize(timestepGrouping int) {
	b.minDelay, b.maxDelay = 0, 0
	if len(b.Synapses) > 0 {
		b.minDelay, b.maxDelay = int(b.Synapses[0].Delay), int(b.Synapses[0].Delay)
		for _, s := range b.Synapses {
			d := int(s.Delay)
			if d < b.minDelay {
				b.minDelay = d
			}
			if d > b.maxDelay {
				b.maxDelay = d
			}
		}
	}
	b.ringLen = b.maxDelay + timestepGrouping
	if b.ringLen < 1 {
		b.ringLen = 1
	}
	b.ring = make([][]float32, b.ringLen)
	for i := range b.ring {
		b.ring[i] = make([]float32, b.nPost)
	}
	if b.Params.Family == ConductanceSynapse {
		b.gAccum = make([]float32, b.nPost)
	}
	b.blockGrouping = timestepGrouping
	b.pending = make([][]float32, timestepGrouping)
	for i := range b.pending {
		b.pending[i] = make([]float32, b.nPost)
	}
}

func (b *SynapseBundle) MinDelay() int { return b.minDelay }
func (b *SynapseBundle) MaxDelay() int { return b.maxDelay }

// MinimumDelay scans the current synapse set for its minimum axonal
// delay without mutating the bundle; the model calls this before
// Finalize to choose timestep_grouping.
func (b *SynapseBundle) MinimumDelay() int {
	if len(b.Synapses) == 0 {
		return 1
	}
	m := int(b.Synapses[0].Delay)
	for _, s := range b.Synapses {
		if int(s.Delay) < m {
			m = int(s.Delay)
		}
	}
	return m
}

func (b *SynapseBundle) ResetState() {
	for i := range b.ring {
		for j := range b.ring[i] {
			b.ring[i][j] = 0
		}
	}
	for i := range b.gAccum {
		b.gAccum[i] = 0
	}
	for i := range b.pending {
		for j := range b.pending[i] {
			b.pending[i][j] = 0
		}
	}
}

// presynapticJustSpiked resolves a tagged presynaptic ID to whether the
// neuron it names fired on the current sub-step, reading from the
// ordinary or input population as CorrectedPresynapticID's tag selects.
func presynapticJustSpiked(id PresynapticID, neurons *NeuronPopulation, inputPop *InputPopulation) bool {
	if id.IsInput() {
		return inputPop.Neurons[id.Index()].JustSpiked
	}
	return neurons.Neurons[id.Index()].JustSpiked
}

// DrainBlock extracts the upcoming block's matured ring contributions
// into per-sub-step pending buffers, one worker per postsynaptic
// neuron. Called once per block, before the inner sub-step loop runs,
// so ApplyOffset can hand each sub-step exactly its own slot's
// contribution instead of the whole block's sum landing on a single
// step.
func (b *SynapseBundle) DrainBlock(startStep int) {
	if b.nPost == 0 {
		return
	}
	ringLen := b.ringLen
	tg := b.blockGrouping
	b.ctx.RunSynapses(b.nPost, func(j int) {
		for off := 0; off < tg; off++ {
			slot := (((startStep + off) % ringLen) + ringLen) % ringLen
			b.pending[off][j] = b.ring[slot][j]
			b.ring[slot][j] = 0
		}
	})
}

// ApplyOffset applies the off-th sub-step's drained contribution into
// the postsynaptic population. The caller must invoke this immediately
// before that sub-step's neuron integration, once per off in
// [0, timestepGrouping).
func (b *SynapseBundle) ApplyOffset(neurons *NeuronPopulation, off int, dt float32) {
	if b.nPost == 0 {
		return
	}
	family := b.Params.Family
	inhibitory := b.Params.Inhibitory
	decay := float32(1)
	if family == ConductanceSynapse && b.Params.TauSyn > 0 {
		decay = math32.Exp(-dt / b.Params.TauSyn)
	}

	b.ctx.RunSynapses(b.nPost, func(j int) {
		contribution := b.pending[off][j]
		switch family {
		case CurrentSynapse:
			neurons.Neurons[j].IInj += contribution
		case ConductanceSynapse:
			b.gAccum[j] = b.gAccum[j]*decay + contribution
			if inhibitory {
				neurons.Neurons[j].Gi += b.gAccum[j]
			} else {
				neurons.Neurons[j].Ge += b.gAccum[j]
			}
		}
	})
}

// EnqueueSpikes scans for presynaptic spikes that just fired on this
// sub-step and schedules their arrival into the ring buffer. The
// caller invokes this once per sub-step, right after that step's
// neuron and input integration, so every spike is enqueued from its
// own JustSpiked flag rather than a window scan that could straddle
// more than one sub-step.
func (b *SynapseBundle) EnqueueSpikes(neurons *NeuronPopulation, inputPop *InputPopulation, t, dt float32) {
	if b.nPost == 0 {
		return
	}
	step := int(math32.Round(t / dt))
	ringLen := b.ringLen
	b.ctx.RunSynapses(b.nPost, func(j int) {
		lo, hi := b.postOffsets[j], b.postOffsets[j+1]
		for k := lo; k < hi; k++ {
			s := &b.Synapses[k]
			if !presynapticJustSpiked(s.Pre, neurons, inputPop) {
				continue
			}
			arrival := step + int(s.Delay)
			slot := ((arrival % ringLen) + ringLen) % ringLen
			b.ring[slot][j] += s.W
		}
	})
}
