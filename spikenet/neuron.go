package spikenet

import (
	"math"

	"cogentcore.org/core/math32"

	"github.com/synapcore/spikenet/backend"
	"github.com/synapcore/spikenet/chans"
)

// NeuronFamily selects the integration law a neuron group uses.
type NeuronFamily int32

const (
	// LIFCurrent integrates dv/dt = (VRest - V + R*IInj) / TauM.
	LIFCurrent NeuronFamily = iota
	// LIFConductance integrates dv/dt = (VRest - V + Ge(EE-V) + Gi(EI-V))*R/TauM,
	// with Ge and Gi decaying exponentially toward zero each step.
	LIFConductance
	// Izhikevich integrates the two-variable Izhikevich model, reset at
	// the fixed v=30 threshold rather than VThr.
	Izhikevich
)

func (f NeuronFamily) String() string {
	switch f {
	case LIFCurrent:
		return "LIFCurrent"
	case LIFConductance:
		return "LIFConductance"
	case Izhikevich:
		return "Izhikevich"
	default:
		return "NeuronFamily(?)"
	}
}

// NeuronParams is the parameter record for one neuron group.
type NeuronParams struct {
	Family NeuronFamily
	Shape  [2]int

	VRest, VThr, VReset float32
	TauRef               float32
	TauM                 float32
	R                    float32

	// LIFConductance only.
	TauSynE, TauSynI float32
	EE, EI           float32

	// Spike-frequency adaptation, LIFConductance only: each spike adds
	// KInc to the neuron's K channel, which decays with time constant
	// TauK and drains current toward EK like an extra inhibitory
	// conductance. TauK == 0 disables adaptation entirely.
	TauK, KInc, EK float32

	// Izhikevich only.
	A, B, C, D float32

	// TauD is the decay time constant of the postsynaptic activity trace
	// D; zero disables the trace (it stays at zero forever).
	TauD float32
}

// Neuron holds the per-instance state tracked for every ordinary or input
// neuron. Fields unused by a given family are simply left at zero.
type Neuron struct {
	V             float32
	U             float32 // Izhikevich recovery variable
	Ge, Gi        float32     // synaptic conductances, LIFConductance only
	Adapt         chans.Chans // Adapt.K is the spike-frequency adaptation conductance, LIFConductance only
	IInj          float32     // injected current, consumed and reset each step
	D             float32     // postsynaptic activity trace
	LastSpikeTime float32 // -Inf if the neuron has never spiked
	JustSpiked    bool

	// SpikedInWindow is true if the neuron has spiked at any point since
	// the current aggregation window began (ResetWindow last cleared
	// it). Plasticity rules read this instead of JustSpiked so that
	// every spike within a multi-substep aggregation window is treated
	// as simultaneous; JustSpiked itself still flips every sub-step so
	// the synapse ring's exact-arrival-time math is unaffected.
	SpikedInWindow bool
}

// NegInf is the sentinel last-spike time for a neuron that has never
// spiked, chosen so (t - LastSpikeTime) >= TauRef is always true.
var NegInf = float32(math.Inf(-1))

// NeuronGroup is one atomically-added shape x params block within a
// population.
type NeuronGroup struct {
	ID     GroupID
	Params NeuronParams
	Offset int // index of this group's first neuron in the population
	N      int
}

// NeuronPopulation is an ordered sequence of neurons partitioned into
// groups, dispatched through a shared backend.Context.
type NeuronPopulation struct {
	Groups  []NeuronGroup
	Neurons []Neuron

	ctx *backend.Context
}

// NewNeuronPopulation constructs an empty population bound to ctx.
func NewNeuronPopulation(ctx *backend.Context) *NeuronPopulation {
	return &NeuronPopulation{ctx: ctx}
}

// Len returns the total neuron count across every group.
func (p *NeuronPopulation) Len() int { return len(p.Neurons) }

// AddGroup allocates Shape[0]*Shape[1] neurons with the given params and
// returns their group ID, consecutive within this population starting at
// 0.
func (p *NeuronPopulation) AddGroup(params NeuronParams) (GroupID, error) {
	n := params.Shape[0] * params.Shape[1]
	if n < 0 {
		return 0, reportFatal(&ShapeError{Op: "AddGroup", Msg: "negative shape"})
	}
	id := GroupID(len(p.Groups))
	g := NeuronGroup{ID: id, Params: params, Offset: len(p.Neurons), N: n}
	p.Groups = append(p.Groups, g)
	for i := 0; i < n; i++ {
		p.Neurons = append(p.Neurons, Neuron{LastSpikeTime: NegInf})
	}
	return id, nil
}

// ResetState re-initializes every neuron to its group's resting values.
func (p *NeuronPopulation) ResetState() {
	for _, g := range p.Groups {
		for i := g.Offset; i < g.Offset+g.N; i++ {
			n := Neuron{V: g.Params.VRest, LastSpikeTime: NegInf}
			n.Adapt.SetAll(0, 0, 0, 0)
			p.Neurons[i] = n
		}
	}
}

// ResetWindow clears SpikedInWindow on every neuron, called once at the
// start of each aggregation block before its inner Δt sub-steps run.
func (p *NeuronPopulation) ResetWindow() {
	for i := range p.Neurons {
		p.Neurons[i].SpikedInWindow = false
	}
}

// StateUpdate integrates every neuron by one Δt, the per-step op the
// engine calls in pipeline stage 2. Threshold crossings latch
// LastSpikeTime and JustSpiked before this call returns, so that
// plasticity and synapse propagation (stages 4-5, next in the pipeline)
// observe this step's spikes.
func (p *NeuronPopulation) StateUpdate(t, dt float32) {
	for _, g := range p.Groups {
		params := g.Params
		decayD := float32(0)
		if params.TauD > 0 {
			decayD = math32.Exp(-dt / params.TauD)
		}
		p.ctx.RunNeurons(g.N, func(k int) {
			i := g.Offset + k
			n := &p.Neurons[i]
			n.JustSpiked = false
			if params.TauD > 0 {
				n.D *= decayD
			}

			switch params.Family {
			case LIFConductance:
				dv := (params.VRest - n.V + n.Ge*(params.EE-n.V) + n.Gi*(params.EI-n.V) + n.Adapt.K*(params.EK-n.V)) * params.R / params.TauM
				n.V += dt * dv
				if params.TauSynE > 0 {
					n.Ge *= math32.Exp(-dt / params.TauSynE)
				}
				if params.TauSynI > 0 {
					n.Gi *= math32.Exp(-dt / params.TauSynI)
				}
				if params.TauK > 0 {
					n.Adapt.K *= math32.Exp(-dt / params.TauK)
				}
			case Izhikevich:
				dv := 0.04*n.V*n.V + 5*n.V + 140 - n.U + n.IInj
				du := params.A * (params.B*n.V - n.U)
				n.V += dt * dv
				n.U += dt * du
			default: // LIFCurrent
				dv := (params.VRest - n.V + params.R*n.IInj) / params.TauM
				n.V += dt * dv
			}

			if params.Family == Izhikevich {
				if n.V >= 30 && (t-n.LastSpikeTime) >= params.TauRef {
					n.LastSpikeTime = t
					n.V = params.C
					n.U += params.D
					n.JustSpiked = true
					n.SpikedInWindow = true
					if params.TauD > 0 {
						n.D += 1
					}
				}
			} else if n.V >= params.VThr && (t-n.LastSpikeTime) >= params.TauRef {
				n.LastSpikeTime = t
				n.V = params.VReset
				n.JustSpiked = true
				n.SpikedInWindow = true
				if params.TauD > 0 {
					n.D += 1
				}
				if params.Family == LIFConductance && params.TauK > 0 {
					n.Adapt.K += params.KInc
				}
			}

			n.IInj = 0
		})
	}
}
