package spikenet

import (
	"sort"

	"github.com/emer/emergent/v2/erand"

	"github.com/synapcore/spikenet/backend"
)

// InputFamily selects how an input group decides when to spike.
type InputFamily int32

const (
	// Poisson fires each neuron as an independent Poisson process at
	// RateHz.
	Poisson InputFamily = iota
	// ReplayedPattern fires the exact (index, time) pairs in Pattern,
	// once each, in time order (AddGroup sorts Pattern by Time).
	ReplayedPattern
	// ImageDriven fires neuron i as a Poisson process whose rate is
	// RateMap[i], refreshed by SetRateMap between stimuli.
	ImageDriven
)

// SpikeEvent is one entry of a replayed spike pattern.
type SpikeEvent struct {
	Index int
	Time  float32
}

// InputNeuronParams is the parameter record for one input group.
type InputNeuronParams struct {
	Family InputFamily
	Shape  [2]int

	// RateHz is the per-neuron firing rate for Poisson, or the initial
	// rate map fill value for ImageDriven.
	RateHz float32

	// Pattern is the ordered (index, time) sequence for ReplayedPattern,
	// index relative to this group's first neuron.
	Pattern []SpikeEvent
}

// inputGroup is the runtime counterpart to InputNeuronParams: a group's
// static params plus the mutable cursor/rate-map state its family needs.
type inputGroup struct {
	id     GroupID
	params InputNeuronParams
	offset int
	n      int

	rateMap []float32 // ImageDriven, len n
	cursor  int        // ReplayedPattern, index of next undelivered event
}

// InputPopulation shares the neuron interface (its neurons are read by
// synapse bundles exactly like the ordinary population's) but replaces
// state_update with emit_scheduled_spikes.
type InputPopulation struct {
	Groups  []inputGroup
	Neurons []Neuron

	ctx *backend.Context
	rnd erand.SysRand
}

// NewInputPopulation constructs an empty input population bound to ctx.
func NewInputPopulation(ctx *backend.Context) *InputPopulation {
	return &InputPopulation{ctx: ctx}
}

func (p *InputPopulation) Len() int { return len(p.Neurons) }

// AddGroup allocates a group of input neurons and returns its group ID,
// consecutive within this population starting at 0.
func (p *InputPopulation) AddGroup(params InputNeuronParams) (GroupID, error) {
	n := params.Shape[0] * params.Shape[1]
	if n < 0 {
		return 0, reportFatal(&ShapeError{Op: "AddInputNeuronGroup", Msg: "negative shape"})
	}
	if params.Family == ReplayedPattern {
		sorted := append([]SpikeEvent(nil), params.Pattern...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
		params.Pattern = sorted
	}
	id := GroupID(len(p.Groups))
	g := inputGroup{id: id, params: params, offset: len(p.Neurons), n: n}
	if params.Family == ImageDriven {
		g.rateMap = make([]float32, n)
		for i := range g.rateMap {
			g.rateMap[i] = params.RateHz
		}
	}
	p.Groups = append(p.Groups, g)
	for i := 0; i < n; i++ {
		p.Neurons = append(p.Neurons, Neuron{LastSpikeTime: NegInf})
	}
	return id, nil
}

// SetRateMap replaces the per-neuron Poisson rate map of an ImageDriven
// group, refreshed between stimuli.
func (p *InputPopulation) SetRateMap(id GroupID, rates []float32) error {
	g := &p.Groups[id]
	if g.params.Family != ImageDriven {
		return reportFatal(&LifecycleError{Op: "SetRateMap", Msg: "group is not image-driven"})
	}
	if len(rates) != g.n {
		return reportFatal(&ShapeError{Op: "SetRateMap", ID: id, Msg: "rate map length mismatch"})
	}
	copy(g.rateMap, rates)
	return nil
}

func (p *InputPopulation) ResetState() {
	for gi := range p.Groups {
		g := &p.Groups[gi]
		g.cursor = 0
		for i := g.offset; i < g.offset+g.n; i++ {
			p.Neurons[i] = Neuron{LastSpikeTime: NegInf}
		}
	}
}

// ResetWindow clears SpikedInWindow on every input neuron, called once
// at the start of each aggregation block.
func (p *InputPopulation) ResetWindow() {
	for i := range p.Neurons {
		p.Neurons[i].SpikedInWindow = false
	}
}

// StateUpdate decides, for every input neuron, whether it spikes within
// the sub-step [t, t+Δt) -- it is emit_scheduled_spikes, called once per
// Δt sub-step right after neuron integration. SynapseBundle.EnqueueSpikes
// reads the JustSpiked flags it sets in that same sub-step; plasticity
// reads SpikedInWindow once at the end of the block.
func (p *InputPopulation) StateUpdate(t, dt float32) {
	for gi := range p.Groups {
		g := &p.Groups[gi]
		switch g.params.Family {
		case Poisson:
			rate := g.params.RateHz
			p.ctx.RunNeurons(g.n, func(k int) {
				i := g.offset + k
				if poissonFires(&p.rnd, rate, dt) {
					p.Neurons[i].LastSpikeTime = t
					p.Neurons[i].JustSpiked = true
					p.Neurons[i].SpikedInWindow = true
				} else {
					p.Neurons[i].JustSpiked = false
				}
			})
		case ImageDriven:
			p.ctx.RunNeurons(g.n, func(k int) {
				i := g.offset + k
				if poissonFires(&p.rnd, g.rateMap[k], dt) {
					p.Neurons[i].LastSpikeTime = t
					p.Neurons[i].JustSpiked = true
					p.Neurons[i].SpikedInWindow = true
				} else {
					p.Neurons[i].JustSpiked = false
				}
			})
		case ReplayedPattern:
			p.ctx.RunNeurons(g.n, func(k int) {
				p.Neurons[g.offset+k].JustSpiked = false
			})
			for g.cursor < len(g.params.Pattern) && g.params.Pattern[g.cursor].Time < t+dt {
				ev := g.params.Pattern[g.cursor]
				if ev.Time >= t {
					i := g.offset + ev.Index
					p.Neurons[i].LastSpikeTime = ev.Time
					p.Neurons[i].JustSpiked = true
					p.Neurons[i].SpikedInWindow = true
				}
				g.cursor++
			}
		}
	}
}

// poissonFires draws a Bernoulli trial for a Poisson process of the
// given rate over a window of dt seconds, using erand's random source
// for every stochastic quantity rather than reaching for math/rand
// directly.
func poissonFires(rnd *erand.SysRand, rateHz, dt float32) bool {
	if rateHz <= 0 {
		return false
	}
	p := rateHz * dt
	return rnd.Float64(-1) < float64(p)
}
