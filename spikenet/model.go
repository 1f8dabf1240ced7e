package spikenet

import (
	"fmt"
	"io"
	"os"
	"strings"

	"cogentcore.org/core/math32"
	"github.com/c2h5oh/datasize"

	"github.com/synapcore/spikenet/backend"
)

// Model is the root entity: it owns one ordinary neuron population,
// one input population, one synapse bundle, ordered lists of plasticity
// rules and monitors, a backend context, Δt, and the model_complete
// latch.
type Model struct {
	Name           string
	Config         Config
	DiagnosticSink io.Writer

	Neurons  *NeuronPopulation
	Inputs   *InputPopulation
	Synapses *SynapseBundle

	Plasticity []PlasticityRule
	Monitors   []ActivityMonitor

	ctx *backend.Context

	dt                     float32
	dtFrozen               bool
	currentTimeInTimesteps int
	timestepGrouping       int
	modelComplete          bool
}

// NewModel constructs a model dispatching neuron/synapse work through a
// backend of the given kind, with tunables from cfg.
func NewModel(name string, kind backend.Kind, cfg Config) *Model {
	return &Model{
		Name:           name,
		Config:         cfg,
		DiagnosticSink: os.Stderr,
		ctx: &backend.Context{
			Kind:                    kind,
			ThreadsPerBlockNeurons:  cfg.ThreadsPerBlockNeurons,
			ThreadsPerBlockSynapses: cfg.ThreadsPerBlockSynapses,
		},
	}
}

// SetTimestep sets Δt. Fails with LifecycleError if any synapse already
// exists.
func (m *Model) SetTimestep(dt float32) error {
	if m.dtFrozen {
		return reportFatal(&LifecycleError{Op: "SetTimestep", Msg: "timestep cannot change once a synapse exists"})
	}
	m.dt = dt
	return nil
}

// AddNeuronGroup allocates a group of ordinary neurons, installing the
// ordinary population on first use.
func (m *Model) AddNeuronGroup(params NeuronParams) (GroupID, error) {
	if m.Neurons == nil {
		m.Neurons = NewNeuronPopulation(m.ctx)
	}
	return m.Neurons.AddGroup(params)
}

// AddInputNeuronGroup allocates a group of input neurons, installing the
// input population on first use.
func (m *Model) AddInputNeuronGroup(params InputNeuronParams) (GroupID, error) {
	if m.Inputs == nil {
		m.Inputs = NewInputPopulation(m.ctx)
	}
	return m.Inputs.AddGroup(params)
}

// AddSynapseGroup wires neurons in presynaptic group pre to neurons in
// postsynaptic group post according to params.Pattern (every pair when
// the Pattern is nil), installing the synapse bundle on first use and freezing Δt.
// post must reference the ordinary population; pre may reference either
// population, tagged per CorrectedPresynapticID.
func (m *Model) AddSynapseGroup(pre, post PresynapticID, params SynapseGroupParams) error {
	if post.IsInput() {
		return reportFatal(&ShapeError{Op: "AddSynapseGroup", Msg: "postsynaptic group must be ordinary"})
	}
	if m.Neurons == nil || int(post.Index()) >= len(m.Neurons.Groups) {
		return reportFatal(&ShapeError{Op: "AddSynapseGroup", ID: GroupID(post.Index()), Msg: "unknown postsynaptic group"})
	}
	var preOffset, preN int
	if pre.IsInput() {
		if m.Inputs == nil || int(pre.Index()) >= len(m.Inputs.Groups) {
			return reportFatal(&ShapeError{Op: "AddSynapseGroup", ID: GroupID(pre.Index()), Msg: "unknown presynaptic input group"})
		}
		g := m.Inputs.Groups[pre.Index()]
		preOffset, preN = g.offset, g.n
	} else {
		if int(pre.Index()) >= len(m.Neurons.Groups) {
			return reportFatal(&ShapeError{Op: "AddSynapseGroup", ID: GroupID(pre.Index()), Msg: "unknown presynaptic group"})
		}
		g := m.Neurons.Groups[pre.Index()]
		preOffset, preN = g.Offset, g.N
	}
	postGroup := m.Neurons.Groups[post.Index()]

	if m.Synapses == nil {
		m.Synapses = NewSynapseBundle(m.ctx)
	}
	m.dtFrozen = true
	return m.Synapses.AddGroup(preOffset, preN, postGroup.Offset, postGroup.N, pre.IsInput(), params, m.Neurons.Len())
}

// AddSynapseGroupsForNeuronGroupAndEachInputGroup wires every existing
// input group to post, one synapse group per input group.
func (m *Model) AddSynapseGroupsForNeuronGroupAndEachInputGroup(post GroupID, params SynapseGroupParams) error {
	if m.Inputs == nil {
		return nil
	}
	postTagged := CorrectedPresynapticID(int(post), false)
	for i := range m.Inputs.Groups {
		pre := CorrectedPresynapticID(i, true)
		if err := m.AddSynapseGroup(pre, postTagged, params); err != nil {
			return err
		}
	}
	return nil
}

// AddPlasticityRule appends rule to the ordered list run each step.
func (m *Model) AddPlasticityRule(rule PlasticityRule) {
	m.Plasticity = append(m.Plasticity, rule)
}

// AddActivityMonitor appends mon to the ordered list run each step.
func (m *Model) AddActivityMonitor(mon ActivityMonitor) {
	m.Monitors = append(m.Monitors, mon)
}

// finalize is idempotent: it installs stand-in populations if the user
// attached none, computes timestep_grouping from the synapse bundle's
// minimum axonal delay, initializes the backend, and resets every
// component.
func (m *Model) finalize() error {
	if m.modelComplete {
		return nil
	}
	if m.Neurons == nil {
		m.Neurons = NewNeuronPopulation(m.ctx)
	}
	if m.Inputs == nil {
		m.Inputs = NewInputPopulation(m.ctx)
	}
	if m.Synapses == nil {
		m.Synapses = NewSynapseBundle(m.ctx)
	}

	m.timestepGrouping = m.Synapses.MinimumDelay()
	if m.timestepGrouping < 1 {
		m.timestepGrouping = 1
	}
	m.Synapses.Finalize(m.timestepGrouping)
	m.Config.MaximumAxonalDelayInTimesteps = m.Synapses.MaxDelay()
	m.ctx.MaximumAxonalDelayInTimesteps = m.Config.MaximumAxonalDelayInTimesteps

	if err := m.ctx.Init(); err != nil {
		return reportFatal(&BackendError{Op: "finalize", Err: err})
	}
	m.modelComplete = true
	return m.doResetState()
}

func (m *Model) doResetState() error {
	m.currentTimeInTimesteps = 0
	m.Neurons.ResetState()
	m.Inputs.ResetState()
	m.Synapses.ResetState()
	for _, r := range m.Plasticity {
		r.ResetState()
	}
	for _, mon := range m.Monitors {
		mon.ResetState()
	}
	return nil
}

// ResetState forces finalize() then propagates reset to every component.
func (m *Model) ResetState() error {
	if !m.modelComplete {
		return m.finalize()
	}
	return m.doResetState()
}

// Run advances the model by ⌈seconds/Δt⌉ timesteps, in blocks of
// timestep_grouping, then flushes every monitor. Only whole blocks are
// run: when ⌈seconds/Δt⌉ is not a multiple of timestep_grouping, the
// last block carries the model past that count to the end of the
// block, and the next Run starts from there. Neuron and input
// integration, synapse delivery and enqueue, and monitor sampling all
// run once per Δt sub-step, so spike trains and spike records are
// identical regardless of timestep_grouping; only the ring-buffer
// drain that produces each sub-step's pending contribution, and
// plasticity (which only needs to know whether a neuron spiked
// somewhere in the block, not exactly when), are batched once per
// block, purely to give the parallel backend one dispatch per block
// instead of one per sub-step for that part of the work.
func (m *Model) Run(seconds float32) error {
	if !m.modelComplete {
		if err := m.finalize(); err != nil {
			return err
		}
	}
	if m.dt <= 0 {
		return reportFatal(&LifecycleError{Op: "Run", Msg: "timestep not set"})
	}

	total := m.currentTimeInTimesteps + int(math32.Ceil(seconds/m.dt))
	for m.currentTimeInTimesteps < total {
		m.runBlock()
	}
	for _, mon := range m.Monitors {
		mon.FinalUpdate()
	}
	return nil
}

func (m *Model) runBlock() {
	m.Neurons.ResetWindow()
	m.Inputs.ResetWindow()

	blockStart := float32(m.currentTimeInTimesteps) * m.dt
	m.Synapses.DrainBlock(m.currentTimeInTimesteps)

	for sub := 0; sub < m.timestepGrouping; sub++ {
		t := float32(m.currentTimeInTimesteps+sub) * m.dt
		m.Synapses.ApplyOffset(m.Neurons, sub, m.dt)
		m.Neurons.StateUpdate(t, m.dt)
		m.Inputs.StateUpdate(t, m.dt)
		m.Synapses.EnqueueSpikes(m.Neurons, m.Inputs, t, m.dt)
		for _, mon := range m.Monitors {
			mon.StateUpdate(t, m.dt)
		}
	}

	blockDt := float32(m.timestepGrouping) * m.dt
	for _, r := range m.Plasticity {
		r.StateUpdate(blockStart, blockDt)
	}

	m.currentTimeInTimesteps += m.timestepGrouping
}

// TimingReport surfaces the backend's accumulated per-kernel seconds.
func (m *Model) TimingReport() map[string]float64 {
	return m.ctx.TimingReport()
}

// SizeReport renders a human-readable memory footprint for the neuron
// and synapse state, the same diagnostic role leabra.Network.SizeReport
// plays.
func (m *Model) SizeReport() string {
	var neurons int
	if m.Neurons != nil {
		neurons = m.Neurons.Len()
	}
	var inputs int
	if m.Inputs != nil {
		inputs = m.Inputs.Len()
	}
	var synapses int
	if m.Synapses != nil {
		synapses = len(m.Synapses.Synapses)
	}
	neurMem := (datasize.ByteSize)((neurons + inputs) * neuronMemBytes).HumanReadable()
	synMem := (datasize.ByteSize)(synapses * synapseMemBytes).HumanReadable()

	var b strings.Builder
	fmt.Fprintf(&b, "%s: Neurons: %d (%s)  Synapses: %d (%s)\n", m.Name, neurons+inputs, neurMem, synapses, synMem)
	return b.String()
}

const (
	neuronMemBytes  = 48
	synapseMemBytes = 16
)
