package spikenet

import (
	"encoding/binary"
	"io"

	"cogentcore.org/core/tensor"
)

// ActivityMonitor samples the present neuron/synapse state and appends
// to a host-side buffer of bounded size; when full it flushes to a
// persistent append-only binary sink.
type ActivityMonitor interface {
	ResetState()
	StateUpdate(t, dt float32)
	FinalUpdate()
}

// SpikeMonitor records every (neuron_id, time_seconds) pair a population
// latches.
type SpikeMonitor struct {
	Population *NeuronPopulation
	Sink       io.Writer
	BufferSize int

	ids   *tensor.Int32
	times *tensor.Float32
	n     int
}

// NewSpikeMonitor constructs a monitor flushing to sink every bufferSize
// spikes.
func NewSpikeMonitor(pop *NeuronPopulation, sink io.Writer, bufferSize int) *SpikeMonitor {
	if bufferSize < 1 {
		bufferSize = 1024
	}
	return &SpikeMonitor{Population: pop, Sink: sink, BufferSize: bufferSize}
}

func (m *SpikeMonitor) ResetState() {
	m.ids = tensor.NewInt32(m.BufferSize)
	m.times = tensor.NewFloat32(m.BufferSize)
	m.n = 0
}

// StateUpdate is called once per Δt sub-step (the same cadence as
// NeuronPopulation.StateUpdate), so it reads JustSpiked rather than
// SpikedInWindow and records each spike at its exact sub-step time --
// calling this only once per aggregation block would both drop spikes
// from every non-final sub-step (JustSpiked resets each sub-step) and
// quantize every recorded time down to the block start.
func (m *SpikeMonitor) StateUpdate(t, dt float32) {
	for i, n := range m.Population.Neurons {
		if nonFinite(n.V) {
			reportDivergence(&ModelDivergence{Neuron: i, Field: "V", Time: t})
		}
		if !n.JustSpiked {
			continue
		}
		m.ids.Values[m.n] = int32(i)
		m.times.Values[m.n] = t
		m.n++
		if m.n >= m.BufferSize {
			m.flush()
		}
	}
}

func (m *SpikeMonitor) flush() {
	for i := 0; i < m.n; i++ {
		binary.Write(m.Sink, binary.LittleEndian, m.ids.Values[i])
		binary.Write(m.Sink, binary.LittleEndian, m.times.Values[i])
	}
	m.n = 0
}

func (m *SpikeMonitor) FinalUpdate() { m.flush() }

// RateMonitor counts per-group spikes into fixed-width time bins.
type RateMonitor struct {
	Population *NeuronPopulation
	BinSeconds float32
	Sink       io.Writer

	counts   *tensor.Int32
	binStart float32
}

// NewRateMonitor constructs a monitor that emits one int32 count per
// group every binSeconds of simulated time.
func NewRateMonitor(pop *NeuronPopulation, binSeconds float32, sink io.Writer) *RateMonitor {
	return &RateMonitor{Population: pop, BinSeconds: binSeconds, Sink: sink}
}

func (m *RateMonitor) ResetState() {
	m.counts = tensor.NewInt32(len(m.Population.Groups))
	m.binStart = 0
}

// StateUpdate is called once per Δt sub-step, the same cadence as
// SpikeMonitor and for the same reason: JustSpiked only reflects the
// sub-step that just ran.
func (m *RateMonitor) StateUpdate(t, dt float32) {
	for gi, g := range m.Population.Groups {
		for i := g.Offset; i < g.Offset+g.N; i++ {
			if m.Population.Neurons[i].JustSpiked {
				m.counts.Values[gi]++
			}
		}
	}
	if t-m.binStart >= m.BinSeconds {
		m.flush()
		m.binStart = t
	}
}

func (m *RateMonitor) flush() {
	for i := range m.counts.Values {
		binary.Write(m.Sink, binary.LittleEndian, m.counts.Values[i])
		m.counts.Values[i] = 0
	}
}

func (m *RateMonitor) FinalUpdate() { m.flush() }

// WeightMonitor periodically snapshots a synapse bundle's weight vector,
// in synapse-insertion order, and writes the initial weights to
// InitialSink on every ResetState (finalize runs one).
type WeightMonitor struct {
	Bundle             *SynapseBundle
	SampleEverySeconds float32
	Sink               io.Writer
	InitialSink        io.Writer

	lastSample float32
}

// NewWeightMonitor constructs a monitor sampling every sampleEvery
// seconds, writing snapshots to sink and the one-time initial weights
// to initialSink.
func NewWeightMonitor(b *SynapseBundle, sampleEvery float32, sink, initialSink io.Writer) *WeightMonitor {
	return &WeightMonitor{Bundle: b, SampleEverySeconds: sampleEvery, Sink: sink, InitialSink: initialSink}
}

func (m *WeightMonitor) ResetState() {
	m.lastSample = 0
	if m.InitialSink != nil {
		m.snapshot(m.InitialSink)
	}
}

func (m *WeightMonitor) StateUpdate(t, dt float32) {
	if t-m.lastSample >= m.SampleEverySeconds {
		m.snapshot(m.Sink)
		m.lastSample = t
	}
}

func (m *WeightMonitor) snapshot(w io.Writer) {
	for _, s := range m.Bundle.Synapses {
		binary.Write(w, binary.LittleEndian, s.W)
	}
}

func (m *WeightMonitor) FinalUpdate() { m.snapshot(m.Sink) }
